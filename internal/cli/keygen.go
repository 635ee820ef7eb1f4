package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cryptflow/internal/keyprotect"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a master key",
	Long: `Prints a new base64 master key. Prepend it to KEYRING_KEYS to rotate:
new objects are protected with the first key, older keys still unwrap.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := keyprotect.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), keyprotect.EncodeKey(key))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
