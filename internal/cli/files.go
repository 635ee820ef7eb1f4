package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var uploadName string

var uploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Encrypt and upload a local file",
	Long:  `Streams the file at <path> into the store and prints the new object key.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		name := uploadName
		if name == "" {
			name = filepath.Base(args[0])
		}

		key, err := a.uploads.Upload(cmd.Context(), f, name)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

var downloadOutput string

var downloadCmd = &cobra.Command{
	Use:   "download <key>",
	Short: "Download and decrypt an object",
	Long:  `Writes the plaintext of <key> to the file given by --output, or to stdout.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		obj, err := a.downloads.Download(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer obj.Body.Close()

		var out io.Writer = cmd.OutOrStdout()
		if downloadOutput != "" {
			f, ferr := os.Create(downloadOutput)
			if ferr != nil {
				return ferr
			}
			defer func() {
				if cerr := f.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					os.Remove(downloadOutput)
				}
			}()
			out = f
		}

		n, err := io.Copy(out, obj.Body)
		if err != nil {
			return err
		}
		a.log.WithField("object_key", obj.Key).WithField("size", n).Debug("object downloaded")
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadName, "name", "", "file name to store instead of the base name of <path>")
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "write to this file instead of stdout")
	rootCmd.AddCommand(uploadCmd, downloadCmd)
}
