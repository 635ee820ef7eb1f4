package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	utils "cryptflow/internal"
	"cryptflow/internal/api"
)

var shutdownTimeout time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long:  `Serves POST /v1/files and GET /v1/files/{key} until SIGINT or SIGTERM.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		files := api.NewFilesAPI(a.uploads, a.downloads, a.log)
		router := api.NewRouter(files, api.RouterConfig{
			APIKey:         a.cfg.APIKey,
			AllowedOrigins: a.cfg.CORSAllowedOrigins,
		}, a.log)

		// no WriteTimeout, downloads of large objects stream for minutes
		server := &http.Server{
			Addr:              fmt.Sprintf(":%s", a.cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		signal.Notify(utils.QuitChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(utils.QuitChan)

		serverErr := make(chan error, 1)
		go func() {
			a.log.Infof("Starting server on port %s 🚀", a.cfg.Port)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()

		select {
		case err := <-serverErr:
			a.log.WithError(err).Error("Server failed to start 🚨")
			return fmt.Errorf("server failed to start: %w", err)
		case <-utils.QuitChan:
		case <-cmd.Context().Done():
		}

		a.log.Info("Shutting down server... 🛑")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		a.log.Info("Server exited")
		return nil
	},
}

func init() {
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "how long in-flight requests get to finish")
	rootCmd.AddCommand(serveCmd)
}
