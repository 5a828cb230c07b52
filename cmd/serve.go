package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZacxDev/pagesgen/handlers"
	"github.com/ZacxDev/pagesgen/output"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dev server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd.Flags(), map[string]string{
			"server.port":        "port",
			"server.live_reload": "live-reload",
		}); err != nil {
			return err
		}
		project, s, err := loadProject()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := handlers.NewServer(s, documentFetcher(project, s), handlers.Options{LiveReload: project.Server.LiveReload})

		watcher, err := srv.Watch(ctx)
		if err != nil {
			return err
		}
		defer watcher.Close()

		httpServer := &http.Server{
			Addr:              ":" + project.Server.Port,
			Handler:           srv.SetupRouter(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()

		output.Info("starting dev server", "url", "http://localhost:"+project.Server.Port, "content", project.Content.Mode, "live_reload", project.Server.LiveReload)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.WithStack(err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "5173", "Port to run the server on")
	serveCmd.Flags().Bool("live-reload", true, "Reload browsers when sources change")
}
