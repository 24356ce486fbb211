package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/sidenote/internal/config"
	"github.com/HendryAvila/sidenote/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on stdio",
	Long: `Serve the note store over the Model Context Protocol on stdin/stdout.
Edits to the configuration file are picked up while running: the autosave
toggle and interval apply immediately.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return fmt.Errorf("opening note store: %w", err)
		}
		defer func() {
			if err := a.Close(context.Background()); err != nil {
				slog.Error("closing note store", "err", err)
			}
		}()

		go func() {
			err := config.Watch(ctx, configPath, func(c *config.Config, err error) {
				if err != nil {
					slog.Warn("config reload rejected", "err", err)
					return
				}
				a.ApplyAutoSave(c.Autosave.Enabled, c.Autosave.Interval)
			})
			if err != nil && ctx.Err() == nil {
				slog.Warn("config watch stopped", "err", err)
			}
		}()

		s := server.New(a)
		errCh := make(chan error, 1)
		go func() { errCh <- mcpserver.ServeStdio(s) }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			slog.Info("shutting down")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
