package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/sidenote/internal/app"
	"github.com/HendryAvila/sidenote/internal/server"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show note and tag statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Statistics(ctx)
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show application and database details",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.ApplicationInfo(ctx)
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of sidenote",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sidenote version %s\n", server.Version)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd, infoCmd, versionCmd)
}
