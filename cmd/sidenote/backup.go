package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/sidenote/internal/app"
)

var backupOut string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a consistent snapshot of the database",
	Long: `Write a snapshot of the database. Without --out a timestamped
notes_backup_YYYYMMDD_HHMMSS.db is written to the backup directory and,
when backup.remote names a bucket, uploaded there as well.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			if backupOut != "" {
				return a.Backup(ctx, backupOut)
			}
			return a.BackupToDir(ctx, "")
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Export notes, tags and settings as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Export(ctx, args[0])
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Merge a JSON export into the database",
	Long: `Merge a file written by "sidenote export". Tags are matched by name,
notes are added as new notes, settings are overwritten. Nothing is written
unless the whole file applies.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Import(ctx, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(backupCmd, exportCmd, importCmd)
	backupCmd.Flags().StringVarP(&backupOut, "out", "o", "", "Write the snapshot to this file instead")
}
