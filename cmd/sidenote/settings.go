package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/sidenote/internal/app"
	"github.com/HendryAvila/sidenote/internal/settings"
)

var settingsYes bool

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and write stored settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Settings.Get(ctx, args[0], nil)
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Store one setting",
	Long: `Store one setting. VALUE is read the way stored values are: true/false
become booleans, numbers become numbers, JSON lists and objects keep their
structure, anything else is a string.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Settings.Set(ctx, args[0], settings.Parse(args[1]))
		})
	},
}

var settingsDeleteCmd = &cobra.Command{
	Use:   "delete KEY",
	Short: "Remove one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Settings.Delete(ctx, args[0])
		})
	},
}

var settingsListCmd = &cobra.Command{
	Use:   "list [PREFIX]",
	Short: "Print settings, optionally only those under a prefix",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			if len(args) == 1 {
				return a.Settings.ByPrefix(ctx, args[0])
			}
			return a.Settings.ExportAll(ctx)
		})
	},
}

var settingsExportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Write every setting to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		m, err := a.Settings.Repo().ExportAll(cmd.Context())
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(m)
		if err != nil {
			return fmt.Errorf("encoding settings: %w", err)
		}
		if err := os.WriteFile(args[0], data, 0o600); err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(),
			app.OK(map[string]any{"file": args[0], "count": len(m)}))
	},
}

var settingsImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Load settings from a YAML or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		// YAML is a superset of JSON, so one decoder reads both.
		var m map[string]any
		if err := yaml.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("decoding %s: %w", args[0], err)
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Settings.ImportAll(ctx, m)
		})
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every setting and restore the defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !settingsYes {
			return errors.New("refusing to reset settings without --yes")
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Settings.ResetToDefaults(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd, settingsDeleteCmd, settingsListCmd,
		settingsExportCmd, settingsImportCmd, settingsResetCmd)
	settingsResetCmd.Flags().BoolVarP(&settingsYes, "yes", "y", false, "Confirm the reset")
}
