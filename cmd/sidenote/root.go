package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/sidenote/internal/app"
	"github.com/HendryAvila/sidenote/internal/config"
	"github.com/HendryAvila/sidenote/internal/obs"
	"github.com/HendryAvila/sidenote/internal/remote"
	"github.com/HendryAvila/sidenote/internal/server"
)

var (
	configPath string
	verbose    bool
	jsonOut    bool

	cfg         *config.Config
	closeLogger = func() error { return nil }
)

// errReported marks a failure whose Result was already printed.
var errReported = errors.New("command failed")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sidenote",
	Short: "A local note store with tags, settings and autosave",
	Long: `sidenote keeps notes, tags and settings in a single SQLite file.
Run "sidenote serve" to expose the store to an AI host over MCP (stdio),
or use the subcommands to work with it from the shell.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		closeLogger, err = obs.Init(obs.Options{
			Level:  level,
			Format: cfg.Logging.Format,
			File:   cfg.Logging.File,
		})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = closeLogger()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		_ = closeLogger()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Print results as JSON")
	rootCmd.Version = server.Version
}

// openApp opens a session from the loaded configuration.
func openApp(ctx context.Context) (*app.App, error) {
	r := cfg.Backup.Remote
	return app.Open(ctx, app.Options{
		Name:             cfg.App.Name,
		Version:          server.Version,
		DBPath:           cfg.DBPath(),
		BackupDir:        cfg.Backup.Dir,
		AutoSaveEnabled:  cfg.Autosave.Enabled,
		AutoSaveInterval: cfg.Autosave.Interval,
		Remote: remote.Config{
			Endpoint:        r.Endpoint,
			Region:          r.Region,
			AccessKeyID:     r.AccessKeyID,
			SecretAccessKey: r.SecretAccessKey,
			Bucket:          r.Bucket,
			Prefix:          r.Prefix,
			UsePathStyle:    r.PathStyle,
		},
	})
}

// withApp runs fn against a fresh session and prints its Result.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) app.Result) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	r := fn(ctx, a)
	if err := a.Close(ctx); err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), r)
}

// printResult writes r as JSON with --json, otherwise in a readable form.
// A failed Result is reported on stderr and turned into errReported.
func printResult(stdout, stderr io.Writer, r app.Result) error {
	if jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return err
		}
		if !r.Success {
			return errReported
		}
		return nil
	}

	if !r.Success {
		fmt.Fprintf(stderr, "Error (%s): %s\n", r.Code, r.Error)
		if r.Data != nil {
			_ = writeYAML(stderr, r.Data)
		}
		return errReported
	}

	switch d := r.Data.(type) {
	case app.NoteList:
		return writeNotes(stdout, d)
	case app.TagList:
		return writeTags(stdout, d)
	default:
		return writeYAML(stdout, d)
	}
}

func writeNotes(w io.Writer, l app.NoteList) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUPDATED\tTITLE\tTAGS")
	for _, n := range l.Notes {
		names := make([]string, 0, len(n.Tags))
		for _, t := range n.Tags {
			names = append(names, t.Name)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", n.ID, n.UpdatedAt, n.Title, strings.Join(names, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d note(s)\n", l.TotalCount)
	return err
}

func writeTags(w io.Writer, l app.TagList) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCOLOR\tNOTES")
	for _, t := range l.Tags {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", t.ID, t.Name, t.Color, t.NoteCount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d tag(s)\n", l.TotalCount)
	return err
}

// writeYAML prints v as YAML using its JSON field names.
func writeYAML(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var plain any
	if err := json.Unmarshal(raw, &plain); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(plain); err != nil {
		return err
	}
	return enc.Close()
}
