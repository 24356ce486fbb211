package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/sidenote/internal/app"
	"github.com/HendryAvila/sidenote/internal/notes"
)

var (
	noteTitle   string
	noteContent string
	noteTags    []int64
	noteClear   bool

	noteLimit   int
	noteOffset  int
	noteOrderBy string
	noteDir     string
	noteKeyword string
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Create, read, update and delete notes",
}

var noteCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a note",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Notes.Create(ctx, noteTitle, noteContent, noteTags)
		})
	},
}

var noteGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Notes.Get(ctx, id)
		})
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Notes.List(ctx, notes.Filter{
				TagIDs:         noteTags,
				SearchKeyword:  noteKeyword,
				OrderBy:        noteOrderBy,
				OrderDirection: noteDir,
				Limit:          noteLimit,
				Offset:         noteOffset,
			})
		})
	},
}

var noteSearchCmd = &cobra.Command{
	Use:   "search KEYWORD",
	Short: "Search note titles and content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Notes.Search(ctx, args[0], noteLimit)
		})
	},
}

var noteUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Change a note's title, content or tags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		var p notes.UpdateParams
		if cmd.Flags().Changed("title") {
			p.Title = &noteTitle
		}
		if cmd.Flags().Changed("content") {
			p.Content = &noteContent
		}
		if cmd.Flags().Changed("tag") || noteClear {
			ids := append([]int64{}, noteTags...)
			p.TagIDs = &ids
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Notes.Update(ctx, id, p)
		})
	},
}

var noteDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Notes.Delete(ctx, id)
		})
	},
}

var noteRenderCmd = &cobra.Command{
	Use:   "render ID",
	Short: "Print a note as sanitised HTML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if jsonOut {
			return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
				return a.Render(ctx, id)
			})
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())
		r := a.Render(cmd.Context(), id)
		if !r.Success {
			return printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), r)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), r.Data.(app.Rendered).HTML)
		return err
	},
}

var notePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Permanently remove deleted notes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Notes.PurgeDeleted(ctx)
		})
	},
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func init() {
	rootCmd.AddCommand(noteCmd)
	noteCmd.AddCommand(noteCreateCmd, noteGetCmd, noteListCmd, noteSearchCmd,
		noteUpdateCmd, noteDeleteCmd, noteRenderCmd, notePurgeCmd)

	for _, c := range []*cobra.Command{noteCreateCmd, noteUpdateCmd} {
		c.Flags().StringVarP(&noteTitle, "title", "t", "", "Note title")
		c.Flags().StringVarP(&noteContent, "content", "c", "", "Markdown content")
		c.Flags().Int64SliceVar(&noteTags, "tag", nil, "Tag id (repeatable)")
	}
	_ = noteCreateCmd.MarkFlagRequired("title")
	noteUpdateCmd.Flags().BoolVar(&noteClear, "clear-tags", false, "Remove every tag not given with --tag")

	noteListCmd.Flags().Int64SliceVar(&noteTags, "tag", nil, "Only notes with any of these tag ids")
	noteListCmd.Flags().StringVarP(&noteKeyword, "keyword", "k", "", "Substring of title or content")
	noteListCmd.Flags().StringVar(&noteOrderBy, "order-by", "updated_at", "id, title, created_at or updated_at")
	noteListCmd.Flags().StringVar(&noteDir, "order", "DESC", "ASC or DESC")
	noteListCmd.Flags().IntVar(&noteOffset, "offset", 0, "Rows to skip")
	for _, c := range []*cobra.Command{noteListCmd, noteSearchCmd} {
		c.Flags().IntVarP(&noteLimit, "limit", "n", 0, "Maximum rows")
	}
}
