package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/sidenote/internal/app"
	"github.com/HendryAvila/sidenote/internal/tags"
)

var (
	tagColor   string
	tagName    string
	tagForce   bool
	tagUnused  bool
	tagPopular bool
	tagUsed    bool
	tagNote    int64
	tagLimit   int
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage tags",
}

var tagCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Tags.Create(ctx, args[0], tagColor)
		})
	},
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags with their note counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tagUnused && tagPopular {
			return errors.New("--unused and --popular are mutually exclusive")
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			switch {
			case tagNote > 0:
				return a.Tags.ForNote(ctx, tagNote)
			case tagUnused:
				return a.Tags.Unused(ctx)
			case tagPopular:
				return a.Tags.Popular(ctx, tagLimit)
			case tagUsed:
				include := false
				return a.Tags.List(ctx, tags.ListOptions{IncludeUnused: &include, Limit: tagLimit})
			default:
				return a.Tags.List(ctx, tags.ListOptions{Limit: tagLimit})
			}
		})
	},
}

var tagSearchCmd = &cobra.Command{
	Use:   "search KEYWORD",
	Short: "Find tags by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Tags.Search(ctx, args[0], tagLimit)
		})
	},
}

var tagUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Rename or recolour a tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		var p tags.UpdateParams
		if cmd.Flags().Changed("name") {
			p.Name = &tagName
		}
		if cmd.Flags().Changed("color") {
			p.Color = &tagColor
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Tags.Update(ctx, id, p)
		})
	},
}

var tagDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a tag",
	Long:  "Delete a tag. A tag still attached to notes is refused unless --force is given.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Tags.Delete(ctx, id, tagForce)
		})
	},
}

var tagAttachCmd = &cobra.Command{
	Use:   "attach NOTE_ID TAG_ID",
	Short: "Attach a tag to a note",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		noteID, tagID, err := parsePair(args)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Notes.AddTag(ctx, noteID, tagID)
		})
	},
}

var tagDetachCmd = &cobra.Command{
	Use:   "detach NOTE_ID TAG_ID",
	Short: "Detach a tag from a note",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		noteID, tagID, err := parsePair(args)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Notes.RemoveTag(ctx, noteID, tagID)
		})
	},
}

var tagStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise tag usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) app.Result {
			return a.Tags.Statistics(ctx)
		})
	},
}

func parsePair(args []string) (int64, int64, error) {
	a, err := parseID(args[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := parseID(args[1])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func init() {
	rootCmd.AddCommand(tagCmd)
	tagCmd.AddCommand(tagCreateCmd, tagListCmd, tagSearchCmd, tagUpdateCmd,
		tagDeleteCmd, tagAttachCmd, tagDetachCmd, tagStatsCmd)

	tagCreateCmd.Flags().StringVar(&tagColor, "color", "", "Colour as #RRGGBB (default: next palette colour)")
	tagUpdateCmd.Flags().StringVar(&tagColor, "color", "", "New colour as #RRGGBB")
	tagUpdateCmd.Flags().StringVar(&tagName, "name", "", "New name")
	tagDeleteCmd.Flags().BoolVarP(&tagForce, "force", "f", false, "Detach the tag from every note first")

	tagListCmd.Flags().BoolVar(&tagUnused, "unused", false, "Only tags on no live note")
	tagListCmd.Flags().BoolVar(&tagUsed, "used", false, "Only tags on at least one live note")
	tagListCmd.Flags().BoolVar(&tagPopular, "popular", false, "Most used tags first")
	tagListCmd.Flags().Int64Var(&tagNote, "note", 0, "Only the tags of this note id")
	for _, c := range []*cobra.Command{tagListCmd, tagSearchCmd} {
		c.Flags().IntVarP(&tagLimit, "limit", "n", 0, "Maximum rows")
	}
}
