package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/cardstore/pkg/cardstore"
)

// TagCmd returns the tag command.
func TagCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("tag", flag.ContinueOnError),
		Usage: "tag <card> <name>...",
		Short: "Attach tags to a card, creating them if needed",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			cardID, err := argID(args, 0, "card id")
			if err != nil {
				return err
			}

			if len(args) < 2 {
				return usageError("tag name is required")
			}

			for _, name := range args[1:] {
				tag, attached, err := a.store.AttachTagByName(ctx, cardID, name)
				if err != nil {
					return err
				}

				if !attached {
					o.Warn("card %d already has tag %q", cardID, tag.Name)
				}
			}

			return nil
		},
	}
}

// UntagCmd returns the untag command.
func UntagCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("untag", flag.ContinueOnError),
		Usage: "untag <card> <name>...",
		Short: "Detach tags from a card",
		Exec: func(ctx context.Context, _ *IO, args []string) error {
			cardID, err := argID(args, 0, "card id")
			if err != nil {
				return err
			}

			if len(args) < 2 {
				return usageError("tag name is required")
			}

			for _, name := range args[1:] {
				tag, err := findTag(ctx, a.store, name)
				if err != nil {
					return err
				}

				err = a.store.DetachTag(ctx, cardID, tag.ID)
				if err != nil {
					return err
				}
			}

			return nil
		},
	}
}

// TagsCmd returns the tags command.
func TagsCmd(a *app) *Command {
	fs := flag.NewFlagSet("tags", flag.ContinueOnError)
	fs.String("rename", "", "Rename the tag with this name (requires --to)")
	fs.String("to", "", "New name for --rename")
	fs.String("delete", "", "Delete the tag with this name from every card")

	return &Command{
		Flags: fs,
		Usage: "tags [card] [flags]",
		Short: "List, rename or delete tags",
		Long:  "List all tags, or the tags of one card. --rename and --delete manage tags globally.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execTags(ctx, o, a, fs, args)
		},
	}
}

func execTags(ctx context.Context, o *IO, a *app, fs *flag.FlagSet, args []string) error {
	rename, _ := fs.GetString("rename")
	to, _ := fs.GetString("to")
	del, _ := fs.GetString("delete")

	switch {
	case rename != "":
		if to == "" {
			return usageError("--rename requires --to")
		}

		tag, err := findTag(ctx, a.store, rename)
		if err != nil {
			return err
		}

		return a.store.RenameTag(ctx, tag.ID, to)
	case del != "":
		tag, err := findTag(ctx, a.store, del)
		if err != nil {
			return err
		}

		return a.store.DeleteTag(ctx, tag.ID)
	}

	var (
		tags []cardstore.Tag
		err  error
	)

	if len(args) > 0 {
		cardID, idErr := parseID("card", args[0])
		if idErr != nil {
			return idErr
		}

		tags, err = a.store.CardTags(ctx, cardID)
	} else {
		tags, err = a.store.ListTags(ctx)
	}

	if err != nil {
		return err
	}

	for _, tag := range tags {
		o.Println(tag.Name)
	}

	return nil
}

func findTag(ctx context.Context, s *cardstore.Store, name string) (cardstore.Tag, error) {
	tags, err := s.ListTags(ctx)
	if err != nil {
		return cardstore.Tag{}, err
	}

	for _, tag := range tags {
		if tag.Name == name {
			return tag, nil
		}
	}

	return cardstore.Tag{}, fmt.Errorf("%w: tag %q", cardstore.ErrNotFound, name)
}
