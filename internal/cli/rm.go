package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// RmCmd returns the rm command.
func RmCmd(a *app) *Command {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	fs.Bool("hard", false, "Delete the card instead of archiving it")
	fs.BoolP("recursive", "r", false, "Hard-delete the card and all descendants")

	return &Command{
		Flags: fs,
		Usage: "rm <id> [--hard] [--recursive]",
		Short: "Archive or delete a card",
		Long: `Archive a card. With --hard the card is deleted; this fails while it
still has children. With --recursive the whole subtree is deleted together
with checklists, attachments and their files.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execRm(ctx, o, a, fs, args)
		},
	}
}

func execRm(ctx context.Context, o *IO, a *app, fs *flag.FlagSet, args []string) error {
	id, err := argID(args, 0, "card id")
	if err != nil {
		return err
	}

	hard, _ := fs.GetBool("hard")
	recursive, _ := fs.GetBool("recursive")

	if !recursive {
		err = a.store.DeleteCard(ctx, id, hard)
		if err != nil {
			return err
		}

		if hard {
			o.Println("deleted", id)
		} else {
			o.Println("archived", id)
		}

		return nil
	}

	res, err := a.store.DeleteTree(ctx, id)
	if err != nil {
		return err
	}

	for _, path := range res.Leftover {
		o.Warn("could not remove attachment file %s", path)
	}

	o.Printf("deleted %d cards, %d checklist items, %d attachments, %d tag links\n",
		res.Cards, res.ChecklistItems, res.Attachments, res.TagLinks)

	return nil
}

// UnarchiveCmd returns the unarchive command.
func UnarchiveCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("unarchive", flag.ContinueOnError),
		Usage: "unarchive <id>",
		Short: "Restore an archived card",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			id, err := argID(args, 0, "card id")
			if err != nil {
				return err
			}

			err = a.store.UnarchiveCard(ctx, id)
			if err != nil {
				return err
			}

			o.Println("unarchived", id)

			return nil
		},
	}
}
