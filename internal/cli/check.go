package cli

import (
	"context"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/cardstore/pkg/cardstore"
)

// CheckCmd returns the check command.
func CheckCmd(a *app) *Command {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.String("parent", "", "Parent checklist item (add)")
	fs.Int("order", 0, "Position among sibling items (add)")

	return &Command{
		Flags: fs,
		Usage: "check add|ls|done|undone|rm ...",
		Short: "Manage a card's checklist",
		Long: `Manage checklist items.

  check add <card> <text> [--parent <item>] [--order N]   Add an item, prints ID
  check ls <card>                                          Show the checklist
  check done <item>                                        Mark an item done
  check undone <item>                                      Mark an item not done
  check rm <item>                                          Delete an item and its sub-items`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execCheck(ctx, o, a, fs, args)
		},
	}
}

func execCheck(ctx context.Context, o *IO, a *app, fs *flag.FlagSet, args []string) error {
	if len(args) == 0 {
		return usageError("subcommand is required: add, ls, done, undone or rm")
	}

	sub, rest := args[0], args[1:]

	switch sub {
	case "add":
		cardID, err := argID(rest, 0, "card id")
		if err != nil {
			return err
		}

		in := cardstore.NewChecklistItem{CardID: cardID, Description: strings.Join(rest[1:], " ")}
		in.Order, _ = fs.GetInt("order")

		if parent, _ := fs.GetString("parent"); parent != "" {
			pid, err := parseID("parent", parent)
			if err != nil {
				return err
			}

			in.ParentID = &pid
		}

		item, err := a.store.AddChecklistItem(ctx, in)
		if err != nil {
			return err
		}

		o.Println(item.ID)

		return nil
	case "ls":
		cardID, err := argID(rest, 0, "card id")
		if err != nil {
			return err
		}

		return printChecklist(ctx, o, a.store, cardID, nil, 0)
	case "done", "undone":
		id, err := argID(rest, 0, "item id")
		if err != nil {
			return err
		}

		done := sub == "done"

		_, err = a.store.UpdateChecklistItem(ctx, id, cardstore.ChecklistUpdate{Done: &done})

		return err
	case "rm":
		id, err := argID(rest, 0, "item id")
		if err != nil {
			return err
		}

		n, err := a.store.DeleteChecklistItem(ctx, id)
		if err != nil {
			return err
		}

		o.Printf("deleted %d items\n", n)

		return nil
	default:
		return usageError("unknown check subcommand %q", sub)
	}
}

func printChecklist(ctx context.Context, o *IO, s *cardstore.Store, cardID int64, parentID *int64, depth int) error {
	items, err := s.ListChecklist(ctx, cardID, parentID)
	if err != nil {
		return err
	}

	for _, item := range items {
		mark := " "
		if item.Done {
			mark = "x"
		}

		o.Printf("%s[%s] %d %s\n", strings.Repeat("  ", depth), mark, item.ID, item.Description)

		err = printChecklist(ctx, o, s, cardID, &item.ID, depth+1)
		if err != nil {
			return err
		}
	}

	return nil
}
