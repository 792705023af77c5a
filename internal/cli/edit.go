package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/cardstore/pkg/cardstore"
)

// EditCmd returns the edit command.
func EditCmd(a *app) *Command {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	fs.StringP("title", "t", "", "New title")
	fs.StringP("description", "d", "", "New description")
	fs.StringP("kind", "k", "", "New kind")
	fs.String("color", "", "New label color (empty clears)")
	fs.StringArray("attr", nil, "Replace attributes with key=value (repeatable)")
	fs.Bool("clear-attrs", false, "Remove all attributes")

	return &Command{
		Flags: fs,
		Usage: "edit <id> [flags]",
		Short: "Change card fields",
		Long: `Change the given fields of a card. Fields without a flag are kept.

Use mv to change column, parent or order.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execEdit(ctx, o, a, fs, args)
		},
	}
}

func execEdit(ctx context.Context, o *IO, a *app, fs *flag.FlagSet, args []string) error {
	id, err := argID(args, 0, "card id")
	if err != nil {
		return err
	}

	var upd cardstore.CardUpdate

	if fs.Changed("title") {
		title, _ := fs.GetString("title")
		upd.Title = &title
	}

	if fs.Changed("description") {
		description, _ := fs.GetString("description")
		upd.Description = &description
	}

	if fs.Changed("kind") {
		kind, _ := fs.GetString("kind")
		k := cardstore.Kind(kind)
		upd.Kind = &k
	}

	if fs.Changed("color") {
		color, _ := fs.GetString("color")
		upd.LabelColor = &color
	}

	if clearAttrs, _ := fs.GetBool("clear-attrs"); clearAttrs {
		upd.Attributes = cardstore.Attributes{}
	}

	pairs, _ := fs.GetStringArray("attr")
	if len(pairs) > 0 {
		upd.Attributes, err = parseAttrs(pairs)
		if err != nil {
			return err
		}
	}

	card, err := a.store.UpdateCard(ctx, id, upd)
	if err != nil {
		return err
	}

	o.Println(cardLine(card))

	return nil
}

// MvCmd returns the mv command.
func MvCmd(a *app) *Command {
	fs := flag.NewFlagSet("mv", flag.ContinueOnError)
	fs.Int64("column", 0, "Destination column (default: current)")
	fs.String("parent", "", "Destination parent card")
	fs.Bool("root", false, "Move to the root level of the column")
	fs.Int("order", 0, "Destination position (default: append)")

	return &Command{
		Flags: fs,
		Usage: "mv <id> [flags]",
		Short: "Move card to another column, parent or position",
		Long: `Move a card. Sibling orders stay dense in both the old and the new
group. Without --parent or --root the card keeps its parent.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execMv(ctx, o, a, fs, args)
		},
	}
}

func execMv(ctx context.Context, o *IO, a *app, fs *flag.FlagSet, args []string) error {
	id, err := argID(args, 0, "card id")
	if err != nil {
		return err
	}

	card, err := a.store.GetCard(ctx, id)
	if err != nil {
		return err
	}

	column := card.ColumnID
	if fs.Changed("column") {
		column, _ = fs.GetInt64("column")
	}

	parentID := card.ParentID

	toRoot, _ := fs.GetBool("root")
	parent, _ := fs.GetString("parent")

	switch {
	case toRoot && parent != "":
		return usageError("--root and --parent are mutually exclusive")
	case toRoot:
		parentID = nil
	case parent != "":
		pid, err := parseID("parent", parent)
		if err != nil {
			return err
		}

		parentID = &pid
	}

	var order *int
	if fs.Changed("order") {
		n, _ := fs.GetInt("order")
		order = &n
	}

	moved, err := a.store.MoveCard(ctx, id, column, order, parentID)
	if err != nil {
		return err
	}

	o.Println(cardLine(moved))

	return nil
}

// ReorderCmd returns the reorder command.
func ReorderCmd(a *app) *Command {
	fs := flag.NewFlagSet("reorder", flag.ContinueOnError)
	fs.Int64("column", 1, "Column of the group")
	fs.String("parent", "", "Parent card of the group (default: root level)")

	return &Command{
		Flags: fs,
		Usage: "reorder <id>... [flags]",
		Short: "Assign sibling order from argument order",
		Long: `Give each listed card the order of its position in the argument list
and place it in the group. Pass the whole group to keep orders dense.`,
		Exec: func(ctx context.Context, _ *IO, args []string) error {
			if len(args) == 0 {
				return usageError("at least one card id is required")
			}

			ids := make([]int64, 0, len(args))

			for _, arg := range args {
				id, err := parseID("card", arg)
				if err != nil {
					return err
				}

				ids = append(ids, id)
			}

			column, _ := fs.GetInt64("column")

			var parentID *int64

			if parent, _ := fs.GetString("parent"); parent != "" {
				pid, err := parseID("parent", parent)
				if err != nil {
					return err
				}

				parentID = &pid
			}

			return a.store.ReorderCards(ctx, column, parentID, ids)
		},
	}
}
