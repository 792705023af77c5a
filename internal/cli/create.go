package cli

import (
	"context"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/cardstore/pkg/cardstore"
)

// CreateCmd returns the create command.
func CreateCmd(a *app) *Command {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.StringP("description", "d", "", "Description text")
	fs.Int64("column", 1, "Column ID")
	fs.String("parent", "", "Parent card ID")
	fs.StringP("kind", "k", string(cardstore.KindCard), "Kind: card|folder|asset|task")
	fs.String("color", "", "Label color")
	fs.Int("order", -1, "Position among siblings (default: append)")
	fs.StringArray("attr", nil, "Attribute key=value (repeatable)")

	return &Command{
		Flags: fs,
		Usage: "create <title> [flags]",
		Short: "Create card, prints ID",
		Long: `Create a new card. Prints the card ID on success.

Without --order the card is appended after its last sibling. An explicit
order shifts the siblings at or after it.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execCreate(ctx, o, a, fs, args)
		},
	}
}

func execCreate(ctx context.Context, o *IO, a *app, fs *flag.FlagSet, args []string) error {
	title := strings.Join(args, " ")
	if strings.TrimSpace(title) == "" {
		return usageError("title is required")
	}

	description, _ := fs.GetString("description")
	column, _ := fs.GetInt64("column")
	kind, _ := fs.GetString("kind")
	color, _ := fs.GetString("color")
	pairs, _ := fs.GetStringArray("attr")

	attrs, err := parseAttrs(pairs)
	if err != nil {
		return err
	}

	in := cardstore.NewCard{
		ColumnID:    column,
		Title:       title,
		Description: description,
		Kind:        cardstore.Kind(kind),
		LabelColor:  color,
		Attributes:  attrs,
	}

	if parent, _ := fs.GetString("parent"); parent != "" {
		id, err := parseID("parent", parent)
		if err != nil {
			return err
		}

		in.ParentID = &id
	}

	if fs.Changed("order") {
		order, _ := fs.GetInt("order")
		in.Order = &order
	}

	card, err := a.store.CreateCard(ctx, in)
	if err != nil {
		return err
	}

	o.Println(card.ID)

	return nil
}
