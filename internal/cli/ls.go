package cli

import (
	"context"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/cardstore/pkg/cardstore"
)

// LsCmd returns the ls command.
func LsCmd(a *app) *Command {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.Int64("column", 0, "Only cards in this column")
	fs.String("parent", "", "Children of this card (default: root level)")
	fs.BoolP("recursive", "r", false, "Match cards at every depth")
	fs.StringP("search", "s", "", "Substring of title or description")
	fs.StringArray("tag", nil, "Require tag (repeatable)")
	fs.StringArray("attr", nil, "Require attribute key=value (repeatable)")
	fs.BoolP("all", "a", false, "Include archived cards")
	fs.String("sort", string(cardstore.SortPosition), "Sort: position|created|updated|title")
	fs.Int("limit", 0, "Maximum number of cards (0 = all)")
	fs.Int("offset", 0, "Skip this many cards (with --limit)")

	return &Command{
		Flags: fs,
		Usage: "ls [flags]",
		Short: "List cards",
		Long: `List cards as "ID ORDER KIND TITLE".

Without --parent or --recursive only root-level cards are listed.`,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return execLs(ctx, o, a, fs)
		},
	}
}

func execLs(ctx context.Context, o *IO, a *app, fs *flag.FlagSet) error {
	var opts cardstore.ListOptions

	if fs.Changed("column") {
		column, _ := fs.GetInt64("column")
		opts.ColumnID = &column
	}

	if parent, _ := fs.GetString("parent"); parent != "" {
		id, err := parseID("parent", parent)
		if err != nil {
			return err
		}

		opts.ParentID = &id
	}

	opts.AnyParent, _ = fs.GetBool("recursive")
	opts.Search, _ = fs.GetString("search")
	opts.Tags, _ = fs.GetStringArray("tag")
	opts.IncludeArchived, _ = fs.GetBool("all")
	opts.Limit, _ = fs.GetInt("limit")
	opts.Offset, _ = fs.GetInt("offset")

	sortOrder, _ := fs.GetString("sort")
	opts.OrderBy = cardstore.SortOrder(sortOrder)

	pairs, _ := fs.GetStringArray("attr")

	attrs, err := parseAttrs(pairs)
	if err != nil {
		return err
	}

	if attrs != nil {
		opts.Attributes = attrs
	}

	cards, err := a.store.ListCards(ctx, opts)
	if err != nil {
		return err
	}

	for _, card := range cards {
		o.Println(cardLine(card))
	}

	return nil
}

// TreeCmd returns the tree command.
func TreeCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("tree", flag.ContinueOnError),
		Usage: "tree <id>",
		Short: "Show a card and its descendants",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			id, err := argID(args, 0, "card id")
			if err != nil {
				return err
			}

			tree, err := a.store.Tree(ctx, id)
			if err != nil {
				return err
			}

			printTree(o, tree, 0)

			return nil
		},
	}
}

func printTree(o *IO, node *cardstore.CardTree, depth int) {
	o.Println(strings.Repeat("  ", depth) + cardLine(node.Card))

	for _, child := range node.Children {
		printTree(o, child, depth+1)
	}
}
