package cli

import (
	"context"
	"strings"

	flag "github.com/spf13/pflag"
)

// ShowCmd returns the show command.
func ShowCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("show", flag.ContinueOnError),
		Usage: "show <id>",
		Short: "Show card details",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execShow(ctx, o, a, args)
		},
	}
}

func execShow(ctx context.Context, o *IO, a *app, args []string) error {
	id, err := argID(args, 0, "card id")
	if err != nil {
		return err
	}

	card, err := a.store.GetCard(ctx, id)
	if err != nil {
		return err
	}

	tags, err := a.store.CardTags(ctx, id)
	if err != nil {
		return err
	}

	attachments, err := a.store.ListAttachments(ctx, id)
	if err != nil {
		return err
	}

	kids, err := a.store.Children(ctx, id)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}

	o.Printf("id: %d\n", card.ID)
	o.Printf("title: %s\n", card.Title)
	o.Printf("kind: %s\n", card.Kind)
	o.Printf("status: %s\n", card.Status)
	o.Printf("column: %d\n", card.ColumnID)
	o.Printf("parent: %s\n", parentString(card.ParentID))
	o.Printf("order: %d\n", card.Order)

	if card.LabelColor != "" {
		o.Printf("color: %s\n", card.LabelColor)
	}

	if len(names) > 0 {
		o.Printf("tags: %s\n", strings.Join(names, ", "))
	}

	if attrs := formatAttrs(card.Attributes); attrs != "" {
		o.Printf("attributes: %s\n", attrs)
	}

	o.Printf("attachments: %d\n", len(attachments))
	o.Printf("children: %d\n", len(kids))
	o.Printf("created: %s\n", card.CreatedAt.Format("2006-01-02 15:04:05"))
	o.Printf("updated: %s\n", card.UpdatedAt.Format("2006-01-02 15:04:05"))

	if card.Description != "" {
		o.Println()
		o.Println(card.Description)
	}

	return nil
}
