package cli

import (
	"context"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/cardstore/pkg/cardstore"
)

// AttachCmd returns the attach command.
func AttachCmd(a *app) *Command {
	fs := flag.NewFlagSet("attach", flag.ContinueOnError)
	fs.String("url", "", "Attach a remote URL instead of a file")
	fs.String("name", "", "Display name for --url attachments")

	return &Command{
		Flags: fs,
		Usage: "attach <card> <file> | attach <card> --url <url>",
		Short: "Attach a file or URL, prints attachment ID",
		Long: `Copy a file into the card's storage directory and record it as an
attachment, or record a remote URL with --url.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execAttach(ctx, o, a, fs, args)
		},
	}
}

func execAttach(ctx context.Context, o *IO, a *app, fs *flag.FlagSet, args []string) error {
	cardID, err := argID(args, 0, "card id")
	if err != nil {
		return err
	}

	url, _ := fs.GetString("url")
	if url != "" {
		name, _ := fs.GetString("name")
		if name == "" {
			name = url
		}

		att, err := a.store.AddAttachment(ctx, cardstore.NewAttachment{CardID: cardID, FileName: name, RemoteURL: url})
		if err != nil {
			return err
		}

		o.Println(att.ID)

		return nil
	}

	if len(args) < 2 {
		return usageError("file path or --url is required")
	}

	att, err := a.store.ImportFile(ctx, cardID, a.path(args[1]))
	if err != nil {
		return err
	}

	o.Println(att.ID)

	return nil
}

// AttachmentsCmd returns the attachments command.
func AttachmentsCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("attachments", flag.ContinueOnError),
		Usage: "attachments <card>",
		Short: "List a card's attachments",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			cardID, err := argID(args, 0, "card id")
			if err != nil {
				return err
			}

			list, err := a.store.ListAttachments(ctx, cardID)
			if err != nil {
				return err
			}

			for _, att := range list {
				location := att.LocalPath
				if att.RemoteURL != "" {
					location = att.RemoteURL
				}

				if location == "" {
					location = "(metadata only)"
				}

				o.Printf("%-5d %-9s %-24s %s  %s\n",
					att.ID, humanize.IBytes(uint64(att.SizeBytes)), att.MimeType, att.FileName, location)
			}

			return nil
		},
	}
}

// DetachCmd returns the detach command.
func DetachCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("detach", flag.ContinueOnError),
		Usage: "detach <attachment>",
		Short: "Remove an attachment record (the file is kept)",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			id, err := argID(args, 0, "attachment id")
			if err != nil {
				return err
			}

			err = a.store.DeleteAttachment(ctx, id)
			if err != nil {
				return err
			}

			o.Println("detached", id)

			return nil
		},
	}
}
