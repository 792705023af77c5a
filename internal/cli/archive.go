package cli

import (
	"context"
	"path/filepath"

	flag "github.com/spf13/pflag"
)

// ExportCmd returns the export command.
func ExportCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("export", flag.ContinueOnError),
		Usage: "export <folder> <archive.zip>",
		Short: "Export a folder subtree to a zip archive",
		Long: `Write the folder card, its attachments and all descendant folders to a
zip archive. Attachments whose file is missing are exported as metadata only.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			id, err := argID(args, 0, "folder id")
			if err != nil {
				return err
			}

			if len(args) < 2 {
				return usageError("archive path is required")
			}

			res, err := a.store.Export(ctx, id, a.path(args[1]))
			if err != nil {
				return err
			}

			if res.MissingFiles > 0 {
				o.Warn("%d attachment files were missing and exported as metadata only", res.MissingFiles)
			}

			o.Printf("exported %d folders, %d attachments\n", res.Folders, res.Attachments)

			return nil
		},
	}
}

// ImportCmd returns the import command.
func ImportCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("import", flag.ContinueOnError),
		Usage: "import <parent> <archive.zip>",
		Short: "Import an exported folder under a parent, prints new ID",
		Long: `Recreate an exported folder tree as a new subfolder of <parent>. New
IDs are assigned. Attachments whose payload is missing or cannot be copied
are restored as metadata only and reported as warnings.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			parentID, err := argID(args, 0, "parent id")
			if err != nil {
				return err
			}

			if len(args) < 2 {
				return usageError("archive path is required")
			}

			res, err := a.store.Import(ctx, parentID, a.path(args[1]))
			if err != nil {
				return err
			}

			if res.Degraded() {
				o.Warn("%d attachments were restored as metadata only", res.MetadataOnly)
			}

			o.Println(res.RootID)

			return nil
		},
	}
}

// path resolves p against the effective working directory.
func (a *app) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(a.cfg.EffectiveCwd, p)
}
