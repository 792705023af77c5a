package cli

import (
	"context"
	"strconv"

	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(a *app) *Command {
	return &Command{
		Flags:   flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage:   "print-config",
		Short:   "Show resolved configuration",
		Long:    "Display the effective configuration and which files it was loaded from.",
		Offline: true,
		Exec: func(_ context.Context, o *IO, _ []string) error {
			execPrintConfig(o, a)

			return nil
		},
	}
}

func execPrintConfig(o *IO, a *app) {
	cfg := a.cfg

	o.Println("effective_cwd=" + cfg.EffectiveCwd)
	o.Println("data_dir=" + cfg.DataDirAbs)
	o.Println("db_path=" + cfg.DBPathAbs)
	o.Println("storage_dir=" + cfg.StorageDirAbs)
	o.Println("foreign_keys=" + strconv.FormatBool(cfg.UseForeignKeys()))
	o.Println("log_level=" + cfg.Level.String())

	o.Println("")
	o.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		o.Println("(defaults only)")

		return
	}

	if cfg.Sources.Global != "" {
		o.Println("global_config=" + cfg.Sources.Global)
	}

	if cfg.Sources.Project != "" {
		o.Println("project_config=" + cfg.Sources.Project)
	}
}
