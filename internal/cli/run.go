// Package cli implements the cardstore command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/cardstore/internal/config"
	"github.com/calvinalkan/cardstore/pkg/cardstore"
)

// app is the state shared by all commands of one invocation.
type app struct {
	cfg   config.Config
	log   *logrus.Logger
	store *cardstore.Store

	// inShell is set while commands run inside the interactive shell.
	inShell bool
}

// commands returns a fresh command table. Commands carry parsed flag state,
// so every invocation needs new instances.
func (a *app) commands() []*Command {
	var cmds []*Command

	cmds = append(cmds, groupCommands("Cards",
		CreateCmd(a), ShowCmd(a), LsCmd(a), TreeCmd(a), EditCmd(a),
		MvCmd(a), ReorderCmd(a), RmCmd(a), UnarchiveCmd(a))...)
	cmds = append(cmds, groupCommands("Attachments",
		AttachCmd(a), AttachmentsCmd(a), DetachCmd(a))...)
	cmds = append(cmds, groupCommands("Tags",
		TagCmd(a), UntagCmd(a), TagsCmd(a))...)
	cmds = append(cmds, groupCommands("Checklist", CheckCmd(a))...)
	cmds = append(cmds, groupCommands("Folder archives",
		ExportCmd(a), ImportCmd(a))...)
	cmds = append(cmds, groupCommands("Session",
		ShellCmd(a), PrintConfigCmd(a))...)

	return cmds
}

func (a *app) lookup(name string) *Command {
	for _, cmd := range a.commands() {
		if cmd.Name() == name {
			return cmd
		}
	}

	return nil
}

// Run is the main entry point. Returns exit code.
func Run(in io.Reader, out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	globals := flag.NewFlagSet("cardstore", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(&strings.Builder{})

	workDir := globals.StringP("cwd", "C", "", "Run as if started in `dir`")
	configPath := globals.StringP("config", "c", "", "Use the given config `file`")
	dataDir := globals.String("data-dir", "", "Override the data directory")
	help := globals.BoolP("help", "h", false, "Show help")

	if len(args) > 0 {
		args = args[1:]
	}

	err := globals.Parse(args)
	if err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut, nil)

		return 1
	}

	rest := globals.Args()
	if *help || len(rest) == 0 {
		printUsage(out, nil)

		return 0
	}

	cfg, err := config.Load(config.Input{
		WorkDirOverride: *workDir,
		ConfigPath:      *configPath,
		DataDirOverride: *dataDir,
		Env:             env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	log := logrus.New()
	log.SetOutput(errOut)
	log.SetLevel(cfg.Level)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	a := &app{cfg: cfg, log: log}

	cmd := a.lookup(rest[0])
	if cmd == nil {
		fprintln(errOut, "error: unknown command:", rest[0])
		printUsage(errOut, a)

		return 1
	}

	if !cmd.Offline && !hasHelpFlag(rest[1:]) {
		a.store, err = cardstore.Open(ctx, cardstore.Options{
			DBPath:      cfg.DBPathAbs,
			StorageDir:  cfg.StorageDirAbs,
			ForeignKeys: cfg.UseForeignKeys(),
			Logger:      log,
		})
		if err != nil {
			fprintln(errOut, "error:", formatError(err))

			return 1
		}

		defer func() { _ = a.store.Close() }()
	}

	return cmd.Run(ctx, NewIO(in, out, errOut), rest[1:])
}

// formatError renders err as "<reason>: <detail>" when it carries a
// cardstore error kind and does not already start with the reason.
func formatError(err error) string {
	for _, kind := range []error{
		cardstore.ErrNotFound,
		cardstore.ErrConflict,
		cardstore.ErrInvalidArgument,
		cardstore.ErrIO,
		cardstore.ErrStorage,
	} {
		if !errors.Is(err, kind) {
			continue
		}

		reason := cardstore.Reason(err)
		if strings.HasPrefix(err.Error(), reason) {
			return err.Error()
		}

		return reason + ": " + err.Error()
	}

	return err.Error()
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-h" || arg == "--help" {
			return true
		}
	}

	return false
}

func printUsage(w io.Writer, a *app) {
	fprintln(w, `cardstore - hierarchical Kanban card store

Usage: cardstore [options] <command> [args]

Options:
  -C, --cwd <dir>       Run as if started in <dir>
  -c, --config <file>   Use specified config file
      --data-dir <dir>  Override the data directory

Commands:`)

	if a == nil {
		a = &app{}
	}

	group := ""

	for _, cmd := range a.commands() {
		if cmd.Group != group {
			group = cmd.Group
			fprintln(w, "  "+group)
		}

		fprintln(w, cmd.HelpLine())
	}
}
