package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command is one cardstore subcommand: its flags, help text and the
// function that runs it against the card store.
type Command struct {
	// Flags holds the command's own flags. Global flags (--cwd, --config,
	// --data-dir) are parsed before the command is looked up.
	Flags *flag.FlagSet

	// Usage follows "cardstore" in help, e.g. "mv <id> [flags]". Its first
	// word is the command name.
	Usage string

	// Short is the one-line summary in the command listing.
	Short string

	// Long is the help body; Short is used when empty.
	Long string

	// Group is the heading the command is listed under ("Cards", "Tags", ...).
	Group string

	// Offline commands never touch the card database, so Run skips opening
	// it and a fresh directory stays untouched.
	Offline bool

	// Exec runs the command after flags are parsed. Errors carrying a
	// cardstore kind are printed with their reason.
	Exec func(ctx context.Context, o *IO, args []string) error
}

// Name returns the command name.
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

// HelpLine is the command's row in the grouped listing.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("    %-32s %s", c.Usage, c.Short)
}

// PrintHelp prints "cardstore <cmd> --help".
func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage: cardstore", c.Usage)
	o.Println()

	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	o.Println(desc)

	if c.Flags == nil || !c.Flags.HasFlags() {
		return
	}

	var buf strings.Builder

	c.Flags.SetOutput(&buf)
	c.Flags.PrintDefaults()

	o.Println()
	o.Println("Flags:")
	o.Printf("%s", buf.String())
}

// Run parses args and executes the command, returning the exit code.
// Flag errors print the command help to stderr; store errors print as
// "error: <reason>: <detail>".
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(&strings.Builder{})

	err := c.Flags.Parse(args)

	switch {
	case errors.Is(err, flag.ErrHelp):
		c.PrintHelp(o)

		return 0
	case err != nil:
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.PrintHelp(o.Stderr())

		return 1
	}

	err = c.Exec(ctx, o, c.Flags.Args())
	if err != nil {
		o.ErrPrintln("error:", formatError(err))
		o.Finish()

		return 1
	}

	return o.Finish()
}

// groupCommands sets Group on each command and returns them in order.
func groupCommands(group string, cmds ...*Command) []*Command {
	for _, cmd := range cmds {
		cmd.Group = group
	}

	return cmds
}
