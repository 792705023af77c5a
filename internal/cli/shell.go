package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
)

const shellPrompt = "cardstore> "

// ShellCmd returns the shell command.
func ShellCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage: "shell",
		Short: "Run commands interactively",
		Long: `Read commands line by line and run them against the open store.
Arguments are split with shell quoting rules. Type "help" for the command
list and "exit" to quit.`,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			if a.inShell {
				return usageError("already in a shell")
			}

			a.inShell = true
			defer func() { a.inShell = false }()

			return runShell(ctx, o, a)
		},
	}
}

// lineReader yields input lines; io.EOF ends the session.
type lineReader interface {
	ReadLine() (string, error)
	Close() error
}

func runShell(ctx context.Context, o *IO, a *app) error {
	lines := newLineReader(o.in, a)
	defer func() { _ = lines.Close() }()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line, err := lines.ReadLine()
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return nil
		}

		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		words, err := shellquote.Split(line)
		if err != nil {
			o.ErrPrintln("error:", formatError(usageError("%v", err)))

			continue
		}

		switch words[0] {
		case "exit", "quit":
			return nil
		case "help", "?":
			printUsage(o.out, a)

			continue
		}

		cmd := a.lookup(words[0])
		if cmd == nil {
			o.ErrPrintln("error: unknown command:", words[0])

			continue
		}

		cmd.Run(ctx, o, words[1:])
	}
}

// newLineReader reads through liner when attached to the process stdin and
// from a plain scanner otherwise.
func newLineReader(in io.Reader, a *app) lineReader {
	if f, ok := in.(*os.File); ok && f == os.Stdin {
		return newLinerReader(filepath.Join(a.cfg.DataDirAbs, "shell_history"))
	}

	if in == nil {
		in = strings.NewReader("")
	}

	return &scanReader{sc: bufio.NewScanner(in)}
}

type scanReader struct {
	sc *bufio.Scanner
}

func (r *scanReader) ReadLine() (string, error) {
	if r.sc.Scan() {
		return r.sc.Text(), nil
	}

	if err := r.sc.Err(); err != nil {
		return "", err
	}

	return "", io.EOF
}

func (r *scanReader) Close() error {
	return nil
}

type linerReader struct {
	state   *liner.State
	history string
}

func newLinerReader(history string) *linerReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)

	if f, err := os.Open(history); err == nil {
		_, _ = state.ReadHistory(f)
		_ = f.Close()
	}

	return &linerReader{state: state, history: history}
}

func (r *linerReader) ReadLine() (string, error) {
	line, err := r.state.Prompt(shellPrompt)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(line) != "" {
		r.state.AppendHistory(line)
	}

	return line, nil
}

func (r *linerReader) Close() error {
	if f, err := os.Create(r.history); err == nil {
		_, _ = r.state.WriteHistory(f)
		_ = f.Close()
	}

	return r.state.Close()
}
