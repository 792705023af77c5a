package cli

import (
	"fmt"
	"io"
)

// IO carries a command's streams. Card output goes to stdout; errors and
// warnings go to stderr.
//
// Warnings (a duplicate tag, attachment files left behind by rm, an import
// restored as metadata only) do not fail the command. They are printed
// ahead of the first stdout line and repeated after the output, so a long
// listing piped through head or tail still shows them.
type IO struct {
	in       io.Reader
	out      io.Writer
	errOut   io.Writer
	warnings []string
	printed  bool
}

// NewIO returns an IO over the given streams.
func NewIO(in io.Reader, out, errOut io.Writer) *IO {
	return &IO{in: in, out: out, errOut: errOut}
}

// Stderr returns an IO whose stdout is this IO's stderr, for help text
// that accompanies an error.
func (o *IO) Stderr() *IO {
	return &IO{in: o.in, out: o.errOut, errOut: o.errOut}
}

// Warn records a warning for the running command.
func (o *IO) Warn(format string, a ...any) {
	o.warnings = append(o.warnings, fmt.Sprintf(format, a...))
}

// Println writes a line of command output.
func (o *IO) Println(a ...any) {
	o.beforeOutput()
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted command output.
func (o *IO) Printf(format string, a ...any) {
	o.beforeOutput()
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes a line to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Finish prints pending warnings, resets the IO so the shell can reuse it
// for the next command and returns exit code 0.
func (o *IO) Finish() int {
	o.printWarnings()

	o.warnings = nil
	o.printed = false

	return 0
}

func (o *IO) beforeOutput() {
	if !o.printed {
		o.printed = true
		o.printWarnings()
	}
}

func (o *IO) printWarnings() {
	for _, w := range o.warnings {
		_, _ = fmt.Fprintln(o.errOut, "warning:", w)
	}
}
