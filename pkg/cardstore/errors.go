package cardstore

import (
	"database/sql"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"strconv"

	"github.com/mattn/go-sqlite3"
)

// Error kinds. Every error returned by [Store] wraps exactly one of these,
// so callers can branch with [errors.Is].
var (
	// ErrNotFound reports a referenced card, attachment, checklist item,
	// tag or file that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict reports a uniqueness violation, such as a duplicate tag
	// name, or an operation the current tree shape forbids.
	ErrConflict = errors.New("already exists")

	// ErrInvalidArgument reports malformed input: empty titles, negative
	// orders, unknown kinds, cycles, bad filters or archives.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIO reports a failed file read, write or copy.
	ErrIO = errors.New("i/o failure")

	// ErrStorage reports a backend failure (driver, constraint, schema).
	ErrStorage = errors.New("storage failure")

	// ErrClosed is returned (wrapped in ErrStorage) after [Store.Close].
	ErrClosed = errors.New("store closed")
)

// Error is the error type returned by [Store] operations.
//
// Op is the operation that failed ("move", "import"). Entity and ID identify
// the record the operation was about; ID is 0 when there is none.
// Err holds the cause and always wraps one of the kind sentinels.
type Error struct {
	Op     string
	Entity string
	ID     int64
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Err.Error()

	if e.ID != 0 {
		msg += " (" + e.Entity + "_id=" + strconv.FormatInt(e.ID, 10) + ")"
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Reason returns the short stable message for err that is safe to show to
// end users: "not found", "already exists", "invalid argument" or
// "operation failed". A nil error yields "".
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrConflict):
		return "already exists"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid argument"
	default:
		return "operation failed"
	}
}

// wrap attaches operation context to err and guarantees a kind sentinel is
// in the chain. It returns nil for a nil err.
func wrap(op, entity string, id int64, err error) error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) && existing.Op == op {
		return err
	}

	return &Error{Op: op, Entity: entity, ID: id, Err: classify(err)}
}

// classify maps backend and filesystem errors onto the kind sentinels.
// Errors that already carry a kind pass through unchanged.
func classify(err error) error {
	if hasKind(err) {
		return err
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}

		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var pathErr *iofs.PathError
	if errors.As(err, &pathErr) {
		if errors.Is(err, iofs.ErrNotExist) {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}

		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	return fmt.Errorf("%w: %w", ErrStorage, err)
}

func hasKind(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrIO) ||
		errors.Is(err, ErrStorage)
}

func notFound(entity string, id int64) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, entity, id)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func ioFailure(err error) error {
	if hasKind(err) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrIO, err)
}
