package cardstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// SortOrder selects the ordering of [Store.ListCards] results. Every order
// breaks ties by id so results are deterministic.
type SortOrder string

// Sort orders.
const (
	SortPosition SortOrder = "position" // sibling order, then creation time
	SortCreated  SortOrder = "created"
	SortUpdated  SortOrder = "updated"
	SortTitle    SortOrder = "title"
)

var sortClauses = map[SortOrder]string{
	SortPosition: "position ASC, created_at ASC, id ASC",
	SortCreated:  "created_at ASC, id ASC",
	SortUpdated:  "updated_at DESC, id ASC",
	SortTitle:    "title COLLATE NOCASE ASC, id ASC",
}

// ListOptions filters [Store.ListCards].
type ListOptions struct {
	// ColumnID restricts results to one column when non-nil.
	ColumnID *int64

	// ParentID selects the children of one card. Nil selects root-level
	// cards unless AnyParent is set.
	ParentID *int64

	// AnyParent ignores ParentID and matches cards at every depth.
	AnyParent bool

	// Search matches a substring of the title or description,
	// case-insensitively for ASCII.
	Search string

	// Tags requires the card to carry every named tag.
	Tags []string

	// Attributes requires attribute equality for each key. A nil value
	// matches cards where the key is absent or null.
	Attributes map[string]any

	// IncludeArchived also returns archived cards.
	IncludeArchived bool

	// OrderBy defaults to SortPosition.
	OrderBy SortOrder

	// Limit caps the number of results; 0 means unlimited.
	Limit int

	// Offset skips results; only applied together with Limit.
	Offset int
}

var attributeKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// ListCards returns the cards matching opts. A malformed filter yields an
// empty, non-nil slice together with an [ErrInvalidArgument] error, so
// callers that only render the result still show an empty list.
func (s *Store) ListCards(ctx context.Context, opts ListOptions) ([]Card, error) {
	const op = "list cards"

	query, args, err := buildListQuery(opts)
	if err != nil {
		s.log.WithFields(logrus.Fields{"filter": fmt.Sprintf("%+v", opts)}).
			WithError(err).Warn("cardstore: malformed card filter")

		return []Card{}, wrap(op, "", 0, err)
	}

	q, err := s.reader()
	if err != nil {
		return []Card{}, wrap(op, "", 0, err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return []Card{}, wrap(op, "", 0, fmt.Errorf("query cards: %w", err))
	}

	cards, err := scanCards(rows)
	if err != nil {
		return []Card{}, wrap(op, "", 0, err)
	}

	return cards, nil
}

// SearchCards finds cards at any depth whose title or description contains
// text, optionally restricted to one column.
func (s *Store) SearchCards(ctx context.Context, text string, columnID *int64) ([]Card, error) {
	return s.ListCards(ctx, ListOptions{
		ColumnID:  columnID,
		AnyParent: true,
		Search:    text,
	})
}

func buildListQuery(opts ListOptions) (string, []any, error) {
	if opts.Limit < 0 {
		return "", nil, invalid("limit %d is negative", opts.Limit)
	}

	if opts.Offset < 0 {
		return "", nil, invalid("offset %d is negative", opts.Offset)
	}

	orderBy := opts.OrderBy
	if orderBy == "" {
		orderBy = SortPosition
	}

	orderClause, ok := sortClauses[orderBy]
	if !ok {
		return "", nil, invalid("unknown sort order %q", opts.OrderBy)
	}

	var (
		clauses []string
		args    []any
	)

	if opts.ColumnID != nil {
		clauses = append(clauses, "column_id = ?")
		args = append(args, *opts.ColumnID)
	}

	if !opts.AnyParent {
		clauses = append(clauses, parentClause)
		args = append(args, nullableID(opts.ParentID))
	}

	if !opts.IncludeArchived {
		clauses = append(clauses, "status = ?")
		args = append(args, string(StatusActive))
	}

	if opts.Search != "" {
		pattern := "%" + escapeLike(opts.Search) + "%"
		clauses = append(clauses, `(title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	if len(opts.Tags) > 0 {
		names := uniqueStrings(opts.Tags)
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")

		clauses = append(clauses, `id IN (
			SELECT ct.card_id FROM card_tags ct JOIN tags t ON t.id = ct.tag_id
			WHERE t.name IN (`+placeholders+`)
			GROUP BY ct.card_id HAVING COUNT(DISTINCT t.id) = ?)`)

		for _, name := range names {
			args = append(args, name)
		}

		args = append(args, len(names))
	}

	keys := make([]string, 0, len(opts.Attributes))
	for key := range opts.Attributes {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		if !attributeKeyPattern.MatchString(key) {
			return "", nil, invalid("attribute key %q is not filterable", key)
		}

		value := opts.Attributes[key]
		if !isScalar(value) {
			return "", nil, invalid("attribute %q: filter value of type %T is not a scalar", key, value)
		}

		path := `$."` + key + `"`

		if value == nil {
			clauses = append(clauses, "json_extract(attributes, ?) IS NULL")
			args = append(args, path)

			continue
		}

		clauses = append(clauses, "json_extract(attributes, ?) = ?")
		args = append(args, path, filterValue(value))
	}

	var sb strings.Builder

	sb.WriteString("SELECT ")
	sb.WriteString(cardColumns)
	sb.WriteString(" FROM cards")

	if len(clauses) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(clauses, " AND "))
	}

	sb.WriteString(" ORDER BY ")
	sb.WriteString(orderClause)

	switch {
	case opts.Limit > 0:
		sb.WriteString(" LIMIT ?")
		args = append(args, opts.Limit)
	case opts.Offset > 0:
		// SQLite requires a LIMIT before OFFSET; -1 means unbounded.
		sb.WriteString(" LIMIT -1")
	}

	if opts.Offset > 0 {
		sb.WriteString(" OFFSET ?")
		args = append(args, opts.Offset)
	}

	return sb.String(), args, nil
}

// filterValue binds json.Number as a SQL number; json_extract never
// compares equal to its text form.
func filterValue(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}

	if i, err := n.Int64(); err == nil {
		return i
	}

	if f, err := n.Float64(); err == nil {
		return f
	}

	return n.String()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))

	for _, s := range in {
		if seen[s] {
			continue
		}

		seen[s] = true
		out = append(out, s)
	}

	return out
}
