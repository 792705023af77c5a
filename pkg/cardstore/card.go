package cardstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const cardColumns = `id, column_id, parent_id, title, description, kind, label_color,
	position, status, attributes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (Card, error) {
	var (
		card       Card
		parentID   sql.NullInt64
		labelColor sql.NullString
		kind       string
		status     string
		attrs      string
		createdAt  int64
		updatedAt  int64
	)

	err := row.Scan(&card.ID, &card.ColumnID, &parentID, &card.Title, &card.Description,
		&kind, &labelColor, &card.Order, &status, &attrs, &createdAt, &updatedAt)
	if err != nil {
		return Card{}, err
	}

	card.ParentID = idFromNull(parentID)
	card.LabelColor = labelColor.String
	card.Kind = Kind(kind)
	card.Status = Status(status)
	card.CreatedAt = fromTimestamp(createdAt)
	card.UpdatedAt = fromTimestamp(updatedAt)

	card.Attributes, err = decodeAttributes(attrs)
	if err != nil {
		return Card{}, fmt.Errorf("card %d: %w", card.ID, err)
	}

	return card, nil
}

func scanCards(rows *sql.Rows) ([]Card, error) {
	defer rows.Close()

	cards := []Card{}

	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}

		cards = append(cards, card)
	}

	err := rows.Err()
	if err != nil {
		return nil, err
	}

	return cards, nil
}

func getCard(ctx context.Context, q querier, id int64) (Card, error) {
	row := q.QueryRowContext(ctx, "SELECT "+cardColumns+" FROM cards WHERE id = ?", id)

	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Card{}, notFound("card", id)
	}

	if err != nil {
		return Card{}, fmt.Errorf("get card %d: %w", id, err)
	}

	return card, nil
}

// parentClause returns a null-safe comparison for parent_id. SQLite's IS
// operator matches NULL against NULL and behaves like = otherwise.
const parentClause = "parent_id IS ?"

// siblingCount returns how many cards share the (column, parent) group,
// excluding excludeID.
func siblingCount(ctx context.Context, q querier, columnID int64, parentID *int64, excludeID int64) (int, error) {
	var n int

	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cards WHERE column_id = ? AND "+parentClause+" AND id != ?",
		columnID, nullableID(parentID), excludeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count siblings: %w", err)
	}

	return n, nil
}

// maxOrder returns the highest order in the group, or -1 when it is empty.
func maxOrder(ctx context.Context, q querier, columnID int64, parentID *int64) (int, error) {
	var m int

	err := q.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position), -1) FROM cards WHERE column_id = ? AND "+parentClause,
		columnID, nullableID(parentID)).Scan(&m)
	if err != nil {
		return 0, fmt.Errorf("max order: %w", err)
	}

	return m, nil
}

// openGap shifts every card in the group at or after order one slot right.
func openGap(ctx context.Context, q querier, columnID int64, parentID *int64, order int, excludeID int64) error {
	_, err := q.ExecContext(ctx,
		"UPDATE cards SET position = position + 1 WHERE column_id = ? AND "+parentClause+" AND position >= ? AND id != ?",
		columnID, nullableID(parentID), order, excludeID)
	if err != nil {
		return fmt.Errorf("open order gap: %w", err)
	}

	return nil
}

// closeGap shifts every card in the group after order one slot left.
func closeGap(ctx context.Context, q querier, columnID int64, parentID *int64, order int, excludeID int64) error {
	_, err := q.ExecContext(ctx,
		"UPDATE cards SET position = position - 1 WHERE column_id = ? AND "+parentClause+" AND position > ? AND id != ?",
		columnID, nullableID(parentID), order, excludeID)
	if err != nil {
		return fmt.Errorf("close order gap: %w", err)
	}

	return nil
}

// checkParent verifies that parentID names an existing card and that making
// it the parent of cardID would not create a cycle. cardID is 0 for new
// cards.
func checkParent(ctx context.Context, q querier, cardID int64, parentID *int64) error {
	if parentID == nil {
		return nil
	}

	if *parentID == cardID {
		return invalid("card %d cannot be its own parent", cardID)
	}

	_, err := getCard(ctx, q, *parentID)
	if err != nil {
		return err
	}

	if cardID == 0 {
		return nil
	}

	var isDescendant bool

	err = q.QueryRowContext(ctx, `
		WITH RECURSIVE ancestors(id, depth) AS (
			SELECT parent_id, 1 FROM cards WHERE id = ?
			UNION ALL
			SELECT c.parent_id, a.depth + 1 FROM cards c JOIN ancestors a ON c.id = a.id
			WHERE a.id IS NOT NULL AND a.depth < ?
		)
		SELECT EXISTS(SELECT 1 FROM ancestors WHERE id = ?)`,
		*parentID, maxTreeDepth, cardID).Scan(&isDescendant)
	if err != nil {
		return fmt.Errorf("check ancestry: %w", err)
	}

	if isDescendant {
		return invalid("card %d cannot move under its own descendant %d", cardID, *parentID)
	}

	return nil
}

// maxTreeDepth bounds every walk along parent links so corrupted data with
// a cycle cannot loop forever.
const maxTreeDepth = 1024

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return invalid("title is empty")
	}

	return nil
}

// CreateCard inserts a card. Without an explicit order the card is appended
// after its last sibling. An explicit order is clamped to the group size and
// shifts the siblings at or after it, so orders stay dense.
func (s *Store) CreateCard(ctx context.Context, in NewCard) (Card, error) {
	const op = "create card"

	if in.Kind == "" {
		in.Kind = KindCard
	}

	var created Card

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := s.insertCard(ctx, tx, in)
		if err != nil {
			return err
		}

		created, err = getCard(ctx, tx, id)

		return err
	})
	if err != nil {
		return Card{}, wrap(op, "column", in.ColumnID, err)
	}

	return created, nil
}

func (s *Store) insertCard(ctx context.Context, tx *sql.Tx, in NewCard) (int64, error) {
	if in.ColumnID <= 0 {
		return 0, invalid("column id %d is not positive", in.ColumnID)
	}

	err := validateTitle(in.Title)
	if err != nil {
		return 0, err
	}

	if !in.Kind.Valid() {
		return 0, invalid("unknown kind %q", in.Kind)
	}

	err = in.Attributes.validate()
	if err != nil {
		return 0, err
	}

	err = checkParent(ctx, tx, 0, in.ParentID)
	if err != nil {
		return 0, err
	}

	last, err := maxOrder(ctx, tx, in.ColumnID, in.ParentID)
	if err != nil {
		return 0, err
	}

	order := last + 1

	if in.Order != nil {
		if *in.Order < 0 {
			return 0, invalid("order %d is negative", *in.Order)
		}

		if *in.Order < order {
			order = *in.Order

			err = openGap(ctx, tx, in.ColumnID, in.ParentID, order, 0)
			if err != nil {
				return 0, err
			}
		}
	}

	attrs, err := in.Attributes.encode()
	if err != nil {
		return 0, invalid("%v", err)
	}

	now := s.timestamp()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO cards (column_id, parent_id, title, description, kind, label_color,
			position, status, attributes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ColumnID, nullableID(in.ParentID), in.Title, in.Description, string(in.Kind),
		nullableString(in.LabelColor), order, string(StatusActive), attrs, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert card: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	return id, nil
}

// GetCard returns the card with the given id.
func (s *Store) GetCard(ctx context.Context, id int64) (Card, error) {
	q, err := s.reader()
	if err != nil {
		return Card{}, wrap("get card", "card", id, err)
	}

	card, err := getCard(ctx, q, id)
	if err != nil {
		return Card{}, wrap("get card", "card", id, err)
	}

	return card, nil
}

// UpdateCard writes the non-nil fields of upd and refreshes UpdatedAt.
// Order and parent are written verbatim; use [Store.MoveCard] to relocate a
// card while keeping sibling orders dense. An empty update returns the card
// unchanged.
func (s *Store) UpdateCard(ctx context.Context, id int64, upd CardUpdate) (Card, error) {
	const op = "update card"

	var updated Card

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getCard(ctx, tx, id)
		if err != nil {
			return err
		}

		if upd.empty() {
			updated = current

			return nil
		}

		var (
			sets []string
			args []any
		)

		if upd.Title != nil {
			err = validateTitle(*upd.Title)
			if err != nil {
				return err
			}

			sets = append(sets, "title = ?")
			args = append(args, *upd.Title)
		}

		if upd.Description != nil {
			sets = append(sets, "description = ?")
			args = append(args, *upd.Description)
		}

		if upd.Kind != nil {
			if !upd.Kind.Valid() {
				return invalid("unknown kind %q", *upd.Kind)
			}

			sets = append(sets, "kind = ?")
			args = append(args, string(*upd.Kind))
		}

		if upd.LabelColor != nil {
			sets = append(sets, "label_color = ?")
			args = append(args, nullableString(*upd.LabelColor))
		}

		if upd.ColumnID != nil {
			if *upd.ColumnID <= 0 {
				return invalid("column id %d is not positive", *upd.ColumnID)
			}

			sets = append(sets, "column_id = ?")
			args = append(args, *upd.ColumnID)
		}

		if upd.Order != nil {
			if *upd.Order < 0 {
				return invalid("order %d is negative", *upd.Order)
			}

			sets = append(sets, "position = ?")
			args = append(args, *upd.Order)
		}

		if upd.Parent != nil {
			err = checkParent(ctx, tx, id, upd.Parent.ID)
			if err != nil {
				return err
			}

			sets = append(sets, "parent_id = ?")
			args = append(args, nullableID(upd.Parent.ID))
		}

		if upd.Attributes != nil {
			err = upd.Attributes.validate()
			if err != nil {
				return err
			}

			encoded, encErr := upd.Attributes.encode()
			if encErr != nil {
				return invalid("%v", encErr)
			}

			sets = append(sets, "attributes = ?")
			args = append(args, encoded)
		}

		sets = append(sets, "updated_at = ?")
		args = append(args, s.timestamp(), id)

		_, err = tx.ExecContext(ctx, "UPDATE cards SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return fmt.Errorf("update card: %w", err)
		}

		updated, err = getCard(ctx, tx, id)

		return err
	})
	if err != nil {
		return Card{}, wrap(op, "card", id, err)
	}

	return updated, nil
}

// DeleteCard removes a card. A soft delete archives it (see
// [Store.ArchiveCard]). A hard delete removes the row together with its
// checklist, attachments and tag links, then closes the gap in its sibling
// order. Hard-deleting a card that still has children fails with
// [ErrInvalidArgument]; use [Store.DeleteTree] for whole subtrees.
func (s *Store) DeleteCard(ctx context.Context, id int64, hard bool) error {
	if !hard {
		return s.setStatus(ctx, "delete card", id, StatusArchived)
	}

	_, err := s.deleteSubtree(ctx, id, true)

	return wrap("delete card", "card", id, err)
}

// ArchiveCard soft-deletes a card. Archived cards are hidden from
// [Store.ListCards] unless IncludeArchived is set.
func (s *Store) ArchiveCard(ctx context.Context, id int64) error {
	return s.setStatus(ctx, "archive card", id, StatusArchived)
}

// UnarchiveCard restores an archived card.
func (s *Store) UnarchiveCard(ctx context.Context, id int64) error {
	return s.setStatus(ctx, "unarchive card", id, StatusActive)
}

func (s *Store) setStatus(ctx context.Context, op string, id int64, status Status) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE cards SET status = ?, updated_at = ? WHERE id = ?",
			string(status), s.timestamp(), id)
		if err != nil {
			return fmt.Errorf("set status: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		if n == 0 {
			return notFound("card", id)
		}

		return nil
	})

	return wrap(op, "card", id, err)
}

// MoveCard relocates a card to position order among the children of
// parentID in columnID. The old group's gap is closed and the new group's
// gap opened in the same transaction, so both groups stay dense. A nil
// order, or one past the end of the destination group, appends.
func (s *Store) MoveCard(ctx context.Context, id, columnID int64, order *int, parentID *int64) (Card, error) {
	const op = "move card"

	var moved Card

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if columnID <= 0 {
			return invalid("column id %d is not positive", columnID)
		}

		if order != nil && *order < 0 {
			return invalid("order %d is negative", *order)
		}

		card, err := getCard(ctx, tx, id)
		if err != nil {
			return err
		}

		err = checkParent(ctx, tx, id, parentID)
		if err != nil {
			return err
		}

		err = closeGap(ctx, tx, card.ColumnID, card.ParentID, card.Order, id)
		if err != nil {
			return err
		}

		size, err := siblingCount(ctx, tx, columnID, parentID, id)
		if err != nil {
			return err
		}

		pos := size
		if order != nil && *order < size {
			pos = *order
		}

		err = openGap(ctx, tx, columnID, parentID, pos, id)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE cards SET column_id = ?, parent_id = ?, position = ?, updated_at = ? WHERE id = ?",
			columnID, nullableID(parentID), pos, s.timestamp(), id)
		if err != nil {
			return fmt.Errorf("relocate card: %w", err)
		}

		moved, err = getCard(ctx, tx, id)

		return err
	})
	if err != nil {
		return Card{}, wrap(op, "card", id, err)
	}

	return moved, nil
}

// ReorderCards assigns order = index to each listed card and places it in
// the (columnID, parentID) group. A card pulled in from another group
// leaves no hole behind: its old group's gap is closed. Cards of the target
// group that are not listed keep their order, which may then collide with a
// listed card; callers are expected to pass the full group. An unknown id
// aborts the whole call.
func (s *Store) ReorderCards(ctx context.Context, columnID int64, parentID *int64, ids []int64) error {
	const op = "reorder cards"

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if columnID <= 0 {
			return invalid("column id %d is not positive", columnID)
		}

		seen := make(map[int64]bool, len(ids))

		for _, id := range ids {
			if seen[id] {
				return invalid("card %d listed twice", id)
			}

			seen[id] = true

			err := checkParent(ctx, tx, id, parentID)
			if err != nil {
				return err
			}
		}

		now := s.timestamp()

		for idx, id := range ids {
			card, err := getCard(ctx, tx, id)
			if err != nil {
				return err
			}

			if card.ColumnID != columnID || !sameID(card.ParentID, parentID) {
				err = closeGap(ctx, tx, card.ColumnID, card.ParentID, card.Order, id)
				if err != nil {
					return err
				}
			}

			_, err = tx.ExecContext(ctx,
				"UPDATE cards SET position = ?, column_id = ?, parent_id = ?, updated_at = ? WHERE id = ?",
				idx, columnID, nullableID(parentID), now, id)
			if err != nil {
				return fmt.Errorf("reorder card %d: %w", id, err)
			}
		}

		return nil
	})

	return wrap(op, "column", columnID, err)
}

// Children returns the direct children of a card in sibling order,
// archived ones included.
func (s *Store) Children(ctx context.Context, id int64) ([]Card, error) {
	q, err := s.reader()
	if err != nil {
		return nil, wrap("children", "card", id, err)
	}

	_, err = getCard(ctx, q, id)
	if err != nil {
		return nil, wrap("children", "card", id, err)
	}

	cards, err := children(ctx, q, id)
	if err != nil {
		return nil, wrap("children", "card", id, err)
	}

	return cards, nil
}

func children(ctx context.Context, q querier, id int64) ([]Card, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+cardColumns+" FROM cards WHERE parent_id = ? ORDER BY position ASC, created_at ASC, id ASC", id)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}

	return scanCards(rows)
}

// Tree returns the card and all of its descendants, each level in sibling
// order.
func (s *Store) Tree(ctx context.Context, rootID int64) (*CardTree, error) {
	q, err := s.reader()
	if err != nil {
		return nil, wrap("tree", "card", rootID, err)
	}

	root, err := getCard(ctx, q, rootID)
	if err != nil {
		return nil, wrap("tree", "card", rootID, err)
	}

	tree := &CardTree{Card: root}
	visited := map[int64]bool{root.ID: true}

	err = buildTree(ctx, q, tree, visited, 0)
	if err != nil {
		return nil, wrap("tree", "card", rootID, err)
	}

	return tree, nil
}

func buildTree(ctx context.Context, q querier, node *CardTree, visited map[int64]bool, depth int) error {
	if depth >= maxTreeDepth {
		return fmt.Errorf("%w: tree deeper than %d levels", ErrStorage, maxTreeDepth)
	}

	kids, err := children(ctx, q, node.ID)
	if err != nil {
		return err
	}

	node.Children = make([]*CardTree, 0, len(kids))

	for _, kid := range kids {
		if visited[kid.ID] {
			return fmt.Errorf("%w: parent cycle through card %d", ErrStorage, kid.ID)
		}

		visited[kid.ID] = true

		child := &CardTree{Card: kid}

		err = buildTree(ctx, q, child, visited, depth+1)
		if err != nil {
			return err
		}

		node.Children = append(node.Children, child)
	}

	return nil
}

// Flatten returns the cards of the tree in depth-first pre-order.
func (t *CardTree) Flatten() []Card {
	if t == nil {
		return nil
	}

	out := []Card{t.Card}

	for _, child := range t.Children {
		out = append(out, child.Flatten()...)
	}

	return out
}
