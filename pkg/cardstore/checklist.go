package cardstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const checklistColumns = "id, card_id, parent_id, description, done, position, created_at"

func scanChecklistItem(row rowScanner) (ChecklistItem, error) {
	var (
		item      ChecklistItem
		parentID  sql.NullInt64
		createdAt int64
	)

	err := row.Scan(&item.ID, &item.CardID, &parentID, &item.Description, &item.Done, &item.Order, &createdAt)
	if err != nil {
		return ChecklistItem{}, err
	}

	item.ParentID = idFromNull(parentID)
	item.CreatedAt = fromTimestamp(createdAt)

	return item, nil
}

func getChecklistItem(ctx context.Context, q querier, id int64) (ChecklistItem, error) {
	row := q.QueryRowContext(ctx, "SELECT "+checklistColumns+" FROM checklist_items WHERE id = ?", id)

	item, err := scanChecklistItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ChecklistItem{}, notFound("checklist item", id)
	}

	if err != nil {
		return ChecklistItem{}, fmt.Errorf("get checklist item %d: %w", id, err)
	}

	return item, nil
}

// checkChecklistParent verifies that parentID is an item of the same card
// and not itemID or one of its descendants. itemID is 0 for new items.
func checkChecklistParent(ctx context.Context, q querier, cardID, itemID int64, parentID *int64) error {
	if parentID == nil {
		return nil
	}

	if *parentID == itemID {
		return invalid("checklist item %d cannot be its own parent", itemID)
	}

	parent, err := getChecklistItem(ctx, q, *parentID)
	if err != nil {
		return err
	}

	if parent.CardID != cardID {
		return invalid("checklist item %d belongs to card %d, not %d", parent.ID, parent.CardID, cardID)
	}

	if itemID == 0 {
		return nil
	}

	for cur, depth := parent.ParentID, 0; cur != nil; depth++ {
		if *cur == itemID {
			return invalid("checklist item %d cannot move under its own descendant %d", itemID, *parentID)
		}

		if depth >= maxTreeDepth {
			return fmt.Errorf("%w: checklist deeper than %d levels", ErrStorage, maxTreeDepth)
		}

		ancestor, err := getChecklistItem(ctx, q, *cur)
		if err != nil {
			return err
		}

		cur = ancestor.ParentID
	}

	return nil
}

// AddChecklistItem adds an item to a card's checklist, nested under
// ParentID when set. The parent must belong to the same card.
func (s *Store) AddChecklistItem(ctx context.Context, in NewChecklistItem) (ChecklistItem, error) {
	const op = "add checklist item"

	var created ChecklistItem

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if strings.TrimSpace(in.Description) == "" {
			return invalid("description is empty")
		}

		if in.Order < 0 {
			return invalid("order %d is negative", in.Order)
		}

		_, err := getCard(ctx, tx, in.CardID)
		if err != nil {
			return err
		}

		err = checkChecklistParent(ctx, tx, in.CardID, 0, in.ParentID)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO checklist_items (card_id, parent_id, description, done, position, created_at)
			VALUES (?, ?, ?, 0, ?, ?)`,
			in.CardID, nullableID(in.ParentID), in.Description, in.Order, s.timestamp())
		if err != nil {
			return fmt.Errorf("insert checklist item: %w", err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		created, err = getChecklistItem(ctx, tx, id)

		return err
	})
	if err != nil {
		return ChecklistItem{}, wrap(op, "card", in.CardID, err)
	}

	return created, nil
}

// GetChecklistItem returns one checklist item.
func (s *Store) GetChecklistItem(ctx context.Context, id int64) (ChecklistItem, error) {
	q, err := s.reader()
	if err != nil {
		return ChecklistItem{}, wrap("get checklist item", "item", id, err)
	}

	item, err := getChecklistItem(ctx, q, id)
	if err != nil {
		return ChecklistItem{}, wrap("get checklist item", "item", id, err)
	}

	return item, nil
}

// ListChecklist returns the items of a card directly under parentID (nil
// for top-level items), ordered by order then creation time.
func (s *Store) ListChecklist(ctx context.Context, cardID int64, parentID *int64) ([]ChecklistItem, error) {
	q, err := s.reader()
	if err != nil {
		return nil, wrap("list checklist", "card", cardID, err)
	}

	rows, err := q.QueryContext(ctx,
		"SELECT "+checklistColumns+" FROM checklist_items WHERE card_id = ? AND "+parentClause+
			" ORDER BY position ASC, created_at ASC, id ASC",
		cardID, nullableID(parentID))
	if err != nil {
		return nil, wrap("list checklist", "card", cardID, fmt.Errorf("query checklist: %w", err))
	}
	defer rows.Close()

	items := []ChecklistItem{}

	for rows.Next() {
		item, err := scanChecklistItem(rows)
		if err != nil {
			return nil, wrap("list checklist", "card", cardID, fmt.Errorf("scan checklist item: %w", err))
		}

		items = append(items, item)
	}

	err = rows.Err()
	if err != nil {
		return nil, wrap("list checklist", "card", cardID, err)
	}

	return items, nil
}

// UpdateChecklistItem writes the non-nil fields of upd. An update with no
// fields fails with [ErrInvalidArgument].
func (s *Store) UpdateChecklistItem(ctx context.Context, id int64, upd ChecklistUpdate) (ChecklistItem, error) {
	const op = "update checklist item"

	var updated ChecklistItem

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if upd.empty() {
			return invalid("no fields to update")
		}

		current, err := getChecklistItem(ctx, tx, id)
		if err != nil {
			return err
		}

		var (
			sets []string
			args []any
		)

		if upd.Description != nil {
			if strings.TrimSpace(*upd.Description) == "" {
				return invalid("description is empty")
			}

			sets = append(sets, "description = ?")
			args = append(args, *upd.Description)
		}

		if upd.Done != nil {
			sets = append(sets, "done = ?")
			args = append(args, *upd.Done)
		}

		if upd.Order != nil {
			if *upd.Order < 0 {
				return invalid("order %d is negative", *upd.Order)
			}

			sets = append(sets, "position = ?")
			args = append(args, *upd.Order)
		}

		if upd.Parent != nil {
			err = checkChecklistParent(ctx, tx, current.CardID, id, upd.Parent.ID)
			if err != nil {
				return err
			}

			sets = append(sets, "parent_id = ?")
			args = append(args, nullableID(upd.Parent.ID))
		}

		args = append(args, id)

		_, err = tx.ExecContext(ctx, "UPDATE checklist_items SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return fmt.Errorf("update checklist item: %w", err)
		}

		updated, err = getChecklistItem(ctx, tx, id)

		return err
	})
	if err != nil {
		return ChecklistItem{}, wrap(op, "item", id, err)
	}

	return updated, nil
}

// DeleteChecklistItem removes an item and all of its sub-items, depth
// first. It returns the number of items removed.
func (s *Store) DeleteChecklistItem(ctx context.Context, id int64) (int, error) {
	var removed int

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := getChecklistItem(ctx, tx, id)
		if err != nil {
			return err
		}

		removed, err = deleteChecklistSubtree(ctx, tx, id, 0)

		return err
	})
	if err != nil {
		return 0, wrap("delete checklist item", "item", id, err)
	}

	return removed, nil
}

func deleteChecklistSubtree(ctx context.Context, tx *sql.Tx, id int64, depth int) (int, error) {
	if depth >= maxTreeDepth {
		return 0, fmt.Errorf("%w: checklist deeper than %d levels", ErrStorage, maxTreeDepth)
	}

	rows, err := tx.QueryContext(ctx, "SELECT id FROM checklist_items WHERE parent_id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("query sub-items: %w", err)
	}

	var kids []int64

	for rows.Next() {
		var kid int64

		err = rows.Scan(&kid)
		if err != nil {
			_ = rows.Close()

			return 0, fmt.Errorf("scan sub-item: %w", err)
		}

		kids = append(kids, kid)
	}

	err = rows.Err()
	_ = rows.Close()

	if err != nil {
		return 0, fmt.Errorf("query sub-items: %w", err)
	}

	total := 0

	for _, kid := range kids {
		n, err := deleteChecklistSubtree(ctx, tx, kid, depth+1)
		if err != nil {
			return 0, err
		}

		total += n
	}

	n, err := execCount(ctx, tx, "DELETE FROM checklist_items WHERE id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("delete checklist item %d: %w", id, err)
	}

	return total + n, nil
}
