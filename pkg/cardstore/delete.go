package cardstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// DeleteTree hard-deletes a card and every descendant in one transaction,
// together with their checklist items, attachments and tag links. After the
// commit the attachment files are removed best-effort; files that could not
// be removed are reported in [DeleteResult.Leftover].
func (s *Store) DeleteTree(ctx context.Context, id int64) (DeleteResult, error) {
	res, err := s.deleteSubtree(ctx, id, false)
	if err != nil {
		return DeleteResult{}, wrap("delete tree", "card", id, err)
	}

	return res, nil
}

func (s *Store) deleteSubtree(ctx context.Context, id int64, leafOnly bool) (DeleteResult, error) {
	var (
		res   DeleteResult
		paths []string
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		root, err := getCard(ctx, tx, id)
		if err != nil {
			return err
		}

		ids, err := subtreePostOrder(ctx, tx, id)
		if err != nil {
			return err
		}

		if leafOnly && len(ids) > 1 {
			return invalid("card %d still has %d descendants", id, len(ids)-1)
		}

		for _, cardID := range ids {
			removed, err := deleteCardRows(ctx, tx, cardID, &res)
			if err != nil {
				return err
			}

			paths = append(paths, removed...)
		}

		return closeGap(ctx, tx, root.ColumnID, root.ParentID, root.Order, id)
	})
	if err != nil {
		return DeleteResult{}, err
	}

	for _, path := range paths {
		err := s.fs.Remove(path)
		if err == nil || errors.Is(err, os.ErrNotExist) {
			continue
		}

		s.log.WithFields(logrus.Fields{
			"card_id": id,
			"path":    path,
		}).WithError(err).Warn("cardstore: attachment file not removed")

		res.Leftover = append(res.Leftover, path)
	}

	return res, nil
}

// subtreePostOrder returns the ids of the subtree rooted at id, children
// before their parents.
func subtreePostOrder(ctx context.Context, q querier, id int64) ([]int64, error) {
	var (
		out     []int64
		visited = map[int64]bool{}
	)

	var walk func(cardID int64, depth int) error

	walk = func(cardID int64, depth int) error {
		if depth >= maxTreeDepth {
			return fmt.Errorf("%w: tree deeper than %d levels", ErrStorage, maxTreeDepth)
		}

		if visited[cardID] {
			return fmt.Errorf("%w: parent cycle through card %d", ErrStorage, cardID)
		}

		visited[cardID] = true

		kids, err := childIDs(ctx, q, cardID)
		if err != nil {
			return err
		}

		for _, kid := range kids {
			err = walk(kid, depth+1)
			if err != nil {
				return err
			}
		}

		out = append(out, cardID)

		return nil
	}

	err := walk(id, 0)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func childIDs(ctx context.Context, q querier, id int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx, "SELECT id FROM cards WHERE parent_id = ? ORDER BY position, id", id)
	if err != nil {
		return nil, fmt.Errorf("query child ids: %w", err)
	}
	defer rows.Close()

	var ids []int64

	for rows.Next() {
		var childID int64

		err = rows.Scan(&childID)
		if err != nil {
			return nil, fmt.Errorf("scan child id: %w", err)
		}

		ids = append(ids, childID)
	}

	return ids, rows.Err()
}

// deleteCardRows removes one card and the rows it owns. It returns the local
// paths of the attachments that were removed. Owned rows are deleted
// explicitly so the result does not depend on foreign key enforcement.
func deleteCardRows(ctx context.Context, tx *sql.Tx, id int64, res *DeleteResult) ([]string, error) {
	// Count first: with foreign keys on, nested items may vanish through
	// the cascade and would not show up in RowsAffected.
	var items int

	err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM checklist_items WHERE card_id = ?", id).Scan(&items)
	if err != nil {
		return nil, fmt.Errorf("count checklist of card %d: %w", id, err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM checklist_items WHERE card_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("delete checklist of card %d: %w", id, err)
	}

	res.ChecklistItems += items

	rows, err := tx.QueryContext(ctx, "SELECT local_path FROM attachments WHERE card_id = ? AND local_path IS NOT NULL", id)
	if err != nil {
		return nil, fmt.Errorf("query attachments of card %d: %w", id, err)
	}

	var paths []string

	for rows.Next() {
		var path string

		err = rows.Scan(&path)
		if err != nil {
			_ = rows.Close()

			return nil, fmt.Errorf("scan attachment path: %w", err)
		}

		if path != "" {
			paths = append(paths, path)
		}
	}

	err = rows.Err()
	_ = rows.Close()

	if err != nil {
		return nil, fmt.Errorf("query attachments of card %d: %w", id, err)
	}

	n, err := execCount(ctx, tx, "DELETE FROM attachments WHERE card_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("delete attachments of card %d: %w", id, err)
	}

	res.Attachments += n

	n, err = execCount(ctx, tx, "DELETE FROM card_tags WHERE card_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("delete tag links of card %d: %w", id, err)
	}

	res.TagLinks += n

	n, err = execCount(ctx, tx, "DELETE FROM cards WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("delete card %d: %w", id, err)
	}

	res.Cards += n

	return paths, nil
}

func execCount(ctx context.Context, q querier, query string, args ...any) (int, error) {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return int(n), nil
}
