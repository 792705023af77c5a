package cardstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

func normalizeTagName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("tag name is empty")
	}

	return name, nil
}

func getTag(ctx context.Context, q querier, id int64) (Tag, error) {
	var tag Tag

	err := q.QueryRowContext(ctx, "SELECT id, name FROM tags WHERE id = ?", id).Scan(&tag.ID, &tag.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Tag{}, notFound("tag", id)
	}

	if err != nil {
		return Tag{}, fmt.Errorf("get tag %d: %w", id, err)
	}

	return tag, nil
}

func ensureTag(ctx context.Context, q querier, name string) (int64, error) {
	_, err := q.ExecContext(ctx, "INSERT INTO tags (name) VALUES (?) ON CONFLICT(name) DO NOTHING", name)
	if err != nil {
		return 0, fmt.Errorf("insert tag: %w", err)
	}

	var id int64

	err = q.QueryRowContext(ctx, "SELECT id FROM tags WHERE name = ?", name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("lookup tag %q: %w", name, err)
	}

	return id, nil
}

// CreateTag returns the id of the tag named name, creating it if needed.
// Creating an existing tag is not an error.
func (s *Store) CreateTag(ctx context.Context, name string) (Tag, error) {
	var tag Tag

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		normalized, err := normalizeTagName(name)
		if err != nil {
			return err
		}

		id, err := ensureTag(ctx, tx, normalized)
		if err != nil {
			return err
		}

		tag = Tag{ID: id, Name: normalized}

		return nil
	})
	if err != nil {
		return Tag{}, wrap("create tag", "", 0, err)
	}

	return tag, nil
}

// RenameTag changes a tag's name. Renaming onto another tag's name fails
// with [ErrConflict].
func (s *Store) RenameTag(ctx context.Context, id int64, newName string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		normalized, err := normalizeTagName(newName)
		if err != nil {
			return err
		}

		n, err := execCount(ctx, tx, "UPDATE tags SET name = ? WHERE id = ?", normalized, id)
		if err != nil {
			return fmt.Errorf("rename tag: %w", err)
		}

		if n == 0 {
			return notFound("tag", id)
		}

		return nil
	})

	return wrap("rename tag", "tag", id, err)
}

// DeleteTag removes a tag and detaches it from every card.
func (s *Store) DeleteTag(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM card_tags WHERE tag_id = ?", id)
		if err != nil {
			return fmt.Errorf("delete tag links: %w", err)
		}

		n, err := execCount(ctx, tx, "DELETE FROM tags WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete tag: %w", err)
		}

		if n == 0 {
			return notFound("tag", id)
		}

		return nil
	})

	return wrap("delete tag", "tag", id, err)
}

// ListTags returns every tag sorted by name.
func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	q, err := s.reader()
	if err != nil {
		return nil, wrap("list tags", "", 0, err)
	}

	tags, err := queryTags(ctx, q, "SELECT id, name FROM tags ORDER BY name ASC, id ASC")
	if err != nil {
		return nil, wrap("list tags", "", 0, err)
	}

	return tags, nil
}

// AttachTag links a tag to a card. It reports false when the link already
// existed.
func (s *Store) AttachTag(ctx context.Context, cardID, tagID int64) (bool, error) {
	var attached bool

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error

		attached, err = attachTag(ctx, tx, cardID, tagID)

		return err
	})
	if err != nil {
		return false, wrap("attach tag", "card", cardID, err)
	}

	return attached, nil
}

// AttachTagByName creates the tag if needed and links it to the card.
func (s *Store) AttachTagByName(ctx context.Context, cardID int64, name string) (Tag, bool, error) {
	var (
		tag      Tag
		attached bool
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		normalized, err := normalizeTagName(name)
		if err != nil {
			return err
		}

		_, err = getCard(ctx, tx, cardID)
		if err != nil {
			return err
		}

		id, err := ensureTag(ctx, tx, normalized)
		if err != nil {
			return err
		}

		tag = Tag{ID: id, Name: normalized}
		attached, err = attachTag(ctx, tx, cardID, id)

		return err
	})
	if err != nil {
		return Tag{}, false, wrap("attach tag", "card", cardID, err)
	}

	return tag, attached, nil
}

func attachTag(ctx context.Context, tx *sql.Tx, cardID, tagID int64) (bool, error) {
	_, err := getCard(ctx, tx, cardID)
	if err != nil {
		return false, err
	}

	_, err = getTag(ctx, tx, tagID)
	if err != nil {
		return false, err
	}

	n, err := execCount(ctx, tx, "INSERT OR IGNORE INTO card_tags (card_id, tag_id) VALUES (?, ?)", cardID, tagID)
	if err != nil {
		return false, fmt.Errorf("link tag: %w", err)
	}

	return n == 1, nil
}

// DetachTag removes the link between a card and a tag.
func (s *Store) DetachTag(ctx context.Context, cardID, tagID int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := execCount(ctx, tx, "DELETE FROM card_tags WHERE card_id = ? AND tag_id = ?", cardID, tagID)
		if err != nil {
			return fmt.Errorf("unlink tag: %w", err)
		}

		if n == 0 {
			return fmt.Errorf("%w: tag %d is not attached to card %d", ErrNotFound, tagID, cardID)
		}

		return nil
	})

	return wrap("detach tag", "card", cardID, err)
}

// CardTags returns the tags attached to a card, sorted by name.
func (s *Store) CardTags(ctx context.Context, cardID int64) ([]Tag, error) {
	q, err := s.reader()
	if err != nil {
		return nil, wrap("card tags", "card", cardID, err)
	}

	tags, err := queryTags(ctx, q, `
		SELECT t.id, t.name FROM tags t
		JOIN card_tags ct ON ct.tag_id = t.id
		WHERE ct.card_id = ?
		ORDER BY t.name ASC, t.id ASC`, cardID)
	if err != nil {
		return nil, wrap("card tags", "card", cardID, err)
	}

	return tags, nil
}

func queryTags(ctx context.Context, q querier, query string, args ...any) ([]Tag, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	tags := []Tag{}

	for rows.Next() {
		var tag Tag

		err = rows.Scan(&tag.ID, &tag.Name)
		if err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}

		tags = append(tags, tag)
	}

	return tags, rows.Err()
}
