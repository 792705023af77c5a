package cardstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/calvinalkan/cardstore/pkg/fs"
)

const attachmentColumns = "id, card_id, file_name, local_path, remote_url, mime_type, size_bytes, created_at"

func scanAttachment(row rowScanner) (Attachment, error) {
	var (
		a         Attachment
		localPath sql.NullString
		remoteURL sql.NullString
		mimeType  sql.NullString
		createdAt int64
	)

	err := row.Scan(&a.ID, &a.CardID, &a.FileName, &localPath, &remoteURL, &mimeType, &a.SizeBytes, &createdAt)
	if err != nil {
		return Attachment{}, err
	}

	a.LocalPath = localPath.String
	a.RemoteURL = remoteURL.String
	a.MimeType = mimeType.String
	a.CreatedAt = fromTimestamp(createdAt)

	return a, nil
}

func (s *Store) insertAttachment(ctx context.Context, q querier, in NewAttachment) (int64, error) {
	if strings.TrimSpace(in.FileName) == "" {
		return 0, invalid("file name is empty")
	}

	if in.SizeBytes < 0 {
		return 0, invalid("size %d is negative", in.SizeBytes)
	}

	_, err := getCard(ctx, q, in.CardID)
	if err != nil {
		return 0, err
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO attachments (card_id, file_name, local_path, remote_url, mime_type, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.CardID, in.FileName, nullableString(in.LocalPath), nullableString(in.RemoteURL),
		nullableString(in.MimeType), in.SizeBytes, s.timestamp())
	if err != nil {
		return 0, fmt.Errorf("insert attachment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	return id, nil
}

// AddAttachment records attachment metadata for a card. No file is copied;
// see [Store.ImportFile] for that.
func (s *Store) AddAttachment(ctx context.Context, in NewAttachment) (Attachment, error) {
	const op = "add attachment"

	var created Attachment

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := s.insertAttachment(ctx, tx, in)
		if err != nil {
			return err
		}

		created, err = getAttachment(ctx, tx, id)

		return err
	})
	if err != nil {
		return Attachment{}, wrap(op, "card", in.CardID, err)
	}

	return created, nil
}

func getAttachment(ctx context.Context, q querier, id int64) (Attachment, error) {
	row := q.QueryRowContext(ctx, "SELECT "+attachmentColumns+" FROM attachments WHERE id = ?", id)

	a, err := scanAttachment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attachment{}, notFound("attachment", id)
	}

	if err != nil {
		return Attachment{}, fmt.Errorf("get attachment %d: %w", id, err)
	}

	return a, nil
}

// GetAttachment returns one attachment.
func (s *Store) GetAttachment(ctx context.Context, id int64) (Attachment, error) {
	q, err := s.reader()
	if err != nil {
		return Attachment{}, wrap("get attachment", "attachment", id, err)
	}

	a, err := getAttachment(ctx, q, id)
	if err != nil {
		return Attachment{}, wrap("get attachment", "attachment", id, err)
	}

	return a, nil
}

// ListAttachments returns a card's attachments, oldest first.
func (s *Store) ListAttachments(ctx context.Context, cardID int64) ([]Attachment, error) {
	q, err := s.reader()
	if err != nil {
		return nil, wrap("list attachments", "card", cardID, err)
	}

	list, err := listAttachments(ctx, q, cardID)
	if err != nil {
		return nil, wrap("list attachments", "card", cardID, err)
	}

	return list, nil
}

func listAttachments(ctx context.Context, q querier, cardID int64) ([]Attachment, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+attachmentColumns+" FROM attachments WHERE card_id = ? ORDER BY created_at ASC, id ASC", cardID)
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	list := []Attachment{}

	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}

		list = append(list, a)
	}

	return list, rows.Err()
}

// DeleteAttachment removes the attachment row. The payload file is left in
// place.
func (s *Store) DeleteAttachment(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := execCount(ctx, tx, "DELETE FROM attachments WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete attachment: %w", err)
		}

		if n == 0 {
			return notFound("attachment", id)
		}

		return nil
	})

	return wrap("delete attachment", "attachment", id, err)
}

// ImportFile copies sourcePath into the card's storage directory under a
// collision-resistant name and records it as an attachment. If recording
// fails the copied file is removed again.
func (s *Store) ImportFile(ctx context.Context, cardID int64, sourcePath string) (Attachment, error) {
	const op = "import file"

	info, err := s.fs.Stat(sourcePath)
	if err != nil {
		return Attachment{}, wrap(op, "card", cardID, fmt.Errorf("source %s: %w", sourcePath, err))
	}

	if !info.Mode().IsRegular() {
		return Attachment{}, wrap(op, "card", cardID, invalid("source %s is not a regular file", sourcePath))
	}

	var (
		created Attachment
		copied  string
	)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		dir, err := s.cardStoragePath(ctx, tx, cardID)
		if err != nil {
			return err
		}

		copied, err = s.storeFileAs(dir, sourcePath, filepath.Base(sourcePath))
		if err != nil {
			return err
		}

		size, mimeType := s.describeFile(copied)

		id, err := s.insertAttachment(ctx, tx, NewAttachment{
			CardID:    cardID,
			FileName:  filepath.Base(sourcePath),
			LocalPath: copied,
			MimeType:  mimeType,
			SizeBytes: size,
		})
		if err != nil {
			return err
		}

		created, err = getAttachment(ctx, tx, id)

		return err
	})
	if err != nil {
		if copied != "" {
			_ = s.fs.Remove(copied)
		}

		return Attachment{}, wrap(op, "card", cardID, err)
	}

	return created, nil
}

// storeFileAs copies src into dir as "<uuidv7>_<name>" and returns the
// destination path. UUIDv7 prefixes sort by creation time.
func (s *Store) storeFileAs(dir, src, name string) (string, error) {
	prefix, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate file prefix: %w", err)
	}

	dst := filepath.Join(dir, prefix.String()+"_"+name)

	_, err = fs.CopyFile(s.fs, src, dst)
	if err != nil {
		if errors.Is(err, fs.ErrNotRegular) {
			return "", invalid("%v", err)
		}

		return "", ioFailure(fmt.Errorf("copy %s: %w", src, err))
	}

	return dst, nil
}

// describeFile returns the size and MIME type of a stored file. Failures
// leave the zero values; the attachment is still usable without them.
func (s *Store) describeFile(path string) (int64, string) {
	var size int64

	info, err := s.fs.Stat(path)
	if err == nil {
		size = info.Size()
	}

	f, err := s.fs.Open(path)
	if err != nil {
		return size, ""
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return size, ""
	}

	return size, mt.String()
}

// CardStoragePath returns the directory holding a card's attachment files,
// creating it if needed. The directory mirrors the card's ancestry: one
// "<id>_<title>" segment per ancestor, root first.
func (s *Store) CardStoragePath(ctx context.Context, cardID int64) (string, error) {
	q, err := s.reader()
	if err != nil {
		return "", wrap("storage path", "card", cardID, err)
	}

	dir, err := s.cardStoragePath(ctx, q, cardID)
	if err != nil {
		return "", wrap("storage path", "card", cardID, err)
	}

	return dir, nil
}

func (s *Store) cardStoragePath(ctx context.Context, q querier, cardID int64) (string, error) {
	var segments []string

	visited := map[int64]bool{}
	next := &cardID

	for next != nil {
		if visited[*next] || len(segments) >= maxTreeDepth {
			return "", fmt.Errorf("%w: parent cycle through card %d", ErrStorage, *next)
		}

		visited[*next] = true

		card, err := getCard(ctx, q, *next)
		if err != nil {
			return "", err
		}

		segments = append(segments, strconv.FormatInt(card.ID, 10)+"_"+sanitizeSegment(card.Title))
		next = card.ParentID
	}

	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, s.storageDir)

	for i := len(segments) - 1; i >= 0; i-- {
		parts = append(parts, segments[i])
	}

	dir := filepath.Join(parts...)

	err := s.fs.MkdirAll(dir, dirPerms)
	if err != nil {
		return "", ioFailure(fmt.Errorf("create storage dir: %w", err))
	}

	return dir, nil
}

// maxSegmentLen keeps directory names well below common filesystem limits.
const maxSegmentLen = 80

// sanitizeSegment turns a card title into a single safe path segment.
func sanitizeSegment(title string) string {
	var sb strings.Builder

	for _, r := range strings.TrimSpace(title) {
		switch {
		case r == '/' || r == '\\' || r == os.PathSeparator:
			sb.WriteRune('_')
		case r < 0x20 || r == 0x7f:
			sb.WriteRune('_')
		case strings.ContainsRune(`:*?"<>|`, r):
			sb.WriteRune('_')
		default:
			sb.WriteRune(r)
		}
	}

	out := strings.Trim(sb.String(), ". ")

	if len(out) > maxSegmentLen {
		out = truncateRunes(out, maxSegmentLen)
	}

	if out == "" {
		return "untitled"
	}

	return out
}

func truncateRunes(s string, maxBytes int) string {
	cut := 0

	for i := range s {
		if i > maxBytes {
			break
		}

		cut = i
	}

	return s[:cut]
}
