package cardstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Kind discriminates what a card represents.
type Kind string

// Card kinds.
const (
	KindCard   Kind = "card"
	KindFolder Kind = "folder"
	KindAsset  Kind = "asset"
	KindTask   Kind = "task"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindCard, KindFolder, KindAsset, KindTask:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of a card. Archived cards are soft-deleted:
// they keep their rows but are hidden from listings by default.
type Status string

// Card statuses.
const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Attributes is the free-form metadata bag attached to a card.
// Values must be JSON scalars: string, bool, a number, or nil.
type Attributes map[string]any

// validate rejects nested values so attributes stay queryable with
// scalar equality filters.
func (a Attributes) validate() error {
	for key, value := range a {
		if key == "" {
			return invalid("attribute key is empty")
		}

		if !isScalar(value) {
			return invalid("attribute %q: value of type %T is not a scalar", key, value)
		}
	}

	return nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

func (a Attributes) encode() (string, error) {
	if len(a) == 0 {
		return "{}", nil
	}

	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode attributes: %w", err)
	}

	return string(data), nil
}

// UnmarshalJSON keeps numbers as [json.Number] so integers beyond 2^53
// survive a round trip.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m map[string]any

	err := dec.Decode(&m)
	if err != nil {
		return err
	}

	*a = m

	return nil
}

func decodeAttributes(raw string) (Attributes, error) {
	attrs := Attributes{}

	if raw == "" {
		return attrs, nil
	}

	err := json.Unmarshal([]byte(raw), &attrs)
	if err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}

	return attrs, nil
}

// Card is a node in the per-column card tree.
type Card struct {
	ID          int64
	ColumnID    int64
	ParentID    *int64 // nil for root-level cards
	Title       string
	Description string
	Kind        Kind
	LabelColor  string // empty when unset
	Order       int
	Status      Status
	Attributes  Attributes
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Archived reports whether the card has been soft-deleted.
func (c *Card) Archived() bool {
	return c.Status == StatusArchived
}

// CardTree is a card together with all of its descendants.
type CardTree struct {
	Card
	Children []*CardTree
}

// Attachment is a file or remote reference owned by a card.
type Attachment struct {
	ID        int64
	CardID    int64
	FileName  string
	LocalPath string // empty for remote-only or metadata-only attachments
	RemoteURL string
	MimeType  string
	SizeBytes int64
	CreatedAt time.Time
}

// ChecklistItem is an entry of a card's hierarchical checklist.
type ChecklistItem struct {
	ID          int64
	CardID      int64
	ParentID    *int64
	Description string
	Done        bool
	Order       int
	CreatedAt   time.Time
}

// Tag is a globally unique label.
type Tag struct {
	ID   int64
	Name string
}

// NewCard is the input to [Store.CreateCard].
type NewCard struct {
	ColumnID    int64
	Title       string
	Description string
	Kind        Kind   // defaults to KindCard
	LabelColor  string
	ParentID    *int64 // nil creates a root-level card
	Order       *int   // nil appends after the last sibling
	Attributes  Attributes
}

// ParentRef selects a new parent in [CardUpdate]. A nil ID moves the card to
// the root level of its column.
type ParentRef struct {
	ID *int64
}

// CardUpdate lists the fields [Store.UpdateCard] may change. Nil fields are
// left untouched; these are the only updatable fields.
type CardUpdate struct {
	Title       *string
	Description *string
	Kind        *Kind
	LabelColor  *string // "" clears the color
	ColumnID    *int64
	Order       *int
	Parent      *ParentRef
	Attributes  Attributes // nil leaves attributes untouched; empty clears
}

func (u CardUpdate) empty() bool {
	return u.Title == nil && u.Description == nil && u.Kind == nil &&
		u.LabelColor == nil && u.ColumnID == nil && u.Order == nil &&
		u.Parent == nil && u.Attributes == nil
}

// NewAttachment is the input to [Store.AddAttachment].
type NewAttachment struct {
	CardID    int64
	FileName  string
	LocalPath string
	RemoteURL string
	MimeType  string
	SizeBytes int64
}

// NewChecklistItem is the input to [Store.AddChecklistItem].
type NewChecklistItem struct {
	CardID      int64
	Description string
	Order       int
	ParentID    *int64
}

// ChecklistUpdate lists the fields [Store.UpdateChecklistItem] may change.
type ChecklistUpdate struct {
	Description *string
	Done        *bool
	Order       *int
	Parent      *ParentRef
}

func (u ChecklistUpdate) empty() bool {
	return u.Description == nil && u.Done == nil && u.Order == nil && u.Parent == nil
}

// DeleteResult summarizes a [Store.DeleteTree] sweep.
type DeleteResult struct {
	Cards          int
	ChecklistItems int
	Attachments    int
	TagLinks       int

	// Leftover lists attachment files that could not be removed after the
	// rows were deleted. The database is consistent regardless.
	Leftover []string
}

// ExportResult summarizes a [Store.Export].
type ExportResult struct {
	Folders     int
	Attachments int

	// MissingFiles counts attachments exported as metadata only because
	// their local file was absent.
	MissingFiles int
}

// ImportResult summarizes a [Store.Import].
type ImportResult struct {
	RootID      int64
	Folders     int
	Attachments int

	// MetadataOnly counts attachments recreated without a payload because
	// the archive lacked the file or copying it failed. A non-zero value
	// means the import succeeded with degraded data.
	MetadataOnly int
}

// Degraded reports whether some attachment payloads were not restored.
func (r ImportResult) Degraded() bool {
	return r.MetadataOnly > 0
}

func int64Ptr(v int64) *int64 {
	return &v
}
