package todostore

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ID identifies a record. It is immutable after creation and must satisfy
// ValidateID; in particular it cannot contain the key separator bytes.
type ID string

const maxIDLen = 512

// Record is the unit of storage. Title and Completed are mutable, ID is not.
type Record struct {
	ID        ID     `msgpack:"i" json:"id"`
	Title     string `msgpack:"t" json:"title"`
	Completed bool   `msgpack:"c" json:"completed"`
}

func (rec *Record) String() string {
	if rec == nil {
		return "<nil>"
	}
	mark := " "
	if rec.Completed {
		mark = "x"
	}
	return fmt.Sprintf("[%s] %s %s", mark, rec.ID, rec.Title)
}

// Patch lists the fields to change in Update. Nil fields keep their current
// value.
type Patch struct {
	Title     *string
	Completed *bool
}

func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Completed == nil
}

// SetTitle and SetCompleted are shorthands for building a Patch.
func SetTitle(title string) Patch {
	return Patch{Title: &title}
}

func SetCompleted(completed bool) Patch {
	return Patch{Completed: &completed}
}

func (p Patch) apply(rec Record) Record {
	if p.Title != nil {
		rec.Title = *p.Title
	}
	if p.Completed != nil {
		rec.Completed = *p.Completed
	}
	return rec
}

// NewID returns a fresh random (v4 UUID) identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

// NewRecord returns an incomplete record with a fresh ID.
func NewRecord(title string) *Record {
	return &Record{ID: NewID(), Title: title}
}

// ValidateID reports whether id can be turned into a key. Keys are built as
// prefix + ':' + id, and ranges are bounded by ';', so neither byte may occur
// inside an id; control bytes are rejected to keep dumps and logs readable.
func ValidateID(id ID) error {
	s := string(id)
	if s == "" {
		return fmt.Errorf("id is empty")
	}
	if len(s) > maxIDLen {
		return fmt.Errorf("id is %d bytes long, max %d", len(s), maxIDLen)
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("id %q is not valid UTF-8", s)
	}
	if i := strings.IndexAny(s, reservedIDChars); i >= 0 {
		return fmt.Errorf("id %q contains reserved character %q at offset %d", s, s[i], i)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] == 0x7F {
			return fmt.Errorf("id %q contains control byte 0x%02x at offset %d", s, s[i], i)
		}
	}
	return nil
}

func validateRecord(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("record is nil")
	}
	if err := ValidateID(rec.ID); err != nil {
		return err
	}
	return validateTitle(rec.Title)
}

func validateTitle(title string) error {
	if title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}
