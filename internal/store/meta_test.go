package store

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/remindhq/remind/internal/errs"
)

func TestFormatParseIDRoundTrip(t *testing.T) {
	key := uuid.New()
	id := FormatID("source", key)

	collection, parsed, err := ParseID(id)
	if err != nil {
		t.Fatalf("ParseID(%q): %v", id, err)
	}
	if collection != "source" {
		t.Errorf("collection = %q, want %q", collection, "source")
	}
	if parsed != key {
		t.Errorf("key = %s, want %s", parsed, key)
	}
}

func TestParseID_Malformed(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"no separator", "source"},
		{"empty collection", ":" + uuid.NewString()},
		{"empty key", "source:"},
		{"non-uuid key", "source:not-a-uuid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseID(tt.id)
			if !errors.Is(err, errs.ErrInvalidInput) {
				t.Errorf("ParseID(%q) = %v, want ErrInvalidInput", tt.id, err)
			}
		})
	}
}

func TestMeta_Saved(t *testing.T) {
	var m Metadata
	if m.Saved() {
		t.Error("zero Meta reports saved")
	}
	m.ID = FormatID("source", uuid.New())
	if !m.Saved() {
		t.Error("Meta with id reports unsaved")
	}
}
