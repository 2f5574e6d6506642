package persistent

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/postdevai/postdevai/internal/apperrors"
)

// EntryKind discriminates the tagged-union Entry variants.
type EntryKind int

const (
	KindCode EntryKind = iota
	KindEvent
	KindEmbedding
	KindRelation
	KindContext
)

// Entry is the durable, compact-encoded tagged union stored under every
// "entry:<id>" key, grounded on the original store's EntryType enum.
type Entry struct {
	Kind      EntryKind
	Timestamp time.Time

	// Code
	Path     string
	Content  string
	Language string

	// Event
	EventType string
	Source    *string
	Severity  *string

	// Embedding
	Vector   []float32
	Metadata string

	// Relation
	SourceID uuid.UUID
	Label    string
	TargetID uuid.UUID

	// Context
	SessionID uuid.UUID
	Context   []string
}

// compression codec names accepted by Store's configuration.
const (
	CompressionNone   = "none"
	CompressionSnappy = "snappy"
	// CompressionZstd is accepted but, absent a zstd-specific repo in the
	// corpus to ground a distinct codec on, falls back to the snappy path;
	// see DESIGN.md for the reasoning.
	CompressionZstd = "zstd"
)

// encode gob-encodes an Entry, then applies the configured compression.
func encode(e Entry, compression string) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, apperrors.Internal("failed to encode entry", err)
	}

	switch compression {
	case CompressionSnappy, CompressionZstd:
		return snappy.Encode(nil, buf.Bytes()), nil
	default:
		return buf.Bytes(), nil
	}
}

// decode reverses encode, trying decompression first and falling back to
// a raw gob decode for values written under a different codec setting.
func decode(data []byte, compression string) (Entry, error) {
	raw := data
	if compression == CompressionSnappy || compression == CompressionZstd {
		if decoded, err := snappy.Decode(nil, data); err == nil {
			raw = decoded
		}
	}

	var e Entry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&e); err != nil {
		return Entry{}, apperrors.DecodeError("failed to decode entry", err)
	}
	return e, nil
}
