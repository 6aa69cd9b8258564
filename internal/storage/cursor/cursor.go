// Package cursor provides opaque replay cursor encoding/decoding.
//
// A cursor marks how far a projection has consumed the event journal. It is
// persisted inside the projection checkpoint as an opaque token so storage
// never depends on its layout. A hash of the projection name is embedded so
// a checkpoint copied across projections is rejected instead of silently
// resuming from a foreign position.
package cursor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Cursor represents the internal state of a replay cursor.
type Cursor struct {
	// GlobalSeq is the journal position of the last processed event.
	// Replay resumes strictly after it.
	GlobalSeq uint64 `json:"seq"`
	// ProjectionHash ensures tokens are invalidated if reused by a
	// different projection.
	ProjectionHash string `json:"projection_hash,omitempty"`
}

// New creates a cursor for the given projection positioned at globalSeq.
func New(projection string, globalSeq uint64) Cursor {
	return Cursor{
		GlobalSeq:      globalSeq,
		ProjectionHash: HashProjection(projection),
	}
}

// Encode encodes a cursor to an opaque base64 string.
func Encode(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode decodes an opaque base64 string to a cursor.
// Returns an error if the token is invalid or malformed.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, fmt.Errorf("empty token")
	}

	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode base64: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal cursor: %w", err)
	}

	return c, nil
}

// HashProjection computes a short hash of the projection name for cursor
// validation. Returns empty string for an empty name.
func HashProjection(projection string) string {
	if projection == "" {
		return ""
	}
	h := sha256.Sum256([]byte(projection))
	return hex.EncodeToString(h[:8]) // 64-bit hash is sufficient for validation
}

// ValidateProjectionHash checks if the cursor's projection hash matches the
// given projection name. Returns an error if the cursor belongs to a
// different projection.
func ValidateProjectionHash(c Cursor, projection string) error {
	if c.ProjectionHash != HashProjection(projection) {
		return fmt.Errorf("cursor belongs to a different projection")
	}
	return nil
}
