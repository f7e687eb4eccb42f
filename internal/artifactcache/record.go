package artifactcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Record is one parsed document held in the cache. Content never changes
// after Store returns.
type Record struct {
	ID         string    `json:"id"`
	SourceName string    `json:"source_name"`
	Content    string    `json:"content"`
	TokenCount int       `json:"token_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Metadata is a Record without its content, used for listings.
type Metadata struct {
	ID         string    `json:"id"`
	SourceName string    `json:"source_name"`
	TokenCount int       `json:"token_count"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the record is at least ttl old at now.
func (r Record) Expired(now time.Time, ttl time.Duration) bool {
	return !now.Before(r.CreatedAt.Add(ttl))
}

func (r Record) metadata(ttl time.Duration) Metadata {
	return Metadata{
		ID:         r.ID,
		SourceName: r.SourceName,
		TokenCount: r.TokenCount,
		CreatedAt:  r.CreatedAt,
		ExpiresAt:  r.CreatedAt.Add(ttl),
	}
}

// wireRecord uses pointers so a missing field is distinguishable from a zero value.
type wireRecord struct {
	ID         *string    `json:"id"`
	SourceName *string    `json:"source_name"`
	Content    *string    `json:"content"`
	TokenCount *int       `json:"token_count"`
	CreatedAt  *time.Time `json:"created_at"`
}

var errMalformed = errors.New("malformed record")

func decodeRecord(data []byte) (Record, error) {
	var wire wireRecord
	if err := json.Unmarshal(data, &wire); err != nil {
		return Record{}, fmt.Errorf("%w: %w", errMalformed, err)
	}
	missing := ""
	switch {
	case wire.ID == nil || *wire.ID == "":
		missing = "id"
	case wire.SourceName == nil:
		missing = "source_name"
	case wire.Content == nil:
		missing = "content"
	case wire.TokenCount == nil:
		missing = "token_count"
	case wire.CreatedAt == nil || wire.CreatedAt.IsZero():
		missing = "created_at"
	}
	if missing != "" {
		return Record{}, fmt.Errorf("%w: missing %s", errMalformed, missing)
	}
	return Record{
		ID:         *wire.ID,
		SourceName: *wire.SourceName,
		Content:    *wire.Content,
		TokenCount: *wire.TokenCount,
		CreatedAt:  wire.CreatedAt.UTC(),
	}, nil
}
