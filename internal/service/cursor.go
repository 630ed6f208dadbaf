package service

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pbitips/workload/internal/model"
	"github.com/pbitips/workload/internal/wlerror"
	"github.com/zeebo/xxh3"
)

// cursorVersion must be bumped whenever the ordering or the cursor layout changes,
// so tokens minted by a previous deployment are rejected instead of mis-paginating.
const cursorVersion = 1

// A cursor is the decoded continuation token of a listing.
// It holds the position of the last returned item, the next page starts strictly after it.
type cursor struct {
	Version   int       `json:"v"`
	SortBy    SortBy    `json:"sb"`
	SortOrder SortOrder `json:"so"`
	Filter    string    `json:"f"`
	Number    int64     `json:"n,omitempty"`
	// Text is kept as bytes so names that are not valid UTF-8 survive the JSON round trip.
	Text []byte `json:"s,omitempty"`
	Guid string `json:"id"`
}

func newCursor(by SortBy, order SortOrder, fingerprint string, item *model.PublishedItem) cursor {
	p := positionOf(item, by)
	return cursor{
		Version:   cursorVersion,
		SortBy:    by,
		SortOrder: order,
		Filter:    fingerprint,
		Number:    p.Number,
		Text:      []byte(p.Text),
		Guid:      p.Guid,
	}
}

func (c cursor) position() position {
	return position{
		Number: c.Number,
		Text:   string(c.Text),
		Guid:   c.Guid,
	}
}

// encode returns the opaque token of the cursor.
func (c cursor) encode() string {
	payload, err := json.Marshal(c)
	if err != nil {
		// Only plain fields are marshaled.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(payload)
}

// decodeCursor parses the token and checks it was minted for the same listing.
func decodeCursor(token string, by SortBy, order SortOrder, fingerprint string) (cursor, error) {
	var c cursor

	payload, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return c, wlerror.Validation("malformed continuation token")
	}
	if err = json.Unmarshal(payload, &c); err != nil {
		return c, wlerror.Validation("malformed continuation token")
	}

	switch {
	case c.Version != cursorVersion:
		return c, wlerror.Validation("unsupported continuation token version %d", c.Version)
	case c.Guid == "":
		return c, wlerror.Validation("malformed continuation token")
	case c.SortBy != by || c.SortOrder != order:
		return c, wlerror.Validation("continuation token was issued for another sort")
	case c.Filter != fingerprint:
		return c, wlerror.Validation("continuation token was issued for another filter")
	}
	return c, nil
}

// fingerprint identifies the effective filter of a listing.
func fingerprint(f ListFilter, includeRestricted bool) string {
	var b strings.Builder
	for _, t := range partitions(f.ItemTypes) {
		b.WriteString(string(t))
		b.WriteByte(',')
	}
	fmt.Fprintf(&b, "\x00%s\x00%t", f.Search, includeRestricted)

	return fmt.Sprintf("%016x", xxh3.HashString(b.String()))
}
