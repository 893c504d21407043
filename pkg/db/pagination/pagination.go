package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 250
)

var ErrInvalidToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size,default=10" validate:"gte=1,lte=250"`
}

// Size clamps the requested page size into [1, MaxPageSize].
func (p Pagination) Size() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	}
	return p.PageSize
}

// Cursor is the keyset position of the last row on a page. Rows are listed
// newest first, so the next page continues strictly below it.
type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type wireCursor struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

// Encode renders the cursor as an opaque URL-safe token.
func (c Cursor) Encode() string {
	b, _ := json.Marshal(wireCursor{
		ID:        c.ID.String(),
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor returns (nil, nil) for an empty token.
func DecodeCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var wire wireCursor
	if err := json.Unmarshal(b, &wire); err != nil {
		return nil, ErrInvalidToken
	}
	id, err := snowflake.ParseString(wire.ID)
	if err != nil || id == 0 {
		return nil, ErrInvalidToken
	}
	createdAt, err := time.Parse(time.RFC3339Nano, wire.CreatedAt)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return &Cursor{ID: id, CreatedAt: createdAt}, nil
}

// Trim cuts rows fetched with limit+1 down to one page and reports whether a
// further page exists, with its token taken from the last kept row.
func Trim[T any](rows []*T, limit int, position func(*T) Cursor) ([]T, PageInfo) {
	info := PageInfo{}
	if len(rows) > limit {
		rows = rows[:limit]
		info.HasMore = true
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			out = append(out, *row)
		}
	}
	if info.HasMore && len(rows) > 0 {
		info.NextPageToken = position(rows[len(rows)-1]).Encode()
	}
	return out, info
}
