package pagination

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

type Pagination struct {
	Cursor string `form:"cursor" json:"cursor"`
	Limit  int    `form:"limit,default=10" json:"limit"`
}

// Size returns the page size clamped to 1..250, defaulting to 10.
func (p Pagination) Size() int {
	switch {
	case p.Limit <= 0:
		return 10
	case p.Limit > 250:
		return 250
	default:
		return p.Limit
	}
}

type Cursor struct {
	CreatedAt string `json:"created_at,omitempty"`
	ID        string `json:"id,omitempty"`
}

type PageInfo struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return base64.URLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}

	return &cursor, nil
}

// CursorOf builds the opaque cursor pointing at a row.
func CursorOf(createdAt time.Time, id string) string {
	c, _ := EncodeCursor(Cursor{CreatedAt: createdAt.UTC().Format(time.RFC3339Nano), ID: id})
	return c
}

// BuildCursorPage trims the extra row fetched by option.ApplyPagination and reports
// the cursor of the last returned row.
func BuildCursorPage[T any](data []*T, limit int, extractCursor func(*T) string) ([]*T, *PageInfo) {
	if limit <= 0 {
		limit = 10
	}
	if len(data) == 0 {
		return data, &PageInfo{HasMore: false}
	}

	hasMore := false
	if len(data) > limit {
		hasMore = true
		data = data[:limit]
	}

	info := &PageInfo{HasMore: hasMore}
	if hasMore {
		info.NextCursor = extractCursor(data[len(data)-1])
	}

	return data, info
}
