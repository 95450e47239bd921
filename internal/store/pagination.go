package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/user/vidtube-go/internal/apperr"
	"gorm.io/gorm"
)

const (
	// MaxPageSize bounds every list call
	MaxPageSize = 100
	// DefaultVideoPageSize is used when a video listing omits limit
	DefaultVideoPageSize = 15
	// DefaultCommentPageSize is used when a comment listing omits limit
	DefaultCommentPageSize = 10
)

// Page is one page of a cursor-paginated listing
type Page[T any] struct {
	Items      []T     `json:"items"`
	NextCursor *string `json:"nextCursor"`
	TotalCount *int64  `json:"totalCount,omitempty"`
}

// Cursor is the position after the last row of a page ordered by
// (updated_at DESC, id DESC)
type Cursor struct {
	ID        uuid.UUID `json:"id"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TrendingCursor is the position after the last row of a page ordered by
// (view_count DESC, id DESC)
type TrendingCursor struct {
	ID        uuid.UUID `json:"id"`
	ViewCount int64     `json:"viewCount"`
}

// Encode returns the opaque wire form of the cursor
func (c Cursor) Encode() string {
	return encodeCursor(c)
}

// Encode returns the opaque wire form of the cursor
func (c TrendingCursor) Encode() string {
	return encodeCursor(c)
}

func encodeCursor(v interface{}) string {
	data, _ := json.Marshal(v)
	return base64.RawURLEncoding.EncodeToString(data)
}

// decodeCursor accepts the opaque base64url form as well as the raw JSON
// object, so clients that echo a structured cursor keep working.
func decodeCursor(raw string, v interface{}) error {
	raw = strings.TrimSpace(raw)
	data := []byte(raw)
	if !strings.HasPrefix(raw, "{") {
		decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
		if err != nil {
			return apperr.BadRequest("invalid cursor")
		}
		data = decoded
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.BadRequest("invalid cursor")
	}
	return nil
}

// DecodeCursor parses a wire cursor. An empty string means the first page.
func DecodeCursor(raw string) (*Cursor, error) {
	if raw == "" {
		return nil, nil
	}
	var c Cursor
	if err := decodeCursor(raw, &c); err != nil {
		return nil, err
	}
	if c.ID == uuid.Nil || c.UpdatedAt.IsZero() {
		return nil, apperr.BadRequest("invalid cursor")
	}
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

// DecodeTrendingCursor parses a wire trending cursor. An empty string means
// the first page.
func DecodeTrendingCursor(raw string) (*TrendingCursor, error) {
	if raw == "" {
		return nil, nil
	}
	var c TrendingCursor
	if err := decodeCursor(raw, &c); err != nil {
		return nil, err
	}
	if c.ID == uuid.Nil || c.ViewCount < 0 {
		return nil, apperr.BadRequest("invalid cursor")
	}
	return &c, nil
}

// NormalizeLimit applies the default when limit is absent (nil) and
// rejects any supplied value outside 1..MaxPageSize, zero included.
func NormalizeLimit(limit *int, def int) (int, error) {
	if limit == nil {
		return def, nil
	}
	if *limit < 1 || *limit > MaxPageSize {
		return 0, apperr.BadRequest(fmt.Sprintf("limit must be between 1 and %d", MaxPageSize))
	}
	return *limit, nil
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// applyCursor adds the keyset predicate and the stable ordering for table
func applyCursor(db *gorm.DB, table string, cursor *Cursor) *gorm.DB {
	if cursor != nil {
		db = db.Where(
			fmt.Sprintf("(%[1]s.updated_at < ? OR (%[1]s.updated_at = ? AND %[1]s.id < ?))", table),
			cursor.UpdatedAt, cursor.UpdatedAt, cursor.ID,
		)
	}
	return db.Order(table + ".updated_at DESC").Order(table + ".id DESC")
}

// trimPage drops the probe row fetched beyond limit and derives the next
// cursor from the last row that is kept.
func trimPage[T any](rows []T, limit int, cursorOf func(T) string) *Page[T] {
	page := &Page[T]{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		next := cursorOf(page.Items[limit-1])
		page.NextCursor = &next
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page
}
