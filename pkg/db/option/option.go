package option

import (
	"fmt"
	"strings"
	"time"

	"fogsly/pkg/db/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption decorates a gorm query built by the generic repository.
type QueryOption func(*gorm.DB) *gorm.DB

type Operator string

const (
	EQ   Operator = "="
	NEQ  Operator = "<>"
	GT   Operator = ">"
	GTE  Operator = ">="
	LT   Operator = "<"
	LTE  Operator = "<="
	IN   Operator = "IN"
	LIKE Operator = "LIKE"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
}

// LockingUpdate is a scope adding SELECT ... FOR UPDATE to every query of the session.
// Dialects without row locks (sqlite) drop the clause.
func LockingUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func WithLockingUpdate() QueryOption {
	return LockingUpdate
}

func ApplyOperator(c Condition) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if c.Field == "" {
			return db
		}
		op := c.Operator
		if op == "" {
			op = EQ
		}
		if op == IN {
			return db.Where(fmt.Sprintf("%s IN ?", c.Field), c.Value)
		}
		return db.Where(fmt.Sprintf("%s %s ?", c.Field, op), c.Value)
	}
}

// WithSortBy orders by SortBy when it is allowed, falling back to created_at.
func WithSortBy(s QuerySortBy) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		column := "created_at"
		if s.SortBy != "" && (s.Allow == nil || s.Allow[s.SortBy]) {
			column = s.SortBy
		}

		desc := strings.EqualFold(s.OrderBy, "desc")
		return db.Order(clause.OrderByColumn{
			Column: clause.Column{Name: column},
			Desc:   desc,
		})
	}
}

func WithLimit(limit int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	}
}

// ApplyPagination applies a keyset cursor on (created_at, id) descending and fetches one
// extra row so callers can tell whether another page exists.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		limit := p.Size()

		if p.Cursor != "" {
			if cursor, err := pagination.DecodeCursor(p.Cursor); err == nil && cursor.ID != "" {
				if at, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt); err == nil {
					db = db.Where("((created_at < ?) OR (created_at = ? AND id < ?))", at, at, cursor.ID)
				}
			}
		}

		return db.Order("created_at DESC").Order("id DESC").Limit(limit + 1)
	}
}
