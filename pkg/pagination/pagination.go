package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultSkip  = 0
	DefaultLimit = 100
	MaxLimit     = 1000
	MinLimit     = 1
)

// Params holds validated skip/limit parameters
type Params struct {
	Skip  int
	Limit int
}

// Parse extracts and validates skip/limit from query parameters
func Parse(c *gin.Context) Params {
	skip, err := strconv.Atoi(c.DefaultQuery("skip", strconv.Itoa(DefaultSkip)))
	if err != nil || skip < 0 {
		skip = DefaultSkip
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))
	if err != nil || limit < MinLimit {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{Skip: skip, Limit: limit}
}

// Page is the list envelope returned by paginated endpoints.
// Total counts the returned items only; HasNext assumes more rows exist
// whenever a full page came back.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// NewPage wraps a result slice fetched with p.
func NewPage[T any](items []T, p Params) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:   items,
		Total:   len(items),
		Page:    p.Skip,
		Limit:   p.Limit,
		HasNext: len(items) == p.Limit,
		HasPrev: p.Skip > 0,
	}
}
