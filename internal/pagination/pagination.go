// Package pagination turns page/page_size/sort query parameters into gorm
// scopes and wraps list results with page metadata.
package pagination

import (
	"strings"

	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest holds pagination parameters parsed from query strings.
type PageRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Sort     string `form:"sort" binding:"omitempty,oneof=asc desc"`
}

// Defaults fills in default values when page or page_size are not provided.
func (p *PageRequest) Defaults() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
}

// Offset returns the SQL OFFSET for the current page.
func (p *PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Order is a list's natural ordering: the primary column and its default
// direction, plus tiebreak columns that follow the same direction.
type Order struct {
	Column   string
	Desc     bool
	Tiebreak []string
}

// clauses renders o, letting an explicit sort on the request flip the
// direction.
func (o Order) clauses(sort string) []string {
	desc := o.Desc
	switch strings.ToLower(sort) {
	case "asc":
		desc = false
	case "desc":
		desc = true
	}
	dir := " ASC"
	if desc {
		dir = " DESC"
	}
	out := make([]string, 0, 1+len(o.Tiebreak))
	out = append(out, o.Column+dir)
	for _, col := range o.Tiebreak {
		out = append(out, col+dir)
	}
	return out
}

// PageResponse wraps a paginated list of items with metadata.
type PageResponse[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPageResponse creates a PageResponse from the given data and total count.
func NewPageResponse[T any](data []T, page, pageSize int, totalItems int64) PageResponse[T] {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((totalItems + int64(pageSize) - 1) / int64(pageSize))
	}
	if data == nil {
		data = []T{}
	}
	return PageResponse[T]{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}
}

// Paginate returns a GORM scope that applies OFFSET and LIMIT for the given page request.
func Paginate(req PageRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(req.Offset()).Limit(req.PageSize)
	}
}

// Find counts the rows matched by base and loads the requested page in the
// given order. base must already carry its Model and filters.
func Find[T any](base *gorm.DB, req PageRequest, order Order) (*PageResponse[T], error) {
	req.Defaults()

	var totalItems int64
	if err := base.Session(&gorm.Session{}).Count(&totalItems).Error; err != nil {
		return nil, err
	}

	query := base.Session(&gorm.Session{}).Scopes(Paginate(req))
	for _, c := range order.clauses(req.Sort) {
		query = query.Order(c)
	}

	var rows []T
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	resp := NewPageResponse(rows, req.Page, req.PageSize, totalItems)
	return &resp, nil
}
