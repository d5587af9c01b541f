package core

import (
	"context"
	"math"
)

type (
	// Transactor runs fn inside a single unit of work.
	// Repositories called with the ctx given to fn take part in it; nothing fn wrote is kept when it
	// returns an error. Nested calls join the outer unit of work.
	Transactor interface {
		WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

const (
	// DefaultPageSize is the page size of paginated history listings.
	DefaultPageSize = 10
	maxPageSize     = 100
)

// Pagination is an offset based page request. Page is 1-based.
type Pagination struct {
	Page     int `query:"page"`
	PageSize int `query:"page_size"`
}

// Clean brings Page and PageSize into range. Page is capped so that Offset fits in an int32.
func (p Pagination) Clean() Pagination {
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	} else if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	if p.Page < 1 {
		p.Page = 1
	} else if maxPage := math.MaxInt32 / p.PageSize; p.Page > maxPage {
		p.Page = maxPage
	}
	return p
}

func (p Pagination) Offset() int {
	p = p.Clean()
	return (p.Page - 1) * p.PageSize
}

func (p Pagination) Limit() int {
	return p.Clean().PageSize
}

// PageInfo describes a returned page.
type PageInfo struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
	Pages    int `json:"pages"`
}

// NewPageInfo computes the page count as ceil(total / pageSize).
func NewPageInfo(p Pagination, total int) PageInfo {
	p = p.Clean()
	pages := total / p.PageSize
	if total%p.PageSize != 0 {
		pages++
	}
	return PageInfo{Page: p.Page, PageSize: p.PageSize, Total: total, Pages: pages}
}
