package domain

// PaginationParams carries page/limit values from the HTTP layer to the repo
// layer for reservation listings. Page is 1-indexed.
type PaginationParams struct {
	Page  int
	Limit int
}

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// NewPaginationParams builds a PaginationParams from optional query values.
// Nil or non-positive values fall back to page 1 and 50 rows; the limit is
// capped at 200.
func NewPaginationParams(page, limit *int) PaginationParams {
	p := PaginationParams{Page: 1, Limit: defaultPageLimit}
	if page != nil && *page >= 1 {
		p.Page = *page
	}
	if limit != nil && *limit >= 1 {
		p.Limit = min(*limit, maxPageLimit)
	}
	return p
}

// Offset returns the zero-based row offset for a SQL OFFSET clause.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}
