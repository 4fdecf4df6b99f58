package service

import "github.com/efreitasn/papertrade/internal/domain"

// Listing pages default to DefaultPageLimit entries and never exceed
// MaxPageLimit.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page describes one page of a listing.
type Page struct {
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// normalizePage validates a 1-based page and a limit, filling defaults
// for zero values.
func normalizePage(page, limit int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = DefaultPageLimit
	}
	if page < 1 {
		return 0, 0, &domain.ValidationError{Message: "page must be >= 1"}
	}
	if limit < 1 || limit > MaxPageLimit {
		return 0, 0, &domain.ValidationError{Message: "limit must be between 1 and 100"}
	}
	return page, limit, nil
}

func newPage(page, limit, total int) Page {
	return Page{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}
}

func pageSlice[T any](items []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := min(start+limit, len(items))
	return items[start:end]
}
