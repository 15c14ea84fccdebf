package wall

import (
	"math"
	"strings"
)

// DefaultPerPage is used when a page request carries no page size.
const DefaultPerPage = 10

// Filter selects a subset of the wall by content marker.
type Filter string

// Known filters. Anything else behaves like FilterLatest.
const (
	FilterLatest Filter = "latest"
	FilterLove   Filter = "love"
	FilterGossip Filter = "gossip"
)

// marker returns the literal substring a post's content must contain, or
// "" for no filtering.
func (f Filter) marker() string {
	switch f {
	case FilterLove:
		return "#表白#"
	case FilterGossip:
		return "#八卦#"
	default:
		return ""
	}
}

// Apply keeps the posts whose content contains the filter's marker,
// preserving order. FilterLatest returns the input unchanged.
func (f Filter) Apply(posts []*Post) []*Post {
	marker := f.marker()
	if marker == "" {
		return posts
	}
	kept := []*Post{}
	for _, p := range posts {
		if strings.Contains(p.Content, marker) {
			kept = append(kept, p)
		}
	}
	return kept
}

// PageResult is one page of an ordered sequence plus pagination metadata.
// Totals always reflect the (possibly filtered) sequence that was
// paginated, so filtering must happen before Paginate.
type PageResult struct {
	Data       []*Post `json:"data"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	PerPage    int     `json:"per_page"`
	TotalPages int     `json:"total_pages"`
	HasMore    bool    `json:"has_more"`
}

// Paginate slices one 1-indexed page out of posts.
//
// Out-of-range pages are a valid empty result, not an error. page < 1 is
// treated as page 1 and perPage < 1 as DefaultPerPage.
func Paginate(posts []*Post, page, perPage int) PageResult {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}

	total := len(posts)
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	result := PageResult{
		Data:       []*Post{},
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}

	start := (page - 1) * perPage
	if start >= total {
		result.HasMore = false
		return result
	}
	end := min(start+perPage, total)
	result.Data = posts[start:end]
	return result
}
