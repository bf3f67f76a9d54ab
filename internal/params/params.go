package params

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 20
	MaxLimit     = 50
)

// Pagination maps ?page=&limit= to LIMIT/OFFSET and carries the page metadata
// returned with list responses.
type Pagination struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"-"`
	Page       int  `json:"page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// ParsePagination reads limit and page. Bad values fall back to the defaults
// and limit is capped at MaxLimit.
func ParsePagination(q url.Values) Pagination {
	p := Pagination{Limit: DefaultLimit, Page: 1}

	if limit, err := strconv.Atoi(strings.TrimSpace(q.Get("limit"))); err == nil {
		switch {
		case limit <= 0:
		case limit > MaxLimit:
			p.Limit = MaxLimit
		default:
			p.Limit = limit
		}
	}

	if page, err := strconv.Atoi(strings.TrimSpace(q.Get("page"))); err == nil && page > 0 {
		p.Page = page
	}

	p.Offset = (p.Page - 1) * p.Limit
	return p
}

// ComputeMeta fills the metadata once the total row count is known.
func (p *Pagination) ComputeMeta(total int) {
	p.Total = total
	if p.Limit > 0 {
		p.TotalPages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	p.HasPrev = p.Page > 1
	p.HasNext = p.Page*p.Limit < total
}
