package timers

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"timetrack-backend/pkg/apperr"
	"timetrack-backend/pkg/database"
	"timetrack-backend/pkg/models"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage keeps (page-1)*limit inside int for every accepted limit.
	MaxPage = math.MaxInt32 / MaxLimit
)

// ListQuery is a parsed GET /timers query string.
type ListQuery struct {
	Page   int
	Limit  int
	From   *time.Time
	To     *time.Time
	SortBy string
	Desc   bool
}

// Offset is the number of rows skipped before the requested page.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Page is one page of a timer listing.
type Page struct {
	Timers      []models.TimerView `json:"timers"`
	Total       int                `json:"total"`
	CurrentPage int                `json:"currentPage"`
	TotalPages  int                `json:"totalPages"`
	Limit       int                `json:"limit"`
}

// ParseListQuery validates page, limit, startDate, endDate, sortBy and
// sortOrder.
func ParseListQuery(values url.Values) (ListQuery, error) {
	q := ListQuery{Page: DefaultPage, Limit: DefaultLimit, SortBy: "startTime", Desc: true}

	var err error
	if q.Page, err = positiveInt(values, "page", DefaultPage); err != nil {
		return q, err
	}
	if q.Page > MaxPage {
		return q, apperr.BadRequest(fmt.Sprintf("page must not exceed %d", MaxPage))
	}
	if q.Limit, err = positiveInt(values, "limit", DefaultLimit); err != nil {
		return q, err
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}

	if raw := strings.TrimSpace(values.Get("startDate")); raw != "" {
		from, _, err := parseDate(raw)
		if err != nil {
			return q, apperr.BadRequest("startDate must be YYYY-MM-DD or RFC3339")
		}
		q.From = &from
	}
	if raw := strings.TrimSpace(values.Get("endDate")); raw != "" {
		to, dateOnly, err := parseDate(raw)
		if err != nil {
			return q, apperr.BadRequest("endDate must be YYYY-MM-DD or RFC3339")
		}
		if dateOnly {
			to = endOfDay(to)
		}
		q.To = &to
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return q, apperr.BadRequest("endDate must not be before startDate")
	}

	if sortBy := strings.TrimSpace(values.Get("sortBy")); sortBy != "" {
		if _, ok := database.TimerSortColumn(sortBy); !ok {
			return q, apperr.BadRequest(fmt.Sprintf("cannot sort by %q", sortBy))
		}
		q.SortBy = sortBy
	}
	switch strings.ToLower(strings.TrimSpace(values.Get("sortOrder"))) {
	case "", "desc":
		q.Desc = true
	case "asc":
		q.Desc = false
	default:
		return q, apperr.BadRequest("sortOrder must be asc or desc")
	}

	return q, nil
}

func positiveInt(values url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperr.BadRequest(fmt.Sprintf("%s must be a positive integer", key))
	}
	return n, nil
}

// parseDate accepts a calendar day (UTC midnight) or a full RFC3339 instant.
func parseDate(raw string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}

func endOfDay(day time.Time) time.Time {
	return day.Add(24*time.Hour - time.Millisecond)
}

func totalPages(total, limit int) int {
	if total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
