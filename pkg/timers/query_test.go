package timers

import (
	"net/url"
	"testing"
	"time"

	"timetrack-backend/pkg/apperr"
)

func TestParseListQueryDefaults(t *testing.T) {
	q, err := ParseListQuery(url.Values{})
	if err != nil {
		t.Fatalf("ParseListQuery: %v", err)
	}
	if q.Page != 1 || q.Limit != 10 || q.SortBy != "startTime" || !q.Desc {
		t.Fatalf("unexpected defaults: %+v", q)
	}
	if q.From != nil || q.To != nil {
		t.Fatalf("dates set without input: %+v", q)
	}
}

func TestParseListQueryRejectsBadInput(t *testing.T) {
	cases := map[string]url.Values{
		"page zero":        {"page": {"0"}},
		"page not integer": {"page": {"two"}},
		"page overflows":   {"page": {"9223372036854775807"}},
		"page past max":    {"page": {"21474837"}},
		"negative limit":   {"limit": {"-5"}},
		"fractional limit": {"limit": {"2.5"}},
		"bad start date":   {"startDate": {"15/01/2024"}},
		"bad end date":     {"endDate": {"yesterday"}},
		"unknown sort":     {"sortBy": {"password"}},
		"bad sort order":   {"sortOrder": {"sideways"}},
		"inverted range":   {"startDate": {"2024-01-16"}, "endDate": {"2024-01-15"}},
	}
	for name, values := range cases {
		values := values
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseListQuery(values); !apperr.Is(err, apperr.KindBadRequest) {
				t.Fatalf("err = %v, want BadRequest", err)
			}
		})
	}
}

func TestParseListQuerySingleDay(t *testing.T) {
	q, err := ParseListQuery(url.Values{"startDate": {"2024-01-15"}, "endDate": {"2024-01-15"}})
	if err != nil {
		t.Fatalf("ParseListQuery: %v", err)
	}
	wantFrom := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2024, 1, 15, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	if !q.From.Equal(wantFrom) || !q.To.Equal(wantTo) {
		t.Fatalf("range = %v..%v, want %v..%v", q.From, q.To, wantFrom, wantTo)
	}
}

func TestParseListQueryPagingAndSort(t *testing.T) {
	q, err := ParseListQuery(url.Values{
		"page": {"2"}, "limit": {"500"}, "sortBy": {"duration"}, "sortOrder": {"ASC"},
		"endDate": {"2024-01-15T12:00:00+02:00"},
	})
	if err != nil {
		t.Fatalf("ParseListQuery: %v", err)
	}
	if q.Limit != MaxLimit || q.Offset() != MaxLimit {
		t.Fatalf("limit=%d offset=%d", q.Limit, q.Offset())
	}
	if q.SortBy != "duration" || q.Desc {
		t.Fatalf("sort = %s desc=%v", q.SortBy, q.Desc)
	}
	if want := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC); !q.To.Equal(want) {
		t.Fatalf("RFC3339 end = %v, want %v", q.To, want)
	}
}

func TestParseListQueryLastPageOffset(t *testing.T) {
	q, err := ParseListQuery(url.Values{"page": {"21474836"}, "limit": {"100"}})
	if err != nil {
		t.Fatalf("ParseListQuery: %v", err)
	}
	if q.Offset() < 0 {
		t.Fatalf("offset = %d, want non-negative", q.Offset())
	}
}

func TestTotalPages(t *testing.T) {
	for _, tc := range []struct{ total, limit, want int }{
		{0, 10, 0}, {1, 10, 1}, {10, 10, 1}, {25, 10, 3},
	} {
		if got := totalPages(tc.total, tc.limit); got != tc.want {
			t.Errorf("totalPages(%d, %d) = %d, want %d", tc.total, tc.limit, got, tc.want)
		}
	}
}
