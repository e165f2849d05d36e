package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"finledger/internal/core"
)

const maxBodyBytes = 1 << 20

// Date accepts an RFC 3339 timestamp or a bare YYYY-MM-DD date in request
// bodies. Bare dates are midnight UTC.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return core.Invalidf("dates must be strings")
	}
	t, _, err := parseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// parseDate also reports whether s carried only a date.
func parseDate(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), false, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, core.Invalidf("invalid date %q: use RFC 3339 or YYYY-MM-DD", s)
}

// decodeJSON reads one JSON document from the body into dst. Every failure
// is a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, core.ErrValidation) {
			return err
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.Invalidf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return core.Invalidf("invalid JSON body: %v", err)
	}
	return nil
}

// pathID returns the {id} route variable. The routes only match digits, so
// anything unusable is reported as not found.
func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NotFoundf("no resource with id %q", raw)
	}
	return id, nil
}

// queryInt returns def when key is absent.
func queryInt(q url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.Invalidf("%s must be an integer", key)
	}
	return n, nil
}

// parsePaging reads page and limit. Out of range values are clamped by the
// ledger; only malformed numbers are rejected.
func parsePaging(q url.Values) (page, limit int, err error) {
	if page, err = queryInt(q, "page", 1); err != nil {
		return 0, 0, err
	}
	if limit, err = queryInt(q, "limit", core.DefaultPageSize); err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

// parseFilter reads start, end and account_id. An end given as a bare date
// includes that whole day.
func parseFilter(q url.Values) (core.TxFilter, error) {
	var f core.TxFilter
	if v := strings.TrimSpace(q.Get("start")); v != "" {
		t, _, err := parseDate(v)
		if err != nil {
			return f, err
		}
		f.From = t
	}
	if v := strings.TrimSpace(q.Get("end")); v != "" {
		t, dateOnly, err := parseDate(v)
		if err != nil {
			return f, err
		}
		if dateOnly {
			t = core.EndOfDay(t)
		}
		f.To = t
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, core.Invalidf("end must not be before start")
	}
	if v := strings.TrimSpace(q.Get("account_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return f, core.Invalidf("account_id must be a positive integer")
		}
		f.AccountID = id
	}
	return f, nil
}

// parseMonthYear defaults to the month containing now.
func parseMonthYear(q url.Values, now time.Time) (month, year int, err error) {
	if month, err = queryInt(q, "month", int(now.Month())); err != nil {
		return 0, 0, err
	}
	if year, err = queryInt(q, "year", now.Year()); err != nil {
		return 0, 0, err
	}
	if month < 1 || month > 12 {
		return 0, 0, core.ErrInvalidMonth
	}
	if year < 1 || year > 9999 {
		return 0, 0, core.Invalidf("year must be between 1 and 9999")
	}
	return month, year, nil
}
