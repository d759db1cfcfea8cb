package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"dindion/internal/core"
)

const (
	maxBodyBytes = 64 << 10
	// SessionCookie carries the session token for browser clients.
	SessionCookie = "session"
)

// errBadRequest marks a body or parameter that could not be parsed at all.
var errBadRequest = errors.New("malformed request")

// Selection is the filter and month a summary screen is showing.
type Selection struct {
	Filter core.FilterType
	Month  core.YearMonth // zero means "let the catalog decide"
}

// DecodeJSON reads one JSON object from r into dst. Unknown fields and
// trailing data are rejected.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("%w: empty body", errBadRequest)
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes+1))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errBadRequest)
	}
	return nil
}

// ParseSelection reads the type and month query parameters.
func ParseSelection(q url.Values) (Selection, error) {
	filter, err := core.ParseFilterType(q.Get("type"))
	if err != nil {
		return Selection{}, err
	}
	sel := Selection{Filter: filter}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		m, err := core.ParseYearMonth(v)
		if err != nil {
			return Selection{}, fmt.Errorf("%w: %v", core.ErrValidation, err)
		}
		sel.Month = m
	}
	return sel, nil
}

// ParseBoolParam reads an optional boolean query parameter.
func ParseBoolParam(q url.Values, key string) (bool, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false", errBadRequest, key)
	}
	return b, nil
}

// SessionToken returns the bearer token of r, falling back to the session cookie.
func SessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}
