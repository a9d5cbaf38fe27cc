package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// Pagination defaults shared by every list endpoint.
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// ParseJSON decodes JSON from the request body into the destination
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParsePathInt64 extracts and parses an int64 path parameter
func ParsePathInt64(r *http.Request, key string) (int64, error) {
	vars := mux.Vars(r)
	str := vars[key]
	if str == "" {
		return 0, fmt.Errorf("missing path parameter: %s", key)
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryInt64 extracts and parses an int64 query parameter
func ParseQueryInt64(r *http.Request, key string, defaultVal int64) (int64, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryString extracts a string query parameter
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// ParsePagination reads the page and limit query parameters. Messages are
// client-facing, so they keep their sentence casing.
func ParsePagination(r *http.Request, maxLimit int) (page, limit int, err error) {
	page, err = ParseQueryInt(r, "page", DefaultPage)
	if err != nil || page < 1 {
		return 0, 0, errors.New("Page must be greater than 0")
	}
	limit, err = ParseQueryInt(r, "limit", DefaultLimit)
	if err != nil || limit < 1 || limit > maxLimit {
		return 0, 0, fmt.Errorf("Limit must be between 1 and %d", maxLimit)
	}
	return page, limit, nil
}
