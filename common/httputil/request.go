package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// GetClientIP extracts the client IP address from request headers, without port.
// It handles proxy scenarios by checking headers in this order:
//  1. X-Forwarded-For (first entry of the comma-separated list)
//  2. X-Real-IP
//  3. RemoteAddr
func GetClientIP(r *http.Request) string {
	ip := r.RemoteAddr
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		ip = strings.TrimSpace(parts[0])
	} else if xri := r.Header.Get("X-Real-IP"); xri != "" {
		ip = strings.TrimSpace(xri)
	}
	return stripPort(ip)
}

// RemoteIP returns the connection's peer address without port. Unlike
// GetClientIP it ignores client-supplied forwarding headers.
func RemoteIP(r *http.Request) string {
	return stripPort(r.RemoteAddr)
}

func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// ParseIntParam parses an integer query parameter with a default value.
// Returns defaultVal if the parameter is empty or invalid.
func ParseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return defaultVal
}

// Pagination represents common pagination parameters for API responses.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total,omitempty"`
}

// ParsePagination extracts page and limit from the query string, applying
// defaultLimit when absent and capping at maxLimit.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	page := ParseIntParam(r.URL.Query().Get("page"), 1)
	limit := ParseIntParam(r.URL.Query().Get("limit"), defaultLimit)

	if limit > maxLimit {
		limit = maxLimit
	}
	if limit < 1 {
		limit = max(defaultLimit, 1)
	}
	if page < 1 {
		page = 1
	}
	// Keep Offset from overflowing; a page this far out is empty anyway.
	if maxPage := math.MaxInt/limit + 1; page > maxPage {
		page = maxPage
	}

	return Pagination{
		Page:  page,
		Limit: limit,
	}
}

// Offset returns (page-1) * limit for use in SQL OFFSET clauses.
// ParsePagination bounds Page so the product cannot overflow.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// DecodeOptionalJSON decodes a JSON request body of at most maxBytes into v.
// An empty body leaves v untouched and is not an error.
func DecodeOptionalJSON(r *http.Request, maxBytes int64, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
