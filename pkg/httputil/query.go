package httputil

import (
	"math"
	"net/http"
	"strconv"
	"strings"
)

// QueryString returns the trimmed value of a query parameter.
func QueryString(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// QueryBool parses a boolean query parameter. Absent or unparseable values are false.
func QueryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(QueryString(r, key))
	return err == nil && v
}

// QueryFloat parses an optional float query parameter. Absent, non-numeric
// and non-finite values all yield nil.
func QueryFloat(r *http.Request, key string) *float64 {
	v, err := strconv.ParseFloat(QueryString(r, key), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
