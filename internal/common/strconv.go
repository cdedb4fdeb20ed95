package common

import (
	"net/url"
	"strconv"
	"strings"
)

// QueryInt reads an integer query parameter, returning def when it is
// missing or malformed.
func QueryInt(q url.Values, key string, def int) int {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
