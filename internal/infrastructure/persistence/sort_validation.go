package persistence

import (
	"strings"
)

// SortColumns whitelists the columns a listing may be ordered by. Anything
// else in a request falls back to the listing's default order.
type SortColumns map[string]bool

// OrderClause builds "<column> <ASC|DESC>". The direction is only taken from
// the request when the request also names an allowed column.
func (s SortColumns) OrderClause(field, dir, defaultField, defaultDir string) string {
	field = strings.TrimSpace(field)
	if field == "" || !s[field] {
		return defaultField + " " + defaultDir
	}
	if strings.EqualFold(strings.TrimSpace(dir), "ASC") {
		return field + " ASC"
	}
	return field + " DESC"
}
