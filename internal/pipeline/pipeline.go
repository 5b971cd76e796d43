// Package pipeline orders and filters table rows without touching the cache
// they came from.
package pipeline

import (
	"cmp"
	"slices"
	"strings"

	"meshdash/internal/model"
)

// ColumnKind selects the comparator used for a column.
type ColumnKind int

const (
	Text ColumnKind = iota
	Date
)

// SortState is the active sort of one table. A nil *SortState means
// unsorted (server order).
type SortState struct {
	Column    int
	Ascending bool
}

// Toggle returns the sort state after a header click on col: the same
// column flips direction, another column starts ascending.
func Toggle(current *SortState, col int) *SortState {
	if current != nil && current.Column == col {
		return &SortState{Column: col, Ascending: !current.Ascending}
	}
	return &SortState{Column: col, Ascending: true}
}

// Table describes the comparison keys of a row type, one per visible column.
type Table[T any] struct {
	Kinds []ColumnKind
	Keys  func(T) []string
}

type keyedRow[T any] struct {
	row  T
	keys []string
}

// Apply filters rows by a case-insensitive substring of their joined keys
// and then stable-sorts them by the given state. rows is never modified.
func (t Table[T]) Apply(rows []T, sort *SortState, filter string) []T {
	needle := strings.ToLower(filter)
	items := make([]keyedRow[T], 0, len(rows))
	for _, row := range rows {
		keys := t.Keys(row)
		if needle != "" && !strings.Contains(strings.ToLower(strings.Join(keys, " ")), needle) {
			continue
		}
		items = append(items, keyedRow[T]{row: row, keys: keys})
	}

	if sort != nil && sort.Column >= 0 && sort.Column < len(t.Kinds) {
		col := sort.Column
		kind := t.Kinds[col]
		slices.SortStableFunc(items, func(a, b keyedRow[T]) int {
			c := compareKeys(kind, keyAt(a.keys, col), keyAt(b.keys, col))
			if !sort.Ascending {
				return -c
			}
			return c
		})
	}

	out := make([]T, len(items))
	for i, item := range items {
		out[i] = item.row
	}
	return out
}

// Matches reports whether a row passes the filter.
func (t Table[T]) Matches(row T, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(strings.Join(t.Keys(row), " ")), strings.ToLower(filter))
}

func keyAt(keys []string, i int) string {
	if i < len(keys) {
		return keys[i]
	}
	return ""
}

func compareKeys(kind ColumnKind, a, b string) int {
	if kind == Date {
		return cmp.Compare(model.EpochMillis(a), model.EpochMillis(b))
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
