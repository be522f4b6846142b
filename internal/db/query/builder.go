package query

import (
	"sort"
	"strings"
	"time"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
)

// FieldFunc extracts the value of an orderable field from a record.
type FieldFunc[T any] func(record T, field string) interface{}

// Builder evaluates filters, ordering and pagination over in-memory records.
type Builder[T any] struct {
	field FieldFunc[T]
}

// NewBuilder creates a new query builder for a record type
func NewBuilder[T any](field FieldFunc[T]) *Builder[T] {
	return &Builder[T]{field: field}
}

// Filter keeps the records accepted by every predicate.
func (b *Builder[T]) Filter(records []T, preds ...func(T) bool) []T {
	if len(preds) == 0 {
		return records
	}
	filtered := make([]T, 0, len(records))
outer:
	for _, r := range records {
		for _, p := range preds {
			if !p(r) {
				continue outer
			}
		}
		filtered = append(filtered, r)
	}
	return filtered
}

// ApplySort sorts records by each OrderBy in turn.
// The sort is stable, so records equal on every key keep their input order.
func (b *Builder[T]) ApplySort(records []T, orderBy []interfaces.OrderBy) []T {
	if len(orderBy) == 0 {
		return records
	}

	sorted := make([]T, len(records))
	copy(sorted, records)

	sort.SliceStable(sorted, func(i, j int) bool {
		for _, order := range orderBy {
			cmp := Compare(b.field(sorted[i], order.Field), b.field(sorted[j], order.Field))
			if cmp == 0 {
				continue
			}
			if order.Direction == interfaces.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})

	return sorted
}

// ApplyPagination applies limit and offset to the records
func (b *Builder[T]) ApplyPagination(records []T, limit, offset *int) []T {
	start := 0
	if offset != nil && *offset > 0 {
		start = *offset
	}

	if start >= len(records) {
		return []T{}
	}

	end := len(records)
	if limit != nil {
		end = start + *limit
		if end > len(records) {
			end = len(records)
		}
		if end < start {
			end = start
		}
	}

	return records[start:end]
}

// Compare orders two values of the same kind. Mismatched or unknown kinds compare equal.
func Compare(a, other interface{}) int {
	switch av := a.(type) {
	case int:
		if bv, ok := other.(int); ok {
			return cmpOrdered(av, bv)
		}
	case int64:
		if bv, ok := other.(int64); ok {
			return cmpOrdered(av, bv)
		}
	case float64:
		if bv, ok := other.(float64); ok {
			return cmpOrdered(av, bv)
		}
	case string:
		if bv, ok := other.(string); ok {
			return strings.Compare(av, bv)
		}
	case time.Time:
		if bv, ok := other.(time.Time); ok {
			return av.Compare(bv)
		}
	}
	return 0
}

func cmpOrdered[N int | int64 | float64](a, b N) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ContainsID reports whether id is in ids.
func ContainsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
