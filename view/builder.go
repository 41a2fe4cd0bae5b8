// Package view turns the raw product stream into what a list screen shows:
// one row per logical product, filtered by the search query and sorted.
package view

import (
	"sort"
	"strings"

	"github.com/c0deZ3R0/productsync/synckit"
)

// Sort orders the built list.
type Sort string

const (
	// SortNone keeps store order (newest first).
	SortNone        Sort = ""
	SortByName      Sort = "name"
	SortByPriceAsc  Sort = "price_asc"
	SortByPriceDesc Sort = "price_desc"
)

// ParseSort maps a user supplied name onto a Sort.
func ParseSort(s string) (Sort, bool) {
	switch Sort(strings.ToLower(strings.TrimSpace(s))) {
	case SortNone, "none":
		return SortNone, true
	case SortByName:
		return SortByName, true
	case SortByPriceAsc, "price":
		return SortByPriceAsc, true
	case SortByPriceDesc:
		return SortByPriceDesc, true
	}
	return SortNone, false
}

// Options controls Build.
type Options struct {
	Query string
	// Type limits the list to one product type. Empty means all.
	Type synckit.ProductType
	Sort Sort
}

// Build dedups records by stable key, keeps those matching opts and sorts
// them. Within a key group the first non-pending record wins; groups keep the
// order in which their key was first seen. The input is not modified.
func Build(records []synckit.ProductRecord, opts Options) []synckit.ProductRecord {
	out := Dedup(records)
	out = Filter(out, opts.Query, opts.Type)
	SortRecords(out, opts.Sort)
	return out
}

// Dedup collapses records sharing a stable key.
func Dedup(records []synckit.ProductRecord) []synckit.ProductRecord {
	index := make(map[synckit.StableKey]int, len(records))
	out := make([]synckit.ProductRecord, 0, len(records))

	for _, r := range records {
		k := r.Key()
		i, seen := index[k]
		if !seen {
			index[k] = len(out)
			out = append(out, r)
			continue
		}
		if out[i].IsPending && !r.IsPending {
			out[i] = r
		}
	}
	return out
}

// Filter keeps records whose name or type contains query, case-insensitively,
// and whose type equals typ when typ is set. A blank query matches all.
func Filter(records []synckit.ProductRecord, query string, typ synckit.ProductType) []synckit.ProductRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	want := strings.TrimSpace(string(typ))
	if q == "" && want == "" {
		return records
	}

	out := records[:0:0]
	for _, r := range records {
		if want != "" && !strings.EqualFold(strings.TrimSpace(string(r.Type)), want) {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(r.Name), q) &&
			!strings.Contains(strings.ToLower(string(r.Type)), q) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SortRecords sorts in place. Equal elements keep their order.
func SortRecords(records []synckit.ProductRecord, by Sort) {
	var less func(a, b synckit.ProductRecord) bool
	switch by {
	case SortByName:
		less = func(a, b synckit.ProductRecord) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	case SortByPriceAsc:
		less = func(a, b synckit.ProductRecord) bool { return a.Price.LessThan(b.Price) }
	case SortByPriceDesc:
		less = func(a, b synckit.ProductRecord) bool { return a.Price.GreaterThan(b.Price) }
	default:
		return
	}
	sort.SliceStable(records, func(i, j int) bool { return less(records[i], records[j]) })
}
