package storage

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hexleaf/prodex/pkg/product"
)

// ListOptions controls index scans. Filters match exactly against
// top-level index fields (id, title, sku, url, store_name, version) or
// metadata keys addressed as "metadata.<key>". Page numbers start at 1.
type ListOptions struct {
	Filters   map[string]string
	Page      int
	PageSize  int
	SortBy    string // index field name, default "id"
	SortOrder string // "asc" (default) or "desc"
}

// List scans the index, filters, sorts, paginates, and only then loads
// the matching records from disk.
func (e *Engine) List(opts ListOptions) ([]*product.ProductData, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 50
	}

	e.mu.Lock()
	entries := make([]IndexEntry, 0, len(e.index))
	for _, entry := range e.index {
		if matchesFilters(entry, opts.Filters) {
			entries = append(entries, entry)
		}
	}
	e.mu.Unlock()

	sortEntries(entries, opts.SortBy, opts.SortOrder)

	start := (opts.Page - 1) * opts.PageSize
	if start >= len(entries) {
		return nil, nil
	}
	end := start + opts.PageSize
	if end > len(entries) {
		end = len(entries)
	}

	out := make([]*product.ProductData, 0, end-start)
	for _, entry := range entries[start:end] {
		rec, err := e.readRecord(entry.ID)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", entry.ID, err)
		}
		out = append(out, &rec.ProductData)
	}
	return out, nil
}

func matchesFilters(entry IndexEntry, filters map[string]string) bool {
	for key, want := range filters {
		if metaKey, ok := strings.CutPrefix(key, "metadata."); ok {
			if entry.Metadata[metaKey] != want {
				return false
			}
			continue
		}
		if entryField(entry, key) != want {
			return false
		}
	}
	return true
}

func entryField(entry IndexEntry, field string) string {
	switch field {
	case "id":
		return entry.ID
	case "title":
		return entry.Title
	case "sku":
		return entry.SKU
	case "url":
		return entry.URL
	case "store_name":
		return entry.StoreName
	case "version":
		return strconv.Itoa(entry.Version)
	default:
		return ""
	}
}

func sortEntries(entries []IndexEntry, sortBy, order string) {
	if sortBy == "" {
		sortBy = "id"
	}
	desc := strings.EqualFold(order, "desc")

	sort.SliceStable(entries, func(i, j int) bool {
		var less bool
		switch {
		case sortBy == "version":
			less = entries[i].Version < entries[j].Version
		case strings.HasPrefix(sortBy, "metadata."):
			key := strings.TrimPrefix(sortBy, "metadata.")
			less = entries[i].Metadata[key] < entries[j].Metadata[key]
		default:
			less = entryField(entries[i], sortBy) < entryField(entries[j], sortBy)
		}
		if desc {
			return !less
		}
		return less
	})
}
