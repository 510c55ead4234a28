// Package stats reduces directory entries into the metrics shown on category
// and location pages.
package stats

import (
	"sort"

	"github.com/gtmquest/directory-service/internal/model"
)

// DefaultTopTagLimit is the number of tags returned when Options leaves it unset
const DefaultTopTagLimit = 5

// Options controls a single Summarize call
type Options struct {
	// FallbackAverage is reported when no entry carries a minimum budget
	FallbackAverage float64
	TopTagLimit     int
}

// NewOptions returns options with the given fallback and the default tag limit
func NewOptions(fallbackAverage float64) Options {
	return Options{
		FallbackAverage: fallbackAverage,
		TopTagLimit:     DefaultTopTagLimit,
	}
}

// WithTopTagLimit returns a copy of the options with a different tag limit.
// Non-positive limits fall back to DefaultTopTagLimit.
func (o Options) WithTopTagLimit(limit int) Options {
	o.TopTagLimit = limit
	return o
}

func (o Options) topTagLimit() int {
	if o.TopTagLimit < 1 {
		return DefaultTopTagLimit
	}
	return o.TopTagLimit
}

// TagCount is a tag with the number of times it occurred
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Summarize computes the count, average minimum budget and top tags for entries.
// It never fails and never modifies entries.
func Summarize(entries []model.DirectoryEntry, opts Options) model.DirectorySummary {
	summary := model.DirectorySummary{
		TotalCount:           len(entries),
		AverageMinimumBudget: AverageMinimumBudget(entries, opts.FallbackAverage),
		TopTags:              []string{},
	}

	limit := opts.topTagLimit()
	for _, tc := range TagCounts(entries) {
		if len(summary.TopTags) == limit {
			break
		}
		summary.TopTags = append(summary.TopTags, tc.Tag)
	}

	return summary
}

// AverageMinimumBudget averages the budgets that are present, or returns
// fallback when none are
func AverageMinimumBudget(entries []model.DirectoryEntry, fallback float64) float64 {
	var sum float64
	var present int
	for i := range entries {
		if entries[i].MinimumBudget == nil {
			continue
		}
		sum += *entries[i].MinimumBudget
		present++
	}

	if present == 0 {
		return fallback
	}
	return sum / float64(present)
}

// TagCounts ranks every tag by occurrence count, highest first. Each
// occurrence counts, including repeats inside one entry. Equal counts keep the
// order in which the tags were first seen.
func TagCounts(entries []model.DirectoryEntry) []TagCount {
	index := make(map[string]int)
	counts := []TagCount{}

	for i := range entries {
		for _, tag := range entries[i].Tags {
			pos, ok := index[tag]
			if !ok {
				pos = len(counts)
				index[tag] = pos
				counts = append(counts, TagCount{Tag: tag})
			}
			counts[pos].Count++
		}
	}

	sort.SliceStable(counts, func(a, b int) bool {
		return counts[a].Count > counts[b].Count
	})

	return counts
}
