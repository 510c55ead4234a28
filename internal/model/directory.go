package model

// DirectoryEntry is one listed agency as seen by the statistics engine
type DirectoryEntry struct {
	ID            string   `json:"id"`
	MinimumBudget *float64 `json:"minimum_budget,omitempty" binding:"omitempty,min=0"`
	Tags          []string `json:"tags" binding:"omitempty,dive,required"`
}

// DirectorySummary holds the display metrics for a collection of entries
type DirectorySummary struct {
	TotalCount           int      `json:"total_count"`
	AverageMinimumBudget float64  `json:"average_minimum_budget"`
	TopTags              []string `json:"top_tags"`
}
