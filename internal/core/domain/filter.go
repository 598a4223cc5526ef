package domain

// DocumentFilter narrows catalog listings for operational tooling.
type DocumentFilter struct {
	Status     IngestionStatus
	SourceType SourceType
	SearchText string
}

type DocumentPage struct {
	Documents []CatalogEntry `json:"documents"`
	Total     int            `json:"total"`
}

// SourceGroup aggregates per-status counts for one origin group.
type SourceGroup struct {
	SourceName string `json:"source_name"`
	Total      int    `json:"total"`
	Pending    int    `json:"pending"`
	Embedding  int    `json:"embedding"`
	Embedded   int    `json:"embedded"`
	Failed     int    `json:"failed"`
}

type GroupedStatus struct {
	StatusCounts map[IngestionStatus]int `json:"status_counts"`
	Groups       []SourceGroup           `json:"groups"`
}
