package models

// RunFilter represents filter parameters for listing runs
type RunFilter struct {
	Status   string `form:"status"` // pending, running, completed, failed
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}

// StopFilter represents filter parameters for querying the stops of a run
type StopFilter struct {
	MinDuration int64   `form:"minDuration"` // Seconds
	Geohash     string  `form:"geohash"`     // Prefix of the stop geohash
	Lat         float64 `form:"lat"`         // With Lon and Radius, a proximity filter
	Lon         float64 `form:"lon"`
	Radius      float64 `form:"radius"` // Meters
	Page        int     `form:"page"`
	PageSize    int     `form:"pageSize"`
}

// RouteFilter represents filter parameters for querying the routes of a run
type RouteFilter struct {
	MinDistance float64 `form:"minDistance"` // Meters
	Page        int     `form:"page"`
	PageSize    int     `form:"pageSize"`
}

// Paged is one page of a listing
type Paged[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
}

// NewPaged wraps data with pagination metadata.
func NewPaged[T any](data []T, total int64, page, pageSize int) Paged[T] {
	if data == nil {
		data = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return Paged[T]{Data: data, Total: total, Page: page, PageSize: pageSize, TotalPages: totalPages}
}

// Normalize clamps page and pageSize to [1, ...] and [1, 1000], defaulting pageSize to 100.
func Normalize(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 100
	}
	if pageSize > 1000 {
		pageSize = 1000
	}
	return page, pageSize
}
