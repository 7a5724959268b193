package domain

import "time"

// APIMetadata is per-API bookkeeping. It is an optimisation and reporting
// surface only; retrieval never depends on it.
type APIMetadata struct {
	// APIID identifies the API namespace.
	APIID string

	// SpecLocation is the best-known source of the full specification:
	// a file path, an http(s) URL, or a github:// location.
	SpecLocation string

	// LastFetched is when the specification was last fetched.
	LastFetched time.Time

	// ETag is the validator returned by the last fetch, if any.
	ETag string

	// Version is the info.version field of the specification.
	Version string

	// FragmentCount is a denormalised fragment count.
	FragmentCount int

	// TotalUsage is a denormalised sum of fragment usage counters.
	TotalUsage int
}

// APIStats aggregates usage for one API.
type APIStats struct {
	APIID          string
	TotalFragments int
	FragmentStats  map[FragmentType]int
	TotalUsage     int
	AverageUsage   float64

	// LastUsed is the most recent usage across all fragments. Zero if none.
	LastUsed time.Time
}

// EmptyAPIStats returns zeroed stats for an API with no fragments.
func EmptyAPIStats(apiID string) APIStats {
	return APIStats{
		APIID:         apiID,
		FragmentStats: map[FragmentType]int{},
	}
}
