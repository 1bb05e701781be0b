package models

// SearchTerm tracks how many distinct new products have ever been discovered
// for a (term, platform) pair. The count is monotonic; it is incremented by
// the number of is-new upserts in a run and never decremented or reset.
type SearchTerm struct {
	ID       int64  `json:"id" db:"id"`
	Term     string `json:"term" db:"term"`
	Platform string `json:"platform" db:"platform"`
	Count    int    `json:"count" db:"count"`
}
