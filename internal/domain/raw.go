package domain

// RawRecord is one provider record as decoded from JSON. Values are any of
// nil, bool, float64, string, []any or map[string]any. Only the normalizer
// reads its fields.
type RawRecord map[string]any

// RawPage is a single page of provider results.
type RawPage struct {
	Category     Category
	Page         int
	TotalPages   int
	TotalResults int
	Records      []RawRecord
}

// GenreLookup maps provider genre ids to display names
type GenreLookup map[int]string
