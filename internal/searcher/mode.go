package searcher

// Mode is the search configuration derived from the configured backends
type Mode string

const (
	ModeVector       Mode = "vector"       // Embedding + vector index only
	ModeKeyword      Mode = "keyword"      // Keyword extraction + full-text store only
	ModeCombined     Mode = "combined"     // Both legs, results merged
	ModeUnconfigured Mode = "unconfigured" // No backend; every search fails
)

// ResolveMode maps backend presence to a Mode
func ResolveMode(vectorPresent, keywordPresent bool) Mode {
	switch {
	case vectorPresent && keywordPresent:
		return ModeCombined
	case vectorPresent:
		return ModeVector
	case keywordPresent:
		return ModeKeyword
	default:
		return ModeUnconfigured
	}
}

func (m Mode) String() string {
	return string(m)
}
