package searcher

// Merge combines the source texts of both legs. When both are non-empty the
// result is their set union by exact string equality, keeping first-seen
// order with vector texts first. When only one is non-empty it is returned
// unchanged. Two empty lists merge to an empty, non-nil list.
func Merge(vector, keyword []string) []string {
	switch {
	case len(vector) > 0 && len(keyword) > 0:
		seen := make(map[string]struct{}, len(vector)+len(keyword))
		merged := make([]string, 0, len(vector)+len(keyword))
		for _, list := range [][]string{vector, keyword} {
			for _, text := range list {
				if _, dup := seen[text]; dup {
					continue
				}
				seen[text] = struct{}{}
				merged = append(merged, text)
			}
		}
		return merged
	case len(vector) > 0:
		return vector
	case len(keyword) > 0:
		return keyword
	default:
		return []string{}
	}
}
