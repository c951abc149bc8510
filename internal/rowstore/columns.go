package rowstore

import "github.com/hmurata/crambooks/internal/textnorm"

// PickColumn finds the index of the header cell matching any of the
// candidate names, comparing normalized forms. Candidates are tried in
// order, so earlier names win. Returns -1 when no candidate matches.
func PickColumn(headers []string, candidates ...string) int {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = textnorm.NormalizeHeader(h)
	}
	for _, c := range candidates {
		key := textnorm.NormalizeHeader(c)
		for i, h := range normalized {
			if h == key {
				return i
			}
		}
	}
	return -1
}

// Cell returns row[col], or "" when the row is shorter than col or col is
// negative. Rows read from sparse sheets are not padded, so handlers use
// this instead of indexing directly.
func Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}
