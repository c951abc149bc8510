package ranking

import (
	"math"

	"github.com/hmurata/crambooks/internal/textnorm"
)

// buildIndex tokenizes each record's title once and counts, per lexeme, how
// many records contain it (document frequency, not term frequency). Records
// without an identifier are detail rows in the source sheet and are skipped;
// duplicate identifiers count once. totalDocs is floored at 1 so IDF never
// divides by zero.
func buildIndex(records []Record) (docFreq map[string]int, totalDocs int) {
	docFreq = make(map[string]int)
	seen := make(map[string]struct{}, len(records))

	count := 0
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		count++

		distinct := make(map[string]struct{})
		for _, tok := range textnorm.Tokenize(r.Title) {
			distinct[tok] = struct{}{}
		}
		for tok := range distinct {
			docFreq[tok]++
		}
	}

	if count < 1 {
		count = 1
	}
	return docFreq, count
}

// idf computes a BM25-smoothed inverse document frequency weight:
// ln(((N - df + 0.5) / (df + 0.5)) + 1). The +1 inside the log keeps the
// weight non-negative even for a term present in every record; an unseen
// term (df = 0) gets the maximal weight.
func idf(term string, docFreq map[string]int, totalDocs int) float64 {
	df := float64(docFreq[term])
	n := float64(totalDocs)
	return math.Log((n-df+0.5)/(df+0.5) + 1)
}
