// Package ranking scores free-text queries against short textual records
// (book ids, titles, subject tags) using inverse-document-frequency
// weighting, tiered exact/partial match rules, and a statistical confidence
// estimate.
//
// The ranker holds no state between calls: the document-frequency index is
// rebuilt from the supplied records on every call, so it is safe to invoke
// concurrently against independent corpora.
package ranking

import (
	"math"
	"sort"
	"strings"

	"github.com/hmurata/crambooks/internal/textnorm"
)

// Base scores per match tier and the individual bonus caps. Tiers are
// mutually exclusive; bonuses stack on top of the tier score and the total
// is clamped to 1.
const (
	scoreExact         = 1.0
	scorePhrase        = 0.95
	scorePartialTarget = 0.90
	scoreCoverage      = 0.80
	scoreFuzzy3        = 0.72

	coverageBonusCap = 0.12
	prefixBonus      = 0.02
	subjectBonus     = 0.02

	// defaultMinGap is the score-gap cutoff: the ranked list is truncated
	// at the first adjacent pair whose scores diverge by at least this much.
	defaultMinGap = 0.05
)

// Reason tags why a candidate matched.
type Reason string

const (
	ReasonExact         Reason = "exact"
	ReasonPhrase        Reason = "phrase"
	ReasonPartialTarget Reason = "partial_target"
	ReasonCoverage      Reason = "coverage"
	ReasonFuzzy3        Reason = "fuzzy3"
	ReasonNone          Reason = "none"
)

// Record is a transient snapshot of one searchable row. The ranker never
// retains records beyond a single Rank call.
type Record struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Subject string `json:"subject"`
}

// Candidate is one scored record. Score is always within [0, 1].
type Candidate struct {
	Record Record  `json:"record"`
	Score  float64 `json:"score"`
	Reason Reason  `json:"reason"`
}

// Result is the ranked outcome for one query.
type Result struct {
	Query      string      `json:"query"`
	Candidates []Candidate `json:"candidates"`
	Top        *Candidate  `json:"top,omitempty"`
	Confidence float64     `json:"confidence"`
}

// Config tunes a Rank call.
type Config struct {
	// Limit caps the number of candidates returned after the gap cutoff.
	// Zero or negative means no cap.
	Limit int

	// MinGap overrides the score-gap cutoff threshold. Zero means the
	// default of 0.05.
	MinGap float64

	// SubjectKeys are subject keywords detectable in queries; a query
	// containing one earns records of that subject a small bonus.
	SubjectKeys []string
}

// Rank scores every record against the query, sorts the survivors by
// descending score (stable on ties), applies the score-gap cutoff and limit,
// and derives a confidence value from the top two scores.
//
// An empty query is a caller precondition violation and yields an empty
// result rather than an error; so does an empty corpus.
func Rank(query string, records []Record, cfg Config) Result {
	res := Result{Query: query}

	qNorm := textnorm.Normalize(query)
	if qNorm == "" {
		return res
	}

	qTokens := dedupe(textnorm.Tokenize(query))
	querySubject := detectSubject(qTokens, cfg.SubjectKeys)

	docFreq, totalDocs := buildIndex(records)

	sumIDFQuery := 0.0
	for _, t := range qTokens {
		sumIDFQuery += idf(t, docFreq, totalDocs)
	}
	if sumIDFQuery == 0 {
		sumIDFQuery = 1
	}

	seen := make(map[string]struct{}, len(records))
	var candidates []Candidate
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}

		score, reason := scoreRecord(r, qNorm, qTokens, docFreq, totalDocs, sumIDFQuery, querySubject)
		if score > 0 {
			candidates = append(candidates, Candidate{Record: r, Score: round4(score), Reason: reason})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	minGap := cfg.MinGap
	if minGap == 0 {
		minGap = defaultMinGap
	}
	candidates = applyGapCutoff(candidates, minGap, cfg.Limit)

	res.Candidates = candidates
	if len(candidates) > 0 {
		res.Top = &candidates[0]
		res.Confidence = confidence(candidates)
	}
	return res
}

// scoreRecord assigns the base tier score plus bonuses for a single record.
// Tiers are evaluated strictly in order; only the first match applies.
func scoreRecord(
	r Record,
	qNorm string,
	qTokens []string,
	docFreq map[string]int,
	totalDocs int,
	sumIDFQuery float64,
	querySubject string,
) (float64, Reason) {
	var hay []string
	for _, field := range []string{r.ID, r.Title, r.Subject} {
		if h := textnorm.Normalize(field); len([]rune(h)) >= 2 {
			hay = append(hay, h)
		}
	}

	titleNorm := textnorm.Normalize(r.Title)
	titleTokens := make(map[string]struct{})
	for _, t := range textnorm.Tokenize(r.Title) {
		titleTokens[t] = struct{}{}
	}

	idfHit := 0.0
	for _, t := range qTokens {
		if _, ok := titleTokens[t]; ok {
			idfHit += idf(t, docFreq, totalDocs)
		}
	}
	coverage := idfHit / sumIDFQuery

	score := 0.0
	reason := ReasonNone

	switch {
	case anyEquals(hay, qNorm):
		score, reason = scoreExact, ReasonExact
	case strings.Contains(titleNorm, qNorm):
		score, reason = scorePhrase, ReasonPhrase
	case anyContains(hay, qNorm):
		score, reason = scorePartialTarget, ReasonPartialTarget
	case coverage > 0:
		score, reason = scoreCoverage, ReasonCoverage
	default:
		if qRunes := []rune(qNorm); len(qRunes) >= 3 {
			if anyContains(hay, string(qRunes[:3])) {
				score, reason = scoreFuzzy3, ReasonFuzzy3
			}
		}
	}

	if score == 0 {
		return 0, ReasonNone
	}

	bonus := 0.0
	if coverage > 0 {
		bonus += math.Min(coverageBonusCap, coverageBonusCap*coverage)
	}
	if strings.HasPrefix(titleNorm, qNorm) {
		bonus += prefixBonus
	}
	if querySubject != "" && textnorm.Normalize(querySubject) == textnorm.Normalize(r.Subject) {
		bonus += subjectBonus
	}

	return math.Min(1, score+bonus), reason
}

// applyGapCutoff truncates the sorted candidate list at the first adjacent
// score gap of at least minGap, then applies the caller's limit.
func applyGapCutoff(candidates []Candidate, minGap float64, limit int) []Candidate {
	cut := len(candidates)
	for i := 0; i < len(candidates)-1; i++ {
		if candidates[i].Score-candidates[i+1].Score >= minGap {
			cut = i + 1
			break
		}
	}
	if limit > 0 && limit < cut {
		cut = limit
	}
	return candidates[:cut]
}

// confidence is clamp(s0 - 0.25*s1, 0, 1) over the surviving candidates,
// rounded to 4 decimal places. A lone candidate keeps its own score.
func confidence(candidates []Candidate) float64 {
	if len(candidates) == 0 {
		return 0
	}
	s0 := candidates[0].Score
	s1 := 0.0
	if len(candidates) > 1 {
		s1 = candidates[1].Score
	}
	return round4(math.Max(0, math.Min(1, s0-0.25*s1)))
}

func detectSubject(tokens []string, subjectKeys []string) string {
	for _, key := range subjectKeys {
		lower := strings.ToLower(key)
		for _, t := range tokens {
			if t == lower {
				return key
			}
		}
	}
	return ""
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func anyEquals(hay []string, needle string) bool {
	for _, h := range hay {
		if h == needle {
			return true
		}
	}
	return false
}

func anyContains(hay []string, needle string) bool {
	for _, h := range hay {
		if strings.Contains(h, needle) {
			return true
		}
	}
	return false
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
