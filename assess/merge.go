package assess

import "math"

// Defaults for obligations the service said nothing about.
const (
	DefaultFindings       = "Not addressed in policy"
	DefaultGap            = "No coverage found"
	DefaultRecommendation = "Add policy provisions for this requirement"
)

// Result is an obligation together with its assessment.
type Result struct {
	Obligation
	Status         string   `json:"status"`
	Findings       string   `json:"findings"`
	PolicyMatch    *string  `json:"policy_match"`
	Gaps           []string `json:"gaps"`
	Recommendation string   `json:"recommendation"`
}

// Merge pairs every obligation with the item naming it. Obligations without
// an item, and empty fields of an item, get the defaults.
func Merge(obligations []Obligation, items []Item) []Result {
	byID := make(map[string]Item, len(items))
	for _, it := range items {
		if _, dup := byID[it.key()]; !dup {
			byID[it.key()] = it
		}
	}

	results := make([]Result, 0, len(obligations))
	for _, o := range obligations {
		it := byID[o.ID]
		r := Result{
			Obligation:     o,
			Status:         it.Status,
			Findings:       it.Findings,
			PolicyMatch:    it.PolicyMatch,
			Gaps:           it.Gaps,
			Recommendation: it.Recommendation,
		}
		if r.Status == "" {
			r.Status = StatusNotMet
		}
		if r.Findings == "" {
			r.Findings = DefaultFindings
		}
		if r.PolicyMatch != nil && *r.PolicyMatch == "" {
			r.PolicyMatch = nil
		}
		if r.Gaps == nil {
			r.Gaps = []string{DefaultGap}
		}
		if r.Recommendation == "" {
			r.Recommendation = DefaultRecommendation
		}
		results = append(results, r)
	}
	return results
}

// Stats summarises a set of results.
type Stats struct {
	Total   int `json:"total"`
	Full    int `json:"full"`
	Partial int `json:"partial"`
	NotMet  int `json:"not_met"`
	// Score is round((full + partial/2) / total * 100); 0 when there are no results.
	Score int `json:"score"`
}

// Score computes the compliance statistics of results.
func Score(results []Result) Stats {
	var s Stats
	s.Total = len(results)
	for _, r := range results {
		switch r.Status {
		case StatusFull:
			s.Full++
		case StatusPartial:
			s.Partial++
		case StatusNotMet:
			s.NotMet++
		}
	}
	if s.Total > 0 {
		s.Score = int(math.Round((float64(s.Full) + 0.5*float64(s.Partial)) / float64(s.Total) * 100))
	}
	return s
}
