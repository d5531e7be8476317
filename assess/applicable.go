package assess

import "slices"

// DefaultRiskLevel is assumed when a profile names none.
const DefaultRiskLevel = "medium"

// Profile describes how an organisation uses AI.
type Profile struct {
	UseCases  []string `json:"use_cases"`
	RiskLevel string   `json:"risk_level"`
}

// Applicable returns the obligations that apply to p: at least one shared use
// case, and p's risk level listed by the obligation. An obligation listing no
// risk level applies at every level.
func Applicable(obligations []Obligation, p Profile) []Obligation {
	risk := p.RiskLevel
	if risk == "" {
		risk = DefaultRiskLevel
	}
	var out []Obligation
	for _, o := range obligations {
		useCase := slices.ContainsFunc(o.AppliesWhen.UseCases, func(uc string) bool {
			return slices.Contains(p.UseCases, uc)
		})
		riskOK := len(o.AppliesWhen.RiskLevel) == 0 || slices.Contains(o.AppliesWhen.RiskLevel, risk)
		if useCase && riskOK {
			out = append(out, o)
		}
	}
	return out
}
