package triage

import (
	"fmt"
	"math"
	"strings"
)

// Shape identifies which service contract produced a result
type Shape string

const (
	ShapeScreening  Shape = "screening"
	ShapeAssessment Shape = "assessment"
)

// AnalysisResult is the decoded success payload of the analysis service.
// The two implementations are ScreeningResult and TriageAssessment; values
// are immutable once decoded.
type AnalysisResult interface {
	Shape() Shape
	// Relevant is false only when the service declared the input out of domain
	Relevant() bool
	isAnalysisResult()
}

// Score is one named value of an ordered score map
type Score struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// OrderedScores is a category → number map that keeps the key order of the
// JSON document it was decoded from.
type OrderedScores []Score

// Len returns the number of categories
func (s OrderedScores) Len() int { return len(s) }

// Labels returns category names in document order
func (s OrderedScores) Labels() []string {
	out := make([]string, len(s))
	for i, sc := range s {
		out[i] = sc.Label
	}
	return out
}

// Values returns scores in document order
func (s OrderedScores) Values() []float64 {
	out := make([]float64, len(s))
	for i, sc := range s {
		out[i] = sc.Value
	}
	return out
}

// Get returns the score for a label
func (s OrderedScores) Get(label string) (float64, bool) {
	for _, sc := range s {
		if sc.Label == label {
			return sc.Value, true
		}
	}
	return 0, false
}

// ChartData holds the optional numeric maps of a screening result
type ChartData struct {
	CancerTypesProbability OrderedScores `json:"cancer_types_probability,omitempty"`
	RiskFactors            OrderedScores `json:"risk_factors,omitempty"`
}

// ScreeningResult is returned by the free-form endpoint
type ScreeningResult struct {
	IsRelevant bool       `json:"is_relevant"`
	Reason     string     `json:"reason"`
	Analysis   string     `json:"analysis,omitempty"`
	Charts     *ChartData `json:"chart_data,omitempty"`
}

func (*ScreeningResult) Shape() Shape { return ShapeScreening }

// Relevant reports the service's relevance verdict
func (r *ScreeningResult) Relevant() bool { return r.IsRelevant }

func (*ScreeningResult) isAnalysisResult() {}

// TriageAssessment is returned by the structured endpoint
type TriageAssessment struct {
	CancerType             string      `json:"cancer_type"`
	MLConfidence           float64     `json:"ml_confidence"`
	PreliminaryCRI         float64     `json:"preliminary_cri"`
	FinalCRI               float64     `json:"final_cri"`
	TriageLevel            TriageLevel `json:"triage_level"`
	RawTriageLevel         string      `json:"-"`
	Explanation            string      `json:"explanation"`
	Recommendation         string      `json:"recommendation"`
	HospitalRecommendation *string     `json:"hospital_recommendation,omitempty"`
}

func (*TriageAssessment) Shape() Shape { return ShapeAssessment }

// Relevant is always true; the structured endpoint has no relevance gate
func (*TriageAssessment) Relevant() bool { return true }

func (*TriageAssessment) isAnalysisResult() {}

// ConfidencePercent returns the ML confidence as a rounded percentage
func (a *TriageAssessment) ConfidencePercent() int {
	return int(math.Round(a.MLConfidence * 100))
}

// LevelLabel returns the triage level as sent by the service, falling back
// to the normalized level when the raw value is blank.
func (a *TriageAssessment) LevelLabel() string {
	if raw := strings.TrimSpace(a.RawTriageLevel); raw != "" {
		return raw
	}
	return a.TriageLevel.String()
}

// TriageLevel is the ordinal urgency assigned by the service
type TriageLevel int

const (
	TriageLow TriageLevel = iota
	TriageModerate
	TriageHigh
	TriageCritical
)

var triageLevelNames = [...]string{"Low", "Moderate", "High", "Critical"}

func (l TriageLevel) String() string {
	if l < TriageLow || l > TriageCritical {
		return fmt.Sprintf("TriageLevel(%d)", int(l))
	}
	return triageLevelNames[l]
}

// ParseTriageLevel parses a level case-insensitively. ok is false for
// unknown values, which are reported as Low.
func ParseTriageLevel(s string) (level TriageLevel, ok bool) {
	s = strings.TrimSpace(s)
	for i, name := range triageLevelNames {
		if strings.EqualFold(s, name) {
			return TriageLevel(i), true
		}
	}
	return TriageLow, false
}

// Tone is the presentation class of a triage level
func (l TriageLevel) Tone() string {
	switch l {
	case TriageCritical:
		return "critical"
	case TriageHigh:
		return "high"
	case TriageModerate:
		return "moderate"
	default:
		return "low"
	}
}

// MarshalText implements encoding.TextMarshaler
func (l TriageLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}
