package chart

import (
	"oncodetect/domain/triage"
)

// Kind is the chart family a series is drawn as
type Kind string

const (
	KindBar    Kind = "bar"
	KindRadial Kind = "radial"
)

// Point is one labelled value of a series
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Series is a declarative chart description handed to the browser renderer
type Series struct {
	Name    string  `json:"name"`
	Kind    Kind    `json:"kind"`
	Title   string  `json:"title"`
	Points  []Point `json:"points"`
	Closed  bool    `json:"closed"`
	AxisMin float64 `json:"axis_min"`
	AxisMax float64 `json:"axis_max"`
}

// Fixed axis ranges
const (
	ProbabilityAxisMax = 100
	RiskAxisMin        = 0
	RiskAxisMax        = 10
)

// Probability turns a category → probability map into a bar series in
// percent. Category order is the map's document order. ok is false when
// the map is empty, in which case no chart is drawn.
func Probability(scores triage.OrderedScores) (Series, bool) {
	if scores.Len() == 0 {
		return Series{}, false
	}
	points := make([]Point, 0, scores.Len())
	for _, sc := range scores {
		points = append(points, Point{Label: sc.Label, Value: sc.Value * 100})
	}
	return Series{
		Name:    "cancer_types_probability",
		Kind:    KindBar,
		Title:   "Malignancy Probability (%)",
		Points:  points,
		AxisMin: 0,
		AxisMax: ProbabilityAxisMax,
	}, true
}

// Risk turns a category → score map into a closed radial series. The axis
// stays at [0,10] whatever the data.
func Risk(scores triage.OrderedScores) (Series, bool) {
	if scores.Len() == 0 {
		return Series{}, false
	}
	points := make([]Point, 0, scores.Len()+1)
	for _, sc := range scores {
		points = append(points, Point{Label: sc.Label, Value: sc.Value})
	}
	points = append(points, points[0])
	return Series{
		Name:    "risk_factors",
		Kind:    KindRadial,
		Title:   "Risk Factor Analysis (0-10)",
		Points:  points,
		Closed:  true,
		AxisMin: RiskAxisMin,
		AxisMax: RiskAxisMax,
	}, true
}

// ForResult derives every chart a result can show, probability first.
// Results without chart data yield none.
func ForResult(result triage.AnalysisResult) []Series {
	sr, ok := result.(*triage.ScreeningResult)
	if !ok || !sr.IsRelevant || sr.Charts == nil {
		return nil
	}
	var out []Series
	if s, ok := Probability(sr.Charts.CancerTypesProbability); ok {
		out = append(out, s)
	}
	if s, ok := Risk(sr.Charts.RiskFactors); ok {
		out = append(out, s)
	}
	return out
}

// OpenPoints returns the points without the closing duplicate
func (s Series) OpenPoints() []Point {
	if s.Closed && len(s.Points) > 1 {
		return s.Points[:len(s.Points)-1]
	}
	return s.Points
}

// Labels returns the category labels of the open points
func (s Series) Labels() []string {
	pts := s.OpenPoints()
	out := make([]string, len(pts))
	for i, p := range pts {
		out[i] = p.Label
	}
	return out
}

// Values returns the values of the open points
func (s Series) Values() []float64 {
	pts := s.OpenPoints()
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.Value
	}
	return out
}
