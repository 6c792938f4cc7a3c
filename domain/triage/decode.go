package triage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/tidwall/gjson"

	"oncodetect/domain/core"
)

var (
	screeningRequired  = []string{"is_relevant", "reason"}
	assessmentRequired = []string{"cancer_type", "ml_confidence", "final_cri", "triage_level", "explanation", "recommendation"}
)

// DecodeScreening decodes a free-form endpoint response. Missing required
// fields and malformed JSON are contract violations; optional fields that
// are absent or of the wrong type are ignored.
func DecodeScreening(body []byte) (*ScreeningResult, error) {
	doc, err := parseObject(body, screeningRequired)
	if err != nil {
		return nil, err
	}

	relevant := doc.Get("is_relevant")
	if relevant.Type != gjson.True && relevant.Type != gjson.False {
		return nil, fmt.Errorf("%w: is_relevant must be a boolean", core.ErrContractViolation)
	}

	res := &ScreeningResult{
		IsRelevant: relevant.Bool(),
		Reason:     doc.Get("reason").String(),
	}
	if a := doc.Get("analysis"); a.Type == gjson.String {
		res.Analysis = a.Str
	}

	if cd := doc.Get("chart_data"); cd.IsObject() {
		charts := &ChartData{
			CancerTypesProbability: decodeScores(cd.Get("cancer_types_probability")),
			RiskFactors:            decodeScores(cd.Get("risk_factors")),
		}
		if charts.CancerTypesProbability.Len() > 0 || charts.RiskFactors.Len() > 0 {
			res.Charts = charts
		}
	}
	return res, nil
}

// DecodeAssessment decodes a structured endpoint response
func DecodeAssessment(body []byte) (*TriageAssessment, error) {
	doc, err := parseObject(body, assessmentRequired)
	if err != nil {
		return nil, err
	}

	for _, f := range []string{"ml_confidence", "final_cri"} {
		if doc.Get(f).Type != gjson.Number {
			return nil, fmt.Errorf("%w: %s must be a number", core.ErrContractViolation, f)
		}
	}

	raw := doc.Get("triage_level").String()
	level, _ := ParseTriageLevel(raw)

	res := &TriageAssessment{
		CancerType:     doc.Get("cancer_type").String(),
		MLConfidence:   doc.Get("ml_confidence").Float(),
		FinalCRI:       doc.Get("final_cri").Float(),
		TriageLevel:    level,
		RawTriageLevel: raw,
		Explanation:    doc.Get("explanation").String(),
		Recommendation: doc.Get("recommendation").String(),
	}
	if p := doc.Get("preliminary_cri"); p.Type == gjson.Number {
		res.PreliminaryCRI = p.Float()
	}
	if h := doc.Get("hospital_recommendation"); h.Type == gjson.String && h.Str != "" {
		rec := h.Str
		res.HospitalRecommendation = &rec
	}
	return res, nil
}

func parseObject(body []byte, required []string) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%w: response is not valid JSON", core.ErrContractViolation)
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: response is not a JSON object", core.ErrContractViolation)
	}
	for _, field := range required {
		if v := doc.Get(field); !v.Exists() || v.Type == gjson.Null {
			return gjson.Result{}, core.NewContractError(field)
		}
	}
	return doc, nil
}

// decodeScores walks an object in document order. Non-numeric and
// non-finite entries are dropped.
func decodeScores(v gjson.Result) OrderedScores {
	if !v.IsObject() {
		return nil
	}
	var out OrderedScores
	v.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.Number {
			return true
		}
		f := value.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return true
		}
		out = append(out, Score{Label: key.String(), Value: f})
		return true
	})
	return out
}

// MarshalJSON encodes the scores as a JSON object in label order
func (s OrderedScores) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sc := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(sc.Label)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(sc.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keeping key order
func (s *OrderedScores) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid score map")
	}
	*s = decodeScores(gjson.ParseBytes(data))
	return nil
}
