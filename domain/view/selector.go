package view

import (
	"oncodetect/domain/chart"
	"oncodetect/domain/request"
	"oncodetect/domain/triage"
	"oncodetect/internal/errors"
)

// Status names the branch of the result area that is shown
type Status string

const (
	StatusAwaiting   Status = "awaiting"
	StatusValidating Status = "validating"
	StatusProgress   Status = "progress"
	StatusRejected   Status = "rejected"
	StatusFailed     Status = "failed"
	StatusScreening  Status = "screening"
	StatusAssessment Status = "assessment"
)

// Disclaimer is shown while awaiting input and under every report
const Disclaimer = "OncoDetect provides decision support only and is not a diagnosis. Always consult a qualified clinician."

// ChartView is a chart plus its caption
type ChartView struct {
	Series  chart.Series `json:"series"`
	Caption string       `json:"caption,omitempty"`
}

// AssessmentView is the triage card of a structured result
type AssessmentView struct {
	CancerType        string  `json:"cancer_type"`
	Level             string  `json:"level"`
	Tone              string  `json:"tone"`
	FinalCRI          float64 `json:"final_cri"`
	PreliminaryCRI    float64 `json:"preliminary_cri"`
	ConfidencePercent int     `json:"confidence_percent"`
	Explanation       string  `json:"explanation"`
	Recommendation    string  `json:"recommendation"`
	Hospital          string  `json:"hospital,omitempty"`
}

// ResultView describes which result sections are visible. Only the fields
// of the selected Status are populated.
type ResultView struct {
	Status     Status          `json:"status"`
	Attempt    string          `json:"attempt,omitempty"`
	Message    string          `json:"message,omitempty"`
	Alarming   bool            `json:"alarming"`
	Retryable  bool            `json:"retryable"`
	Narrative  string          `json:"narrative,omitempty"`
	Charts     []ChartView     `json:"charts,omitempty"`
	Assessment *AssessmentView `json:"assessment,omitempty"`
	Disclaimer string          `json:"disclaimer,omitempty"`
}

// Busy reports whether the submit trigger should be disabled
func (v ResultView) Busy() bool {
	return v.Status == StatusProgress || v.Status == StatusValidating
}

// Select projects a request state onto the visible result sections. The
// choice depends on the result's shape, never on which page asked.
func Select(st request.State) ResultView {
	v := ResultView{}
	if !st.Attempt().IsZero() {
		v.Attempt = st.Attempt().String()
	}

	switch st.Kind() {
	case request.KindValidating:
		v.Status = StatusValidating

	case request.KindInFlight:
		v.Status = StatusProgress

	case request.KindRejected:
		v.Status = StatusRejected
		v.Message = st.Reason()

	case request.KindFailed:
		v.Status = StatusFailed
		v.Message = st.Message()
		v.Alarming = true
		v.Retryable = true

	case request.KindSucceeded:
		v = selectResult(v, st.Result())

	default:
		v.Status = StatusAwaiting
		v.Message = st.Message()
		v.Disclaimer = Disclaimer
	}
	return v
}

func selectResult(v ResultView, result triage.AnalysisResult) ResultView {
	switch r := result.(type) {
	case *triage.ScreeningResult:
		if !r.IsRelevant {
			v.Status = StatusRejected
			v.Message = r.Reason
			return v
		}
		v.Status = StatusScreening
		v.Message = r.Reason
		v.Narrative = r.Analysis
		for _, s := range chart.ForResult(r) {
			cv := ChartView{Series: s}
			if sm, err := chart.Summarize(s); err == nil {
				cv.Caption = sm.Caption(s.Kind)
			}
			v.Charts = append(v.Charts, cv)
		}

	case *triage.TriageAssessment:
		v.Status = StatusAssessment
		av := &AssessmentView{
			CancerType:        r.CancerType,
			Level:             r.LevelLabel(),
			Tone:              r.TriageLevel.Tone(),
			FinalCRI:          r.FinalCRI,
			PreliminaryCRI:    r.PreliminaryCRI,
			ConfidencePercent: r.ConfidencePercent(),
			Explanation:       r.Explanation,
			Recommendation:    r.Recommendation,
		}
		if r.HospitalRecommendation != nil {
			av.Hospital = *r.HospitalRecommendation
		}
		v.Assessment = av

	default:
		v.Status = StatusFailed
		v.Alarming = true
		v.Retryable = true
		v.Message = errors.MsgUnexpectedResponse
		return v
	}
	v.Disclaimer = Disclaimer
	return v
}
