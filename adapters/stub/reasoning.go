package stub

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"oncodetect/domain/core"
	"oncodetect/domain/triage"
)

var cancerTypes = []string{"brain", "lung", "breast"}

func knownCancerType(s string) bool {
	for _, t := range cancerTypes {
		if s == t {
			return true
		}
	}
	return false
}

var oncologyTerms = []string{
	"cancer", "tumor", "tumour", "mass", "lesion", "nodule", "biopsy", "oncology",
	"malignan", "metasta", "lump", "cough", "pain", "fatigue", "weight loss",
	"bleeding", "headache", "seizure", "scan", "mri", "x-ray", "xray",
	"mammogram", "symptom", "patient", "smoker", "smoking",
}

func mentionsOncology(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range oncologyTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

type perception struct {
	prediction string
	confidence float64
}

// perceive fakes image classification, seeded by the image bytes so the
// same scan always yields the same prediction
func perceive(image []byte) perception {
	rng := rand.New(rand.NewSource(int64(core.Seed(image))))

	p := perception{prediction: "suspected", confidence: round2(uniform(rng, 0.7, 0.99))}
	if rng.Float64() < 0.1 {
		p = perception{prediction: "normal", confidence: round2(uniform(rng, 0.8, 0.95))}
	} else if rng.Float64() < 0.15 {
		p = perception{prediction: "inconclusive", confidence: round2(uniform(rng, 0.4, 0.6))}
	}
	return p
}

// preliminaryCRI weighs ML confidence 60%, symptoms 30% and risk factors 10%
func preliminaryCRI(p perception, symptoms, risks int) int {
	ml := 0.0
	if p.prediction == "suspected" || p.prediction == "inconclusive" {
		ml = p.confidence * 60
	}
	symptomScore := math.Min(float64(symptoms*5), 30)
	riskScore := math.Min(float64(risks*5), 10)

	total := int(math.Round(ml + symptomScore + riskScore))
	if total > 100 {
		return 100
	}
	return total
}

type cognition struct {
	level          string
	adjustment     int
	explanation    string
	recommendation string
}

func reason(prelim int) cognition {
	switch {
	case prelim > 75:
		return cognition{
			level:          "Critical",
			adjustment:     5,
			explanation:    "High risk indicators detected from both ML confidence and symptoms.",
			recommendation: "Immediate consultation recommended.",
		}
	case prelim > 50:
		return cognition{
			level:          "High",
			adjustment:     2,
			explanation:    "Elevated risk score detected.",
			recommendation: "Consult a specialist soon.",
		}
	case prelim < 25:
		return cognition{
			level:          "Low",
			explanation:    "Low risk indicators.",
			recommendation: "Schedule a routine checkup.",
		}
	}
	return cognition{
		level:          "Moderate",
		explanation:    "Automated analysis based on preliminary risk score. Please consult a doctor.",
		recommendation: "Schedule a routine checkup.",
	}
}

type hospital struct {
	name        string
	distanceKM  float64
	specialties []string
}

var hospitals = []hospital{
	{name: "Metro Neuro-Oncology Institute", distanceKM: 4.2, specialties: []string{"brain"}},
	{name: "Lakeside Thoracic Center", distanceKM: 6.8, specialties: []string{"lung"}},
	{name: "Riverside Breast Health Clinic", distanceKM: 3.1, specialties: []string{"breast"}},
	{name: "City General Hospital", distanceKM: 9.5, specialties: []string{"general"}},
}

func recommendHospital(cancerType string) *string {
	var candidates []hospital
	for _, h := range hospitals {
		for _, sp := range h.specialties {
			if sp == cancerType || sp == "general" {
				candidates = append(candidates, h)
				break
			}
		}
	}
	if len(candidates) == 0 {
		msg := "No specific hospital recommendation found nearby."
		return &msg
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].distanceKM < candidates[j].distanceKM })

	best := candidates[0]
	msg := fmt.Sprintf("Recommended: %s (%.1f km away) - Specialized in %s.", best.name, best.distanceKM, cancerType)
	return &msg
}

var riskCategories = []string{"Age", "Smoking", "Family History", "Genetics", "Lifestyle"}

func screeningCharts(rng *rand.Rand) *triage.ChartData {
	probs := make(triage.OrderedScores, 0, len(cancerTypes))
	for _, t := range []string{"Lung", "Breast", "Brain"} {
		probs = append(probs, triage.Score{Label: t, Value: round2(rng.Float64())})
	}
	risks := make(triage.OrderedScores, 0, len(riskCategories))
	for _, c := range riskCategories {
		risks = append(risks, triage.Score{Label: c, Value: float64(rng.Intn(11))})
	}
	return &triage.ChartData{CancerTypesProbability: probs, RiskFactors: risks}
}

func screeningNarrative(charts *triage.ChartData, hasImage, hasText bool) string {
	var sources []string
	if hasImage {
		sources = append(sources, "the submitted image")
	}
	if hasText {
		sources = append(sources, "the clinical notes")
	}

	top, topValue := "", -1.0
	for _, sc := range charts.CancerTypesProbability {
		if sc.Value > topValue {
			top, topValue = sc.Label, sc.Value
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Findings\nReviewed %s.\n", strings.Join(sources, " and "))
	fmt.Fprintf(&b, "Highest estimated likelihood: %s (%.0f%%).\n\n", top, topValue*100)
	b.WriteString("Next steps\nCorrelate with clinical history and consider specialist review.\n")
	b.WriteString("This output is decision support only and is not a diagnosis.")
	return b.String()
}
