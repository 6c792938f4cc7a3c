package submission

import (
	"fmt"
	"strings"
)

// Variant identifies which analysis contract a form feeds
type Variant string

const (
	// VariantFreeForm is the single-view analyzer: image and/or clinical notes.
	VariantFreeForm Variant = "freeform"
	// VariantStructured is the multi-page screening flow: organ, age,
	// symptoms, risk factors and a required scan.
	VariantStructured Variant = "structured"
)

// ParseVariant parses a route segment into a Variant
func ParseVariant(s string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(s))) {
	case VariantFreeForm:
		return VariantFreeForm, nil
	case VariantStructured:
		return VariantStructured, nil
	}
	return "", fmt.Errorf("unknown form variant %q", s)
}

// Organ is the target organ for a structured screening
type Organ string

const (
	OrganBrain  Organ = "brain"
	OrganLung   Organ = "lung"
	OrganBreast Organ = "breast"
)

// DefaultOrgan and DefaultAge mirror the initial form state
const (
	DefaultOrgan = OrganBrain
	DefaultAge   = 45
)

// Organs lists the selectable organs in display order
var Organs = []Organ{OrganBrain, OrganLung, OrganBreast}

// ParseOrgan parses a form value case-insensitively
func ParseOrgan(s string) (Organ, error) {
	o := Organ(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Organs {
		if o == known {
			return o, nil
		}
	}
	return "", fmt.Errorf("unknown organ %q", s)
}

// Label returns the organ with its imaging modality
func (o Organ) Label() string {
	switch o {
	case OrganBrain:
		return "Brain (MRI)"
	case OrganLung:
		return "Lung (X-Ray)"
	case OrganBreast:
		return "Breast (Mammogram)"
	}
	return string(o)
}

// Image is an uploaded scan with its resolved media type
type Image struct {
	Filename  string
	MediaType string
	Data      []byte
}

// Size returns the image size in bytes
func (i *Image) Size() int64 {
	if i == nil {
		return 0
	}
	return int64(len(i.Data))
}

// StructuredFields are the clinical fields of the screening flow
type StructuredFields struct {
	Organ       Organ
	Age         int
	Symptoms    []string
	RiskFactors []string
}

// Submission is the unit of work sent to the analysis service. It is built
// fresh from the form for every attempt and dropped once the attempt
// resolves.
type Submission struct {
	Variant Variant
	Image   *Image
	Text    string
	Fields  StructuredFields

	// raw values that failed to parse at build time; reported by Validate
	badOrgan string
	badAge   string
}

// HasImage reports whether a non-empty image is attached
func (s Submission) HasImage() bool {
	return s.Image != nil && len(s.Image.Data) > 0
}

// HasText reports whether the free-text channel carries content
func (s Submission) HasText() bool {
	return strings.TrimSpace(s.Text) != ""
}
