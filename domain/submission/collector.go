package submission

import (
	stderrors "errors"
	"fmt"
	"mime"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"oncodetect/domain/core"
	"oncodetect/internal/errors"
)

// PreviewAllocator hands out preview resources for selected images
type PreviewAllocator interface {
	Acquire(data []byte, mediaType string) (core.PreviewToken, error)
	Release(token core.PreviewToken) error
}

// Field names accepted by SetStructuredField
const (
	FieldOrgan       = "organ"
	FieldCancerType  = "cancer_type"
	FieldAge         = "age"
	FieldSymptoms    = "symptoms"
	FieldRiskFactors = "risk_factors"
)

// Collector holds the editable form state of one input form. It is not
// safe for concurrent use; callers serialize access per session.
type Collector struct {
	variant  Variant
	maxBytes int64
	previews PreviewAllocator

	image   *Image
	preview core.PreviewToken

	text        string
	organ       string
	age         string
	symptoms    string
	riskFactors string
}

// NewCollector creates an empty form with the original defaults
func NewCollector(variant Variant, maxBytes int64, previews PreviewAllocator) *Collector {
	return &Collector{
		variant:  variant,
		maxBytes: maxBytes,
		previews: previews,
		organ:    string(DefaultOrgan),
		age:      strconv.Itoa(DefaultAge),
	}
}

// Variant returns the form variant
func (c *Collector) Variant() Variant {
	return c.variant
}

// SetImage replaces the selected image. Files that are not images or that
// exceed the size ceiling are rejected with a validation error and leave
// the current selection (and its preview) untouched. data is retained and
// shared with the preview store; callers must not reuse it.
func (c *Collector) SetImage(filename string, data []byte, declaredType string) error {
	if len(data) == 0 {
		return errors.ValidationError(MsgEmptyImage)
	}
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		return errors.ValidationError(fmt.Sprintf("Image exceeds the %s limit.", formatBytes(c.maxBytes)))
	}

	mediaType := resolveMediaType(declaredType, data)
	if !strings.HasPrefix(mediaType, "image/") {
		return errors.ValidationError(MsgNotAnImage)
	}

	// release before acquire: at most one outstanding preview per slot
	c.releasePreview()

	if c.previews != nil {
		token, err := c.previews.Acquire(data, mediaType)
		if err != nil {
			c.image = nil
			if stderrors.Is(err, core.ErrPreviewCapacity) {
				return errors.ValidationError(MsgPreviewBusy)
			}
			return errors.Wrap(err, "failed to create image preview")
		}
		c.preview = token
	}

	c.image = &Image{
		Filename:  filename,
		MediaType: mediaType,
		Data:      data,
	}
	return nil
}

// ClearImage drops the selected image and releases its preview
func (c *Collector) ClearImage() {
	c.releasePreview()
	c.image = nil
}

// Close releases every resource held by the form. Safe to call repeatedly.
func (c *Collector) Close() {
	c.ClearImage()
}

// Image returns the current image, or nil
func (c *Collector) Image() *Image {
	return c.image
}

// PreviewToken returns the token of the live preview, empty when none
func (c *Collector) PreviewToken() core.PreviewToken {
	return c.preview
}

func (c *Collector) releasePreview() {
	if c.preview.String() == "" {
		return
	}
	if c.previews != nil {
		_ = c.previews.Release(c.preview)
	}
	c.preview = ""
}

// SetText updates the free-text clinical notes
func (c *Collector) SetText(value string) {
	c.text = value
}

// SetStructuredField updates one structured field. Values are stored as
// entered and only interpreted when a submission is built.
func (c *Collector) SetStructuredField(name, value string) error {
	switch name {
	case FieldOrgan, FieldCancerType:
		c.organ = value
	case FieldAge:
		c.age = value
	case FieldSymptoms:
		c.symptoms = value
	case FieldRiskFactors:
		c.riskFactors = value
	default:
		return fmt.Errorf("unknown field %q", name)
	}
	return nil
}

// Values returns the raw form values for re-rendering
func (c *Collector) Values() map[string]string {
	return map[string]string{
		"text":           c.text,
		FieldOrgan:       c.organ,
		FieldAge:         c.age,
		FieldSymptoms:    c.symptoms,
		FieldRiskFactors: c.riskFactors,
	}
}

// Build snapshots the current form into a Submission. The image bytes are
// shared, not copied; submissions are read-only.
func (c *Collector) Build() Submission {
	sub := Submission{
		Variant: c.variant,
		Image:   c.image,
		Text:    c.text,
	}
	if c.variant != VariantStructured {
		return sub
	}

	organ, err := ParseOrgan(c.organ)
	if err != nil {
		sub.badOrgan = c.organ
	}
	sub.Fields.Organ = organ

	age, err := strconv.Atoi(strings.TrimSpace(c.age))
	if err != nil {
		sub.badAge = c.age
	}
	sub.Fields.Age = age

	sub.Fields.Symptoms = SplitList(c.symptoms)
	sub.Fields.RiskFactors = SplitList(c.riskFactors)
	return sub
}

func resolveMediaType(declared string, data []byte) string {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
			return strings.ToLower(mt)
		}
	}
	detected := mimetype.Detect(data).String()
	if mt, _, err := mime.ParseMediaType(detected); err == nil {
		return mt
	}
	return detected
}

func formatBytes(n int64) string {
	const mib = 1 << 20
	if n%mib == 0 {
		return fmt.Sprintf("%d MiB", n/mib)
	}
	if n >= mib {
		return fmt.Sprintf("%.1f MiB", float64(n)/mib)
	}
	return fmt.Sprintf("%d bytes", n)
}
