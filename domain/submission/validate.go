package submission

import (
	"strings"

	"oncodetect/internal/errors"
)

// Validation messages shown to the user
const (
	MsgNeedContent   = "Please provide at least an image or text input."
	MsgNeedImage     = "Please upload an image."
	MsgNeedSymptoms  = "Please list at least one symptom."
	MsgUnknownOrgan  = "Unknown target organ."
	MsgAgeOutOfRange = "Age must be a whole number between 0 and 120."
	MsgNotAnImage    = "Please upload an image file."
	MsgEmptyImage    = "The selected file is empty."
	MsgPreviewBusy   = "Too many images are open right now. Please try again shortly."
)

const (
	minAge = 0
	maxAge = 120
)

// Validate checks a submission and returns the first violated rule as a
// validation AppError, or nil. It never aggregates violations.
func Validate(s Submission) error {
	switch s.Variant {
	case VariantFreeForm:
		if !s.HasImage() && !s.HasText() {
			return errors.ValidationError(MsgNeedContent)
		}
		return nil

	case VariantStructured:
		if !s.HasImage() {
			return errors.ValidationError(MsgNeedImage)
		}
		if len(s.Fields.Symptoms) == 0 {
			return errors.ValidationError(MsgNeedSymptoms)
		}
		if s.badOrgan != "" || s.Fields.Organ == "" {
			return errors.ValidationError(MsgUnknownOrgan)
		}
		if s.badAge != "" || s.Fields.Age < minAge || s.Fields.Age > maxAge {
			return errors.ValidationError(MsgAgeOutOfRange)
		}
		return nil
	}
	return errors.ValidationError("Unknown form.")
}

// SplitList turns a comma-separated field into an ordered list: tokens are
// trimmed, empty tokens dropped, order kept, duplicates kept.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
