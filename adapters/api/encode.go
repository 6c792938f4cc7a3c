package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"oncodetect/domain/submission"
)

// payload is an encoded multipart body plus its query string
type payload struct {
	body        *bytes.Buffer
	contentType string
	query       url.Values
}

// encodeFreeForm builds the endpoint A body: "file" when an image is
// attached and "text" when the notes are not blank.
func encodeFreeForm(sub submission.Submission) (*payload, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if sub.HasImage() {
		if err := writeImage(w, sub.Image); err != nil {
			return nil, err
		}
	}
	if sub.HasText() {
		if err := w.WriteField("text", sub.Text); err != nil {
			return nil, fmt.Errorf("failed to write text field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	return &payload{body: &buf, contentType: w.FormDataContentType()}, nil
}

// encodeStructured builds the endpoint B request: scalar and list fields as
// query parameters, lists as JSON array strings, the scan as "file".
func encodeStructured(sub submission.Submission) (*payload, error) {
	if !sub.HasImage() {
		return nil, fmt.Errorf("structured submission has no image")
	}

	symptoms, err := jsonList(sub.Fields.Symptoms)
	if err != nil {
		return nil, err
	}
	risks, err := jsonList(sub.Fields.RiskFactors)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("cancer_type", string(sub.Fields.Organ))
	q.Set("age", strconv.Itoa(sub.Fields.Age))
	q.Set("symptoms", symptoms)
	q.Set("risk_factors", risks)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := writeImage(w, sub.Image); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	return &payload{body: &buf, contentType: w.FormDataContentType(), query: q}, nil
}

func jsonList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(b), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// writeImage writes the "file" part keeping the filename and media type.
// multipart.Writer.CreateFormFile would force application/octet-stream.
func writeImage(w *multipart.Writer, img *submission.Image) error {
	filename := img.Filename
	if filename == "" {
		filename = "upload"
	}
	mediaType := img.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", mediaType)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return fmt.Errorf("failed to write file part: %w", err)
	}
	return nil
}
