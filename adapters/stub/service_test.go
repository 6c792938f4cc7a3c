package stub

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oncodetect/domain/triage"
)

var pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R', 1, 2, 3, 4}

func multipartBody(t *testing.T, file []byte, text string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if file != nil {
		part, err := w.CreateFormFile("file", "scan.png")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	if text != "" {
		require.NoError(t, w.WriteField("text", text))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func serve(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewService(Options{}, nil).ServeHTTP(rec, req)
	return rec
}

func structuredRequest(t *testing.T, q url.Values, file []byte) *http.Request {
	body, ct := multipartBody(t, file, "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze?"+q.Encode(), body)
	req.Header.Set("Content-Type", ct)
	return req
}

func validQuery() url.Values {
	q := url.Values{}
	q.Set("cancer_type", "lung")
	q.Set("age", "61")
	q.Set("symptoms", `["cough","weight loss"]`)
	q.Set("risk_factors", `["smoker"]`)
	return q
}

func TestHealth(t *testing.T) {
	rec := serve(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestStructuredDeterministic(t *testing.T) {
	first := serve(t, structuredRequest(t, validQuery(), pngBytes))
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	res, err := triage.DecodeAssessment(first.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "lung", res.CancerType)
	assert.GreaterOrEqual(t, res.FinalCRI, 0.0)
	assert.LessOrEqual(t, res.FinalCRI, 100.0)
	require.NotNil(t, res.HospitalRecommendation)
	assert.Contains(t, *res.HospitalRecommendation, "Lakeside Thoracic Center")

	second := serve(t, structuredRequest(t, validQuery(), pngBytes))
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestStructuredValidation(t *testing.T) {
	badType := validQuery()
	badType.Set("cancer_type", "liver")
	rec := serve(t, structuredRequest(t, badType, pngBytes))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "cancer_type must be one of")

	badAge := validQuery()
	badAge.Set("age", "130")
	rec = serve(t, structuredRequest(t, badAge, pngBytes))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	badJSON := validQuery()
	badJSON.Set("symptoms", "cough, fever")
	rec = serve(t, structuredRequest(t, badJSON, pngBytes))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"Invalid JSON format for symptoms or risk_factors"}`, rec.Body.String())

	rec = serve(t, structuredRequest(t, validQuery(), nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Field required")
}

func TestFreeForm(t *testing.T) {
	body, ct := multipartBody(t, nil, "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai-analyze", body)
	req.Header.Set("Content-Type", ct)
	rec := serve(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartBody(t, nil, "what is the weather tomorrow")
	req = httptest.NewRequest(http.MethodPost, "/api/v1/ai-analyze", body)
	req.Header.Set("Content-Type", ct)
	rec = serve(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	res, err := triage.DecodeScreening(rec.Body.Bytes())
	require.NoError(t, err)
	assert.False(t, res.IsRelevant)

	body, ct = multipartBody(t, pngBytes, "persistent cough for 3 months")
	req = httptest.NewRequest(http.MethodPost, "/api/v1/ai-analyze", body)
	req.Header.Set("Content-Type", ct)
	rec = serve(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	res, err = triage.DecodeScreening(rec.Body.Bytes())
	require.NoError(t, err)
	assert.True(t, res.IsRelevant)
	require.NotNil(t, res.Charts)
	assert.Equal(t, []string{"Lung", "Breast", "Brain"}, res.Charts.CancerTypesProbability.Labels())
	assert.Len(t, res.Charts.RiskFactors, 5)
	assert.True(t, strings.Contains(res.Analysis, "\n"))
}

func TestFreeFormRejectsNonImages(t *testing.T) {
	body, ct := multipartBody(t, []byte("%PDF-1.7"), "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai-analyze", body)
	req.Header.Set("Content-Type", ct)
	rec := serve(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Contains(t, payload["detail"], "Invalid image file")
}

func TestRiskArithmetic(t *testing.T) {
	assert.Equal(t, 74, preliminaryCRI(perception{prediction: "suspected", confidence: 0.9}, 2, 3))
	assert.Equal(t, 40, preliminaryCRI(perception{prediction: "normal", confidence: 0.9}, 10, 2))

	assert.Equal(t, "Critical", reason(80).level)
	assert.Equal(t, "High", reason(74).level)
	assert.Equal(t, "Moderate", reason(40).level)
	assert.Equal(t, "Low", reason(20).level)
}

func TestPerceiveStable(t *testing.T) {
	a := perceive(pngBytes)
	b := perceive(pngBytes)
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a.confidence, 0.4)
	assert.LessOrEqual(t, a.confidence, 0.99)
}
