package api_test

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oncodetect/adapters/api"
	"oncodetect/adapters/stub"
	"oncodetect/domain/core"
	"oncodetect/domain/request"
	"oncodetect/domain/submission"
	"oncodetect/internal/errors"
)

var png = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R', 9, 9}

func newClient(t *testing.T, baseURL string, timeout time.Duration) *api.Client {
	t.Helper()
	cfg := api.DefaultClientConfig()
	cfg.BaseURL = baseURL
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	c, err := api.NewClient(cfg, nil)
	require.NoError(t, err)
	return c
}

func stubServer(t *testing.T, opts stub.Options) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(stub.NewService(opts, nil))
	t.Cleanup(srv.Close)
	return srv
}

func structured() submission.Submission {
	return submission.Submission{
		Variant: submission.VariantStructured,
		Image:   &submission.Image{Filename: "chest.png", MediaType: "image/png", Data: png},
		Fields: submission.StructuredFields{
			Organ:    submission.OrganLung,
			Age:      61,
			Symptoms: []string{"cough", "weight loss"},
		},
	}
}

func TestAnalyzeAgainstStub(t *testing.T) {
	srv := stubServer(t, stub.Options{})
	c := newClient(t, srv.URL, 0)
	ctx := context.Background()

	screening, err := c.AnalyzeFreeForm(ctx, submission.Submission{
		Variant: submission.VariantFreeForm,
		Text:    "Patient reports a lump and persistent fatigue.",
	})
	require.NoError(t, err)
	assert.True(t, screening.IsRelevant)
	require.NotNil(t, screening.Charts)
	assert.Equal(t, 3, screening.Charts.CancerTypesProbability.Len())

	assessment, err := c.AnalyzeStructured(ctx, structured())
	require.NoError(t, err)
	assert.Equal(t, "lung", assessment.CancerType)
	assert.NotEmpty(t, assessment.Recommendation)

	assert.NoError(t, c.Health(ctx))
}

func TestStructuredEncoding(t *testing.T) {
	var (
		query     map[string]string
		filename  string
		mediaType string
		fileBytes []byte
		parts     []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		_, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			p, err := mr.NextPart()
			if err != nil {
				break
			}
			parts = append(parts, p.FormName())
			if p.FormName() == "file" {
				filename = p.FileName()
				mediaType = p.Header.Get("Content-Type")
				fileBytes, _ = io.ReadAll(p)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"cancer_type":"lung","ml_confidence":0.8,"preliminary_cri":50,"final_cri":52,
			"triage_level":"High","explanation":"e","recommendation":"r","hospital_recommendation":null}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL, 0).AnalyzeStructured(context.Background(), structured())
	require.NoError(t, err)

	assert.Equal(t, "lung", query["cancer_type"])
	assert.Equal(t, "61", query["age"])
	assert.Equal(t, `["cough","weight loss"]`, query["symptoms"])
	assert.Equal(t, `[]`, query["risk_factors"], "empty list is still a JSON array")
	assert.Equal(t, []string{"file"}, parts)
	assert.Equal(t, "chest.png", filename)
	assert.Equal(t, "image/png", mediaType)
	assert.Equal(t, png, fileBytes)
}

func TestFreeFormEncodingOmitsBlankChannels(t *testing.T) {
	var parts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for name := range r.MultipartForm.Value {
			parts = append(parts, name)
		}
		for name := range r.MultipartForm.File {
			parts = append(parts, name)
		}
		_, _ = w.Write([]byte(`{"is_relevant":true,"reason":"ok"}`))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, 0)
	_, err := c.AnalyzeFreeForm(context.Background(), submission.Submission{
		Variant: submission.VariantFreeForm,
		Image:   &submission.Image{Filename: "x.png", MediaType: "image/png", Data: png},
		Text:    "   ",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"file"}, parts)
}

func TestNonSuccessStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"detail surfaced", http.StatusBadRequest, `{"detail":"bad image"}`, "bad image"},
		{"unparseable body", http.StatusInternalServerError, `<html>oops</html>`, errors.MsgGenericFailure},
		{"empty body", http.StatusBadGateway, ``, errors.MsgGenericFailure},
		{"blank detail", http.StatusBadRequest, `{"detail":"  "}`, errors.MsgGenericFailure},
		{"validation list", http.StatusUnprocessableEntity, `{"detail":[{"loc":["query","age"],"msg":"Input should be between 0 and 120"}]}`, "Input should be between 0 and 120"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newClient(t, srv.URL, 0).AnalyzeFreeForm(context.Background(), submission.Submission{
				Variant: submission.VariantFreeForm, Text: "cough",
			})
			require.Error(t, err)
			assert.Equal(t, errors.CodeTransport, errors.GetCode(err))
			assert.True(t, core.IsTransportError(err))

			st := request.OutcomeFrom(nil, err).StateFor(1)
			assert.Equal(t, request.KindFailed, st.Kind())
			assert.Equal(t, tt.message, st.Message())
		})
	}
}

func TestContractViolation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cancer_type":"lung","ml_confidence":0.5}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL, 0).AnalyzeStructured(context.Background(), structured())
	require.Error(t, err)
	assert.Equal(t, errors.CodeContractViolation, errors.GetCode(err))
	assert.ErrorIs(t, err, core.ErrContractViolation)

	appErr, _ := errors.As(err)
	assert.Equal(t, errors.MsgUnexpectedResponse, appErr.UserMessage())
}

func TestTimeoutSurfacesAsTransport(t *testing.T) {
	srv := stubServer(t, stub.Options{Delay: 2 * time.Second})
	c := newClient(t, srv.URL, 100*time.Millisecond)

	_, err := c.AnalyzeStructured(context.Background(), structured())
	require.Error(t, err)
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeTransport, appErr.Code)
	assert.Equal(t, errors.MsgTimeout, appErr.UserMessage())
}

func TestContextDeadline(t *testing.T) {
	srv := stubServer(t, stub.Options{Delay: 2 * time.Second})
	c := newClient(t, srv.URL, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.AnalyzeFreeForm(ctx, submission.Submission{Variant: submission.VariantFreeForm, Text: "lump"})
	require.Error(t, err)
	appErr, _ := errors.As(err)
	assert.Equal(t, errors.MsgTimeout, appErr.UserMessage())
}

func TestConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newClient(t, url, time.Second)
	_, err := c.AnalyzeFreeForm(context.Background(), submission.Submission{Variant: submission.VariantFreeForm, Text: "lump"})
	require.Error(t, err)
	appErr, _ := errors.As(err)
	assert.Equal(t, errors.MsgGenericFailure, appErr.UserMessage())

	assert.Error(t, c.Health(context.Background()))
}

func TestInvalidConfig(t *testing.T) {
	cfg := api.DefaultClientConfig()
	cfg.BaseURL = "localhost:8000"
	_, err := api.NewClient(cfg, nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))

	cfg = api.DefaultClientConfig()
	cfg.Timeout = 0
	assert.Error(t, cfg.Validate())
}
