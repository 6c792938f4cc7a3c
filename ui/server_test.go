package ui

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	analysisapi "oncodetect/adapters/api"
	"oncodetect/adapters/preview"
	"oncodetect/adapters/stub"
	"oncodetect/app"
	"oncodetect/domain/submission"
	"oncodetect/internal/api"
	"oncodetect/ui/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var pngImage = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R', 1, 2, 3}

type harness struct {
	t      *testing.T
	server *Server
	cases  *app.CaseService
	cookie *http.Cookie
}

func newHarness(t *testing.T, upstream string) *harness {
	t.Helper()
	return newHarnessWithStore(t, upstream, preview.NewMemoryStore(0))
}

func newHarnessWithStore(t *testing.T, upstream string, previews *preview.MemoryStore) *harness {
	t.Helper()
	if upstream == "" {
		stubSrv := httptest.NewServer(stub.NewService(stub.Options{}, nil))
		t.Cleanup(stubSrv.Close)
		upstream = stubSrv.URL
	}

	cfg := analysisapi.DefaultClientConfig()
	cfg.BaseURL = upstream
	cfg.Timeout = 2 * time.Second
	client, err := analysisapi.NewClient(cfg, nil)
	require.NoError(t, err)

	hub := api.NewSSEHub(nil)
	t.Cleanup(hub.Close)

	cases := app.NewCaseService(client, previews, hub, nil, app.CaseServiceConfig{MaxImageBytes: 1 << 20}, nil)
	t.Cleanup(cases.Close)

	server, err := NewServer(Config{SessionTTL: time.Hour, MaxImageBytes: 1 << 20}, cases, hub, nil)
	require.NoError(t, err)
	return &harness{t: t, server: server, cases: cases}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	h.t.Helper()
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.DefaultCookieName {
			h.cookie = c
		}
	}
	return w
}

func (h *harness) get(path string, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return h.do(req)
}

func (h *harness) postForm(path string, values url.Values, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if accept != "" {
		req.Header.Set("Accept", accept)
	} else {
		req.Header.Set("HX-Request", "true")
	}
	return h.do(req)
}

func (h *harness) upload(path, filename, mediaType string, data []byte, accept string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", mediaType)
	part, err := mw.CreatePart(header)
	require.NoError(h.t, err)
	_, _ = part.Write(data)
	require.NoError(h.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return h.do(req)
}

type snapshotJSON struct {
	State   string `json:"state"`
	Preview string `json:"preview"`
	View    struct {
		Status     string `json:"status"`
		Message    string `json:"message"`
		Alarming   bool   `json:"alarming"`
		Assessment *struct {
			Level             string `json:"level"`
			ConfidencePercent int    `json:"confidence_percent"`
		} `json:"assessment"`
		Charts []json.RawMessage `json:"charts"`
	} `json:"view"`
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) snapshotJSON {
	t.Helper()
	var envelope struct {
		Snapshot *snapshotJSON `json:"snapshot"`
		Error    string        `json:"error"`
	}
	body := w.Body.Bytes()
	require.NoError(t, json.Unmarshal(body, &envelope))
	if envelope.Snapshot != nil {
		return *envelope.Snapshot
	}
	var snap snapshotJSON
	require.NoError(t, json.Unmarshal(body, &snap))
	return snap
}

func TestPagesRenderAndIssueSession(t *testing.T) {
	h := newHarness(t, "")

	w := h.get("/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "OncoDetect")
	require.NotNil(t, h.cookie)
	assert.True(t, h.cookie.HttpOnly)

	w = h.get("/how-it-works", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<table>")
	assert.Contains(t, w.Body.String(), `class="active"`)

	w = h.get("/screening", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Brain (MRI)")
	assert.Contains(t, w.Body.String(), `value="45"`)

	w = h.get("/analysis", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Awaiting patient data")
}

func TestStructuredFlow(t *testing.T) {
	h := newHarness(t, "")
	h.get("/screening", "")

	w := h.upload("/api/cases/structured/image", "scan.png", "image/png", pngImage, gin.MIMEJSON)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decodeSnapshot(t, w)
	require.NotEmpty(t, snap.Preview)

	w = h.get("/preview/"+snap.Preview, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, pngImage, w.Body.Bytes())

	req := httptest.NewRequest(http.MethodGet, "/preview/"+snap.Preview, nil)
	req.Header.Set("If-None-Match", w.Header().Get("ETag"))
	assert.Equal(t, http.StatusNotModified, h.do(req).Code)

	w = h.postForm("/api/cases/structured/submit", url.Values{
		"organ":        {"lung"},
		"age":          {"61"},
		"symptoms":     {"cough, weight loss"},
		"risk_factors": {"smoker"},
	}, gin.MIMEJSON)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	h.cases.Wait()
	w = h.get("/api/cases/structured/state", gin.MIMEJSON)
	require.Equal(t, http.StatusOK, w.Code)
	snap = decodeSnapshot(t, w)
	assert.Equal(t, "succeeded", snap.State)
	assert.Equal(t, "assessment", snap.View.Status)
	require.NotNil(t, snap.View.Assessment)
	assert.NotEmpty(t, snap.View.Assessment.Level)

	w = h.get("/api/cases/structured/state", "")
	assert.Contains(t, w.Body.String(), "Clinical reasoning")
	assert.Contains(t, w.Body.String(), "/ 100")
}

func TestFreeFormFlowRendersCharts(t *testing.T) {
	h := newHarness(t, "")
	h.get("/analysis", "")

	w := h.postForm("/api/cases/freeform/submit", url.Values{
		"text": {"Patient reports a lump and persistent fatigue."},
	}, "")
	require.Equal(t, http.StatusOK, w.Code)

	h.cases.Wait()
	w = h.get("/api/cases/freeform/state", gin.MIMEJSON)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, "screening", snap.View.Status)
	assert.Len(t, snap.View.Charts, 2)

	w = h.get("/api/cases/freeform/state", "")
	body := w.Body.String()
	assert.Contains(t, body, "data-chart=")
	assert.Contains(t, body, `class="narrative"`)
	assert.NotContains(t, body, "hx-trigger=\"every 1s\"")
}

func TestValidationIsSurfacedWithoutCall(t *testing.T) {
	h := newHarness(t, "")
	h.get("/analysis", "")

	w := h.postForm("/api/cases/freeform/submit", url.Values{}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), submission.MsgNeedContent)

	w = h.postForm("/api/cases/structured/submit", url.Values{"symptoms": {"cough"}}, gin.MIMEJSON)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, "idle", snap.State)
	assert.Equal(t, submission.MsgNeedImage, snap.View.Message)
}

func TestNonImageUploadRejected(t *testing.T) {
	h := newHarness(t, "")
	h.get("/analysis", "")

	w := h.upload("/api/cases/freeform/image", "notes.txt", "text/plain", []byte("hello"), gin.MIMEJSON)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), submission.MsgNotAnImage)

	w = h.upload("/api/cases/freeform/image", "notes.txt", "text/plain", []byte("hello"), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), submission.MsgNotAnImage)
}

func TestUpstreamFailureIsAlarming(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"Invalid image file: cannot identify image file"}`))
	}))
	defer upstream.Close()

	h := newHarness(t, upstream.URL)
	h.get("/analysis", "")
	h.postForm("/api/cases/freeform/submit", url.Values{"text": {"lump"}}, "")
	h.cases.Wait()

	w := h.get("/api/cases/freeform/state", gin.MIMEJSON)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, "failed", snap.View.Status)
	assert.True(t, snap.View.Alarming)
	assert.Equal(t, "Invalid image file: cannot identify image file", snap.View.Message)

	// navigating away clears the error
	h.get("/research", "")
	snap = decodeSnapshot(t, h.get("/api/cases/freeform/state", gin.MIMEJSON))
	assert.Equal(t, "idle", snap.State)
	assert.Empty(t, snap.View.Message)
}

func TestNotFoundRoutes(t *testing.T) {
	h := newHarness(t, "")
	h.get("/", "")

	assert.Equal(t, http.StatusNotFound, h.get("/api/cases/other/state", gin.MIMEJSON).Code)
	assert.Equal(t, http.StatusNotFound, h.get("/preview/not-a-token", "").Code)

	// a preview of another session is not served
	other := newHarness(t, "")
	other.get("/analysis", "")
	w := other.upload("/api/cases/freeform/image", "a.png", "image/png", pngImage, gin.MIMEJSON)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, http.StatusNotFound, h.get("/preview/"+snap.Preview, "").Code)
}

func TestHealth(t *testing.T) {
	h := newHarness(t, "")
	w := h.get("/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"upstream":"healthy"`)

	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()
	h = newHarness(t, url)
	w = h.get("/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestExhaustedPreviewsShownInImageSlot(t *testing.T) {
	h := newHarnessWithStore(t, "", preview.NewMemoryStore(int64(len(pngImage))))
	h.get("/analysis", "")
	w := h.upload("/api/cases/freeform/image", "a.png", "image/png", pngImage, gin.MIMEJSON)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// a second browser session finds the store full
	first := h.cookie
	h.cookie = nil
	h.get("/analysis", "")
	require.NotEqual(t, first.Value, h.cookie.Value)

	w = h.upload("/api/cases/freeform/image", "b.png", "image/png", pngImage, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), submission.MsgPreviewBusy)
	assert.NotContains(t, w.Body.String(), "An error occurred during analysis")

	w = h.upload("/api/cases/freeform/image", "b.png", "image/png", pngImage, gin.MIMEJSON)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), submission.MsgPreviewBusy)
}

func TestNavigationClearsSettledResult(t *testing.T) {
	h := newHarness(t, "")
	h.get("/analysis", "")
	h.postForm("/api/cases/freeform/submit", url.Values{"text": {"Patient reports a lump."}}, "")
	h.cases.Wait()

	snap := decodeSnapshot(t, h.get("/api/cases/freeform/state", gin.MIMEJSON))
	require.Equal(t, "succeeded", snap.State)
	require.NotEmpty(t, snap.View.Charts)

	h.get("/clinicians", "")
	snap = decodeSnapshot(t, h.get("/api/cases/freeform/state", gin.MIMEJSON))
	assert.Equal(t, "idle", snap.State)
	assert.Empty(t, snap.View.Charts)
	assert.Empty(t, snap.View.Message)
}
