// Package stub implements the remote analysis contract with deterministic,
// canned reasoning. It backs the development stub binary and the client
// tests; no model inference happens here.
package stub

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"oncodetect/adapters/api"
	"oncodetect/domain/core"
	"oncodetect/domain/triage"
	"oncodetect/internal"
)

// Options tunes the stub
type Options struct {
	// Delay is added before every analysis response
	Delay time.Duration
	// MaxUploadBytes bounds multipart parsing
	MaxUploadBytes int64
}

// Service serves the analysis endpoints
type Service struct {
	router *chi.Mux
	opts   Options
	logger *internal.Logger
}

// NewService builds the stub router
func NewService(opts Options, logger *internal.Logger) *Service {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}

	s := &Service{
		router: chi.NewRouter(),
		opts:   opts,
		logger: logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Service) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			s.logger.Debug("[Stub] %s %s -> %d in %v", r.Method, r.URL.Path, ww.Status(), time.Since(start))
		})
	})
}

func (s *Service) setupRoutes() {
	s.router.Get("/", s.handleRoot)
	s.router.Get(api.PathHealth, s.handleHealth)
	s.router.Post(api.PathFreeForm, s.handleFreeForm)
	s.router.Post(api.PathStructured, s.handleStructured)
}

func (s *Service) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "OncoDetect analysis stub is running",
		"status":  "System Operational",
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type screeningResponse struct {
	IsRelevant bool              `json:"is_relevant"`
	Reason     string            `json:"reason"`
	Analysis   *string           `json:"analysis"`
	ChartData  *triage.ChartData `json:"chart_data"`
}

func (s *Service) handleFreeForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil && err != http.ErrNotMultipart {
		writeDetail(w, http.StatusBadRequest, "Invalid multipart body.")
		return
	}

	image, err := readFile(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	text := strings.TrimSpace(r.FormValue("text"))

	if image == nil && text == "" {
		writeDetail(w, http.StatusBadRequest, "Please provide at least an image or text input.")
		return
	}
	if image != nil && !strings.HasPrefix(mimetype.Detect(image).String(), "image/") {
		writeDetail(w, http.StatusBadRequest, "Invalid image file: cannot identify image file")
		return
	}

	if !s.sleep(r) {
		return
	}

	if image == nil && !mentionsOncology(text) {
		writeJSON(w, http.StatusOK, screeningResponse{
			IsRelevant: false,
			Reason:     "The input does not appear to be related to oncology or medical imaging.",
		})
		return
	}

	rng := rand.New(rand.NewSource(int64(core.Seed(append(append([]byte{}, image...), text...)))))
	charts := screeningCharts(rng)
	analysis := screeningNarrative(charts, image != nil, text != "")

	writeJSON(w, http.StatusOK, screeningResponse{
		IsRelevant: true,
		Reason:     "Analysis successful",
		Analysis:   &analysis,
		ChartData:  charts,
	})
}

type assessmentResponse struct {
	CancerType             string  `json:"cancer_type"`
	MLConfidence           float64 `json:"ml_confidence"`
	PreliminaryCRI         int     `json:"preliminary_cri"`
	FinalCRI               int     `json:"final_cri"`
	TriageLevel            string  `json:"triage_level"`
	Explanation            string  `json:"explanation"`
	Recommendation         string  `json:"recommendation"`
	HospitalRecommendation *string `json:"hospital_recommendation"`
}

func (s *Service) handleStructured(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cancerType := q.Get("cancer_type")
	if !knownCancerType(cancerType) {
		writeFieldError(w, "query", "cancer_type", "cancer_type must be one of brain, lung, breast")
		return
	}
	age, err := strconv.Atoi(q.Get("age"))
	if err != nil || age < 0 || age > 120 {
		writeFieldError(w, "query", "age", "Input should be between 0 and 120")
		return
	}

	var symptoms, risks []string
	if json.Unmarshal([]byte(q.Get("symptoms")), &symptoms) != nil ||
		json.Unmarshal([]byte(q.Get("risk_factors")), &risks) != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON format for symptoms or risk_factors")
		return
	}

	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		writeFieldError(w, "body", "file", "Field required")
		return
	}
	image, err := readFile(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if image == nil {
		writeFieldError(w, "body", "file", "Field required")
		return
	}

	if !s.sleep(r) {
		return
	}

	seen := perceive(image)
	prelim := preliminaryCRI(seen, len(symptoms), len(risks))
	cog := reason(prelim)
	final := prelim + cog.adjustment
	final = int(math.Max(0, math.Min(100, float64(final))))

	s.logger.Debug("[Stub] Assessment for %s: prediction=%s confidence=%.2f cri=%d->%d",
		cancerType, seen.prediction, seen.confidence, prelim, final)

	writeJSON(w, http.StatusOK, assessmentResponse{
		CancerType:             cancerType,
		MLConfidence:           seen.confidence,
		PreliminaryCRI:         prelim,
		FinalCRI:               final,
		TriageLevel:            cog.level,
		Explanation:            cog.explanation,
		Recommendation:         cog.recommendation,
		HospitalRecommendation: recommendHospital(cancerType),
	})
}

// sleep honours the configured delay; false means the client went away
func (s *Service) sleep(r *http.Request) bool {
	if s.opts.Delay <= 0 {
		return true
	}
	select {
	case <-time.After(s.opts.Delay):
		return true
	case <-r.Context().Done():
		return false
	}
}

func readFile(r *http.Request) ([]byte, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	f, _, err := r.FormFile("file")
	if err == http.ErrMissingFile {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid file upload: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("invalid file upload: %v", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeFieldError mirrors the list-shaped detail of request validation errors
func writeFieldError(w http.ResponseWriter, location, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
		"detail": []map[string]interface{}{
			{"loc": []string{location, field}, "msg": msg, "type": "value_error"},
		},
	})
}
