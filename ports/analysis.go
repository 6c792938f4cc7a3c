package ports

import (
	"context"

	"oncodetect/domain/submission"
	"oncodetect/domain/triage"
)

// AnalysisService is the remote analysis collaborator. Implementations
// return *errors.AppError values coded as transport or contract failures.
type AnalysisService interface {
	// AnalyzeFreeForm submits an image and/or clinical notes (endpoint A)
	AnalyzeFreeForm(ctx context.Context, sub submission.Submission) (*triage.ScreeningResult, error)

	// AnalyzeStructured submits a scan with structured clinical fields (endpoint B)
	AnalyzeStructured(ctx context.Context, sub submission.Submission) (*triage.TriageAssessment, error)

	// Health checks that the service is reachable
	Health(ctx context.Context) error
}
