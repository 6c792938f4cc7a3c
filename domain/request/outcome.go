package request

import (
	"oncodetect/domain/core"
	"oncodetect/domain/triage"
	"oncodetect/internal/errors"
)

// Outcome is what a finished network call produced: a result or an error
type Outcome struct {
	Result triage.AnalysisResult
	Err    error
}

// OutcomeFrom pairs a service call's return values
func OutcomeFrom(result triage.AnalysisResult, err error) Outcome {
	return Outcome{Result: result, Err: err}
}

// StateFor maps an outcome onto the settled state for attempt id. Every
// error kind ends in Failed; only a screening result with is_relevant=false
// ends in Rejected.
func (o Outcome) StateFor(id core.AttemptID) State {
	if o.Err != nil {
		return FailedWith(id, failureFor(o.Err))
	}
	if o.Result == nil {
		return FailedWith(id, errors.ContractViolation(core.NewContractError("body")))
	}
	if !o.Result.Relevant() {
		reason := ""
		if sr, ok := o.Result.(*triage.ScreeningResult); ok {
			reason = sr.Reason
		}
		return RejectedWith(id, reason)
	}
	return SucceededWith(id, o.Result)
}

func failureFor(err error) *errors.AppError {
	appErr, ok := errors.As(err)
	if !ok {
		if core.IsContractViolation(err) {
			return errors.ContractViolation(err)
		}
		return errors.Transport("", err)
	}
	switch appErr.Code {
	case errors.CodeContractViolation:
		// user never sees integration detail
		return errors.ContractViolation(appErr.Cause)
	case errors.CodeTransport, errors.CodeValidationError:
		return appErr
	default:
		return errors.Transport("", appErr)
	}
}
