// Package runerrors records why analyses failed.
package runerrors

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
)

// RunError represents a persisted pipeline failure entry
type RunError struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	AnalysisID  string    `json:"analysis_id"`
	Stage       string    `json:"stage,omitempty"`
	Analyzer    string    `json:"analyzer,omitempty"`
	Attempts    int       `json:"attempts,omitempty"`
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// FromError describes err. Stage failures keep their stage, analyzer and
// attempt count; structural errors are filed under "structural".
func FromError(tenant, analysisID string, err error, at time.Time) *RunError {
	e := &RunError{TenantID: tenant, AnalysisID: analysisID, Message: err.Error(), CreatedAt: at}
	if sf, ok := essay.AsStageFailed(err); ok {
		e.Stage, e.Analyzer, e.Attempts = sf.Stage, sf.Analyzer, sf.Attempts
		if sf.Err != nil {
			details, _ := json.Marshal(map[string]string{"cause": sf.Err.Error()})
			e.DetailsJSON = string(details)
		}
		return e
	}
	var se *essay.StructuralError
	if errors.As(err, &se) {
		e.Stage = "structural"
	}
	return e
}
