// Package analysis is the persisted form of a finished analysis.
package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
)

// ID identifier type
type ID string

// ErrNotFound is returned by repositories for unknown ids.
var ErrNotFound = errors.New("analysis not found")

// Record is one stored analysis: the summary columns plus the full result as
// JSON. The essay text is kept so later workshop requests can refer to the
// analysis alone.
type Record struct {
	ID         ID              `json:"id"`
	TenantID   string          `json:"tenant_id"`
	EssayType  essay.EssayType `json:"essay_type"`
	WordCount  int             `json:"word_count"`
	Aggregate  float64         `json:"aggregate_score"`
	Percentile int             `json:"percentile"`
	Tier       essay.Tier      `json:"tier"`
	Degraded   bool            `json:"degraded"`
	ReportURL  string          `json:"report_url,omitempty"`
	Text       string          `json:"-"`
	Result     string          `json:"-"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewRecord summarises res for storage.
func NewRecord(tenant, text string, res *essay.AnalysisResult) (*Record, error) {
	body, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode analysis %s: %w", res.ID, err)
	}
	return &Record{
		ID:         ID(res.ID),
		TenantID:   tenant,
		EssayType:  res.EssayType,
		WordCount:  res.WordCount,
		Aggregate:  res.Insights.AggregateScore,
		Percentile: res.Insights.Percentile,
		Tier:       essay.TierFor(res.Insights.AggregateScore),
		Degraded:   res.Degraded,
		Text:       text,
		Result:     string(body),
		CreatedAt:  res.CreatedAt,
	}, nil
}

// Decode restores the full result.
func (r *Record) Decode() (*essay.AnalysisResult, error) {
	var res essay.AnalysisResult
	if err := json.Unmarshal([]byte(r.Result), &res); err != nil {
		return nil, fmt.Errorf("decode analysis %s: %w", r.ID, err)
	}
	return &res, nil
}
