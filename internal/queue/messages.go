package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chrissnell/chromatrace/internal/analysis"
)

// Request kinds.
const (
	KindPhases      = "phases"
	KindFractions   = "fractions"
	KindLoad        = "load"
	KindFlux        = "flux"
	KindMassBalance = "mass_balance"
	KindAnalyzeRuns = "analyze_runs"
)

// Result statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Request asks a worker to run one analysis. Only the field matching Kind
// is read.
type Request struct {
	JobID       string                    `json:"job_id"`
	Kind        string                    `json:"kind"`
	RunID       string                    `json:"run_id,omitempty"`
	RunIDs      []string                  `json:"run_ids,omitempty"`
	Experiment  string                    `json:"experiment_id,omitempty"`
	Fractions   *analysis.FractionRequest `json:"fractions,omitempty"`
	Flux        *analysis.FluxRequest     `json:"flux,omitempty"`
	Load        *analysis.LoadRequest     `json:"load,omitempty"`
	SubmittedAt time.Time                 `json:"submitted_at"`
}

// NewRequest returns a request of the given kind with a fresh job id.
func NewRequest(kind string) Request {
	return Request{
		JobID:       uuid.NewString(),
		Kind:        kind,
		SubmittedAt: time.Now().UTC(),
	}
}

// Result is published for every consumed request.
type Result struct {
	JobID       string          `json:"job_id"`
	Kind        string          `json:"kind"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

// EncodeRequest serializes a request.
func EncodeRequest(r Request) ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRequest parses and checks a request.
func DecodeRequest(data []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return Request{}, fmt.Errorf("failed to decode request: %w", err)
	}
	if r.JobID == "" {
		return Request{}, fmt.Errorf("request has no job id")
	}
	if _, err := uuid.Parse(r.JobID); err != nil {
		return Request{}, fmt.Errorf("invalid job id %q: %w", r.JobID, err)
	}
	return r, nil
}

// EncodeResult serializes a result.
func EncodeResult(r Result) ([]byte, error) {
	return json.Marshal(r)
}

// DecodeResult parses a result.
func DecodeResult(data []byte) (Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("failed to decode result: %w", err)
	}
	return r, nil
}
