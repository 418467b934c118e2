package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/chromatrace/internal/analysis"
	"github.com/chrissnell/chromatrace/internal/chrom"
	"github.com/chrissnell/chromatrace/internal/filtration"
	"github.com/chrissnell/chromatrace/internal/log"
)

// MessageReader is the consuming side of a topic.
type MessageReader interface {
	Consume(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// MessageWriter is the producing side of a topic.
type MessageWriter interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Analyzer is the part of analysis.Service the worker drives.
type Analyzer interface {
	ExtractPhases(ctx context.Context, runID string) ([]chrom.Phase, error)
	AnnotateFractions(ctx context.Context, req analysis.FractionRequest) ([]chrom.AnnotatedFraction, error)
	LoadSummary(ctx context.Context, req analysis.LoadRequest) (chrom.LoadSummary, error)
	ComputeFlux(ctx context.Context, req analysis.FluxRequest) (filtration.FluxResult, error)
	MassBalance(ctx context.Context, experimentID string) (filtration.MassBalance, error)
	AnalyzeRuns(ctx context.Context, runIDs []string, tmpl analysis.FractionRequest) ([]analysis.RunAnalysis, error)
}

// Worker consumes analysis requests, runs them and publishes one Result per
// request. Offsets are committed after the result is published, so a
// request whose result could not be published is redelivered.
type Worker struct {
	reader   MessageReader
	writer   MessageWriter
	analyzer Analyzer
	handlers int
	logger   *zap.SugaredLogger
}

// NewWorker creates a worker with the given number of concurrent handlers.
func NewWorker(reader MessageReader, writer MessageWriter, analyzer Analyzer, handlers int, logger *zap.SugaredLogger) *Worker {
	if handlers < 1 {
		handlers = 1
	}
	return &Worker{
		reader:   reader,
		writer:   writer,
		analyzer: analyzer,
		handlers: handlers,
		logger:   log.OrNop(logger),
	}
}

// Run fetches messages until ctx is cancelled. It returns nil on
// cancellation and the first publish or commit error otherwise.
//
// Messages are routed to handlers by partition, so each partition is
// processed and committed in offset order. A failed message stops the
// worker before any later offset of its partition is committed.
func (w *Worker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	lanes := make([]chan kafka.Message, w.handlers)
	for i := range lanes {
		lanes[i] = make(chan kafka.Message)
	}

	g.Go(func() error {
		defer func() {
			for _, lane := range lanes {
				close(lane)
			}
		}()
		for {
			msg, err := w.reader.Consume(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				w.logger.Warnw("failed to consume request", "error", err)
				select {
				case <-gctx.Done():
					return nil
				case <-time.After(time.Second):
				}
				continue
			}
			select {
			case lanes[w.lane(msg)] <- msg:
			case <-gctx.Done():
				return nil
			}
		}
	})

	for _, lane := range lanes {
		g.Go(func() error {
			for msg := range lane {
				if err := w.process(gctx, msg); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// lane picks the handler for msg. Every message of a partition goes to the
// same handler.
func (w *Worker) lane(msg kafka.Message) int {
	p := msg.Partition % w.handlers
	if p < 0 {
		p = -p
	}
	return p
}

// process handles one message and commits it.
func (w *Worker) process(ctx context.Context, msg kafka.Message) error {
	req, err := DecodeRequest(msg.Value)
	if err != nil {
		w.logger.Warnw("dropping malformed request", "offset", msg.Offset, "error", err)
		return w.reader.Commit(ctx, msg)
	}

	res := w.Handle(ctx, req)
	data, err := EncodeResult(res)
	if err != nil {
		return fmt.Errorf("failed to encode result of job %s: %w", req.JobID, err)
	}
	if err := w.writer.Publish(ctx, req.JobID, data); err != nil {
		return fmt.Errorf("failed to publish result of job %s: %w", req.JobID, err)
	}
	return w.reader.Commit(ctx, msg)
}

// Handle runs one request and always returns a Result.
func (w *Worker) Handle(ctx context.Context, req Request) Result {
	start := time.Now()
	payload, err := w.dispatch(ctx, req)

	res := Result{
		JobID:       req.JobID,
		Kind:        req.Kind,
		Status:      StatusOK,
		CompletedAt: time.Now().UTC(),
	}
	if err == nil {
		res.Payload, err = json.Marshal(payload)
	}
	if err != nil {
		res.Status = StatusError
		res.Error = err.Error()
		res.Payload = nil
		w.logger.Infow("analysis job failed", "job", req.JobID, "kind", req.Kind, "error", err)
		return res
	}

	w.logger.Debugw("analysis job done", "job", req.JobID, "kind", req.Kind, "duration", time.Since(start))
	return res
}

func (w *Worker) dispatch(ctx context.Context, req Request) (any, error) {
	switch req.Kind {
	case KindPhases:
		return w.analyzer.ExtractPhases(ctx, req.RunID)
	case KindFractions:
		fr := analysis.FractionRequest{}
		if req.Fractions != nil {
			fr = *req.Fractions
		}
		if fr.RunID == "" {
			fr.RunID = req.RunID
		}
		return w.analyzer.AnnotateFractions(ctx, fr)
	case KindLoad:
		lr := analysis.LoadRequest{RunID: req.RunID}
		if req.Load != nil {
			lr = *req.Load
		}
		if lr.RunID == "" {
			lr.RunID = req.RunID
		}
		return w.analyzer.LoadSummary(ctx, lr)
	case KindFlux:
		if req.Flux == nil {
			return nil, fmt.Errorf("flux request without parameters")
		}
		return w.analyzer.ComputeFlux(ctx, *req.Flux)
	case KindMassBalance:
		return w.analyzer.MassBalance(ctx, req.Experiment)
	case KindAnalyzeRuns:
		tmpl := analysis.FractionRequest{}
		if req.Fractions != nil {
			tmpl = *req.Fractions
		}
		return w.analyzer.AnalyzeRuns(ctx, req.RunIDs, tmpl)
	}
	return nil, fmt.Errorf("unknown request kind %q", req.Kind)
}
