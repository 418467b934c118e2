package restserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/chrissnell/chromatrace/internal/analysis"
	"github.com/chrissnell/chromatrace/internal/filtration"
	"github.com/chrissnell/chromatrace/pkg/responseformat"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// badRequest marks errors caused by unparseable query parameters.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br), analysis.IsValidation(err):
		return http.StatusBadRequest
	case analysis.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, analysis.ErrReadOnly):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) fail(w http.ResponseWriter, req *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.controller.logger.Errorw("request failed", "path", req.URL.Path, "error", err)
		if status == http.StatusInternalServerError {
			err = errors.New("internal error")
		}
	}
	if werr := h.formatter.WriteError(w, req, status, err); werr != nil {
		h.controller.logger.Warnw("error writing error response", "error", werr)
	}
}

func (h *Handlers) write(w http.ResponseWriter, req *http.Request, data any) {
	if err := h.formatter.WriteResponse(w, req, data, nil); err != nil {
		h.controller.logger.Warnw("error writing response", "path", req.URL.Path, "error", err)
	}
}

// writeFigure encodes figures through their JSON form so that both output
// formats carry the flattened yaxis keys.
func (h *Handlers) writeFigure(w http.ResponseWriter, req *http.Request, figure any) {
	raw, err := json.Marshal(figure)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	if err := h.formatter.WriteRawJSON(w, req, raw); err != nil {
		h.controller.logger.Warnw("error writing figure", "path", req.URL.Path, "error", err)
	}
}

// Query parameter parsing

func queryBool(q url.Values, key string) (bool, error) {
	v := q.Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, badRequest{fmt.Errorf("%s: expected a boolean, got %q", key, v)}
	}
	return b, nil
}

func queryFloat(q url.Values, key string) (*float64, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, badRequest{fmt.Errorf("%s: expected a finite number, got %q", key, v)}
	}
	return &f, nil
}

func queryInt(q url.Values, key string) (*int, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, badRequest{fmt.Errorf("%s: expected an integer, got %q", key, v)}
	}
	return &n, nil
}

// queryList accepts both repeated keys and comma separated values.
func queryList(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func fractionRequest(runID string, q url.Values) (analysis.FractionRequest, error) {
	req := analysis.FractionRequest{RunID: runID, Channel: q.Get("channel")}
	var err error
	if req.E1Percent, err = queryFloat(q, "e1"); err != nil {
		return req, err
	}
	if req.PathLength, err = queryFloat(q, "path_length"); err != nil {
		return req, err
	}
	req.ZeroAtReference, err = queryBool(q, "zero")
	return req, err
}

func fluxRequest(vars map[string]string, q url.Values) (analysis.FluxRequest, error) {
	req := analysis.FluxRequest{ExperimentID: vars["id"]}
	step, err := strconv.Atoi(vars["step"])
	if err != nil {
		return req, badRequest{fmt.Errorf("step: expected an integer, got %q", vars["step"])}
	}
	req.Step = filtration.UnitStep(step)
	if req.FilterArea, err = queryFloat(q, "filter_area"); err != nil {
		return req, err
	}
	if req.FeedConcentration, err = queryFloat(q, "feed_conc"); err != nil {
		return req, err
	}
	if req.SmoothingSeconds, err = queryInt(q, "smoothing"); err != nil {
		return req, err
	}
	req.ReferenceFlux, err = queryFloat(q, "reference")
	return req, err
}

// GetHealth pings every configured dependency.
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, p := range h.controller.backends.Checks {
		if err := p.Ping(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	if err := h.formatter.WriteStatus(w, req, code, status, nil); err != nil {
		h.controller.logger.Warnw("error writing health response", "error", err)
	}
}

// GetRunInfo returns the report metadata of a run.
func (h *Handlers) GetRunInfo(w http.ResponseWriter, req *http.Request) {
	info, err := h.controller.backends.Analyzer.RunInfo(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.write(w, req, info)
}

// GetPhases returns the phases of a run.
func (h *Handlers) GetPhases(w http.ResponseWriter, req *http.Request) {
	phases, err := h.controller.backends.Analyzer.ExtractPhases(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.write(w, req, phases)
}

// GetFractions returns the annotated fraction table of a run.
func (h *Handlers) GetFractions(w http.ResponseWriter, req *http.Request) {
	fr, err := fractionRequest(mux.Vars(req)["id"], req.URL.Query())
	if err != nil {
		h.fail(w, req, err)
		return
	}
	fractions, err := h.controller.backends.Analyzer.AnnotateFractions(req.Context(), fr)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.write(w, req, fractions)
}

// GetLoadSummary returns the load volume and mass of a run.
func (h *Handlers) GetLoadSummary(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	lr := analysis.LoadRequest{RunID: mux.Vars(req)["id"]}
	titer, err := queryFloat(q, "titer")
	if err != nil {
		h.fail(w, req, err)
		return
	}
	if titer != nil {
		if *titer <= 0 {
			h.fail(w, req, badRequest{fmt.Errorf("titer must be positive, got %v", *titer)})
			return
		}
		lr.Titer = *titer
	}
	if lr.ZeroAtReference, err = queryBool(q, "zero"); err != nil {
		h.fail(w, req, err)
		return
	}

	summary, err := h.controller.backends.Analyzer.LoadSummary(req.Context(), lr)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.write(w, req, summary)
}

// GetRunFigure returns the single run chromatogram figure.
func (h *Handlers) GetRunFigure(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	fr, err := fractionRequest(mux.Vars(req)["id"], q)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	show, err := queryBool(q, "fractions")
	if err != nil {
		h.fail(w, req, err)
		return
	}

	figure, err := h.controller.backends.Analyzer.RunFigure(req.Context(), analysis.FigureRequest{
		RunID:           fr.RunID,
		LeftChannels:    queryList(q, "left"),
		RightChannels:   queryList(q, "right"),
		ShowFractions:   show,
		ZeroAtReference: fr.ZeroAtReference,
		E1Percent:       fr.E1Percent,
		PathLength:      fr.PathLength,
	})
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.writeFigure(w, req, figure)
}

// GetAnalyzeRuns returns phases, fractions and load for several runs.
func (h *Handlers) GetAnalyzeRuns(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	tmpl, err := fractionRequest("", q)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	results, err := h.controller.backends.Analyzer.AnalyzeRuns(req.Context(), queryList(q, "runs"), tmpl)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.write(w, req, results)
}

// GetOverlayFigure returns one channel of several runs on a shared axis.
func (h *Handlers) GetOverlayFigure(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	zero, err := queryBool(q, "zero")
	if err != nil {
		h.fail(w, req, err)
		return
	}
	figure, err := h.controller.backends.Analyzer.OverlayFigure(req.Context(), analysis.OverlayRequest{
		RunIDs:          queryList(q, "runs"),
		Channel:         q.Get("channel"),
		ZeroAtReference: zero,
	})
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.writeFigure(w, req, figure)
}

// GetFlux returns the flux series of one unit step.
func (h *Handlers) GetFlux(w http.ResponseWriter, req *http.Request) {
	fr, err := fluxRequest(mux.Vars(req), req.URL.Query())
	if err != nil {
		h.fail(w, req, err)
		return
	}
	result, err := h.controller.backends.Analyzer.ComputeFlux(req.Context(), fr)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.write(w, req, result)
}

// GetFluxFigure returns the multi-axis flux figure of one unit step.
func (h *Handlers) GetFluxFigure(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	fr, err := fluxRequest(mux.Vars(req), q)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	figure, _, err := h.controller.backends.Analyzer.FluxFigure(req.Context(), analysis.FluxFigureRequest{
		Flux:    fr,
		Columns: queryList(q, "columns"),
		X:       q.Get("x"),
	})
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.writeFigure(w, req, figure)
}

// GetMassBalance computes the mass balance of an experiment.
func (h *Handlers) GetMassBalance(w http.ResponseWriter, req *http.Request) {
	mb, err := h.controller.backends.Analyzer.MassBalance(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.write(w, req, mb)
}

// PostMassBalance computes the mass balance and stores it with the experiment.
func (h *Handlers) PostMassBalance(w http.ResponseWriter, req *http.Request) {
	mb, err := h.controller.backends.Analyzer.SaveMassBalance(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.write(w, req, mb)
}

// DeleteCache drops every cached result of one kind.
func (h *Handlers) DeleteCache(w http.ResponseWriter, req *http.Request) {
	kind := mux.Vars(req)["kind"]
	if !slices.Contains(analysis.CacheKinds(), kind) {
		h.fail(w, req, badRequest{fmt.Errorf("unknown cache kind %q", kind)})
		return
	}
	n, err := h.controller.backends.Cache.Invalidate(req.Context(), kind)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.write(w, req, map[string]any{"kind": kind, "deleted": n})
}
