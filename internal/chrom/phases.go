package chrom

import (
	"sort"
	"strings"

	"github.com/chrissnell/chromatrace/internal/log"
	"go.uber.org/zap"
)

const (
	phasePrefix     = "Phase "
	methodSettings  = "Method Settings"
	issuedMarker    = "(Issued)"
	processingMark  = "(Processing)"
	endPhaseMarker  = "End Phase (Issued)(Processing)(Completed)"
	endBlockMarker  = "End_Block (Issued)(Processing)(Completed)"
	spacedMarkerSep = ") ("
)

// extractorState is the state of the phase parser.
type extractorState int

const (
	stateIdle extractorState = iota
	stateOpen
)

// Extraction is the result of scanning a run log.
type Extraction struct {
	// Phases are the closed phases in log order.
	Phases []Phase
	// Abandoned are phases that were opened but replaced by a later phase
	// start (or by Method Settings) before any end marker arrived. Their
	// EndTime is zero.
	Abandoned []Phase
}

// Extractor parses run logs into phases. The zero value is usable.
type Extractor struct {
	logger *zap.SugaredLogger
}

// NewExtractor returns an extractor that reports abandoned phases to logger.
// A nil logger discards them.
func NewExtractor(logger *zap.SugaredLogger) *Extractor {
	return &Extractor{logger: logger}
}

// ExtractPhases is shorthand for NewExtractor(nil).Extract(events).Phases.
func ExtractPhases(events []LogEvent) []Phase {
	return NewExtractor(nil).Extract(events).Phases
}

// Extract scans events in time order. A phase start marker opens a phase, an
// End Phase marker closes the open one. A second start while a phase is open
// replaces it (last start wins) and the replaced phase is reported in
// Abandoned. A phase still open at the end of the log is closed by the last
// End_Block marker in the log, wherever that marker falls.
func (e *Extractor) Extract(events []LogEvent) Extraction {
	logger := log.OrNop(e.logger)

	rows := make([]LogEvent, 0, len(events))
	for _, ev := range events {
		if ev.Text != "" {
			rows = append(rows, ev)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Time.Before(rows[j].Time)
	})

	var (
		result Extraction
		state  = stateIdle
		open   Phase
	)

	abandon := func(reason string) {
		logger.Warnw("abandoning open phase",
			"phase", open.Label, "start_time", open.StartTime, "reason", reason)
		result.Abandoned = append(result.Abandoned, open)
		open = Phase{}
		state = stateIdle
	}

	for _, row := range rows {
		if label, ok := parsePhaseStart(row.Text); ok {
			if state == stateOpen {
				abandon("superseded by " + label)
			}
			if label == methodSettings {
				continue
			}
			open = Phase{
				Label:       label,
				StartTime:   row.Time,
				StartVolume: row.Volume,
			}
			state = stateOpen
			continue
		}

		if state == stateOpen && isEndPhase(row.Text) {
			open.EndTime = row.Time
			open.EndVolume = row.Volume
			result.Phases = append(result.Phases, open)
			open = Phase{}
			state = stateIdle
		}
	}

	if state == stateOpen {
		if last, ok := lastEndBlock(rows); ok {
			open.EndTime = last.Time
			open.EndVolume = last.Volume
			result.Phases = append(result.Phases, open)
		} else {
			abandon("no end marker")
		}
	}

	return result
}

// normalizeMarker collapses the instrument's spaced marker form
// "(Issued) (Processing)" into "(Issued)(Processing)".
func normalizeMarker(text string) string {
	return strings.ReplaceAll(text, spacedMarkerSep, ")(")
}

func parsePhaseStart(text string) (string, bool) {
	if !strings.HasPrefix(text, phasePrefix) {
		return "", false
	}
	norm := normalizeMarker(text)
	if !strings.Contains(norm, issuedMarker) || !strings.Contains(norm, processingMark) {
		return "", false
	}
	label := strings.TrimPrefix(text, phasePrefix)
	if i := strings.Index(label, " ("); i >= 0 {
		label = label[:i]
	}
	return label, true
}

func isEndPhase(text string) bool {
	return strings.Contains(normalizeMarker(text), endPhaseMarker)
}

func isEndBlock(text string) bool {
	return strings.Contains(normalizeMarker(text), endBlockMarker)
}

func lastEndBlock(rows []LogEvent) (LogEvent, bool) {
	for i := len(rows) - 1; i >= 0; i-- {
		if isEndBlock(rows[i].Text) {
			return rows[i], true
		}
	}
	return LogEvent{}, false
}
