package analysis

import "errors"

// Validation errors are returned before any data is fetched.
var (
	ErrInvalidSmoothingWindow       = errors.New("smoothing window must not be negative")
	ErrInvalidFilterArea            = errors.New("filter area must be a finite, non-negative number")
	ErrInvalidExtinctionCoefficient = errors.New("extinction coefficient must be a finite, non-negative number")
	ErrInvalidPathLength            = errors.New("path length must be a finite, positive number")
	ErrInvalidFeedConcentration     = errors.New("feed concentration must be a finite, non-negative number")
	ErrInvalidReferenceFlux         = errors.New("reference flux must be a finite number")
	ErrInvalidUnitStep              = errors.New("unknown unit step")
	ErrNoRuns                       = errors.New("no runs requested")
)

// Lookup errors are returned by a Source when the requested record does not
// exist.
var (
	ErrRunNotFound        = errors.New("run not found")
	ErrExperimentNotFound = errors.New("experiment not found")
	ErrPhaseNotFound      = errors.New("reference phase not found")
)

// ErrReadOnly is returned when a write is requested from a Source that cannot
// store results.
var ErrReadOnly = errors.New("results store is read-only")

// IsValidation reports whether err was caused by an invalid request.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidSmoothingWindow,
		ErrInvalidFilterArea,
		ErrInvalidExtinctionCoefficient,
		ErrInvalidPathLength,
		ErrInvalidFeedConcentration,
		ErrInvalidReferenceFlux,
		ErrInvalidUnitStep,
		ErrNoRuns,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err means the requested record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrExperimentNotFound) ||
		errors.Is(err, ErrPhaseNotFound)
}
