package pipeline

import "time"

// Mark names one of the stable telemetry points a performance harness observes (spec.md
// §6). Names are exported as constants so callers never need to spell them out as strings.
type Mark string

const (
	MarkResolveArgs     Mark = "RESOLVE_ARGS"
	MarkGetCapabilities Mark = "GET_CAPABILITIES"
	MarkGetBuildFiles   Mark = "GET_BUILD_FILES"
	MarkHashExtraFiles  Mark = "HASH_EXTRA_FILES"
	MarkGetPrgID        Mark = "GET_PRG_ID"
	MarkFilterArgs      Mark = "FILTER_ARGS"
	MarkHashInputFiles  Mark = "HASH_INPUT_FILES"
	MarkPreprocess      Mark = "PREPROCESS"
	MarkRunForMiss      Mark = "RUN_FOR_MISS"
)

// A Timing is one recorded mark: how long the step named by Mark took.
type Timing struct {
	Mark     Mark
	Duration time.Duration
}

// Telemetry accumulates Timings for a single pipeline invocation. The zero value is ready
// to use. This is deliberately not a metrics SDK — spec.md scopes metrics export out — it
// exists purely so the pipeline's own tests and an optional performance harness can observe
// where an invocation spent its time.
type Telemetry struct {
	Timings []Timing
}

// mark records how long f took to run against the named Mark, and returns f's error.
func (t *Telemetry) mark(m Mark, f func() error) error {
	start := time.Now()
	err := f()
	t.Timings = append(t.Timings, Timing{Mark: m, Duration: time.Since(start)})
	return err
}

// Duration returns the recorded duration for the first Timing matching m, or zero if m was
// never recorded.
func (t *Telemetry) Duration(m Mark) time.Duration {
	for _, timing := range t.Timings {
		if timing.Mark == m {
			return timing.Duration
		}
	}
	return 0
}
