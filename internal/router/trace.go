package router

import "time"

type State string

const (
	StateInit           State = "init"
	StateConfigLoaded   State = "config_loaded"
	StateScored         State = "scored"
	StateCacheHit       State = "cache_hit"
	StateWebFetch       State = "web_fetch"
	StateAnswerFromWeb  State = "answer_from_web"
	StateAnswerFallback State = "answer_fallback_generic"
	StateGenerate       State = "generate"
	StateLogged         State = "logged"
)

type Branch string

const (
	BranchCacheHit Branch = "cache_hit"
	BranchWeb      Branch = "web"
	BranchFallback Branch = "fallback"
)

type Reason string

const (
	ReasonNone              Reason = ""
	ReasonDefaults          Reason = "config_defaults"
	ReasonScoreFailed       Reason = "score_failed"
	ReasonConfidentMatch    Reason = "confident_match"
	ReasonLowConfidence     Reason = "low_confidence"
	ReasonForcedDebug       Reason = "forced_debug"
	ReasonNoURLs            Reason = "no_urls"
	ReasonWebSearchDisabled Reason = "web_search_disabled"
	ReasonFetchFailed       Reason = "fetch_failed"
	ReasonFetchTimeout      Reason = "fetch_timeout"
	ReasonFetchEmpty        Reason = "fetch_empty"
	ReasonFallbackTrigger   Reason = "fallback_trigger"
	ReasonGenerated         Reason = "generated"
	ReasonGenerateFailed    Reason = "generate_failed"
	ReasonGenerateSkipped   Reason = "generate_skipped"
)

// Step is one transition of the routing state machine.
type Step struct {
	State   State         `json:"state"`
	Reason  Reason        `json:"reason,omitempty"`
	Detail  string        `json:"detail,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

type Trace struct {
	Steps []Step `json:"steps"`
	start time.Time
	now   func() time.Time
}

func newTrace(now func() time.Time) *Trace {
	t := &Trace{start: now(), now: now}
	t.add(StateInit, ReasonNone, "")
	return t
}

func (t *Trace) add(state State, reason Reason, detail string) {
	t.Steps = append(t.Steps, Step{
		State:   state,
		Reason:  reason,
		Detail:  detail,
		Elapsed: t.now().Sub(t.start),
	})
}

// Has reports whether the trace passed through state.
func (t *Trace) Has(state State) bool {
	for _, s := range t.Steps {
		if s.State == state {
			return true
		}
	}
	return false
}

// ReasonFor returns the reason recorded at the first visit of state.
func (t *Trace) ReasonFor(state State) Reason {
	for _, s := range t.Steps {
		if s.State == state {
			return s.Reason
		}
	}
	return ReasonNone
}

func (t *Trace) States() []State {
	out := make([]State, len(t.Steps))
	for i, s := range t.Steps {
		out[i] = s.State
	}
	return out
}
