package canonical

// Outcome classifies what should happen to the request.
type Outcome string

const (
	// OutcomeNone means the requested URL is already canonical (or is
	// deliberately exempt); serve it as-is.
	OutcomeNone Outcome = "none"
	// OutcomeRedirect means the request should be redirected to Location.
	OutcomeRedirect Outcome = "redirect"
	// OutcomeDefer means the resolver could not reach a safe conclusion;
	// the surrounding system proceeds to a normal render or 404.
	OutcomeDefer Outcome = "defer"
)

// Decision is the terminal output of one canonical-URL evaluation.
type Decision struct {
	Outcome  Outcome `json:"outcome"`
	Location string  `json:"location,omitempty"`
}

// None reports that no redirect should occur.
func None() Decision {
	return Decision{Outcome: OutcomeNone}
}

// RedirectTo reports that the request should be redirected to location.
func RedirectTo(location string) Decision {
	return Decision{Outcome: OutcomeRedirect, Location: location}
}

// Deferred reports that the decision is ambiguous and the request should
// proceed untouched. Under-redirecting always beats mis-redirecting.
func Deferred() Decision {
	return Decision{Outcome: OutcomeDefer}
}
