package authclient

// Decision is the rendering gate's verdict for the current snapshot.
type Decision int

const (
	// RenderLoading shows the loading view: hydration (or a login call)
	// is still in progress and the user is not yet determined.
	RenderLoading Decision = iota
	// RenderContent shows the protected content.
	RenderContent
	// RenderUnauthorized shows the unauthorized view or triggers the
	// caller's redirect side effect.
	RenderUnauthorized
	// RenderError shows the error view.
	RenderError
)

func (d Decision) String() string {
	switch d {
	case RenderLoading:
		return "loading"
	case RenderContent:
		return "content"
	case RenderUnauthorized:
		return "unauthorized"
	case RenderError:
		return "error"
	default:
		return "unknown"
	}
}

// Condition is a caller-supplied boolean check, e.g. a role predicate.
type Condition func() bool

// ExceptionPredicate is the guard's escape hatch: when it reduces to
// true the protected content renders regardless of status. Any is an
// OR group (one true suffices), All is an AND group (every one must be
// true). When both groups are supplied, both must reduce to true; with
// one group its own reduction decides; with neither, no exception
// applies.
type ExceptionPredicate struct {
	Any []Condition
	All []Condition
}

// Evaluate reduces the predicate groups per the combination rule.
func (p ExceptionPredicate) Evaluate() bool {
	hasAny := len(p.Any) > 0
	hasAll := len(p.All) > 0

	if !hasAny && !hasAll {
		return false
	}

	anyResult := true
	if hasAny {
		anyResult = false
		for _, cond := range p.Any {
			if cond != nil && cond() {
				anyResult = true
				break
			}
		}
	}

	allResult := true
	if hasAll {
		for _, cond := range p.All {
			if cond == nil || !cond() {
				allResult = false
				break
			}
		}
	}

	return anyResult && allResult
}

// Guard derives a rendering decision from session snapshots.
type Guard struct {
	session   *Session
	exception *ExceptionPredicate
}

// GuardOption customizes guard construction.
type GuardOption func(*Guard)

// WithGuardException installs the exception predicate.
func WithGuardException(exception ExceptionPredicate) GuardOption {
	return func(g *Guard) {
		g.exception = &exception
	}
}

// NewGuard builds a guard over a session. A nil session is a programmer
// error and fails fast rather than returning a permissive default.
func NewGuard(session *Session, opts ...GuardOption) (*Guard, error) {
	if session == nil {
		return nil, ErrSessionRequired
	}

	g := &Guard{session: session}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g, nil
}

// Decide evaluates the current session snapshot.
func (g *Guard) Decide() Decision {
	return g.DecideFor(g.session.Snapshot())
}

// DecideFor is the pure decision function over an explicit snapshot.
func (g *Guard) DecideFor(snap Snapshot) Decision {
	var exception *ExceptionPredicate
	if g != nil {
		exception = g.exception
	}
	return Evaluate(snap, exception)
}

// Evaluate is the guard's decision table:
//
//  1. still hydrating or loading -> loading view
//  2. exception predicate true -> protected content regardless of status
//  3. unauthenticated -> unauthorized view
//  4. error -> error view
//  5. otherwise -> protected content
func Evaluate(snap Snapshot, exception *ExceptionPredicate) Decision {
	if !snap.Hydrated || snap.Status == StatusLoading || snap.Status == StatusUnknown {
		return RenderLoading
	}

	if exception != nil && exception.Evaluate() {
		return RenderContent
	}

	switch snap.Status {
	case StatusUnauthenticated:
		return RenderUnauthorized
	case StatusError:
		return RenderError
	default:
		return RenderContent
	}
}
