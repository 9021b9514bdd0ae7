package core

type OutcomeKind int

const (
	OutcomeRedirect OutcomeKind = iota + 1
	OutcomeUnauthorized
	OutcomeNotRunning
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRedirect:
		return "redirect"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeNotRunning:
		return "not_running"
	default:
		return "unknown"
	}
}

// ReasonCannotCreate is the Unauthorized reason when the role may not start the meeting.
const ReasonCannotCreate = "cannot_create"

// JoinOutcome is the result of a join resolution. URL is set for redirects, Reason for Unauthorized.
type JoinOutcome struct {
	Kind   OutcomeKind
	URL    string
	Reason string
}

func Redirect(url string) JoinOutcome {
	return JoinOutcome{Kind: OutcomeRedirect, URL: url}
}

func Unauthorized(reason string) JoinOutcome {
	return JoinOutcome{Kind: OutcomeUnauthorized, Reason: reason}
}

func NotRunning() JoinOutcome {
	return JoinOutcome{Kind: OutcomeNotRunning}
}
