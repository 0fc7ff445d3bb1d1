package types

import (
	"fmt"
	"strings"
)

// AcceptPolicy decides what happens to an incoming secret-chat request.
type AcceptPolicy int

const (
	AcceptAskEachTime AcceptPolicy = iota
	AcceptAlways
	AcceptNever
)

func (p AcceptPolicy) String() string {
	switch p {
	case AcceptAlways:
		return "always"
	case AcceptNever:
		return "never"
	default:
		return "ask"
	}
}

// ParseAcceptPolicy maps the configuration words always, ask and never.
func ParseAcceptPolicy(s string) (AcceptPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always":
		return AcceptAlways, nil
	case "ask", "":
		return AcceptAskEachTime, nil
	case "never":
		return AcceptNever, nil
	}
	return AcceptAskEachTime, fmt.Errorf("unknown accept policy %q", s)
}

// Decision is the human answer to an AcceptAskEachTime prompt.
type Decision int

const (
	DecisionDecline Decision = iota
	DecisionAccept
)
