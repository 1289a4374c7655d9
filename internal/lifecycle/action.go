package lifecycle

import "strings"

// Action names a guarded lifecycle transition.
type Action string

const (
	ActionSubmit     Action = "submit"
	ActionApprove    Action = "approve"
	ActionReject     Action = "reject"
	ActionPause      Action = "pause"
	ActionResume     Action = "resume"
	ActionMarkSold   Action = "mark_sold"
	ActionMarkRented Action = "mark_rented"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionSubmit, ActionApprove, ActionReject, ActionPause,
		ActionResume, ActionMarkSold, ActionMarkRented:
		return true
	}
	return false
}

// ParseAction normalizes an action name from a request path or body.
func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	return a, a.IsValid()
}
