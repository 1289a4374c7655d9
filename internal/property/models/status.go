package models

// Status is the visibility lifecycle state of a property.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusPaused   Status = "PAUSED"
	StatusRejected Status = "REJECTED"
	StatusSold     Status = "SOLD"
	StatusRented   Status = "RENTED"
)

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusPaused,
		StatusRejected, StatusSold, StatusRented:
		return true
	}
	return false
}

// IsTerminal reports whether no transition out of the status is defined.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusSold || s == StatusRented
}

// DuplicateCandidateStatuses are the statuses a nearby listing must be in to
// count as a potential duplicate.
func DuplicateCandidateStatuses() []Status {
	return []Status{StatusDraft, StatusPending, StatusApproved, StatusPaused}
}

// VisibleStatuses returns the statuses included in a listing query. PAUSED
// listings are hidden from the public and only shown in the owner's own view.
func VisibleStatuses(ownerView bool) []Status {
	statuses := []Status{StatusApproved, StatusPending, StatusDraft}
	if ownerView {
		statuses = append(statuses, StatusPaused)
	}
	return statuses
}

// StatusStrings converts statuses for SQL array parameters.
func StatusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
