package domain

import (
	"fmt"
)

// ApprovalState is the workflow position of one property: its status, the
// per-team approvals and the rejection marker. It is a value; every transition
// returns a new, fully formed state and leaves the receiver untouched.
type ApprovalState struct {
	Status     Stage         `json:"status"`
	Approvals  TeamApprovals `json:"team_approvals"`
	Rejected   bool          `json:"rejected"`
	RejectedBy string        `json:"rejected_by,omitempty"`
}

// Transition computes a property's next state from its current one.
type Transition func(ApprovalState) (ApprovalState, error)

// NewApprovalState is the state of a freshly submitted property.
func NewApprovalState() ApprovalState {
	return ApprovalState{
		Status:    StagePendingVerification,
		Approvals: NewTeamApprovals(),
	}
}

// RejectingTeam parses RejectedBy.
func (s ApprovalState) RejectingTeam() (Team, error) {
	return ParseTeam(s.RejectedBy)
}

// Advance is the admin override: it moves one stage in dir, ignoring team
// gating, and recomputes every approval from the new stage. A rejected property
// counts as the first stage and leaves the rejection behind.
func (s ApprovalState) Advance(dir Direction) ApprovalState {
	idx := s.Status.Index()
	if idx < 0 {
		idx = FirstStage.Index()
	}
	switch dir {
	case DirectionNext:
		idx = min(idx+1, LastStage.Index())
	default:
		idx = max(idx-1, FirstStage.Index())
	}

	return ApprovalState{
		Status:    Stage(idx),
		Approvals: syncedApprovals(idx),
	}
}

// Approve records team's approval. Only the next pending team may approve, and
// nobody may while the property is rejected.
func (s ApprovalState) Approve(team Team) (ApprovalState, error) {
	if !team.Valid() {
		return s, fmt.Errorf("%w: unknown team", ErrBadRequest)
	}
	if s.Rejected {
		return s, fmt.Errorf("%w: property was rejected by %s", ErrForbidden, s.RejectedBy)
	}
	next, ok := s.Approvals.NextPending()
	if !ok {
		return s, fmt.Errorf("%w: every team has already approved", ErrForbidden)
	}
	if next != team {
		return s, fmt.Errorf("%w: it's not %s's turn, next is %s", ErrForbidden, team, next)
	}

	out := s
	out.Approvals = s.Approvals.With(team, ApprovalApproved)
	if stage := team.Unlocks(); stage.Ordered() {
		out.Status = stage
	}
	return out, nil
}

// Reject marks the property rejected by team, or by whichever team currently
// holds it when team is nil. Approvals after the rejecting team are left as
// they were.
func (s ApprovalState) Reject(team *Team) (ApprovalState, error) {
	if s.Rejected {
		return s, fmt.Errorf("%w: property already rejected by %s", ErrBadRequest, s.RejectedBy)
	}

	var rejecting Team
	switch {
	case team != nil:
		if !team.Valid() {
			return s, fmt.Errorf("%w: unknown team", ErrBadRequest)
		}
		rejecting = *team
	default:
		next, ok := s.Approvals.NextPending()
		if !ok {
			return s, fmt.Errorf("%w: no valid rejecting team", ErrBadRequest)
		}
		rejecting = next
	}

	return ApprovalState{
		Status:     StageRejected,
		Approvals:  s.Approvals.With(rejecting, ApprovalRejected),
		Rejected:   true,
		RejectedBy: rejecting.String(),
	}, nil
}

// UndoRejection returns a rejected property to the stage unlocked by the
// nearest approved team before the rejecting one, and reopens the rejecting
// team and every team after it.
func (s ApprovalState) UndoRejection() (ApprovalState, error) {
	if !s.Rejected || s.RejectedBy == "" {
		return s, fmt.Errorf("%w: property is not rejected", ErrBadRequest)
	}
	rejecting, err := s.RejectingTeam()
	if err != nil {
		return s, fmt.Errorf("%w: unknown rejecting team %q", ErrBadRequest, s.RejectedBy)
	}

	status := StagePendingVerification
	for t := rejecting - 1; t >= 0; t-- {
		if s.Approvals.Get(t) == ApprovalApproved {
			status = t.Unlocks()
			break
		}
	}

	approvals := s.Approvals
	for t := rejecting; int(t) < teamCount; t++ {
		approvals[t] = ApprovalPending
	}

	return ApprovalState{Status: status, Approvals: approvals}, nil
}

// Repair resynchronises the approvals with the current status and reports
// whether anything changed. Status and rejection fields are never touched, and
// a rejected property is returned as is so its rejection marker survives.
func (s ApprovalState) Repair() (ApprovalState, bool) {
	if s.Rejected {
		return s, false
	}

	// Shortlisted rows written before team approvals existed lack the
	// Property Team approval; the resync restores it along with the rest.
	out := s
	out.Approvals = syncedApprovals(s.Status.Index())
	return out, out != s
}

// Validate checks the workflow invariants: a rejected state names exactly one
// rejecting team; otherwise approvals match the status exactly; and no approved
// team follows a pending one.
func (s ApprovalState) Validate() error {
	rejectedTeams := make([]Team, 0, 1)
	for _, t := range Teams() {
		if s.Approvals.Get(t) == ApprovalRejected {
			rejectedTeams = append(rejectedTeams, t)
		}
	}

	if s.Rejected {
		if s.Status != StageRejected {
			return fmt.Errorf("rejected property has status %s", s.Status)
		}
		if len(rejectedTeams) != 1 {
			return fmt.Errorf("rejected property has %d rejecting teams", len(rejectedTeams))
		}
		if rejectedTeams[0].String() != s.RejectedBy {
			return fmt.Errorf("rejected_by %q does not match rejecting team %s", s.RejectedBy, rejectedTeams[0])
		}
	} else {
		if s.RejectedBy != "" {
			return fmt.Errorf("rejected_by %q set on a property that is not rejected", s.RejectedBy)
		}
		if len(rejectedTeams) > 0 {
			return fmt.Errorf("%s is marked rejected on a property that is not rejected", rejectedTeams[0])
		}
		if !s.Status.Ordered() {
			return fmt.Errorf("status %s is not an ordered stage", s.Status)
		}
		for _, t := range Teams() {
			want := ApprovalPending
			if t.Unlocks().Compare(s.Status) <= 0 {
				want = ApprovalApproved
			}
			if got := s.Approvals.Get(t); got != want {
				return fmt.Errorf("%s is %s at status %s, want %s", t, got, s.Status, want)
			}
		}
	}

	seenPending := false
	for _, t := range Teams() {
		switch s.Approvals.Get(t) {
		case ApprovalPending:
			seenPending = true
		case ApprovalApproved:
			if seenPending {
				return fmt.Errorf("%s is approved after a pending team", t)
			}
		}
	}
	return nil
}
