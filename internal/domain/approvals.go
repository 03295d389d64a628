package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// TeamApprovals holds one ApprovalStatus per team, indexed by Team. Every team
// always has an entry; an unset entry reads as Pending.
type TeamApprovals [teamCount]ApprovalStatus

func NewTeamApprovals() TeamApprovals {
	var a TeamApprovals
	for i := range a {
		a[i] = ApprovalPending
	}
	return a
}

func (a TeamApprovals) Get(t Team) ApprovalStatus {
	if !t.Valid() || a[t] == "" {
		return ApprovalPending
	}
	return a[t]
}

// With returns a copy of a with team t set to s.
func (a TeamApprovals) With(t Team, s ApprovalStatus) TeamApprovals {
	if t.Valid() {
		a[t] = s
	}
	return a
}

// NextPending is the first team, in approval order, still Pending. It reports
// false once every team has acted.
func (a TeamApprovals) NextPending() (Team, bool) {
	for _, t := range Teams() {
		if a.Get(t) == ApprovalPending {
			return t, true
		}
	}
	return 0, false
}

// Map returns the approvals keyed by team name.
func (a TeamApprovals) Map() map[string]ApprovalStatus {
	out := make(map[string]ApprovalStatus, teamCount)
	for _, t := range Teams() {
		out[t.String()] = a.Get(t)
	}
	return out
}

// syncedApprovals recomputes every team from a stage index: a team is Approved
// iff the stage it unlocks is at or before idx.
func syncedApprovals(idx int) TeamApprovals {
	var a TeamApprovals
	for _, t := range Teams() {
		if t.Unlocks().Index() <= idx {
			a[t] = ApprovalApproved
		} else {
			a[t] = ApprovalPending
		}
	}
	return a
}

// MarshalJSON writes the approvals as an object whose keys follow team order.
func (a TeamApprovals) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, t := range Teams() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(t.String())
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(string(a.Get(t)))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (a *TeamApprovals) UnmarshalJSON(b []byte) error {
	*a = DecodeApprovals(b)
	return nil
}

// EncodeApprovals is the persisted form of a, as stored in the team_approvals column.
func EncodeApprovals(a TeamApprovals) []byte {
	b, _ := a.MarshalJSON()
	return b
}

// DecodeApprovals parses a stored approvals blob. It never fails: teams missing
// from the input, unknown status values and malformed input all read as Pending.
// A JSON string wrapping the object (a double-encoded column) is unwrapped once.
func DecodeApprovals(raw []byte) TeamApprovals {
	out := NewTeamApprovals()

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return out
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return out
		}
		raw = bytes.TrimSpace([]byte(inner))
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return out
	}
	for key, v := range m {
		team, err := ParseTeam(key)
		if err != nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		out[team] = parseApprovalStatus(s)
	}
	return out
}

func parseApprovalStatus(v string) ApprovalStatus {
	for _, s := range []ApprovalStatus{ApprovalPending, ApprovalApproved, ApprovalRejected} {
		if strings.EqualFold(strings.TrimSpace(v), string(s)) {
			return s
		}
	}
	return ApprovalPending
}

// IsVisibleTo implements per-team work queues. With no team or Admin every
// property is visible; any other team sees a property only on its turn.
func IsVisibleTo(state ApprovalState, team *Team) bool {
	if team == nil || *team == TeamAdmin {
		return true
	}
	next, ok := state.Approvals.NextPending()
	return ok && next == *team
}
