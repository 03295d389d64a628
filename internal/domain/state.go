package domain

import (
	"fmt"
	"strings"
)

// Stage is a property's position in the workflow. Ordered stages compare by
// their ordinal; StageRejected sits outside the order.
type Stage int8

const (
	StagePendingVerification Stage = iota
	StageShortlisted
	StageLegallyCleared
	StagePurchased
	StageFinanceApproved
	StageTechApproved
	StageTokenized
	StageCompleted

	StageRejected Stage = -1
	// StageUnknown stands in for a stored status name that does not parse.
	StageUnknown Stage = -2
)

const (
	FirstStage = StagePendingVerification
	LastStage  = StageCompleted
)

var stageNames = [...]string{
	StagePendingVerification: "Pending Verification",
	StageShortlisted:         "Shortlisted",
	StageLegallyCleared:      "Legally Cleared",
	StagePurchased:           "Purchased",
	StageFinanceApproved:     "Finance Approved",
	StageTechApproved:        "Tech Approved",
	StageTokenized:           "Tokenized",
	StageCompleted:           "Completed",
}

const (
	rejectedName = "Rejected"
	unknownName  = "Unknown"
)

// Stages returns the ordered stages, first to last.
func Stages() []Stage {
	out := make([]Stage, 0, len(stageNames))
	for s := FirstStage; s <= LastStage; s++ {
		out = append(out, s)
	}
	return out
}

func (s Stage) Ordered() bool {
	return s >= FirstStage && s <= LastStage
}

// Index is the stage's position in the order, or -1 for StageRejected and
// anything else outside it.
func (s Stage) Index() int {
	if !s.Ordered() {
		return -1
	}
	return int(s)
}

// Compare orders two stages. Unordered stages sort before every ordered one.
func (s Stage) Compare(other Stage) int {
	a, b := s.Index(), other.Index()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (s Stage) String() string {
	if s.Ordered() {
		return stageNames[s]
	}
	switch s {
	case StageRejected:
		return rejectedName
	case StageUnknown:
		return unknownName
	}
	return fmt.Sprintf("Stage(%d)", int8(s))
}

func ParseStage(v string) (Stage, error) {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, rejectedName) {
		return StageRejected, nil
	}
	for i, name := range stageNames {
		if strings.EqualFold(v, name) {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown stage %q", ErrBadRequest, v)
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(b []byte) error {
	parsed, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Team is an organisational actor that approves exactly one stage boundary.
type Team int8

const (
	TeamProperty Team = iota
	TeamLegal
	TeamPurchase
	TeamFinance
	TeamTech
	TeamToken
	TeamAdmin

	teamCount = int(TeamAdmin) + 1
)

var teamNames = [teamCount]string{
	TeamProperty: "Property Team",
	TeamLegal:    "Legal Team",
	TeamPurchase: "Purchase Team",
	TeamFinance:  "Finance Team",
	TeamTech:     "Tech Team",
	TeamToken:    "Token Team",
	TeamAdmin:    "Admin",
}

// teamUnlocks is the stage a team's approval moves a property to.
var teamUnlocks = [teamCount]Stage{
	TeamProperty: StageShortlisted,
	TeamLegal:    StageLegallyCleared,
	TeamPurchase: StagePurchased,
	TeamFinance:  StageFinanceApproved,
	TeamTech:     StageTechApproved,
	TeamToken:    StageTokenized,
	TeamAdmin:    StageCompleted,
}

// teamRequires is the stage a property must have reached before the team acts.
var teamRequires = [teamCount]Stage{
	TeamProperty: StagePendingVerification,
	TeamLegal:    StageShortlisted,
	TeamPurchase: StageLegallyCleared,
	TeamFinance:  StagePurchased,
	TeamTech:     StageFinanceApproved,
	TeamToken:    StageTechApproved,
	TeamAdmin:    StageTokenized,
}

// Teams returns every team in approval order.
func Teams() []Team {
	out := make([]Team, teamCount)
	for i := range out {
		out[i] = Team(i)
	}
	return out
}

func (t Team) Valid() bool {
	return t >= 0 && int(t) < teamCount
}

func (t Team) Unlocks() Stage {
	if !t.Valid() {
		return StageRejected
	}
	return teamUnlocks[t]
}

func (t Team) RequiredStage() Stage {
	if !t.Valid() {
		return StageRejected
	}
	return teamRequires[t]
}

func (t Team) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Team(%d)", int8(t))
	}
	return teamNames[t]
}

func ParseTeam(v string) (Team, error) {
	v = strings.TrimSpace(v)
	for i, name := range teamNames {
		if strings.EqualFold(v, name) {
			return Team(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown team %q", ErrBadRequest, v)
}

func (t Team) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid team %d", int8(t))
	}
	return []byte(t.String()), nil
}

func (t *Team) UnmarshalText(b []byte) error {
	parsed, err := ParseTeam(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "Pending"
	ApprovalApproved ApprovalStatus = "Approved"
	ApprovalRejected ApprovalStatus = "Rejected"
)

func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	default:
		return false
	}
}

type Direction string

const (
	DirectionNext Direction = "next"
	DirectionPrev Direction = "prev"
)

func ParseDirection(v string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(v))) {
	case DirectionNext:
		return DirectionNext, nil
	case DirectionPrev:
		return DirectionPrev, nil
	default:
		return "", fmt.Errorf("%w: direction must be %q or %q", ErrBadRequest, DirectionNext, DirectionPrev)
	}
}
