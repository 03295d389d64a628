package approval

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"property-workflow/internal/domain"
)

// Store is the persistence boundary the engine needs. UpdateApprovalState must
// load, apply fn and persist as one unit serialized per id, writing nothing
// when fn's result equals what was loaded.
type Store interface {
	UpdateApprovalState(ctx context.Context, id int64, fn domain.Transition) (domain.ApprovalState, bool, error)
	ListPropertyIDs(ctx context.Context) ([]int64, error)
}

type Result struct {
	Status     domain.Stage         `json:"status"`
	Approvals  domain.TeamApprovals `json:"team_approvals"`
	Rejected   bool                 `json:"rejected"`
	RejectedBy string               `json:"rejected_by,omitempty"`
	Changed    bool                 `json:"changed"`
}

func resultOf(s domain.ApprovalState, changed bool) Result {
	return Result{
		Status:     s.Status,
		Approvals:  s.Approvals,
		Rejected:   s.Rejected,
		RejectedBy: s.RejectedBy,
		Changed:    changed,
	}
}

type RepairSummary struct {
	RepairedCount int      `json:"repaired_count"`
	Errors        []string `json:"errors"`
}

type Engine struct {
	store  Store
	logger logrus.FieldLogger
}

func NewEngine(store Store, logger logrus.FieldLogger) *Engine {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		logger = l
	}
	return &Engine{store: store, logger: logger}
}

func (e *Engine) Advance(ctx context.Context, id int64, dir domain.Direction) (Result, error) {
	return e.apply(ctx, "advance", id, logrus.Fields{"direction": dir}, func(s domain.ApprovalState) (domain.ApprovalState, error) {
		return s.Advance(dir), nil
	})
}

func (e *Engine) Approve(ctx context.Context, id int64, team domain.Team) (Result, error) {
	return e.apply(ctx, "approve", id, logrus.Fields{"team": team.String()}, func(s domain.ApprovalState) (domain.ApprovalState, error) {
		return s.Approve(team)
	})
}

// Reject rejects on behalf of team, or of the team currently holding the
// property when team is nil.
func (e *Engine) Reject(ctx context.Context, id int64, team *domain.Team) (Result, error) {
	fields := logrus.Fields{}
	if team != nil {
		fields["team"] = team.String()
	}
	return e.apply(ctx, "reject", id, fields, func(s domain.ApprovalState) (domain.ApprovalState, error) {
		return s.Reject(team)
	})
}

func (e *Engine) UndoRejection(ctx context.Context, id int64) (Result, error) {
	return e.apply(ctx, "undo_rejection", id, nil, func(s domain.ApprovalState) (domain.ApprovalState, error) {
		return s.UndoRejection()
	})
}

func (e *Engine) Repair(ctx context.Context, id int64) (Result, error) {
	res, err := e.apply(ctx, "repair", id, nil, func(s domain.ApprovalState) (domain.ApprovalState, error) {
		out, _ := s.Repair()
		return out, nil
	})
	switch {
	case err != nil:
		repairRows.WithLabelValues("error").Inc()
	case res.Changed:
		repairRows.WithLabelValues("repaired").Inc()
	default:
		repairRows.WithLabelValues("unchanged").Inc()
	}
	return res, err
}

// RepairAll repairs every property one at a time. A row that fails is reported
// in the summary and the sweep carries on; only failing to list the rows is
// returned as an error.
func (e *Engine) RepairAll(ctx context.Context) (RepairSummary, error) {
	ids, err := e.store.ListPropertyIDs(ctx)
	if err != nil {
		return RepairSummary{}, fmt.Errorf("list properties: %w", err)
	}

	summary := RepairSummary{Errors: []string{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res, err := e.Repair(ctx, id)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("Property %d: %v", id, err))
			continue
		}
		if res.Changed {
			summary.RepairedCount++
		}
	}

	e.logger.WithFields(logrus.Fields{
		"properties": len(ids),
		"repaired":   summary.RepairedCount,
		"errors":     len(summary.Errors),
	}).Info("repair sweep finished")
	return summary, nil
}

func (e *Engine) apply(ctx context.Context, operation string, id int64, fields logrus.Fields, fn domain.Transition) (Result, error) {
	log := e.logger.WithFields(fields).WithFields(logrus.Fields{
		"property_id": id,
		"operation":   operation,
	})

	state, changed, err := e.store.UpdateApprovalState(ctx, id, fn)
	transitions.WithLabelValues(operation, domain.ErrorKind(err)).Inc()
	if err != nil {
		log.WithError(err).Warn("transition refused")
		return Result{}, err
	}

	log.WithFields(logrus.Fields{
		"status":  state.Status.String(),
		"changed": changed,
	}).Info("transition applied")
	return resultOf(state, changed), nil
}
