package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"property-workflow/internal/approval"
	"property-workflow/internal/domain"
	appTemporal "property-workflow/internal/temporal"
)

type transitionRequest struct {
	Direction string `json:"direction"`
	Team      string `json:"team"`
}

type transitionResponse struct {
	Msg string `json:"msg"`
	approval.Result
}

// decodeOptionalJSON accepts an empty body as the zero value.
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: invalid json", domain.ErrBadRequest)
}

func optionalTeam(raw string) (*domain.Team, error) {
	if raw == "" {
		return nil, nil
	}
	team, err := domain.ParseTeam(raw)
	if err != nil {
		return nil, err
	}
	return &team, nil
}

// actingTeam names the team a request acts for. A verified token decides it
// outright; the body team only counts for anonymous callers.
func actingTeam(ctx context.Context, raw string) (*domain.Team, error) {
	if caller, ok := IdentityFrom(ctx); ok {
		return caller.Team, nil
	}
	return optionalTeam(raw)
}

// transition runs the shared request plumbing of the per-property transitions.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, msg string, run func(ctx context.Context, id int64, req transitionRequest) (approval.Result, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := propertyIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "code": "bad_request"})
		return
	}
	var req transitionRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		h.writeError(w, r, err, "")
		return
	}

	res, err := run(ctx, id, req)
	if err != nil {
		h.writeError(w, r, err, "failed to update property")
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{Msg: msg, Result: res})
}

// AdvanceStatus moves a property by direction, or approves for a team when
// the body names one instead.
func (h *Handler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Status updated successfully.", func(ctx context.Context, id int64, req transitionRequest) (approval.Result, error) {
		if req.Team != "" {
			team, err := actingTeam(ctx, req.Team)
			if err != nil {
				return approval.Result{}, err
			}
			if team == nil {
				return approval.Result{}, fmt.Errorf("%w: team not specified", domain.ErrForbidden)
			}
			return h.workflow.Approve(ctx, id, *team)
		}
		dir, err := domain.ParseDirection(req.Direction)
		if err != nil {
			return approval.Result{}, err
		}
		if caller, ok := IdentityFrom(ctx); ok && !caller.IsAdmin() {
			return approval.Result{}, fmt.Errorf("%w: only the Admin team can move a property by direction", domain.ErrForbidden)
		}
		return h.workflow.Advance(ctx, id, dir)
	})
}

func (h *Handler) ApproveProperty(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Property approved successfully.", func(ctx context.Context, id int64, req transitionRequest) (approval.Result, error) {
		team, err := actingTeam(ctx, req.Team)
		if err != nil {
			return approval.Result{}, err
		}
		if team == nil {
			return approval.Result{}, fmt.Errorf("%w: team not specified", domain.ErrForbidden)
		}
		return h.workflow.Approve(ctx, id, *team)
	})
}

func (h *Handler) TrashProperty(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Property moved to trash.", func(ctx context.Context, id int64, req transitionRequest) (approval.Result, error) {
		team, err := actingTeam(ctx, req.Team)
		if err != nil {
			return approval.Result{}, err
		}
		return h.workflow.Reject(ctx, id, team)
	})
}

func (h *Handler) UndoRejection(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Rejection undone successfully.", func(ctx context.Context, id int64, _ transitionRequest) (approval.Result, error) {
		return h.workflow.UndoRejection(ctx, id)
	})
}

func (h *Handler) RepairProperty(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Team approvals repaired successfully.", func(ctx context.Context, id int64, _ transitionRequest) (approval.Result, error) {
		return h.workflow.Repair(ctx, id)
	})
}

func (h *Handler) RepairAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	summary, err := h.workflow.RepairAll(ctx)
	if err != nil {
		h.writeError(w, r, err, "failed to repair properties")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"msg":            fmt.Sprintf("Repair process completed. %d properties repaired.", summary.RepairedCount),
		"repaired_count": summary.RepairedCount,
		"errors":         summary.Errors,
	})
}

// StartRepairSweep hands the full repair to a Temporal workflow and answers
// with its id.
func (h *Handler) StartRepairSweep(w http.ResponseWriter, r *http.Request) {
	if h.temporalClient == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "workflow engine unavailable", "code": "unavailable"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	requestedBy := "anonymous"
	if caller, ok := IdentityFrom(ctx); ok && caller.UserID != "" {
		requestedBy = caller.UserID
	}

	workflowID := fmt.Sprintf("%s-%s", h.cfg.WorkflowIDPrefix, uuid.NewString())
	run, err := h.temporalClient.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: h.cfg.TemporalTaskQueue,
	}, appTemporal.RepairSweepWorkflowName, appTemporal.RepairSweepInput{RequestedBy: requestedBy})
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			writeJSON(w, http.StatusConflict, map[string]any{"error": "repair sweep already running", "code": "conflict"})
			return
		}
		h.writeError(w, r, err, "failed to start repair sweep")
		return
	}

	h.logger.WithField("workflow_id", workflowID).WithField("requested_by", requestedBy).Info("repair sweep started")
	writeJSON(w, http.StatusAccepted, map[string]any{
		"workflow_id": run.GetID(),
		"run_id":      run.GetRunID(),
	})
}

func (h *Handler) RepairSweepStatus(w http.ResponseWriter, r *http.Request) {
	if h.temporalClient == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "workflow engine unavailable", "code": "unavailable"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	workflowID := chi.URLParam(r, "workflowId")
	desc, err := h.temporalClient.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "repair sweep not found", "code": domain.ErrorKind(domain.ErrNotFound)})
			return
		}
		h.writeError(w, r, err, "failed to describe repair sweep")
		return
	}

	switch desc.GetWorkflowExecutionInfo().GetStatus() {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
		var progress appTemporal.SweepProgress
		encoded, err := h.temporalClient.QueryWorkflow(ctx, workflowID, "", appTemporal.SweepProgressQueryName)
		if err == nil {
			err = encoded.Get(&progress)
		}
		if err != nil {
			h.logger.WithError(err).WithField("workflow_id", workflowID).Warn("sweep progress query failed")
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"workflow_id": workflowID,
			"status":      "running",
			"progress":    progress,
		})
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		var summary approval.RepairSummary
		if err := h.temporalClient.GetWorkflow(ctx, workflowID, "").Get(ctx, &summary); err != nil {
			h.writeError(w, r, err, "failed to read repair sweep result")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"workflow_id":    workflowID,
			"status":         "completed",
			"msg":            fmt.Sprintf("Repair process completed. %d properties repaired.", summary.RepairedCount),
			"repaired_count": summary.RepairedCount,
			"errors":         summary.Errors,
		})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"workflow_id": workflowID,
			"status":      "failed",
			"detail":      desc.GetWorkflowExecutionInfo().GetStatus().String(),
		})
	}
}
