package temporal

import (
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"property-workflow/internal/approval"
	"property-workflow/internal/domain"
)

const (
	RepairSweepWorkflowName      = "RepairSweepWorkflow"
	DocumentReceivedWorkflowName = "DocumentReceivedWorkflow"
)

// DefaultSweepBatchSize bounds the rows one sweep run repairs before it
// continues as new, keeping each run's history small.
const DefaultSweepBatchSize = 500

// RepairSweepInput starts a sweep. The fields after RequestedBy are carried
// from one run to the next when the sweep continues as new.
type RepairSweepInput struct {
	RequestedBy string
	BatchSize   int
	Remaining   []int64
	Listed      bool
	Summary     *approval.RepairSummary
	Progress    SweepProgress
}

// RepairSweepWorkflow repairs every property one at a time and reports the
// same summary as the synchronous sweep.
func RepairSweepWorkflow(ctx workflow.Context, input RepairSweepInput) (approval.RepairSummary, error) {
	logger := workflow.GetLogger(ctx)
	progress := input.Progress
	if err := workflow.SetQueryHandler(ctx, SweepProgressQueryName, func() (SweepProgress, error) {
		return progress, nil
	}); err != nil {
		return approval.RepairSummary{}, err
	}

	remaining := input.Remaining
	if !input.Listed {
		var listed ListPropertyIDsOutput
		if err := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyListProperties), (*Activities).ListPropertyIDsActivity).Get(ctx, &listed); err != nil {
			return approval.RepairSummary{}, fmt.Errorf("list properties: %w", err)
		}
		remaining = listed.IDs
		progress.Total = len(listed.IDs)
	}

	summary := approval.RepairSummary{Errors: []string{}}
	if input.Summary != nil {
		summary = *input.Summary
		if summary.Errors == nil {
			summary.Errors = []string{}
		}
	}

	batchSize := input.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	batch := remaining
	if len(batch) > batchSize {
		batch = remaining[:batchSize]
	}

	repairCtx := mustActivityContext(ctx, ActivityPolicyRepairProperty)
	for _, id := range batch {
		var out RepairPropertyOutput
		err := workflow.ExecuteActivity(repairCtx, (*Activities).RepairPropertyActivity, RepairPropertyInput{PropertyID: id}).Get(ctx, &out)
		progress.Visited++
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("Property %d: %s", id, causeMessage(err)))
			progress.Failed++
			continue
		}
		if out.Changed {
			summary.RepairedCount++
			progress.Repaired++
		}
	}

	if rest := remaining[len(batch):]; len(rest) > 0 {
		logger.Info("repair sweep continuing as new", "requested_by", input.RequestedBy, "visited", progress.Visited, "remaining", len(rest))
		return approval.RepairSummary{}, workflow.NewContinueAsNewError(ctx, RepairSweepWorkflowName, RepairSweepInput{
			RequestedBy: input.RequestedBy,
			BatchSize:   input.BatchSize,
			Remaining:   append([]int64(nil), rest...),
			Listed:      true,
			Summary:     &summary,
			Progress:    progress,
		})
	}

	logger.Info("repair sweep finished", "requested_by", input.RequestedBy, "properties", progress.Total, "repaired", summary.RepairedCount, "errors", len(summary.Errors))
	return summary, nil
}

type DocumentReceivedInput struct {
	PropertyID int64
	Kind       domain.DocumentKind
	ObjectKey  string
}

// DocumentReceivedWorkflow records a document that landed in the bucket
// without going through the upload endpoint.
func DocumentReceivedWorkflow(ctx workflow.Context, input DocumentReceivedInput) error {
	return workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyRecordDocument), (*Activities).RecordDocumentActivity, RecordDocumentInput{
		PropertyID: input.PropertyID,
		Kind:       input.Kind,
		ObjectKey:  input.ObjectKey,
	}).Get(ctx, nil)
}

// causeMessage strips the activity wrapper so the summary carries the error
// the engine reported.
func causeMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}
