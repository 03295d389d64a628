package temporal

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"

	"property-workflow/internal/approval"
	"property-workflow/internal/domain"
)

type ActivityStore interface {
	ListPropertyIDs(ctx context.Context) ([]int64, error)
	SetDocumentReference(ctx context.Context, id int64, kind domain.DocumentKind, ref string) error
}

// Repairer is the slice of the approval engine the sweep drives.
type Repairer interface {
	Repair(ctx context.Context, id int64) (approval.Result, error)
}

type Activities struct {
	Store  ActivityStore
	Engine Repairer
}

type ListPropertyIDsOutput struct {
	IDs []int64
}

type RepairPropertyInput struct {
	PropertyID int64
}

type RepairPropertyOutput struct {
	PropertyID int64
	Status     string
	Changed    bool
}

type RecordDocumentInput struct {
	PropertyID int64
	Kind       domain.DocumentKind
	ObjectKey  string
}

func (a *Activities) ListPropertyIDsActivity(ctx context.Context) (ListPropertyIDsOutput, error) {
	ids, err := a.Store.ListPropertyIDs(ctx)
	if err != nil {
		return ListPropertyIDsOutput{}, err
	}
	return ListPropertyIDsOutput{IDs: ids}, nil
}

func (a *Activities) RepairPropertyActivity(ctx context.Context, input RepairPropertyInput) (RepairPropertyOutput, error) {
	res, err := a.Engine.Repair(ctx, input.PropertyID)
	if err != nil {
		return RepairPropertyOutput{}, classify(err)
	}
	return RepairPropertyOutput{
		PropertyID: input.PropertyID,
		Status:     res.Status.String(),
		Changed:    res.Changed,
	}, nil
}

// RecordDocumentActivity stores the reference of a document uploaded straight
// to the bucket. General documents have no slot on the property and are only
// kept in the bucket.
func (a *Activities) RecordDocumentActivity(ctx context.Context, input RecordDocumentInput) error {
	if !input.Kind.Named() {
		return nil
	}
	if err := a.Store.SetDocumentReference(ctx, input.PropertyID, input.Kind, input.ObjectKey); err != nil {
		return classify(err)
	}
	return nil
}

// classify turns caller errors into non-retryable application errors so a
// missing or invalid property is not retried.
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrBadRequest), errors.Is(err, domain.ErrForbidden):
		return temporal.NewNonRetryableApplicationError(err.Error(), domain.ErrorKind(err), err)
	default:
		return err
	}
}
