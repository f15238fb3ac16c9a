package service

import (
	"context"

	"github.com/medflow/timesheet-service/internal/timesheet/domain"
	"github.com/medflow/timesheet-service/pkg/errors"
)

// ReconcileOutcome tells what happened to an emptied timesheet.
type ReconcileOutcome struct {
	Deleted    bool
	MessageKey string
}

// Reconciler decides the fate of a timesheet whose last entry was removed.
type Reconciler struct {
	store    TimesheetStore
	policy   *AccessPolicy
	recorder Recorder
}

// NewReconciler creates a reconciler.
func NewReconciler(store TimesheetStore, policy *AccessPolicy, recorder Recorder) *Reconciler {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Reconciler{store: store, policy: policy, recorder: recorder}
}

// Reconcile deletes ts when the caller holds delete rights and otherwise
// saves it empty with a zero aggregate. A delete blocked by rows that still
// reference the timesheet becomes a ReconciliationError; restricted callers
// are told to ask a manager.
func (r *Reconciler) Reconcile(ctx context.Context, caller domain.Caller, ts *domain.Timesheet) (ReconcileOutcome, error) {
	if !ts.IsEmpty() {
		ts.RecomputeTotal()
		return ReconcileOutcome{MessageKey: "messages.entry_deleted"}, r.store.Save(ctx, ts)
	}

	if !r.policy.CanDelete(caller, ts) {
		ts.RecomputeTotal()
		if err := r.store.Save(ctx, ts); err != nil {
			return ReconcileOutcome{}, err
		}
		r.recorder.Reconciled("kept")
		return ReconcileOutcome{MessageKey: "messages.entry_deleted_timesheet_kept"}, nil
	}

	err := r.store.Delete(ctx, ts)
	switch {
	case err == nil:
		r.recorder.Reconciled("deleted")
		return ReconcileOutcome{Deleted: true, MessageKey: "messages.entry_and_timesheet_deleted"}, nil
	case errors.Is(err, errors.ErrReferenced):
		r.recorder.Reconciled("blocked")
		if caller.IsRestricted() {
			return ReconcileOutcome{}, errors.Reconciliation("errors.contact_manager", err)
		}
		return ReconcileOutcome{}, errors.Reconciliation("errors.timesheet_referenced", err)
	default:
		return ReconcileOutcome{}, err
	}
}
