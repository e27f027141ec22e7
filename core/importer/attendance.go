package importer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core/roster"
)

// Aggregator keeps GradeAggregate.AttendancePresent in line with the attendance ledger.
type Aggregator struct {
	repo roster.Repository
}

func NewAggregator(repo roster.Repository) *Aggregator {
	return &Aggregator{repo: repo}
}

// Recount counts the counted-status attendance records of identityID and overwrites its presence total.
// Running it again without ledger changes writes the same value.
func (agg *Aggregator) Recount(ctx context.Context, identityID int64) (int, error) {
	count, err := agg.repo.CountAttendance(ctx, identityID, roster.CountedStatuses...)
	if err != nil {
		return 0, errors.Wrap(err, "counting attendance")
	}
	if err = agg.repo.SetAttendancePresent(ctx, identityID, count); err != nil {
		return 0, errors.Wrap(err, "setting attendance total")
	}
	return count, nil
}

// recordAttendance upserts the (day, identity) record from rec then recounts the identity.
func (svc *Service) recordAttendance(ctx context.Context, day roster.TrainingDay, ident roster.Identity, rec NormalizedRecord) error {
	status := rec.Status
	if !status.IsStorable() {
		status = svc.opts.UnknownStatus
	}
	_, err := svc.repo.UpsertAttendance(ctx, roster.AttendanceRecord{
		TrainingDayID: day.ID,
		IdentityID:    ident.ID,
		Status:        status,
		Remarks:       rec.Remarks,
	})
	if err != nil {
		return errors.Wrap(err, "upserting attendance")
	}
	if _, err = svc.aggregator.Recount(ctx, ident.ID); err != nil {
		return err
	}
	return nil
}
