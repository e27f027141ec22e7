package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/roster"
)

const defaultMaxErrors = 10

var (
	// errors
	ErrNoFetcher = errors.New("importing from links is disabled")
	errRowPanic  = errors.New("unexpected row failure")
)

// Document is a downloaded import source.
type Document struct {
	Name        string // file name, with extension
	ContentType string
	Data        []byte
}

// Fetcher downloads the document a (possibly shared) link points to.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Document, error)
}

// Target is what an import reconciles into: a roster role, and a training day for attendance sheets.
type Target struct {
	Role          roster.Role
	TrainingDayID int64
}

func (t Target) IsAttendance() bool { return t.TrainingDayID != 0 }

// Kind is "attendance" or "roster".
func (t Target) Kind() string {
	if t.IsAttendance() {
		return "attendance"
	}
	return "roster"
}

// Result summarizes one import call.
type Result struct {
	Message      string   `json:"message"`
	Errors       []string `json:"errors"`
	SuccessCount int      `json:"success_count"`
	FailCount    int      `json:"fail_count"`
	SkippedCount int      `json:"skipped_count"`
}

type Options struct {
	// UnknownStatus is stored for attendance rows without a recognizable status.
	UnknownStatus roster.AttendanceStatus
	// MaxErrors caps Result.Errors.
	MaxErrors    int
	PasswordCost int
	Policy       MatchPolicy
	Tables       *Tables
	Recorder     Recorder
}

func (opts *Options) setDefaults() {
	if !opts.UnknownStatus.IsStorable() {
		opts.UnknownStatus = roster.StatusPresent
	}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = defaultMaxErrors
	}
	if opts.Policy == (MatchPolicy{}) {
		opts.Policy = DefaultMatchPolicy
	}
	if opts.Tables == nil {
		tables := DefaultTables()
		opts.Tables = &tables
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
}

// Service runs the import pipeline: fetch, extract, normalize, resolve, reconcile.
// Rows are processed one after the other.
type Service struct {
	repo       roster.Repository
	extractor  *Extractor
	fetcher    Fetcher
	logger     core.Logger
	opts       Options
	reconciler *Reconciler
	aggregator *Aggregator
}

func NewService(repo roster.Repository, extractor *Extractor, fetcher Fetcher, logger core.Logger, opts Options) *Service {
	opts.setDefaults()
	return &Service{
		repo:       repo,
		extractor:  extractor,
		fetcher:    fetcher,
		logger:     logger,
		opts:       opts,
		reconciler: NewReconciler(repo, opts.PasswordCost),
		aggregator: NewAggregator(repo),
	}
}

// Aggregator exposes the attendance aggregator, for recounts outside of imports.
func (svc *Service) Aggregator() *Aggregator { return svc.aggregator }

// ImportFile imports data, its format inferred from filename.
func (svc *Service) ImportFile(ctx context.Context, filename string, data []byte, target Target) (Result, error) {
	format, err := FormatFromFilename(filename)
	if err != nil {
		return Result{}, err
	}
	return svc.Import(ctx, format, data, target)
}

// ImportURL downloads the document behind rawURL and imports it.
func (svc *Service) ImportURL(ctx context.Context, rawURL string, target Target) (Result, error) {
	if _, err := svc.checkTarget(ctx, target); err != nil {
		return Result{}, err
	}
	if svc.fetcher == nil {
		return Result{}, core.NewValidationError(ErrNoFetcher, core.FieldError{Field: "url", Error: ErrNoFetcher.Error()})
	}

	doc, err := svc.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return Result{}, err
	}
	format, err := FormatFromFilename(doc.Name)
	if err != nil {
		return Result{}, err
	}
	return svc.Import(ctx, format, doc.Data, target)
}

// Import runs the pipeline over data. Only request-level problems are returned as errors;
// row failures are counted in the Result.
func (svc *Service) Import(ctx context.Context, format Format, data []byte, target Target) (Result, error) {
	day, err := svc.checkTarget(ctx, target)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	rows := svc.extractor.Extract(ctx, data, format)

	snap, err := TakeSnapshot(ctx, svc.repo, target.Role)
	if err != nil {
		return Result{}, err
	}
	resolver := NewResolver(svc.repo, snap, svc.opts.Policy)

	var res Result
	for i, row := range rows {
		outcome, err := svc.processRow(ctx, row, target, day, resolver)
		svc.opts.Recorder.ObserveRow(format, target.Kind(), outcome)

		switch outcome {
		case OutcomeSkipped:
			res.SkippedCount++
		case OutcomeFailed:
			res.FailCount++
			svc.logger.Debug(fmt.Sprintf("import row %d failed", i+1), "error", err.Error())
			if len(res.Errors) < svc.opts.MaxErrors {
				res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			}
		default:
			res.SuccessCount++
		}
	}

	res.Message = fmt.Sprintf("%d %s row(s) imported, %d failed, %d skipped",
		res.SuccessCount, target.Kind(), res.FailCount, res.SkippedCount)
	if res.Errors == nil {
		res.Errors = []string{}
	}
	svc.opts.Recorder.ObserveImport(format, target.Kind(), time.Since(start))
	svc.logger.Info(res.Message, "format", string(format), "role", string(target.Role))
	return res, nil
}

// checkTarget validates target and loads its training day, if any.
func (svc *Service) checkTarget(ctx context.Context, target Target) (roster.TrainingDay, error) {
	if !target.Role.IsValid() {
		err := errors.Errorf("unknown role %q", target.Role)
		return roster.TrainingDay{}, core.NewValidationError(err, core.FieldError{Field: "role", Error: "must be one of: cadet, staff"})
	}
	if !target.IsAttendance() {
		return roster.TrainingDay{}, nil
	}

	day, err := svc.repo.GetTrainingDay(ctx, target.TrainingDayID)
	if err != nil {
		if errors.Is(err, roster.ErrNotFound) {
			err = errors.Errorf("training day %d not found", target.TrainingDayID)
			return roster.TrainingDay{}, core.NewValidationError(err, core.FieldError{Field: "training_day_id", Error: err.Error()})
		}
		return roster.TrainingDay{}, errors.Wrap(err, "getting training day")
	}
	return day, nil
}

// processRow takes one row through normalize, resolve and reconcile.
func (svc *Service) processRow(ctx context.Context, row RawRow, target Target, day roster.TrainingDay, resolver *Resolver) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = OutcomeFailed, errors.Wrapf(errRowPanic, "%v", r)
		}
	}()

	rec := Normalize(row, *svc.opts.Tables)
	if rec.IsEmpty() {
		return OutcomeSkipped, nil
	}

	match, err := resolver.Resolve(ctx, rec)
	if err != nil {
		return OutcomeFailed, err
	}

	if target.IsAttendance() {
		if !match.Matched() {
			return OutcomeSkipped, nil
		}
		if err = svc.recordAttendance(ctx, day, *match.Identity, rec); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeUpdated, nil
	}

	_, outcome, err = svc.reconciler.Reconcile(ctx, target.Role, rec, match)
	if err != nil {
		return OutcomeFailed, errors.Wrap(err, rec.DisplayName())
	}
	return outcome, nil
}
