// Package shared holds the dependency wiring used by both the API server and the admin CLI.
package shared

import (
	"context"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/importer"
	"github.com/trezcool/rollcall/core/roster"
	fetchsvc "github.com/trezcool/rollcall/services/fetch"
	logsvc "github.com/trezcool/rollcall/services/logger"
	metricsvc "github.com/trezcool/rollcall/services/metrics"
	ocrsvc "github.com/trezcool/rollcall/services/ocr"
	"github.com/trezcool/rollcall/storage/database"
)

// NewLogger returns the application logger. Rollbar reporting is off in debug mode.
func NewLogger(out io.Writer, conf *core.Config) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger(out, conf), conf)
	logger.Enable(!conf.Debug)
	return logger
}

// SetUpDB creates the database if needed, opens it and applies pending migrations.
func SetUpDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, errors.Wrap(err, "creating database")
	}

	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	if err = database.Migrate(ctx, db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewImportService wires the import pipeline: Tesseract for images, the HTTP fetcher for links
// and Prometheus counters registered on reg.
func NewImportService(conf *core.Config, repo roster.Repository, logger core.Logger, reg prometheus.Registerer) (*importer.Service, error) {
	unknown := roster.AttendanceStatus(core.CleanString(conf.Import.UnknownStatus, true /* lower */))
	if !unknown.IsStorable() {
		return nil, errors.Errorf("import.unknownStatus: %q is not a storable attendance status", conf.Import.UnknownStatus)
	}

	extractor := importer.NewExtractor(ocrsvc.NewTesseractRecognizer(), conf.Import.OCRLanguage, logger)
	return importer.NewService(
		repo,
		extractor,
		fetchsvc.NewFetcher(conf.Import),
		logger,
		importer.Options{
			UnknownStatus: unknown,
			Recorder:      metricsvc.NewImportRecorder(reg),
		},
	), nil
}
