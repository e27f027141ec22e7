package importer

import "time"

// Recorder observes import activity (eg. for metrics). kind is Target.Kind().
type Recorder interface {
	ObserveRow(format Format, kind string, outcome Outcome)
	ObserveImport(format Format, kind string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRow(Format, string, Outcome)          {}
func (nopRecorder) ObserveImport(Format, string, time.Duration) {}
