package mirror

import (
	"go.uber.org/zap"
)

// Failure is one failed unit of a run.
type Failure struct {
	ModID  uint32
	FileID uint32
	Err    error
}

// Report summarizes a sync or reconcile run.
type Report struct {
	Total     int
	Succeeded int
	Failed    int
	// Downloaded counts archives fetched from the catalog.
	Downloaded int
	// Updated counts mods whose current file changed.
	Updated  int
	Failures []Failure
}

func (r *Report) fail(modID, fileID uint32, err error) {
	r.Failed++
	r.Failures = append(r.Failures, Failure{ModID: modID, FileID: fileID, Err: err})
}

// Reporter receives progress of a run. Calls come from a single goroutine.
type Reporter interface {
	Start(total int)
	Completed(unit string)
	Failed(unit string, err error)
	DownloadStarted(name string, size int64)
	DownloadProgress(name string, n int64)
	DownloadFinished(name string)
	Finish()
}

// NopReporter discards progress.
type NopReporter struct{}

func (NopReporter) Start(int)                      {}
func (NopReporter) Completed(string)               {}
func (NopReporter) Failed(string, error)           {}
func (NopReporter) DownloadStarted(string, int64)  {}
func (NopReporter) DownloadProgress(string, int64) {}
func (NopReporter) DownloadFinished(string)        {}
func (NopReporter) Finish()                        {}

// LogReporter writes progress to a zap logger.
type LogReporter struct {
	Log *zap.SugaredLogger

	total, done int
}

func NewLogReporter(log *zap.SugaredLogger) *LogReporter {
	return &LogReporter{Log: log}
}

func (r *LogReporter) Start(total int) {
	r.total, r.done = total, 0
	r.Log.Infow("Starting", zap.Int("total", total))
}

func (r *LogReporter) Completed(unit string) {
	r.done++
	r.Log.Debugw("Completed", zap.String("unit", unit), zap.Int("done", r.done), zap.Int("total", r.total))
}

func (r *LogReporter) Failed(unit string, err error) {
	r.done++
	r.Log.Warnw("Failed", zap.String("unit", unit), zap.Error(err))
}

func (r *LogReporter) DownloadStarted(name string, size int64) {
	r.Log.Infow("Downloading", zap.String("file", name), zap.Int64("size", size))
}

func (r *LogReporter) DownloadProgress(string, int64) {}

func (r *LogReporter) DownloadFinished(name string) {
	r.Log.Infow("Download finished", zap.String("file", name))
}

func (r *LogReporter) Finish() {
	r.Log.Infow("Finished", zap.Int("done", r.done), zap.Int("total", r.total))
}
