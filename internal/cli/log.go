package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depmap/pkg/observability"
)

// newLogger creates a logger with "HH:MM:SS.ms" timestamps.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs how long an operation took.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time, e.g. "Saved snapshot (1.234s)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached to ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// logHooks reports scan and cache events at debug level.
type logHooks struct {
	logger *log.Logger
}

func registerLogHooks(l *log.Logger) {
	h := logHooks{logger: l}
	observability.SetScanHooks(h)
	observability.SetCacheHooks(h)
}

func (h logHooks) OnScanStart(_ context.Context, root string, repos []string) {
	h.logger.Debug("scan started", "root", root, "repositories", repos)
}

func (h logHooks) OnFileParsed(_ context.Context, repo string, packages int, err error) {
	if err != nil {
		h.logger.Debug("parse failed", "repository", repo, "err", err)
	}
}

func (h logHooks) OnScanComplete(_ context.Context, files, packages, failed int, d time.Duration, err error) {
	h.logger.Debug("scan complete", "files", files, "packages", packages, "failed", failed, "duration", d.Round(time.Millisecond), "err", err)
}

func (h logHooks) OnBuildComplete(_ context.Context, nodes, edges, unresolved int, d time.Duration, err error) {
	h.logger.Debug("graph built", "nodes", nodes, "edges", edges, "unresolved", unresolved, "duration", d.Round(time.Millisecond), "err", err)
}

func (h logHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h logHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h logHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}
