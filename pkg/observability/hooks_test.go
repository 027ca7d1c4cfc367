package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	s := NoopScanHooks{}
	s.OnScanStart(ctx, "/aports", []string{"main"})
	s.OnFileParsed(ctx, "main", 3, nil)
	s.OnScanComplete(ctx, 10, 25, 1, time.Second, nil)
	s.OnBuildComplete(ctx, 25, 40, 2, time.Millisecond, errors.New("x"))

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "scan")
	c.OnCacheMiss(ctx, "resp")
	c.OnCacheSet(ctx, "scan", 1024)

	NoopQueryHooks{}.OnQuery(ctx, "/api/stats", 200, time.Millisecond)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	if _, ok := Scan().(NoopScanHooks); !ok {
		t.Error("Scan() default is not a no-op")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() default is not a no-op")
	}
	if _, ok := Query().(NoopQueryHooks); !ok {
		t.Error("Query() default is not a no-op")
	}

	rec := &recorder{}
	SetScanHooks(rec)
	SetCacheHooks(rec)
	SetQueryHooks(rec)
	SetScanHooks(nil)

	Scan().OnFileParsed(context.Background(), "main", 2, nil)
	Cache().OnCacheHit(context.Background(), "scan")
	Query().OnQuery(context.Background(), "/api/path", 404, 0)
	if rec.parsed != 2 || rec.hits != 1 || rec.lastStatus != 404 {
		t.Errorf("recorder = %+v", rec)
	}

	Reset()
	if _, ok := Scan().(NoopScanHooks); !ok {
		t.Error("Reset() did not restore defaults")
	}
}

type recorder struct {
	NoopScanHooks
	NoopCacheHooks
	parsed     int
	hits       int
	lastStatus int
}

func (r *recorder) OnFileParsed(_ context.Context, _ string, n int, _ error) { r.parsed += n }
func (r *recorder) OnCacheHit(context.Context, string)                       { r.hits++ }
func (r *recorder) OnQuery(_ context.Context, _ string, status int, _ time.Duration) {
	r.lastStatus = status
}
