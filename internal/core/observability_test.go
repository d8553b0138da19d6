package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"strings"
	"sync"
	"testing"
	"time"

	"schoolcore/pkg/domain"
)

type logEntry struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu   sync.Mutex
	logs []logEntry
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, logEntry{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) entries() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]logEntry(nil), l.logs...)
}

func (l *captureLogger) count(level, msg string) int {
	n := 0
	for _, e := range l.entries() {
		if e.level == level && e.msg == msg {
			n++
		}
	}
	return n
}

type observation struct {
	operation string
	success   bool
}

type captureMetricsRecorder struct {
	mu  sync.Mutex
	obs []observation
}

func (m *captureMetricsRecorder) Observe(_ context.Context, operation string, success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obs = append(m.obs, observation{operation: operation, success: success})
}

type captureTracer struct {
	mu    sync.Mutex
	spans []*captureSpan
}

type captureSpan struct {
	operation string
	ended     int
	err       error
}

func (s *captureSpan) End(err error) {
	s.ended++
	s.err = err
}

func (t *captureTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	t.mu.Lock()
	defer t.mu.Unlock()
	span := &captureSpan{operation: operation}
	t.spans = append(t.spans, span)
	return ctx, span
}

func TestServiceObservability(t *testing.T) {
	logger := &captureLogger{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	svc := NewInMemoryService(NewDefaultRulesEngine(),
		WithLogger(logger), WithMetricsRecorder(metrics), WithTracer(tracer))
	ctx := context.Background()

	if _, err := svc.CreateSchool(ctx, "U"); err != nil {
		t.Fatalf("create school: %v", err)
	}
	if _, err := svc.CreateSchool(ctx, "U"); err == nil {
		t.Fatalf("expected duplicate")
	}
	if _, err := svc.ListSchools(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}

	want := []observation{{"school.create", true}, {"school.create", false}, {"school.list", true}}
	if len(metrics.obs) != len(want) {
		t.Fatalf("expected %d observations, got %+v", len(want), metrics.obs)
	}
	for i, o := range want {
		if metrics.obs[i] != o {
			t.Fatalf("observation %d: expected %+v, got %+v", i, o, metrics.obs[i])
		}
	}
	if len(tracer.spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(tracer.spans))
	}
	for _, span := range tracer.spans {
		if span.ended != 1 {
			t.Fatalf("span %s ended %d times", span.operation, span.ended)
		}
	}
	if !errors.Is(tracer.spans[1].err, domain.ErrDuplicateName) {
		t.Fatalf("expected failing span to carry the error, got %v", tracer.spans[1].err)
	}
	if logger.count("error", "directory operation failed") != 1 {
		t.Fatalf("expected one error log, got %+v", logger.entries())
	}
	if logger.count("debug", "directory operation") != 2 {
		t.Fatalf("expected two debug logs, got %+v", logger.entries())
	}
}

func TestNilOptionsRestoreDefaults(t *testing.T) {
	svc := NewInMemoryService(nil, WithLogger(nil), WithMetricsRecorder(nil), WithTracer(nil), WithClock(nil))
	if _, err := svc.CreateSchool(context.Background(), "U"); err != nil {
		t.Fatalf("create with defaults: %v", err)
	}
	if svc.clock.Now().IsZero() {
		t.Fatalf("default clock missing")
	}
	var l noopLogger
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
}

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("schoolcore_test_" + t.Name())
	rec.Observe(context.Background(), "school.create", true, 2*time.Millisecond)
	rec.Observe(context.Background(), "school.create", false, 5*time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond)

	snap := rec.Snapshot()
	stats, ok := snap.Operations["school.create"]
	if !ok || len(snap.Operations) != 1 {
		t.Fatalf("unexpected operations %+v", snap.Operations)
	}
	if stats.Success != 1 || stats.Errors != 1 || stats.MaxMS != 5 || stats.TotalMS != 7 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	published := expvar.Get(rec.Name())
	if published == nil {
		t.Fatalf("recorder not published")
	}
	var decoded ExpvarMetricsSnapshot
	if err := json.Unmarshal([]byte(published.String()), &decoded); err != nil {
		t.Fatalf("decode published metrics: %v", err)
	}
	if decoded.Operations["school.create"].Success != 1 {
		t.Fatalf("unexpected published metrics %+v", decoded)
	}
}

func TestExpvarRecorderIsSharedPerName(t *testing.T) {
	first := NewExpvarMetricsRecorder("")
	if first.Name() != DefaultExpvarName {
		t.Fatalf("unexpected default name %s", first.Name())
	}
	if again := NewExpvarMetricsRecorder(""); again != first {
		t.Fatalf("repeated construction published a second recorder")
	}
	if named := NewExpvarMetricsRecorder(DefaultExpvarName); named != first {
		t.Fatalf("explicit default name should share the recorder")
	}
	other := NewExpvarMetricsRecorder("schoolcore_test_" + t.Name())
	if other == first || expvar.Get(other.Name()) == nil {
		t.Fatalf("distinct names need distinct published recorders")
	}

	before := first.Snapshot().Operations["college.create"].Success
	NewExpvarMetricsRecorder("").Observe(context.Background(), "college.create", true, time.Millisecond)
	if got := first.Snapshot().Operations["college.create"].Success; got != before+1 {
		t.Fatalf("shared recorder missed an observation: %d -> %d", before, got)
	}
}

func TestJSONTracerRecordsSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	svc := NewInMemoryService(NewDefaultRulesEngine(), WithTracer(tracer))
	ctx := context.Background()
	if _, err := svc.CreateSchool(ctx, "U"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.FullName(ctx, "missing"); err == nil {
		t.Fatalf("expected not found")
	}

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Operation != "school.create" || entries[0].Status != "success" || entries[0].ErrorKind != "" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Status != "error" || entries[1].ErrorKind != string(domain.KindNotFound) {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 json lines, got %q", buf.String())
	}
	var decoded JSONTraceEntry
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if decoded.Operation != "student.fullname" {
		t.Fatalf("unexpected decoded entry %+v", decoded)
	}
}

func TestErrorKindLabels(t *testing.T) {
	cases := map[string]error{
		"not_found":      domain.NotFound(domain.EntityStudent, "1"),
		"rule_violation": domain.RuleViolationError{},
		"internal":       errors.New("boom"),
	}
	for want, err := range cases {
		if got := errorKind(err); got != want {
			t.Fatalf("errorKind(%v) = %s, want %s", err, got, want)
		}
	}
	if NewJSONTracer(nil).enc != nil {
		t.Fatalf("nil writer should not create an encoder")
	}
}
