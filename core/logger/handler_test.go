package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// captureLine logs one record through a fresh handler and returns the line.
func captureLine(t *testing.T, cfg handlerConfig, ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) string {
	t.Helper()
	buf := &bytes.Buffer{}
	cfg.writer = newAsyncWriter([]io.Writer{buf}, 16)
	cfg.level = slog.LevelDebug
	log := slog.New(newStructuredHandler(cfg)).With("component", component)
	log.LogAttrs(ctx, level, "", append([]slog.Attr{slog.String("event", event)}, attrs...)...)
	if err := cfg.writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func assertOrdered(t *testing.T, line string, parts ...string) {
	t.Helper()
	pos := -1
	for _, p := range parts {
		idx := strings.Index(line, p)
		if idx < 0 || idx < pos {
			t.Fatalf("%q missing or out of order in %s", p, line)
		}
		pos = idx
	}
}

func TestKVLineOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "rid-123"), 42, 7, 9)
	line := captureLine(t, handlerConfig{format: formatKV}, ctx, "app", slog.LevelInfo, "test.event",
		slog.String("status", "ok"),
		slog.String("cause", "unit"),
	)
	tokens := strings.Split(line, " ")
	want := []string{"ts=", "level=INFO", "component=app", "event=test.event", "status=ok", "rid=rid-123"}
	if len(tokens) < len(want) {
		t.Fatalf("short line: %s", line)
	}
	for i, prefix := range want {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, want prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestJSONLineOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "rid-json"), 11, 22, 33)
	line := captureLine(t, handlerConfig{format: formatJSON}, ctx, "relay.publish", slog.LevelError, "publish.send",
		slog.String("status", "fail"),
		slog.String("err", "boom"),
		slog.String("err_code", "DELIVERY"),
	)
	assertOrdered(t, line, `{"ts":`, `"level":"ERROR"`, `"component":"relay.publish"`, `"event":"publish.send"`, `"status":"fail"`, `"rid":"rid-json"`)
}

func TestCompactRID(t *testing.T) {
	ctx := WithRID(context.Background(), "123:456:789")
	kv := captureLine(t, handlerConfig{format: formatKV}, ctx, "app", slog.LevelInfo, "rid.test")
	if !strings.Contains(kv, "rid=3f.co.lx") || strings.Contains(kv, "rid_full=") {
		t.Fatalf("kv rid: %s", kv)
	}
	js := captureLine(t, handlerConfig{format: formatJSON}, ctx, "app", slog.LevelInfo, "rid.test")
	if !strings.Contains(js, `"rid":"3f.co.lx"`) || !strings.Contains(js, `"rid_full":"123:456:789"`) {
		t.Fatalf("json rid: %s", js)
	}
	if !strings.Contains(js, `"ts_unix_nano"`) {
		t.Fatalf("json line without ts_unix_nano: %s", js)
	}
	if got := CompactRID("not-a-rid"); got != "not-a-rid" {
		t.Fatalf("CompactRID passthrough = %q", got)
	}
}

func TestSubmissionIDFollowsUser(t *testing.T) {
	ctx := WithSubmission(WithUpdateMeta(context.Background(), 1, 42, 42), "sub-1")
	line := captureLine(t, handlerConfig{format: formatKV}, ctx, "relay.flow", slog.LevelInfo, "flow.transition",
		slog.String("status", "ok"),
		slog.String("from", "awaiting_name"),
	)
	assertOrdered(t, line, "user_id=42", "submission_id=sub-1", "from=awaiting_name")
}

func TestTokenRedacted(t *testing.T) {
	cfg := handlerConfig{format: formatKV, secrets: []string{"123:SECRET"}}
	line := captureLine(t, cfg, context.Background(), "tg", slog.LevelError, "tg.start",
		slog.String("err", `Post "https://api.telegram.org/bot123:SECRET/getMe": timeout`),
	)
	if strings.Contains(line, "SECRET") || !strings.Contains(line, redacted) {
		t.Fatalf("token leaked: %s", line)
	}
}

func TestDurationsAndEnumerations(t *testing.T) {
	line := captureLine(t, handlerConfig{format: formatKV}, context.Background(), "app", slog.LevelWarn, "x",
		slog.Duration("took", 1500*time.Microsecond),
		slog.String("status", "SKIP"),
		slog.String("outcome", "whatever"),
		slog.String("empty", ""),
	)
	if !strings.Contains(line, "took_ms=2") || !strings.Contains(line, "status=skip") {
		t.Fatalf("normalization: %s", line)
	}
	if strings.Contains(line, "outcome=") || strings.Contains(line, "empty=") {
		t.Fatalf("unknown outcome and empty values must be dropped: %s", line)
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	want := []bool{true, false, false, true}
	for i, w := range want {
		if got := s.Allow(); got != w {
			t.Fatalf("allow[%d] = %v, want %v", i, got, w)
		}
	}
	if n, d := parseRatioSpec("10"); n != 1 || d != 10 {
		t.Fatalf("parseRatioSpec(10) = %d/%d", n, d)
	}
	if n, d := parseRatioSpec("x/2"); n != 0 || d != 0 {
		t.Fatalf("parseRatioSpec(x/2) = %d/%d", n, d)
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("a\x00b\u200bc\td", 3); got != "abc" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
}

func TestContextMetadataLayers(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "r1"), 5, 7, 9)
	ctx = WithSubmission(WithHandler(ctx, "flow.submit"), "sub-1")
	inner := WithRID(ctx, "r2")

	if RIDFrom(ctx) != "r1" || RIDFrom(inner) != "r2" {
		t.Fatalf("rid not layered: %q %q", RIDFrom(ctx), RIDFrom(inner))
	}
	if UpdateIDFrom(inner) != 5 || UserIDFrom(inner) != 7 || ChatIDFrom(inner) != 9 {
		t.Fatalf("update meta lost: %d %d %d", UpdateIDFrom(inner), UserIDFrom(inner), ChatIDFrom(inner))
	}
	if HandlerFrom(inner) != "flow.submit" || SubmissionIDFrom(inner) != "sub-1" {
		t.Fatalf("handler/submission lost: %q %q", HandlerFrom(inner), SubmissionIDFrom(inner))
	}
	if WithHandler(ctx, "") != ctx || WithSubmission(ctx, "") != ctx {
		t.Fatal("empty values must not allocate a new context")
	}
}
