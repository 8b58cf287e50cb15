package flow

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/proxyrelay/core/logger"

	"github.com/m3rciful/proxyrelay/relay/access"
	"github.com/m3rciful/proxyrelay/relay/publish"
	"github.com/m3rciful/proxyrelay/relay/store"
	"github.com/m3rciful/proxyrelay/relay/submission"
	"github.com/m3rciful/proxyrelay/relay/validate"
)

const adminID = 1

type fakePublisher struct {
	mu    sync.Mutex
	posts []publish.Post
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, p publish.Post) (publish.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, p)
	if f.err != nil {
		return publish.Result{}, f.err
	}
	return publish.Result{MessageID: len(f.posts)}, nil
}

type countingRecorder struct {
	started, published, failed int
	rejected                   []submission.Step
	denied                     []string
}

func (r *countingRecorder) SubmissionStarted()          { r.started++ }
func (r *countingRecorder) Published(validate.Kind)     { r.published++ }
func (r *countingRecorder) PublishFailed(validate.Kind) { r.failed++ }
func (r *countingRecorder) Rejected(s submission.Step)  { r.rejected = append(r.rejected, s) }
func (r *countingRecorder) Denied(reason string)        { r.denied = append(r.denied, reason) }

type harness struct {
	ctrl   *Controller
	policy *access.Policy
	pub    *fakePublisher
	rec    *countingRecorder
	subs   *submission.Store
}

func newHarness(t *testing.T, gate Gate) *harness {
	t.Helper()
	policy, err := access.Load(context.Background(), store.NewMemory(), []int64{adminID})
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	h := &harness{
		policy: policy,
		pub:    &fakePublisher{},
		rec:    &countingRecorder{},
		subs:   submission.NewStore(),
	}
	h.ctrl, err = New(Options{
		Policy:    policy,
		Gate:      gate,
		Publisher: h.pub,
		Sessions:  h.subs,
		Recorder:  h.rec,
		Now:       func() time.Time { return time.Unix(1700000000, 0) },
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return h
}

func expectScreen(t *testing.T, got Reply, want Screen) {
	t.Helper()
	if got.Screen != want {
		t.Fatalf("screen = %q (err %v), want %q", got.Screen, got.Err, want)
	}
}

// walk drives a user up to the payload step.
func (h *harness) walk(t *testing.T, uid int64, kind validate.Kind) {
	t.Helper()
	ctx := context.Background()
	expectScreen(t, h.ctrl.StartSubmission(ctx, uid), ScreenAskType)
	expectScreen(t, h.ctrl.SelectType(ctx, uid, kind), ScreenAskName)
	expectScreen(t, h.ctrl.SubmitText(ctx, uid, "My Channel"), ScreenAskOperator)
	expectScreen(t, h.ctrl.SelectOperator(ctx, uid, "irancell"), ScreenAskPayload)
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error for empty options")
	}
}

func TestPublishV2RayScenario(t *testing.T) {
	h := newHarness(t, nil)
	h.walk(t, 42, validate.V2Ray)

	r := h.ctrl.SubmitText(context.Background(), 42, "vless://abc123")
	expectScreen(t, r, ScreenPublished)
	if len(h.pub.posts) != 1 {
		t.Fatalf("publish calls = %d, want 1", len(h.pub.posts))
	}
	want := publish.Post{Kind: validate.V2Ray, DisplayName: "My Channel", Operator: "irancell", Payload: "vless://abc123"}
	if h.pub.posts[0] != want {
		t.Fatalf("post = %+v", h.pub.posts[0])
	}
	if got := submission.OperatorLabel(h.pub.posts[0].Operator); got != "ایرانسل" {
		t.Fatalf("operator label = %q", got)
	}
	if h.ctrl.InProgress(42) {
		t.Fatal("submission must be discarded after publish")
	}
	if h.rec.started != 1 || h.rec.published != 1 {
		t.Fatalf("recorder = %+v", h.rec)
	}
}

func TestInvalidPayloadKeepsStep(t *testing.T) {
	h := newHarness(t, nil)
	h.walk(t, 42, validate.V2Ray)

	r := h.ctrl.SubmitText(context.Background(), 42, "not-a-link")
	expectScreen(t, r, ScreenAskPayload)
	var ve *ValidationError
	if !errors.As(r.Err, &ve) || ve.Step != submission.AwaitingPayload {
		t.Fatalf("err = %v", r.Err)
	}
	if len(h.pub.posts) != 0 {
		t.Fatal("invalid payload must not publish")
	}
	sub, ok := h.subs.Get(42)
	if !ok || sub.Step != submission.AwaitingPayload || sub.Payload != "" {
		t.Fatalf("submission = %+v, %v", sub, ok)
	}
}

func TestProxyPayloadMustMatchKind(t *testing.T) {
	h := newHarness(t, nil)
	h.walk(t, 7, validate.Proxy)
	ctx := context.Background()

	expectScreen(t, h.ctrl.SubmitText(ctx, 7, "vless://abc123"), ScreenAskPayload)
	expectScreen(t, h.ctrl.SubmitText(ctx, 7, "  tg://proxy?server=1.2.3.4&port=443  "), ScreenPublished)
	if h.pub.posts[0].Payload != "tg://proxy?server=1.2.3.4&port=443" {
		t.Fatalf("payload = %q", h.pub.posts[0].Payload)
	}
}

func TestEmptyNameReprompts(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.ctrl.StartSubmission(ctx, 5)
	h.ctrl.SelectType(ctx, 5, validate.Proxy)

	r := h.ctrl.SubmitText(ctx, 5, " \t\n ")
	expectScreen(t, r, ScreenAskName)
	if r.Err == nil {
		t.Fatal("expected validation error")
	}
	if len(h.rec.rejected) != 1 || h.rec.rejected[0] != submission.AwaitingName {
		t.Fatalf("rejected = %v", h.rec.rejected)
	}
}

func TestKindIsImmutable(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.ctrl.StartSubmission(ctx, 5)
	h.ctrl.SelectType(ctx, 5, validate.Proxy)

	expectScreen(t, h.ctrl.SelectType(ctx, 5, validate.V2Ray), ScreenAskName)
	if sub, _ := h.subs.Get(5); sub.Kind != validate.Proxy {
		t.Fatalf("kind changed to %s", sub.Kind)
	}
}

func TestUnknownOperatorReprompts(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.ctrl.StartSubmission(ctx, 5)
	h.ctrl.SelectType(ctx, 5, validate.Proxy)
	h.ctrl.SubmitText(ctx, 5, "name")

	expectScreen(t, h.ctrl.SelectOperator(ctx, 5, "starlink"), ScreenAskOperator)
	expectScreen(t, h.ctrl.SubmitText(ctx, 5, "irancell"), ScreenAskOperator)
}

func TestOutOfOrderActionsReprompt(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.ctrl.StartSubmission(ctx, 5)

	expectScreen(t, h.ctrl.SubmitText(ctx, 5, "hello"), ScreenAskType)
	expectScreen(t, h.ctrl.SelectOperator(ctx, 5, "mci"), ScreenAskType)
}

func TestRestartDiscardsOpenSubmission(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.walk(t, 9, validate.V2Ray)
	first, _ := h.subs.Get(9)

	expectScreen(t, h.ctrl.StartSubmission(ctx, 9), ScreenAskType)
	second, ok := h.subs.Get(9)
	if !ok || second.ID == first.ID || second.Step != submission.AwaitingType || second.Kind != validate.Invalid {
		t.Fatalf("restart = %+v", second)
	}
}

func TestSelectTypeFromIdleStartsFresh(t *testing.T) {
	h := newHarness(t, nil)
	expectScreen(t, h.ctrl.SelectType(context.Background(), 3, validate.V2Ray), ScreenAskName)
	if sub, ok := h.subs.Get(3); !ok || sub.Kind != validate.V2Ray {
		t.Fatalf("submission = %+v, %v", sub, ok)
	}
}

func TestDeliveryFailureDiscards(t *testing.T) {
	h := newHarness(t, nil)
	h.pub.err = errors.New("bad gateway")
	h.walk(t, 42, validate.V2Ray)

	r := h.ctrl.SubmitText(context.Background(), 42, "vmess://abcdef")
	expectScreen(t, r, ScreenDeliveryFailed)
	var de *publish.DeliveryError
	if !errors.As(r.Err, &de) {
		t.Fatalf("err = %v", r.Err)
	}
	if h.ctrl.InProgress(42) || len(h.pub.posts) != 1 || h.rec.failed != 1 {
		t.Fatal("failed submission must be discarded without retry")
	}
}

func TestCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.walk(t, 4, validate.Proxy)

	expectScreen(t, h.ctrl.Cancel(ctx, 4), ScreenCancelled)
	if h.ctrl.InProgress(4) {
		t.Fatal("cancel must discard")
	}
	expectScreen(t, h.ctrl.Cancel(ctx, 4), ScreenCancelled)
}

func TestBanBlocksStart(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	expectScreen(t, h.ctrl.Ban(ctx, adminID, "42"), ScreenAdminDone)

	r := h.ctrl.StartSubmission(ctx, 42)
	expectScreen(t, r, ScreenDenied)
	if !errors.Is(r.Err, access.ErrBanned) {
		t.Fatalf("err = %v", r.Err)
	}
	if h.ctrl.InProgress(42) || len(h.pub.posts) != 0 || h.rec.started != 0 {
		t.Fatal("banned user must stay idle")
	}
}

func TestBanMidFlowNeverPublishes(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.walk(t, 42, validate.V2Ray)
	h.ctrl.Ban(ctx, adminID, "42")

	expectScreen(t, h.ctrl.SubmitText(ctx, 42, "vless://abc123"), ScreenDenied)
	expectScreen(t, h.ctrl.SelectType(ctx, 42, validate.V2Ray), ScreenDenied)
	if len(h.pub.posts) != 0 || h.ctrl.InProgress(42) {
		t.Fatal("banned user reached the publisher")
	}
}

func TestBanUnbanRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.ctrl.Ban(ctx, adminID, "42")
	r := h.ctrl.Unban(ctx, adminID, " 42 ")
	expectScreen(t, r, ScreenAdminDone)
	if r.Target != 42 || h.policy.IsBanned(42) {
		t.Fatalf("unban = %+v", r)
	}
	expectScreen(t, h.ctrl.StartSubmission(ctx, 42), ScreenAskType)
}

func TestDisableBlocksNonAdmins(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.walk(t, 42, validate.V2Ray)

	expectScreen(t, h.ctrl.Disable(ctx, adminID), ScreenAdminDone)
	r := h.ctrl.SubmitText(ctx, 42, "vless://abc123")
	if !errors.Is(r.Err, access.ErrDisabled) || len(h.pub.posts) != 0 {
		t.Fatalf("disabled service reached the publisher: %+v", r)
	}

	h.walk(t, adminID, validate.V2Ray)
	expectScreen(t, h.ctrl.SubmitText(ctx, adminID, "vless://abc123"), ScreenPublished)

	expectScreen(t, h.ctrl.Enable(ctx, adminID), ScreenAdminDone)
	expectScreen(t, h.ctrl.StartSubmission(ctx, 42), ScreenAskType)
}

func TestAdminCommandsSilentForOthers(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	for name, r := range map[string]Reply{
		"status":  h.ctrl.Status(ctx, 2),
		"enable":  h.ctrl.Enable(ctx, 2),
		"disable": h.ctrl.Disable(ctx, 2),
		"ban":     h.ctrl.Ban(ctx, 2, "3"),
		"unban":   h.ctrl.Unban(ctx, 2, "bogus"),
	} {
		if !r.Silent() {
			t.Fatalf("%s replied %+v", name, r)
		}
	}
	if !h.policy.IsEnabled() || h.policy.IsBanned(3) {
		t.Fatal("non-admin changed the policy")
	}
}

func TestAdminUsageAndStatus(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	for _, arg := range []string{"", "abc", "1 2", "-5"} {
		expectScreen(t, h.ctrl.Ban(ctx, adminID, arg), ScreenAdminUsage)
	}
	h.ctrl.StartSubmission(ctx, 8)
	h.ctrl.Ban(ctx, adminID, "9")

	r := h.ctrl.Status(ctx, adminID)
	expectScreen(t, r, ScreenStatus)
	if !r.Status.Enabled || len(r.Status.Banned) != 1 || r.Status.OpenSubmissions != 1 {
		t.Fatalf("status = %+v", r.Status)
	}
}

func TestAdminPersistFailure(t *testing.T) {
	st := store.NewMemory()
	policy, err := access.Load(context.Background(), st, []int64{adminID})
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	ctrl, err := New(Options{Policy: policy, Publisher: &fakePublisher{}, Sessions: submission.NewStore()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	st.SaveErr = errors.New("read-only")
	r := ctrl.Ban(context.Background(), adminID, "42")
	expectScreen(t, r, ScreenAdminFailed)
	if policy.IsBanned(42) {
		t.Fatal("failed ban took effect")
	}
}

func TestMembershipGate(t *testing.T) {
	members := map[int64]bool{}
	gate := access.NewGate(access.MembershipFunc(func(_ context.Context, id int64) (bool, error) {
		return members[id], nil
	}))
	h := newHarness(t, gate)
	ctx := context.Background()

	r := h.ctrl.StartSubmission(ctx, 11)
	expectScreen(t, r, ScreenJoin)
	if !errors.Is(r.Err, access.ErrNotMember) {
		t.Fatalf("err = %v", r.Err)
	}
	var buf bytes.Buffer
	logged := logger.WithLogger(ctx, slog.New(slog.NewTextHandler(&buf, nil)))
	expectScreen(t, h.ctrl.CheckJoin(logged, 11), ScreenNotJoined)
	if line := buf.String(); !strings.Contains(line, "event=flow.denied") || !strings.Contains(line, "action=check_join") {
		t.Fatalf("check_join denial not logged: %q", line)
	}
	if len(h.rec.denied) != 2 || h.rec.denied[1] != "not_member" {
		t.Fatalf("denied = %v", h.rec.denied)
	}
	expectScreen(t, h.ctrl.SubmitText(ctx, 11, "hi"), ScreenStartHint)

	members[11] = true
	expectScreen(t, h.ctrl.CheckJoin(ctx, 11), ScreenMenu)
	expectScreen(t, h.ctrl.SubmitText(ctx, 11, "hi"), ScreenMenu)
	expectScreen(t, h.ctrl.StartSubmission(ctx, 11), ScreenAskType)
}

func TestConcurrentPayloadsPublishOnce(t *testing.T) {
	for i := 0; i < 200; i++ {
		h := newHarness(t, nil)
		h.walk(t, 7, validate.V2Ray)

		var wg sync.WaitGroup
		replies := make([]Reply, 2)
		for j := range replies {
			wg.Add(1)
			go func() {
				defer wg.Done()
				replies[j] = h.ctrl.SubmitText(context.Background(), 7, "vless://abc123")
			}()
		}
		wg.Wait()

		if n := len(h.pub.posts); n != 1 {
			t.Fatalf("iteration %d: publish calls = %d, want 1", i, n)
		}
		published := 0
		for _, r := range replies {
			if r.Screen == ScreenPublished {
				published++
			}
		}
		if published != 1 || h.rec.published != 1 || h.ctrl.InProgress(7) {
			t.Fatalf("iteration %d: replies = %+v, recorder = %+v", i, replies, h.rec)
		}
	}
}

func TestPublishSkipsReplacedSubmission(t *testing.T) {
	h := newHarness(t, nil)
	h.walk(t, 8, validate.V2Ray)
	stale, _ := h.subs.Get(8)
	h.subs.Put(submission.New(8, time.Unix(1700000000, 0)))

	expectScreen(t, h.ctrl.publish(context.Background(), stale), ScreenMenu)
	if len(h.pub.posts) != 0 || !h.ctrl.InProgress(8) {
		t.Fatal("a stale copy must neither publish nor discard the newer submission")
	}
}

type failingGate struct{ err error }

func (g failingGate) Check(context.Context, int64) error { return g.err }

func TestUnexpectedGateErrorLoggedAsWarning(t *testing.T) {
	h := newHarness(t, failingGate{err: errors.New("lookup down")})
	var buf bytes.Buffer
	ctx := logger.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

	expectScreen(t, h.ctrl.StartSubmission(ctx, 12), ScreenDenied)
	line := buf.String()
	if !strings.Contains(line, "level=WARN") || !strings.Contains(line, "reason=unknown") || !strings.Contains(line, `err="lookup down"`) {
		t.Fatalf("unexpected denial log: %q", line)
	}

	buf.Reset()
	h.ctrl.gate = failingGate{err: access.ErrNotMember}
	expectScreen(t, h.ctrl.StartSubmission(ctx, 12), ScreenJoin)
	if line := buf.String(); !strings.Contains(line, "level=INFO") || strings.Contains(line, "err=") {
		t.Fatalf("policy denial log: %q", line)
	}
}
