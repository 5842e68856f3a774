package elevation

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/openreach/openreach/pkg/api"
	"github.com/openreach/openreach/pkg/audit"
	"github.com/openreach/openreach/pkg/observability"
	"github.com/openreach/openreach/pkg/storage"
)

// recordingAudit captures audit events and signals each write so tests can
// wait for the detached audit goroutine.
type recordingAudit struct {
	mu     sync.Mutex
	events []*audit.Event
	logged chan struct{}
}

func newRecordingAudit() *recordingAudit {
	return &recordingAudit{logged: make(chan struct{}, 16)}
}

func (r *recordingAudit) Log(ctx context.Context, event *audit.Event) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	r.logged <- struct{}{}
	return nil
}

func (r *recordingAudit) Close() error { return nil }

func (r *recordingAudit) waitForEvent(t *testing.T) *audit.Event {
	t.Helper()
	select {
	case <-r.logged:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func (r *recordingAudit) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func setupProtocolTest(t *testing.T, opts Options) (*Protocol, *miniredis.Miniredis, *recordingAudit, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	client := storage.NewRedisClientFromExisting(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	sink := newRecordingAudit()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	protocol := NewProtocol(opts, client, sink, logger, nil)

	cleanup := func() {
		client.Close()
		mr.Close()
	}
	return protocol, mr, sink, cleanup
}

func defaultOptions() Options {
	return Options{
		Secret:     "primary-secret",
		JTIEnabled: true,
		RateLimit:  3,
	}
}

func globalAdmin() *api.User {
	orgID := int64(1)
	return &api.User{ID: 42, Role: api.RoleGlobalAdmin, OrganizationID: &orgID}
}

func attemptRequest(user *api.User, secret, jti string) *Request {
	return &Request{
		User:       user,
		Secret:     secret,
		JTI:        jti,
		ClientAddr: "203.0.113.7",
		Action:     "DELETE /api/v1/cases/9",
		Method:     "DELETE",
		Path:       "/api/v1/cases/9",
	}
}

func TestProtocol_NonAdminNeverElevates(t *testing.T) {
	p, _, sink, cleanup := setupProtocolTest(t, defaultOptions())
	defer cleanup()

	orgID := int64(1)
	tests := []struct {
		name string
		user *api.User
	}{
		{"anonymous", nil},
		{"org admin", &api.User{ID: 1, Role: api.RoleOrgAdmin, OrganizationID: &orgID}},
		{"coordinator", &api.User{ID: 2, Role: api.RoleCoordinator, OrganizationID: &orgID}},
		{"social worker", &api.User{ID: 3, Role: api.RoleSocialWorker, OrganizationID: &orgID}},
		{"public user", &api.User{ID: 4, Role: api.RolePublic}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx, flag := WithFlag(context.Background())
			d := p.Attempt(ctx, attemptRequest(tc.user, "primary-secret", "jti-"+tc.name))
			if d.State != StateNotAdmin || d.Elevated {
				t.Errorf("Attempt() = %+v, want not_admin deny", d)
			}
			if flag.Elevated() {
				t.Error("flag must stay unset for non-admins")
			}
		})
	}

	if sink.count() != 0 {
		t.Errorf("denied attempts produced %d audit events, want 0", sink.count())
	}
}

func TestProtocol_AdminWithoutSecret(t *testing.T) {
	p, _, _, cleanup := setupProtocolTest(t, defaultOptions())
	defer cleanup()

	ctx, _ := WithFlag(context.Background())
	d := p.Attempt(ctx, attemptRequest(globalAdmin(), "", ""))
	if d.State != StateAdminNoSecret || d.Elevated {
		t.Errorf("Attempt() = %+v, want admin_no_secret deny", d)
	}
}

func TestProtocol_InvalidSecret(t *testing.T) {
	p, _, sink, cleanup := setupProtocolTest(t, defaultOptions())
	defer cleanup()

	ctx, flag := WithFlag(context.Background())
	d := p.Attempt(ctx, attemptRequest(globalAdmin(), "wrong-secret", "jti-1"))
	if d.State != StateSecretInvalid || d.Elevated {
		t.Errorf("Attempt() = %+v, want secret_invalid deny", d)
	}
	if flag.Elevated() {
		t.Error("flag must stay unset on an invalid secret")
	}
	if sink.count() != 0 {
		t.Error("invalid secret must not produce an audit event")
	}
}

func TestProtocol_GrantSetsFlagAndAudits(t *testing.T) {
	p, _, sink, cleanup := setupProtocolTest(t, defaultOptions())
	defer cleanup()

	ctx, flag := WithFlag(context.Background())
	d := p.Attempt(ctx, attemptRequest(globalAdmin(), "primary-secret", "jti-grant"))
	if d.State != StateElevated || !d.Elevated {
		t.Fatalf("Attempt() = %+v, want elevated", d)
	}
	if !flag.Elevated() {
		t.Error("granted attempt must set the request flag")
	}
	if !IsElevated(ctx) {
		t.Error("IsElevated must observe the grant through the same context")
	}

	event := sink.waitForEvent(t)
	if event.EventType != audit.EventTypeElevation {
		t.Errorf("event type = %q, want %q", event.EventType, audit.EventTypeElevation)
	}
	if event.UserID != 42 {
		t.Errorf("event user id = %d, want 42", event.UserID)
	}
	if event.IPAddress != "203.0.113.7" {
		t.Errorf("event ip = %q, want 203.0.113.7", event.IPAddress)
	}
	if event.Method != "DELETE" || event.Path != "/api/v1/cases/9" {
		t.Errorf("event method/path = %q %q", event.Method, event.Path)
	}
	if sink.count() != 1 {
		t.Errorf("grant produced %d audit events, want exactly 1", sink.count())
	}
}

func TestProtocol_BackupSecret(t *testing.T) {
	opts := defaultOptions()
	opts.SecretBackup = "rotation-secret"
	p, _, _, cleanup := setupProtocolTest(t, opts)
	defer cleanup()

	ctx, _ := WithFlag(context.Background())
	d := p.Attempt(ctx, attemptRequest(globalAdmin(), "rotation-secret", "jti-backup"))
	if d.State != StateElevated {
		t.Errorf("backup secret should elevate, got %+v", d)
	}
}

func TestProtocol_UnsetSecretsNeverMatch(t *testing.T) {
	// Neither secret configured: elevation must be impossible no matter
	// what the caller presents.
	opts := Options{JTIEnabled: true, RateLimit: 3}
	p, _, _, cleanup := setupProtocolTest(t, opts)
	defer cleanup()

	for _, presented := range []string{"", "guess", "primary-secret"} {
		ctx, _ := WithFlag(context.Background())
		d := p.Attempt(ctx, attemptRequest(globalAdmin(), presented, "jti-x"))
		if d.Elevated {
			t.Errorf("elevation with unset secrets must fail, presented %q", presented)
		}
	}
}

func TestProtocol_JTIMissing(t *testing.T) {
	p, _, _, cleanup := setupProtocolTest(t, defaultOptions())
	defer cleanup()

	ctx, _ := WithFlag(context.Background())
	d := p.Attempt(ctx, attemptRequest(globalAdmin(), "primary-secret", ""))
	if d.State != StateJTIMissing || d.Elevated {
		t.Errorf("Attempt() = %+v, want jti_missing deny", d)
	}
}

func TestProtocol_JTIReplay(t *testing.T) {
	p, _, _, cleanup := setupProtocolTest(t, defaultOptions())
	defer cleanup()

	ctx1, _ := WithFlag(context.Background())
	d := p.Attempt(ctx1, attemptRequest(globalAdmin(), "primary-secret", "jti-once"))
	if d.State != StateElevated {
		t.Fatalf("first use should elevate, got %+v", d)
	}

	ctx2, flag := WithFlag(context.Background())
	d = p.Attempt(ctx2, attemptRequest(globalAdmin(), "primary-secret", "jti-once"))
	if d.State != StateJTIReplayed || d.Elevated {
		t.Errorf("second use = %+v, want jti_replayed deny", d)
	}
	if flag.Elevated() {
		t.Error("replayed token must not set the flag")
	}
}

func TestProtocol_JTIConcurrentRace(t *testing.T) {
	opts := defaultOptions()
	opts.RateLimit = 100
	p, _, _, cleanup := setupProtocolTest(t, opts)
	defer cleanup()

	const racers = 8
	var wg sync.WaitGroup
	grants := make(chan State, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, _ := WithFlag(context.Background())
			d := p.Attempt(ctx, attemptRequest(globalAdmin(), "primary-secret", "jti-contested"))
			grants <- d.State
		}()
	}
	wg.Wait()
	close(grants)

	elevated := 0
	for state := range grants {
		if state == StateElevated {
			elevated++
		}
	}
	if elevated != 1 {
		t.Errorf("%d racers elevated on one token, want exactly 1", elevated)
	}
}

func TestProtocol_JTIDisabled(t *testing.T) {
	opts := defaultOptions()
	opts.JTIEnabled = false
	p, _, _, cleanup := setupProtocolTest(t, opts)
	defer cleanup()

	ctx, _ := WithFlag(context.Background())
	d := p.Attempt(ctx, attemptRequest(globalAdmin(), "primary-secret", ""))
	if d.State != StateElevated {
		t.Errorf("with anti-replay disabled a grant should not need a token, got %+v", d)
	}
}

func TestProtocol_RateLimit(t *testing.T) {
	p, mr, _, cleanup := setupProtocolTest(t, defaultOptions())
	defer cleanup()

	for i := 0; i < 3; i++ {
		ctx, _ := WithFlag(context.Background())
		d := p.Attempt(ctx, attemptRequest(globalAdmin(), "primary-secret", "jti-rate-"+string(rune('a'+i))))
		if d.State != StateElevated {
			t.Fatalf("attempt %d = %+v, want elevated", i+1, d)
		}
	}

	// Budget spent: the fourth attempt is denied even with a valid secret
	// and a fresh token.
	ctx, _ := WithFlag(context.Background())
	d := p.Attempt(ctx, attemptRequest(globalAdmin(), "primary-secret", "jti-rate-d"))
	if d.State != StateRateExceeded || d.Elevated {
		t.Errorf("fourth attempt = %+v, want rate_exceeded deny", d)
	}

	// A new window restores the budget.
	mr.FastForward(RateLimitWindow + time.Second)
	ctx, _ = WithFlag(context.Background())
	d = p.Attempt(ctx, attemptRequest(globalAdmin(), "primary-secret", "jti-rate-e"))
	if d.State != StateElevated {
		t.Errorf("attempt after window reset = %+v, want elevated", d)
	}
}

func TestProtocol_InvalidSecretSpendsBudget(t *testing.T) {
	p, _, _, cleanup := setupProtocolTest(t, defaultOptions())
	defer cleanup()

	for i := 0; i < 3; i++ {
		ctx, _ := WithFlag(context.Background())
		d := p.Attempt(ctx, attemptRequest(globalAdmin(), "wrong-secret", ""))
		if d.State != StateSecretInvalid {
			t.Fatalf("attempt %d = %+v, want secret_invalid", i+1, d)
		}
	}

	// Three bad guesses burned the whole window.
	ctx, _ := WithFlag(context.Background())
	d := p.Attempt(ctx, attemptRequest(globalAdmin(), "primary-secret", "jti-after-guesses"))
	if d.State != StateRateExceeded {
		t.Errorf("attempt after guesses = %+v, want rate_exceeded", d)
	}
}

func TestProtocol_AtMostOncePerRequest(t *testing.T) {
	p, mr, sink, cleanup := setupProtocolTest(t, defaultOptions())
	defer cleanup()

	ctx, _ := WithFlag(context.Background())
	d := p.Attempt(ctx, attemptRequest(globalAdmin(), "primary-secret", "jti-first"))
	if d.State != StateElevated {
		t.Fatalf("first attempt = %+v, want elevated", d)
	}
	sink.waitForEvent(t)

	before, err := mr.Get(rateLimitPrefix + "203.0.113.7")
	if err != nil {
		t.Fatalf("reading rate counter: %v", err)
	}

	// Same request context: the prior grant short-circuits without another
	// budget spend, token burn, or audit entry.
	d = p.Attempt(ctx, attemptRequest(globalAdmin(), "primary-secret", "jti-second"))
	if d.State != StateElevated || !d.Elevated {
		t.Fatalf("repeat attempt = %+v, want elevated", d)
	}

	after, err := mr.Get(rateLimitPrefix + "203.0.113.7")
	if err != nil {
		t.Fatalf("reading rate counter: %v", err)
	}
	if before != after {
		t.Errorf("repeat attempt spent budget: counter %s -> %s", before, after)
	}
	if mr.Exists(jtiPrefix + "jti-second") {
		t.Error("repeat attempt consumed a token")
	}
	if sink.count() != 1 {
		t.Errorf("repeat attempt produced %d audit events, want 1", sink.count())
	}
}

func TestProtocol_FailsOpenWhenStoreDown(t *testing.T) {
	p, mr, _, cleanup := setupProtocolTest(t, defaultOptions())
	defer cleanup()

	mr.Close()

	ctx, flag := WithFlag(context.Background())
	d := p.Attempt(ctx, attemptRequest(globalAdmin(), "primary-secret", "jti-outage"))
	if d.State != StateElevated {
		t.Errorf("store outage should fail open, got %+v", d)
	}
	if !flag.Elevated() {
		t.Error("fail-open grant must still set the flag")
	}
}

func TestProtocol_FlagDoesNotLeakAcrossRequests(t *testing.T) {
	p, _, sink, cleanup := setupProtocolTest(t, defaultOptions())
	defer cleanup()

	ctx1, _ := WithFlag(context.Background())
	d := p.Attempt(ctx1, attemptRequest(globalAdmin(), "primary-secret", "jti-leak"))
	if d.State != StateElevated {
		t.Fatalf("Attempt() = %+v, want elevated", d)
	}
	sink.waitForEvent(t)

	ctx2, _ := WithFlag(context.Background())
	if IsElevated(ctx2) {
		t.Error("a fresh request context must start unelevated")
	}
}

// gatedAudit honors its context and holds every write until released, so a
// test can cancel the request context while the audit write is in flight.
type gatedAudit struct {
	start  chan struct{}
	mu     sync.Mutex
	events []*audit.Event
	done   chan struct{}
}

func newGatedAudit() *gatedAudit {
	return &gatedAudit{start: make(chan struct{}), done: make(chan struct{}, 16)}
}

func (g *gatedAudit) Log(ctx context.Context, event *audit.Event) error {
	select {
	case <-g.start:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	g.events = append(g.events, event)
	g.mu.Unlock()
	g.done <- struct{}{}
	return nil
}

func (g *gatedAudit) Close() error { return nil }

func (g *gatedAudit) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.events)
}

func TestProtocol_AuditOutlivesRequestContext(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()
	client := storage.NewRedisClientFromExisting(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer client.Close()

	// Same sink arrangement as the server binary: a MultiLogger in
	// synchronous mode in front of a context-honoring writer.
	sink := newGatedAudit()
	multi := audit.NewMultiLogger(sink)
	multi.SetAsync(false)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	p := NewProtocol(defaultOptions(), client, multi, logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ctx, flag := WithFlag(ctx)
	d := p.Attempt(ctx, attemptRequest(globalAdmin(), "primary-secret", "jti-detach"))
	if d.State != StateElevated || !flag.Elevated() {
		t.Fatalf("Attempt() = %+v, want elevated", d)
	}

	// The handler returns and the request context dies before the audit
	// write gets a chance to run.
	cancel()
	time.Sleep(100 * time.Millisecond)
	close(sink.start)

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit write was lost after the request context was cancelled")
	}
	multi.Wait()
	if got := sink.count(); got != 1 {
		t.Errorf("recorded %d audit events, want 1", got)
	}
}

// failingAudit rejects every write.
type failingAudit struct{}

func (failingAudit) Log(ctx context.Context, event *audit.Event) error {
	return errors.New("audit store down")
}

func (failingAudit) Close() error { return nil }

func TestProtocol_AuditFailureIsCounted(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()
	client := storage.NewRedisClientFromExisting(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer client.Close()

	metrics := observability.NewMetrics(nil)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	p := NewProtocol(defaultOptions(), client, failingAudit{}, logger, metrics)

	ctx, _ := WithFlag(context.Background())
	d := p.Attempt(ctx, attemptRequest(globalAdmin(), "primary-secret", "jti-sinkdown"))
	if d.State != StateElevated {
		t.Fatalf("Attempt() = %+v, want elevated", d)
	}

	deadline := time.After(2 * time.Second)
	for testutil.ToFloat64(metrics.AuditWriteErrors) < 1 {
		select {
		case <-deadline:
			t.Fatal("audit write failure was never counted")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if got := testutil.ToFloat64(metrics.AuditWritesTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("failure writes counted = %v, want 1", got)
	}
}
