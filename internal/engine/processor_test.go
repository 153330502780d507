package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/db"
	"github.com/vibesoft/herald/internal/dispatch"
	"github.com/vibesoft/herald/internal/notify"
	"github.com/vibesoft/herald/internal/template"
)

type fakeLogs struct {
	mu        sync.Mutex
	created   []*db.NotificationLog
	succeeded []uuid.UUID
	failed    map[uuid.UUID]string
	createErr error
}

func newFakeLogs() *fakeLogs {
	return &fakeLogs{failed: make(map[uuid.UUID]string)}
}

func (f *fakeLogs) CreatePending(ctx context.Context, log *db.NotificationLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	log.Status = notify.StatusPending
	f.created = append(f.created, log)
	return nil
}

func (f *fakeLogs) MarkSuccess(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.succeeded = append(f.succeeded, id)
	return nil
}

func (f *fakeLogs) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = errMsg
	return nil
}

func (f *fakeLogs) succeededCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.succeeded)
}

type fakeLedger struct {
	seen map[string]bool
	err  error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{seen: make(map[string]bool)}
}

func (f *fakeLedger) Seen(ctx context.Context, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.seen[id], nil
}

func (f *fakeLedger) MarkSeen(ctx context.Context, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen[id] {
		return false, nil
	}
	f.seen[id] = true
	return true, nil
}

type fakeResolver struct {
	tpl *db.Template
	err error
}

func (f *fakeResolver) Resolve(ctx context.Context, slug, language string, channel notify.Channel) (*db.Template, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tpl, nil
}

type fakeRouter struct {
	mu         sync.Mutex
	deliveries []*dispatch.Delivery
	err        error
}

func (f *fakeRouter) Dispatch(ctx context.Context, d *dispatch.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, d)
	return f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []notify.StatusEvent
}

func (f *fakePublisher) PublishSafely(ctx context.Context, event notify.StatusEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

type processorFixture struct {
	logs      *fakeLogs
	ledger    *fakeLedger
	resolver  *fakeResolver
	router    *fakeRouter
	publisher *fakePublisher
	processor *Processor
}

func newFixture() *processorFixture {
	subject := "Hi {{.name}}"
	f := &processorFixture{
		logs:   newFakeLogs(),
		ledger: newFakeLedger(),
		resolver: &fakeResolver{tpl: &db.Template{
			Slug:     "welcome",
			Language: "en",
			Channel:  notify.ChannelEmail,
			Type:     notify.TypeText,
			Subject:  &subject,
			Content:  "Welcome, {{.name}}!",
		}},
		router:    &fakeRouter{},
		publisher: &fakePublisher{},
	}
	f.processor = NewProcessor(f.logs, f.ledger, f.resolver, template.NewRenderer(), f.router, f.publisher, zap.NewNop())
	return f
}

func testRequest() *notify.Request {
	return &notify.Request{
		Recipient: "user@example.com",
		Slug:      "welcome",
		Language:  "en",
		Channel:   notify.ChannelEmail,
		Variables: map[string]any{"name": "Ada"},
	}
}

func TestProcessor_SuccessFlow(t *testing.T) {
	f := newFixture()
	req := testRequest()
	req.CorrelationID = "trace-1"
	req.ClientID = "client-1"
	ctx := context.Background()

	log, duplicate, err := f.processor.Intake(ctx, req)
	if err != nil || duplicate {
		t.Fatalf("intake failed: dup=%v err=%v", duplicate, err)
	}
	if log.Status != notify.StatusPending {
		t.Errorf("expected PENDING log, got %s", log.Status)
	}

	result := f.processor.Process(ctx, log, req)
	if !result.Success() {
		t.Fatalf("expected success, got %+v", result)
	}

	if len(f.logs.succeeded) != 1 || f.logs.succeeded[0] != log.ID {
		t.Error("log not marked success")
	}
	if len(f.logs.failed) != 0 {
		t.Error("log must not be marked failed")
	}

	if len(f.router.deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(f.router.deliveries))
	}
	d := f.router.deliveries[0]
	if d.Body != "Welcome, Ada!" {
		t.Errorf("unexpected rendered body: %q", d.Body)
	}
	if d.Subject == nil || *d.Subject != "Hi Ada" {
		t.Errorf("unexpected rendered subject: %v", d.Subject)
	}

	if len(f.publisher.events) != 1 {
		t.Fatalf("expected 1 status event, got %d", len(f.publisher.events))
	}
	ev := f.publisher.events[0]
	if ev.Status != notify.StatusSuccess || ev.TraceID != "trace-1" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.ClientID == nil || *ev.ClientID != "client-1" {
		t.Error("client id missing from event")
	}
}

func TestProcessor_DuplicateShortCircuit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := testRequest()
	req.CorrelationID = "trace-1"
	if _, dup, err := f.processor.Intake(ctx, req); dup || err != nil {
		t.Fatalf("first intake: dup=%v err=%v", dup, err)
	}

	again := testRequest()
	again.CorrelationID = "trace-1"
	log, dup, err := f.processor.Intake(ctx, again)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dup {
		t.Fatal("expected duplicate short-circuit")
	}
	if log != nil {
		t.Error("duplicate must not create a log row")
	}
	if len(f.logs.created) != 1 {
		t.Errorf("expected exactly 1 log row, got %d", len(f.logs.created))
	}
}

func TestProcessor_GeneratesCorrelationID(t *testing.T) {
	f := newFixture()
	req := testRequest()

	log, dup, err := f.processor.Intake(context.Background(), req)
	if err != nil || dup {
		t.Fatalf("intake failed: dup=%v err=%v", dup, err)
	}
	if req.CorrelationID == "" {
		t.Fatal("correlation id not generated")
	}
	if log.CorrelationID != req.CorrelationID {
		t.Error("log must carry the generated correlation id")
	}
	// A generated id must not consume a ledger slot.
	if f.ledger.seen[req.CorrelationID] {
		t.Error("generated correlation id must not be pre-marked in the ledger")
	}
}

func TestProcessor_ValidationErrorRejectedAtIntake(t *testing.T) {
	f := newFixture()
	req := testRequest()
	req.Channel = "SMS"

	_, _, err := f.processor.Intake(context.Background(), req)
	var vErr *notify.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.logs.created) != 0 {
		t.Error("invalid request must not create a log row")
	}
}

func TestProcessor_DispatchFailureMarksFailed(t *testing.T) {
	f := newFixture()
	f.router.err = &notify.DispatchError{Provider: "ses", StatusCode: 500, Err: errors.New("unavailable")}
	ctx := context.Background()

	req := testRequest()
	log, _, err := f.processor.Intake(ctx, req)
	if err != nil {
		t.Fatalf("intake failed: %v", err)
	}

	result := f.processor.Process(ctx, log, req)
	if result.Success() {
		t.Fatal("expected failure")
	}
	if result.ErrorMessage == "" {
		t.Error("failure result must carry the error message")
	}

	if _, ok := f.logs.failed[log.ID]; !ok {
		t.Error("log not marked failed")
	}
	if len(f.logs.succeeded) != 0 {
		t.Error("log must not be marked success")
	}

	if len(f.publisher.events) != 1 || f.publisher.events[0].Status != notify.StatusFailed {
		t.Fatalf("expected FAILED event, got %+v", f.publisher.events)
	}
	if f.publisher.events[0].ErrorMessage == nil {
		t.Error("failure event must carry the error message")
	}
}

func TestProcessor_RenderFailureMarksFailed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := testRequest()
	req.Variables = map[string]any{} // template references .name

	log, _, err := f.processor.Intake(ctx, req)
	if err != nil {
		t.Fatalf("intake failed: %v", err)
	}

	result := f.processor.Process(ctx, log, req)
	if result.Success() {
		t.Fatal("expected rendering failure")
	}
	if len(f.router.deliveries) != 0 {
		t.Error("nothing must be dispatched after a rendering failure")
	}
}

func TestProcessor_TemplateNotFoundMarksFailed(t *testing.T) {
	f := newFixture()
	f.resolver.err = &notify.NotFoundError{Slug: "welcome", Language: "fr"}
	ctx := context.Background()

	req := testRequest()
	log, _, err := f.processor.Intake(ctx, req)
	if err != nil {
		t.Fatalf("intake failed: %v", err)
	}

	result := f.processor.Process(ctx, log, req)
	if result.Success() {
		t.Fatal("expected failure for missing template")
	}
	if _, ok := f.logs.failed[log.ID]; !ok {
		t.Error("log not marked failed")
	}
}
