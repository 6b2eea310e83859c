package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/postwave/platform/pkg/channel"
	"github.com/postwave/platform/pkg/common/logger"
	"github.com/postwave/platform/pkg/poster"
	"github.com/postwave/platform/pkg/publication"
	"github.com/postwave/platform/pkg/socialnet"
)

func init() {
	logger.Init("dispatch-test")
}

type fakeStore struct {
	mu sync.Mutex

	pub   publication.Publication
	posts []publication.Post

	locked        bool
	acquireCalls  int
	releaseCalls  []string
	lockCleared   bool
	published     map[uuid.UUID]string
	failed        map[uuid.UUID]string
	failPersist   bool
	acquireDenied bool
}

func newFakeStore(pub publication.Publication, posts []publication.Post) *fakeStore {
	return &fakeStore{
		pub:       pub,
		posts:     posts,
		published: make(map[uuid.UUID]string),
		failed:    make(map[uuid.UUID]string),
	}
}

func (s *fakeStore) Get(ctx context.Context, id uuid.UUID) (publication.Publication, error) {
	return s.pub, nil
}

func (s *fakeStore) Posts(ctx context.Context, id uuid.UUID) ([]publication.Post, error) {
	return s.posts, nil
}

func (s *fakeStore) TryAcquire(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquireCalls++
	if s.acquireDenied || s.locked {
		return false, nil
	}
	s.locked = true
	return true, nil
}

func (s *fakeStore) Release(ctx context.Context, id uuid.UUID, finalStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseCalls = append(s.releaseCalls, finalStatus)
	s.locked = false
	s.lockCleared = true
	return nil
}

func (s *fakeStore) MarkPostPublished(ctx context.Context, postID uuid.UUID, externalURL string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPersist {
		return errors.New("storage unavailable")
	}
	s.published[postID] = externalURL
	return nil
}

func (s *fakeStore) MarkPostFailed(ctx context.Context, postID uuid.UUID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPersist {
		return errors.New("storage unavailable")
	}
	s.failed[postID] = message
	return nil
}

type fakeChannels struct {
	channels map[uuid.UUID]channel.Channel
}

func (f *fakeChannels) Get(ctx context.Context, id uuid.UUID) (channel.Channel, error) {
	ch, ok := f.channels[id]
	if !ok {
		return channel.Channel{}, channel.ErrNotFound
	}
	return ch, nil
}

type fakeGateway struct {
	mu    sync.Mutex
	calls int
	// errs is consumed one per call; nil means success.
	errs    []error
	receipt poster.Receipt
}

func (g *fakeGateway) Send(ctx context.Context, req poster.PostRequest, deadline time.Duration) (poster.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var err error
	if g.calls < len(g.errs) {
		err = g.errs[g.calls]
	}
	g.calls++
	if err != nil {
		return poster.Receipt{}, err
	}
	return g.receipt, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []struct {
		userID  uuid.UUID
		kind    string
		context map[string]interface{}
	}
}

func (n *fakeNotifier) Notify(ctx context.Context, userID uuid.UUID, kind string, context map[string]interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, struct {
		userID  uuid.UUID
		kind    string
		context map[string]interface{}
	}{userID, kind, context})
	return nil
}

func fixture(postCount int) (publication.Publication, []publication.Post, *fakeChannels) {
	pub := publication.Publication{
		ID:       uuid.New(),
		AuthorID: uuid.New(),
		Content:  "release day",
		Status:   publication.StatusReady,
	}
	channels := &fakeChannels{channels: make(map[uuid.UUID]channel.Channel)}
	posts := make([]publication.Post, 0, postCount)
	for i := 0; i < postCount; i++ {
		chID := uuid.New()
		channels.channels[chID] = channel.Channel{
			ID:          chID,
			Kind:        "telegram",
			Identifier:  "@postwave",
			Credentials: "12345678:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
			IsActive:    true,
		}
		posts = append(posts, publication.Post{
			ID:            uuid.New(),
			PublicationID: pub.ID,
			ChannelID:     chID,
			Status:        publication.PostStatusPending,
		})
	}
	return pub, posts, channels
}

func newTestEngine(store *fakeStore, channels *fakeChannels, gateway *fakeGateway, notifier *fakeNotifier, shutdown *ShutdownCoordinator) *Engine {
	if shutdown == nil {
		shutdown = NewShutdownCoordinator()
	}
	catalog := socialnet.DefaultCatalog()
	return NewEngine(
		store,
		channels,
		channel.NewValidator(catalog),
		gateway,
		notifier,
		shutdown,
		catalog,
		Config{RetryAttempts: 2, RetryDelay: time.Millisecond, PostTimeout: time.Second},
	)
}

func TestDispatchAllSucceed(t *testing.T) {
	pub, posts, channels := fixture(3)
	store := newFakeStore(pub, posts)
	gateway := &fakeGateway{receipt: poster.Receipt{URL: "https://t.me/p/1", PublishedAt: time.Now()}}
	notifier := &fakeNotifier{}

	engine := newTestEngine(store, channels, gateway, notifier, nil)
	result, err := engine.Dispatch(context.Background(), pub.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Started {
		t.Fatal("expected dispatch to start")
	}
	if result.FinalStatus != publication.StatusPublished {
		t.Fatalf("expected PUBLISHED, got %s", result.FinalStatus)
	}
	if len(store.published) != 3 {
		t.Fatalf("expected 3 published posts, got %d", len(store.published))
	}
	if gateway.calls != 3 {
		t.Fatalf("expected 3 gateway calls, got %d", gateway.calls)
	}
	if len(notifier.calls) != 0 {
		t.Fatalf("expected no notifications on full success, got %d", len(notifier.calls))
	}
	if len(store.releaseCalls) != 1 || store.releaseCalls[0] != publication.StatusPublished {
		t.Fatalf("expected one release with PUBLISHED, got %v", store.releaseCalls)
	}
}

func TestDispatchMixedOutcomesIsPartial(t *testing.T) {
	pub, posts, channels := fixture(2)
	store := newFakeStore(pub, posts)
	// first post succeeds, second hits a terminal gateway error
	gateway := &fakeGateway{
		receipt: poster.Receipt{URL: "https://t.me/p/2"},
		errs:    []error{nil, &poster.GatewayError{Message: "bad credentials", StatusCode: 401}},
	}
	notifier := &fakeNotifier{}

	engine := newTestEngine(store, channels, gateway, notifier, nil)
	result, err := engine.Dispatch(context.Background(), pub.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FinalStatus != publication.StatusPartial {
		t.Fatalf("expected PARTIAL, got %s", result.FinalStatus)
	}
	if len(store.published) != 1 || len(store.failed) != 1 {
		t.Fatalf("expected 1 published and 1 failed, got %d/%d", len(store.published), len(store.failed))
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.calls))
	}
	if notifier.calls[0].kind != NotifyPublicationPartial {
		t.Fatalf("expected partial notification, got %s", notifier.calls[0].kind)
	}
	failed, ok := notifier.calls[0].context["failed_channels"].([]string)
	if !ok || len(failed) != 1 {
		t.Fatalf("expected one failed channel in notification, got %v", notifier.calls[0].context["failed_channels"])
	}
	if store.releaseCalls[0] != publication.StatusPartial {
		t.Fatalf("expected release with PARTIAL, got %v", store.releaseCalls)
	}
}

func TestDispatchAllFailedIsFailed(t *testing.T) {
	pub, posts, channels := fixture(2)
	store := newFakeStore(pub, posts)
	terminal := &poster.GatewayError{Message: "payload rejected", StatusCode: 422}
	gateway := &fakeGateway{errs: []error{terminal, terminal}}
	notifier := &fakeNotifier{}

	engine := newTestEngine(store, channels, gateway, notifier, nil)
	result, err := engine.Dispatch(context.Background(), pub.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FinalStatus != publication.StatusFailed {
		t.Fatalf("expected FAILED, got %s", result.FinalStatus)
	}
	if len(notifier.calls) != 1 || notifier.calls[0].kind != NotifyPublicationFailed {
		t.Fatalf("expected a failed notification, got %+v", notifier.calls)
	}
	if store.releaseCalls[0] != publication.StatusFailed {
		t.Fatalf("expected release with FAILED, got %v", store.releaseCalls)
	}
}

func TestDispatchLockedPublicationIsNoop(t *testing.T) {
	pub, posts, channels := fixture(2)
	store := newFakeStore(pub, posts)
	store.acquireDenied = true
	gateway := &fakeGateway{}

	engine := newTestEngine(store, channels, gateway, &fakeNotifier{}, nil)
	result, err := engine.Dispatch(context.Background(), pub.ID)
	if err != nil {
		t.Fatalf("lock contention must not be an error: %v", err)
	}
	if result.Started {
		t.Fatal("expected dispatch to be skipped")
	}
	if gateway.calls != 0 {
		t.Fatalf("expected no gateway calls, got %d", gateway.calls)
	}
	if len(store.releaseCalls) != 0 {
		t.Fatalf("expected no release without acquire, got %v", store.releaseCalls)
	}
	if len(store.published)+len(store.failed) != 0 {
		t.Fatal("expected no post status changes")
	}
}

func TestDispatchAbortsOnShutdown(t *testing.T) {
	pub, posts, channels := fixture(2)
	store := newFakeStore(pub, posts)
	gateway := &fakeGateway{}
	shutdown := NewShutdownCoordinator()
	shutdown.Begin()

	engine := newTestEngine(store, channels, gateway, &fakeNotifier{}, shutdown)
	result, err := engine.Dispatch(context.Background(), pub.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gateway.calls != 0 {
		t.Fatalf("gateway must not be called during shutdown, got %d calls", gateway.calls)
	}
	if result.FinalStatus != publication.StatusFailed {
		t.Fatalf("all-aborted dispatch must end FAILED, got %s", result.FinalStatus)
	}
	for _, outcome := range result.Outcomes {
		if outcome.Kind != OutcomeAborted {
			t.Fatalf("expected aborted outcome, got %s", outcome.Kind)
		}
		if !strings.Contains(outcome.Error, "aborted due to system shutdown") {
			t.Fatalf("unexpected abort message: %q", outcome.Error)
		}
	}
	for _, message := range store.failed {
		if !strings.Contains(message, "aborted due to system shutdown") {
			t.Fatalf("persisted error missing abort message: %q", message)
		}
	}
}

func TestDispatchRetriesRetryableErrors(t *testing.T) {
	pub, posts, channels := fixture(1)
	store := newFakeStore(pub, posts)
	retryable := &poster.GatewayError{Message: "gateway unavailable (503)", StatusCode: 503, Retryable: true}
	gateway := &fakeGateway{
		receipt: poster.Receipt{URL: "https://t.me/p/3"},
		errs:    []error{retryable, retryable, nil},
	}

	engine := newTestEngine(store, channels, gateway, &fakeNotifier{}, nil)
	result, err := engine.Dispatch(context.Background(), pub.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gateway.calls != 3 {
		t.Fatalf("expected 3 attempts (1 + 2 retries), got %d", gateway.calls)
	}
	if result.FinalStatus != publication.StatusPublished {
		t.Fatalf("expected PUBLISHED after retries, got %s", result.FinalStatus)
	}
}

func TestDispatchExhaustsRetryBudget(t *testing.T) {
	pub, posts, channels := fixture(1)
	store := newFakeStore(pub, posts)
	retryable := &poster.GatewayError{Message: "gateway unavailable (502)", StatusCode: 502, Retryable: true}
	gateway := &fakeGateway{errs: []error{retryable, retryable, retryable, retryable}}

	engine := newTestEngine(store, channels, gateway, &fakeNotifier{}, nil)
	result, err := engine.Dispatch(context.Background(), pub.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gateway.calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", gateway.calls)
	}
	if result.Outcomes[0].Kind != OutcomeGatewayFailed {
		t.Fatalf("expected gateway_failed outcome, got %s", result.Outcomes[0].Kind)
	}
	if result.Outcomes[0].Error != "gateway unavailable (502)" {
		t.Fatalf("expected last error to be recorded, got %q", result.Outcomes[0].Error)
	}
}

func TestDispatchDoesNotRetryTerminalErrors(t *testing.T) {
	pub, posts, channels := fixture(1)
	store := newFakeStore(pub, posts)
	gateway := &fakeGateway{errs: []error{&poster.GatewayError{Message: "bad credentials", StatusCode: 401}}}

	engine := newTestEngine(store, channels, gateway, &fakeNotifier{}, nil)
	result, err := engine.Dispatch(context.Background(), pub.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gateway.calls != 1 {
		t.Fatalf("terminal errors must not be retried, got %d calls", gateway.calls)
	}
	if result.Outcomes[0].Kind != OutcomeGatewayFailed {
		t.Fatalf("expected gateway_failed, got %s", result.Outcomes[0].Kind)
	}
}

func TestDispatchRecordsTimeoutOutcome(t *testing.T) {
	pub, posts, channels := fixture(1)
	store := newFakeStore(pub, posts)
	timeout := &poster.GatewayError{Message: "Timeout reached (1s)", Retryable: true, Timeout: true}
	gateway := &fakeGateway{errs: []error{timeout, timeout, timeout}}

	engine := newTestEngine(store, channels, gateway, &fakeNotifier{}, nil)
	result, err := engine.Dispatch(context.Background(), pub.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcomes[0].Kind != OutcomeTimeout {
		t.Fatalf("expected timeout outcome, got %s", result.Outcomes[0].Kind)
	}
	if !strings.Contains(result.Outcomes[0].Error, "Timeout reached (1s)") {
		t.Fatalf("expected timeout message with configured value, got %q", result.Outcomes[0].Error)
	}
}

func TestDispatchValidationFailureSkipsGateway(t *testing.T) {
	pub, posts, channels := fixture(2)
	// deactivate the first post's channel
	first := channels.channels[posts[0].ChannelID]
	first.IsActive = false
	channels.channels[posts[0].ChannelID] = first

	store := newFakeStore(pub, posts)
	gateway := &fakeGateway{receipt: poster.Receipt{URL: "https://t.me/p/4"}}

	engine := newTestEngine(store, channels, gateway, &fakeNotifier{}, nil)
	result, err := engine.Dispatch(context.Background(), pub.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gateway.calls != 1 {
		t.Fatalf("expected gateway call only for the valid channel, got %d", gateway.calls)
	}
	if result.Outcomes[0].Kind != OutcomeValidationFailed {
		t.Fatalf("expected validation_failed, got %s", result.Outcomes[0].Kind)
	}
	if !strings.Contains(result.Outcomes[0].Error, "not active") {
		t.Fatalf("expected 'not active' in error, got %q", result.Outcomes[0].Error)
	}
	if result.FinalStatus != publication.StatusPartial {
		t.Fatalf("expected PARTIAL, got %s", result.FinalStatus)
	}
}

func TestDispatchMissingChannelIsValidationFailure(t *testing.T) {
	pub, posts, _ := fixture(1)
	store := newFakeStore(pub, posts)
	gateway := &fakeGateway{}
	empty := &fakeChannels{channels: map[uuid.UUID]channel.Channel{}}

	engine := newTestEngine(store, empty, gateway, &fakeNotifier{}, nil)
	result, err := engine.Dispatch(context.Background(), pub.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gateway.calls != 0 {
		t.Fatal("gateway must not be called for a missing channel")
	}
	if !strings.Contains(result.Outcomes[0].Error, "channel not found") {
		t.Fatalf("expected 'channel not found', got %q", result.Outcomes[0].Error)
	}
}

func TestDispatchReleasesLockOnPersistFailure(t *testing.T) {
	pub, posts, channels := fixture(1)
	store := newFakeStore(pub, posts)
	store.failPersist = true
	gateway := &fakeGateway{receipt: poster.Receipt{URL: "https://t.me/p/5"}}

	engine := newTestEngine(store, channels, gateway, &fakeNotifier{}, nil)
	_, err := engine.Dispatch(context.Background(), pub.ID)
	if err == nil {
		t.Fatal("expected persist failure to propagate")
	}
	if !store.lockCleared {
		t.Fatal("lock must be released even when persisting fails")
	}
	if store.releaseCalls[len(store.releaseCalls)-1] != publication.StatusFailed {
		t.Fatalf("expected defensive release with FAILED, got %v", store.releaseCalls)
	}
}

func TestDispatchReleaseClearsLockForEveryFinalStatus(t *testing.T) {
	cases := []struct {
		name string
		errs []error
		want string
	}{
		{"published", []error{nil, nil}, publication.StatusPublished},
		{"partial", []error{nil, &poster.GatewayError{Message: "nope", StatusCode: 400}}, publication.StatusPartial},
		{"failed", []error{&poster.GatewayError{Message: "nope", StatusCode: 400}, &poster.GatewayError{Message: "nope", StatusCode: 400}}, publication.StatusFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pub, posts, channels := fixture(2)
			store := newFakeStore(pub, posts)
			gateway := &fakeGateway{receipt: poster.Receipt{URL: "https://t.me/p/6"}, errs: tc.errs}

			engine := newTestEngine(store, channels, gateway, &fakeNotifier{}, nil)
			if _, err := engine.Dispatch(context.Background(), pub.ID); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(store.releaseCalls) != 1 || store.releaseCalls[0] != tc.want {
				t.Fatalf("expected one release with %s, got %v", tc.want, store.releaseCalls)
			}
			if !store.lockCleared {
				t.Fatal("expected lock marker cleared")
			}
		})
	}
}
