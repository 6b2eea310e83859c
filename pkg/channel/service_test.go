package channel

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/postwave/platform/pkg/common/logger"
	"github.com/postwave/platform/pkg/poster"
	"github.com/postwave/platform/pkg/socialnet"
)

func init() {
	logger.Init("channel-test")
}

type fakeStore struct {
	channels map[uuid.UUID]Channel
	writes   int
}

func (f *fakeStore) Create(ctx context.Context, req CreateChannelRequest) (Channel, error) {
	f.writes++
	ch := Channel{ID: uuid.New(), Kind: req.Kind, Identifier: req.Identifier, Credentials: req.Credentials, IsActive: true}
	f.channels[ch.ID] = ch
	return ch, nil
}

func (f *fakeStore) Get(ctx context.Context, id uuid.UUID) (Channel, error) {
	ch, ok := f.channels[id]
	if !ok {
		return Channel{}, ErrNotFound
	}
	return ch, nil
}

func (f *fakeStore) List(ctx context.Context, projectID *uuid.UUID, limit int) ([]Channel, error) {
	var items []Channel
	for _, ch := range f.channels {
		items = append(items, ch)
	}
	return items, nil
}

func (f *fakeStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	f.writes++
	ch, ok := f.channels[id]
	if !ok {
		return ErrNotFound
	}
	ch.IsActive = active
	f.channels[id] = ch
	return nil
}

type fakePreviewer struct {
	calls int
	err   error
}

func (f *fakePreviewer) Preview(ctx context.Context, req poster.PreviewRequest) error {
	f.calls++
	return f.err
}

func newTestService(previewer *fakePreviewer) (*Service, *fakeStore) {
	store := &fakeStore{channels: make(map[uuid.UUID]Channel)}
	service := NewService(store, NewValidator(socialnet.DefaultCatalog()), previewer, nil)
	return service, store
}

func seedChannel(store *fakeStore, active bool) Channel {
	ch := Channel{
		ID:          uuid.New(),
		Kind:        "telegram",
		Identifier:  "@postwave",
		Credentials: "12345678:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		IsActive:    active,
	}
	store.channels[ch.ID] = ch
	return ch
}

func TestTestChannelSuccess(t *testing.T) {
	previewer := &fakePreviewer{}
	service, store := newTestService(previewer)
	ch := seedChannel(store, true)

	result, err := service.Test(context.Background(), ch.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if previewer.calls != 1 {
		t.Fatalf("expected one preview call, got %d", previewer.calls)
	}
}

func TestTestChannelInactiveSkipsGateway(t *testing.T) {
	previewer := &fakePreviewer{}
	service, store := newTestService(previewer)
	ch := seedChannel(store, false)

	result, err := service.Test(context.Background(), ch.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure for inactive channel")
	}
	if !strings.Contains(result.Message, "not active") {
		t.Fatalf("expected 'not active' in message, got %q", result.Message)
	}
	if previewer.calls != 0 {
		t.Fatalf("gateway must not be called for an inactive channel, got %d calls", previewer.calls)
	}
}

func TestTestChannelNotFound(t *testing.T) {
	previewer := &fakePreviewer{}
	service, _ := newTestService(previewer)

	_, err := service.Test(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error for unknown channel")
	}
	if !IsValidationError(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if previewer.calls != 0 {
		t.Fatal("gateway must not be called for an unknown channel")
	}
}

func TestTestChannelIsIdempotent(t *testing.T) {
	previewer := &fakePreviewer{}
	service, store := newTestService(previewer)
	ch := seedChannel(store, true)

	first, err := service.Test(context.Background(), ch.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := service.Test(context.Background(), ch.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical results, got %+v then %+v", first, second)
	}
	if store.writes != 0 {
		t.Fatalf("channel test must not mutate persisted state, saw %d writes", store.writes)
	}
}

func TestTestChannelGatewayRejection(t *testing.T) {
	previewer := &fakePreviewer{err: &poster.GatewayError{Message: "gateway reported credentials invalid"}}
	service, store := newTestService(previewer)
	ch := seedChannel(store, true)

	result, err := service.Test(context.Background(), ch.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure when the gateway rejects credentials")
	}
	if !strings.Contains(result.Message, "credentials invalid") {
		t.Fatalf("unexpected message: %q", result.Message)
	}
}

func TestCreateValidatesCredentials(t *testing.T) {
	service, store := newTestService(&fakePreviewer{})

	_, err := service.Create(context.Background(), CreateChannelRequest{
		Kind:        "telegram",
		Identifier:  "@postwave",
		Credentials: "garbage",
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if store.writes != 0 {
		t.Fatal("invalid channel must not be persisted")
	}
}
