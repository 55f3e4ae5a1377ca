package service

import (
	"context"
	"errors"
	"sync"

	"relayq/internal/models"
	"relayq/pkg/relay/types"

	"github.com/stretchr/testify/mock"
)

// mockSender is a testify mock for expectation-style tests.
type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendMessage(ctx context.Context, req *types.SendMessageRequest) (*types.SendMessageResponse, error) {
	args := m.Called(ctx, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*types.SendMessageResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

// fakeSender records call order and concurrency for behavioral tests.
type fakeSender struct {
	mu          sync.Mutex
	calls       []string
	inFlight    int
	maxInFlight int

	// respond decides the outcome per request; nil means success.
	respond func(req *types.SendMessageRequest) error

	// blockCh, when set, holds every send until the channel is closed.
	blockCh chan struct{}
}

func (f *fakeSender) SendMessage(ctx context.Context, req *types.SendMessageRequest) (*types.SendMessageResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.ID)
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	block := f.blockCh
	respond := f.respond
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if respond != nil {
		if err := respond(req); err != nil {
			return nil, err
		}
	}
	return &types.SendMessageResponse{ID: req.ID}, nil
}

func (f *fakeSender) callIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSender) maxConcurrency() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

var errStoreBroken = errors.New("store broken")

// failingStore wraps a Store and injects failures per operation.
// failPutAfter fails the Nth Put call and every one after it; zero
// disables the injection.
type failingStore struct {
	Store
	failQueryUnsynced bool
	failPutAfter      int

	mu       sync.Mutex
	putCalls int
}

func (s *failingStore) Put(ctx context.Context, msg *models.QueuedMessage) error {
	s.mu.Lock()
	s.putCalls++
	calls := s.putCalls
	s.mu.Unlock()

	if s.failPutAfter > 0 && calls >= s.failPutAfter {
		return errStoreBroken
	}
	return s.Store.Put(ctx, msg)
}

func (s *failingStore) QueryUnsynced(ctx context.Context) ([]*models.QueuedMessage, error) {
	if s.failQueryUnsynced {
		return nil, errStoreBroken
	}
	return s.Store.QueryUnsynced(ctx)
}
