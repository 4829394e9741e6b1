package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-session-agent/internal/model"
	"go-session-agent/internal/store"
)

type fakeProvider struct {
	mu           sync.Mutex
	refreshCalls int
	refreshErr   error
	next         *model.SessionData
	release      chan struct{}
}

func (p *fakeProvider) ExchangeCode(ctx context.Context, providerName string, code string) (*model.SessionData, error) {
	return nil, errors.New("not used")
}

func (p *fakeProvider) Refresh(ctx context.Context, refreshToken string) (*model.SessionData, error) {
	p.mu.Lock()
	p.refreshCalls++
	release := p.release
	p.mu.Unlock()

	if release != nil {
		<-release
	}

	if p.refreshErr != nil {
		return nil, p.refreshErr
	}

	copied := *p.next
	return &copied, nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.refreshCalls
}

type corruptStore struct {
	store.Store
	cleared bool
}

func (s *corruptStore) Get() (*model.SessionData, error) {
	return nil, store.ErrCorrupt
}

func (s *corruptStore) Clear() error {
	s.cleared = true
	return nil
}

func session(expiresIn time.Duration, userID string) *model.SessionData {
	return &model.SessionData{
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		ExpiresAt:    time.Now().Add(expiresIn).UnixMilli(),
		User:         model.User{ID: userID},
	}
}

func TestValidateAndRefresh(t *testing.T) {
	t.Parallel()

	t.Run("no stored session is invalid without error", func(t *testing.T) {
		p := &fakeProvider{}
		c := NewCoordinator(store.NewMemoryStore(), p, time.Minute, nil)

		result, err := c.ValidateAndRefresh(context.Background())

		require.NoError(t, err)
		assert.False(t, result.IsValid)
		assert.Nil(t, result.User)
		assert.Zero(t, p.calls())
	})

	t.Run("session outside the safety margin skips the network", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.Set(session(time.Hour, "u-1")))

		p := &fakeProvider{}
		c := NewCoordinator(s, p, time.Minute, nil)

		result, err := c.ValidateAndRefresh(context.Background())

		require.NoError(t, err)
		require.True(t, result.IsValid)
		assert.Equal(t, "u-1", result.User.ID)
		assert.Zero(t, p.calls())
	})

	t.Run("session inside the safety margin refreshes even before literal expiry", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.Set(session(30*time.Second, "u-1")))

		p := &fakeProvider{next: session(time.Hour, "u-2")}
		c := NewCoordinator(s, p, time.Minute, nil)

		result, err := c.ValidateAndRefresh(context.Background())

		require.NoError(t, err)
		require.True(t, result.IsValid)
		assert.Equal(t, "u-2", result.User.ID)
		assert.Equal(t, 1, p.calls())
	})

	t.Run("successful refresh replaces the stored record wholesale", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.Set(session(-time.Minute, "old")))

		p := &fakeProvider{next: session(time.Hour, "new")}
		c := NewCoordinator(s, p, time.Minute, nil)

		_, err := c.ValidateAndRefresh(context.Background())
		require.NoError(t, err)

		stored, err := s.Get()
		require.NoError(t, err)
		assert.Equal(t, "access-new", stored.AccessToken)
		assert.Equal(t, "refresh-new", stored.RefreshToken)
		assert.Equal(t, "new", stored.User.ID)
	})

	t.Run("failed refresh clears the store", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.Set(session(-time.Minute, "old")))

		p := &fakeProvider{refreshErr: errors.New("invalid_grant")}
		c := NewCoordinator(s, p, time.Minute, nil)

		result, err := c.ValidateAndRefresh(context.Background())

		require.Error(t, err)
		assert.False(t, result.IsValid)
		assert.Equal(t, 1, p.calls())

		_, err = s.Get()
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("corrupt store is cleared and surfaced", func(t *testing.T) {
		s := &corruptStore{}
		c := NewCoordinator(s, &fakeProvider{}, time.Minute, nil)

		result, err := c.ValidateAndRefresh(context.Background())

		require.ErrorIs(t, err, store.ErrCorrupt)
		assert.False(t, result.IsValid)
		assert.True(t, s.cleared)
	})
}

func TestValidateAndRefreshSingleFlight(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	require.NoError(t, s.Set(session(-time.Minute, "old")))

	release := make(chan struct{})
	p := &fakeProvider{next: session(time.Hour, "new"), release: release}
	c := NewCoordinator(s, p, time.Minute, nil)

	var wg sync.WaitGroup
	results := make([]Result, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := c.ValidateAndRefresh(context.Background())
			assert.NoError(t, err)
			results[i] = result
		}(i)
	}

	// Both callers are now either in flight or waiting on the first call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, p.calls())
	for _, result := range results {
		require.True(t, result.IsValid)
		assert.Equal(t, "new", result.User.ID)
	}
}

func TestSetupAutoRefresh(t *testing.T) {
	t.Parallel()

	t.Run("calling twice leaves one pending timer", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.Set(session(70*time.Millisecond, "old")))

		p := &fakeProvider{next: session(time.Hour, "new")}
		c := NewCoordinator(s, p, 20*time.Millisecond, nil)

		done := make(chan Result, 2)
		c.OnScheduledRefresh(func(result Result, err error) {
			done <- result
		})

		c.SetupAutoRefresh()
		c.SetupAutoRefresh()

		select {
		case result := <-done:
			require.True(t, result.IsValid)
		case <-time.After(time.Second):
			t.Fatal("scheduled refresh never fired")
		}

		// Give a superseded timer the chance to misfire.
		time.Sleep(150 * time.Millisecond)
		assert.Equal(t, 1, p.calls())
	})

	t.Run("clear cancels the pending timer", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.Set(session(50*time.Millisecond, "old")))

		p := &fakeProvider{next: session(time.Hour, "new")}
		c := NewCoordinator(s, p, 20*time.Millisecond, nil)

		c.SetupAutoRefresh()
		c.ClearAutoRefresh()
		c.ClearAutoRefresh()

		time.Sleep(150 * time.Millisecond)
		assert.Zero(t, p.calls())
	})

	t.Run("without a stored session nothing is scheduled", func(t *testing.T) {
		p := &fakeProvider{}
		c := NewCoordinator(store.NewMemoryStore(), p, 20*time.Millisecond, nil)

		c.SetupAutoRefresh()

		time.Sleep(100 * time.Millisecond)
		assert.Zero(t, p.calls())
	})
}
