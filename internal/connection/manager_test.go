package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calbridge/internal/logging"
)

type fakeSession struct {
	id     int64
	closed atomic.Bool
}

func newCountingDialer(delay time.Duration) (Dialer[*fakeSession], *atomic.Int64) {
	var dials atomic.Int64
	return func(ctx context.Context) (*fakeSession, error) {
		n := dials.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}
		return &fakeSession{id: n}, nil
	}, &dials
}

func TestManager_ConnectIsLazyAndIdempotent(t *testing.T) {
	dial, dials := newCountingDialer(0)
	m := NewManager("test", dial, WithLogger[*fakeSession](logging.Discard()))

	assert.False(t, m.IsReady())
	_, err := m.Session()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.EqualValues(t, 0, dials.Load())

	require.NoError(t, m.Connect(context.Background()))
	require.NoError(t, m.Connect(context.Background()))
	assert.True(t, m.IsReady())
	assert.EqualValues(t, 1, dials.Load())

	s, err := m.Session()
	require.NoError(t, err)
	assert.EqualValues(t, 1, s.id)
}

func TestManager_ConcurrentConnectDialsOnce(t *testing.T) {
	dial, dials := newCountingDialer(50 * time.Millisecond)
	m := NewManager("test", dial, WithLogger[*fakeSession](logging.Discard()))

	const callers = 32
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- m.Connect(context.Background())
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, dials.Load())
}

func TestManager_DialFailureLeavesDisconnected(t *testing.T) {
	var dials atomic.Int64
	boom := errors.New("token expired")
	m := NewManager[*fakeSession]("test", func(context.Context) (*fakeSession, error) {
		if dials.Add(1) == 1 {
			return nil, boom
		}
		return &fakeSession{}, nil
	}, WithLogger[*fakeSession](logging.Discard()))

	assert.ErrorIs(t, m.Connect(context.Background()), boom)
	assert.False(t, m.IsReady())

	require.NoError(t, m.Connect(context.Background()))
	assert.True(t, m.IsReady())
	assert.EqualValues(t, 2, dials.Load())
}

func TestManager_DisconnectClosesAndAllowsReconnect(t *testing.T) {
	dial, dials := newCountingDialer(0)
	var closed []*fakeSession
	m := NewManager("test", dial,
		WithLogger[*fakeSession](logging.Discard()),
		WithCloser[*fakeSession](func(s *fakeSession) error {
			s.closed.Store(true)
			closed = append(closed, s)
			return nil
		}),
	)

	require.NoError(t, m.Disconnect())
	assert.Empty(t, closed)

	require.NoError(t, m.Connect(context.Background()))
	first, _ := m.Session()
	m.Invalidate()
	assert.False(t, m.IsReady())
	require.Len(t, closed, 1)
	assert.True(t, first.closed.Load())

	require.NoError(t, m.Connect(context.Background()))
	second, _ := m.Session()
	assert.NotSame(t, first, second)
	assert.EqualValues(t, 2, dials.Load())
}

func TestManager_ConnectHonoursContext(t *testing.T) {
	release := make(chan struct{})
	m := NewManager[*fakeSession]("test", func(context.Context) (*fakeSession, error) {
		<-release
		return &fakeSession{}, nil
	}, WithLogger[*fakeSession](logging.Discard()))
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, m.Connect(ctx), context.DeadlineExceeded)
	assert.Equal(t, "test", m.Name())
}

func TestManager_HungDialIsAbandonedAndRedialed(t *testing.T) {
	var dials atomic.Int64
	var lateClosed atomic.Bool
	release := make(chan struct{})
	defer close(release)

	m := NewManager[*fakeSession]("test", func(context.Context) (*fakeSession, error) {
		if dials.Add(1) == 1 {
			// Accepts the connection but never answers, ignoring ctx.
			<-release
			return &fakeSession{id: 1}, nil
		}
		return &fakeSession{id: 2}, nil
	},
		WithLogger[*fakeSession](logging.Discard()),
		WithDialTimeout[*fakeSession](20*time.Millisecond),
		WithCloser[*fakeSession](func(s *fakeSession) error {
			if s.id == 1 {
				lateClosed.Store(true)
			}
			return nil
		}),
	)

	err := m.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, m.IsReady())

	require.NoError(t, m.Connect(context.Background()))
	assert.EqualValues(t, 2, dials.Load())
	s, err := m.Session()
	require.NoError(t, err)
	assert.EqualValues(t, 2, s.id)
	assert.False(t, lateClosed.Load())
}

func TestManager_DialTimeoutCancelsDialContext(t *testing.T) {
	canceled := make(chan struct{})
	m := NewManager[*fakeSession]("test", func(ctx context.Context) (*fakeSession, error) {
		<-ctx.Done()
		close(canceled)
		return nil, ctx.Err()
	},
		WithLogger[*fakeSession](logging.Discard()),
		WithDialTimeout[*fakeSession](20*time.Millisecond),
	)

	assert.ErrorIs(t, m.Connect(context.Background()), context.DeadlineExceeded)
	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("abandoned dial context was not canceled")
	}
}

func TestManager_DisconnectDuringDialDiscardsSession(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var closed atomic.Int64

	m := NewManager[*fakeSession]("test", func(context.Context) (*fakeSession, error) {
		close(started)
		<-release
		return &fakeSession{id: 1}, nil
	},
		WithLogger[*fakeSession](logging.Discard()),
		WithCloser[*fakeSession](func(s *fakeSession) error {
			s.closed.Store(true)
			closed.Add(1)
			return nil
		}),
	)

	connectErr := make(chan error, 1)
	go func() { connectErr <- m.Connect(context.Background()) }()

	<-started
	require.NoError(t, m.Disconnect())
	close(release)

	assert.ErrorIs(t, <-connectErr, ErrDialAbandoned)
	assert.False(t, m.IsReady())
	assert.EqualValues(t, 1, closed.Load())

	_, err := m.Session()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestManager_LateSessionOfAbandonedDialIsClosed(t *testing.T) {
	release := make(chan struct{})
	closed := make(chan *fakeSession, 1)
	var dials atomic.Int64

	m := NewManager[*fakeSession]("test", func(context.Context) (*fakeSession, error) {
		n := dials.Add(1)
		if n == 1 {
			<-release
		}
		return &fakeSession{id: n}, nil
	},
		WithLogger[*fakeSession](logging.Discard()),
		WithDialTimeout[*fakeSession](20*time.Millisecond),
		WithCloser[*fakeSession](func(s *fakeSession) error {
			closed <- s
			return nil
		}),
	)

	assert.Error(t, m.Connect(context.Background()))
	close(release)

	select {
	case s := <-closed:
		assert.EqualValues(t, 1, s.id)
	case <-time.After(time.Second):
		t.Fatal("late session of abandoned dial was not closed")
	}
	assert.False(t, m.IsReady())
}
