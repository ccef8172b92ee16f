package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/driver/mock"
	"github.com/devicelab-dev/selenium-runner/pkg/report"
)

func newManager(t *testing.T, cfg mock.Config) (*Manager, *mock.Pool) {
	t.Helper()
	rep, err := report.New(report.Options{OutputDir: t.TempDir(), SkipHTML: true, SkipAllure: true})
	require.NoError(t, err)
	pool := mock.NewPool(cfg)
	return NewManager(pool.Factory(), rep), pool
}

var login = core.Descriptor{Name: "LoginTest"}

func TestAcquireCurrentRelease(t *testing.T) {
	m, pool := newManager(t, mock.Config{})
	ctx := context.Background()

	_, err := m.Current(1)
	require.ErrorIs(t, err, core.ErrNoContext, "nothing acquired yet")

	sess, err := m.Acquire(ctx, 1, login, 1)
	require.NoError(t, err)
	assert.Equal(t, WorkerID(1), sess.Worker)
	assert.Equal(t, 1, sess.Attempt)
	require.NotNil(t, sess.Entry)

	cur, err := m.Current(1)
	require.NoError(t, err)
	assert.Same(t, sess, cur)
	assert.Equal(t, 1, m.Active())

	sess.Entry.Finish(report.StatusPassed, "")
	require.NoError(t, m.Release(1))

	_, err = m.Current(1)
	require.ErrorIs(t, err, core.ErrNoContext, "released session is gone")
	assert.True(t, core.IsCategory(err, core.ErrCategoryContext))
	assert.True(t, pool.Drivers()[0].Closed())
	assert.Equal(t, 0, m.Active())

	require.ErrorIs(t, m.Release(1), core.ErrNoContext, "double release")
}

func TestAcquireBusySlot(t *testing.T) {
	m, _ := newManager(t, mock.Config{})
	ctx := context.Background()

	_, err := m.Acquire(ctx, 2, login, 1)
	require.NoError(t, err)

	_, err = m.Acquire(ctx, 2, core.Descriptor{Name: "FooterLinkTest"}, 1)
	require.ErrorIs(t, err, core.ErrContextBusy)

	_, err = m.Acquire(ctx, 3, core.Descriptor{Name: "FooterLinkTest"}, 1)
	require.NoError(t, err, "other workers are independent")
}

func TestAcquireDriverFailure(t *testing.T) {
	m, pool := newManager(t, mock.Config{})
	pool.StartErr = errors.New("session not created")
	pool.StartFailures = 1

	_, err := m.Acquire(context.Background(), 1, login, 1)
	require.ErrorIs(t, err, core.ErrDriverStart)

	_, err = m.Current(1)
	require.ErrorIs(t, err, core.ErrNoContext, "failed acquire leaves the slot free")

	idx := m.Reporter().Snapshot()
	require.Len(t, idx.Scenarios, 1)
	assert.Equal(t, report.StatusFailed, idx.Scenarios[0].AttemptHistory[0].Status)

	_, err = m.Acquire(context.Background(), 1, login, 2)
	require.NoError(t, err)
}

func TestReleaseAggregatesTeardownErrors(t *testing.T) {
	m, _ := newManager(t, mock.Config{QuitErr: errors.New("browser already closed")})

	sess, err := m.Acquire(context.Background(), 1, login, 1)
	require.NoError(t, err)

	err = m.Release(1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser already closed")

	assert.True(t, sess.Entry.Finished(), "unfinished entry is closed on release")
	assert.Equal(t, report.StatusFailed, sess.Entry.Status())
	_, err = m.Current(1)
	assert.ErrorIs(t, err, core.ErrNoContext, "slot freed despite teardown error")
}

func TestConcurrentWorkersGetDistinctSessions(t *testing.T) {
	m, pool := newManager(t, mock.Config{})
	const workers = 5

	sessions := make([]*Session, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			d := core.Descriptor{Name: "ShoppingCartTest", Row: w + 1}
			s, err := m.Acquire(context.Background(), WorkerID(w+1), d, 1)
			if assert.NoError(t, err) {
				sessions[w] = s
			}
		}(w)
	}
	wg.Wait()

	seen := map[core.Driver]bool{}
	for w, s := range sessions {
		require.NotNil(t, s)
		cur, err := m.Current(WorkerID(w + 1))
		require.NoError(t, err)
		assert.Same(t, s, cur)
		assert.False(t, seen[s.Driver], "drivers are never shared")
		seen[s.Driver] = true
	}
	assert.Len(t, pool.Drivers(), workers)
}

func TestContextCarrier(t *testing.T) {
	_, err := From(context.Background())
	require.ErrorIs(t, err, core.ErrNoContext)

	s := &Session{Worker: 4}
	got, err := From(With(context.Background(), s))
	require.NoError(t, err)
	assert.Same(t, s, got)
}
