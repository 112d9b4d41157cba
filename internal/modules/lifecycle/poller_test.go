package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamelend/internal/domain"
	"gamelend/internal/pkg/apperr"
	"gamelend/internal/pkg/logger"
)

type published struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (p *published) add(s Snapshot) {
	p.mu.Lock()
	p.snaps = append(p.snaps, s)
	p.mu.Unlock()
}

func (p *published) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snaps)
}

func (p *published) last() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snaps[len(p.snaps)-1]
}

func TestPoller_FirstTickIsImmediate(t *testing.T) {
	repo := &fakeRequests{owned: []domain.BorrowRequest{req(1, 1, 10, 20, nil, nil)}}
	e := newTestEngine(repo, nil)
	v := ownerView()
	pub := &published{}

	p := NewPoller(e, v, QueueOwner, time.Hour, pub.add, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.Eventually(t, func() bool { return pub.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, pub.last().Requests, 1)
}

func TestPoller_PollsOnInterval(t *testing.T) {
	repo := &fakeRequests{owned: []domain.BorrowRequest{}}
	e := newTestEngine(repo, nil)
	pub := &published{}

	p := NewPoller(e, ownerView(), QueueOwner, 10*time.Millisecond, pub.add, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.Eventually(t, func() bool { return pub.len() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestPoller_FailedTickKeepsLastGood(t *testing.T) {
	repo := &fakeRequests{owned: []domain.BorrowRequest{req(1, 1, 10, 20, nil, nil)}}
	e := newTestEngine(repo, nil)
	v := ownerView()
	pub := &published{}

	p := NewPoller(e, v, QueueOwner, time.Hour, pub.add, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	require.Eventually(t, func() bool { return pub.len() == 1 }, time.Second, 5*time.Millisecond)

	repo.mu.Lock()
	repo.listErr = apperr.New(apperr.KindNetwork, "x", "down")
	repo.mu.Unlock()
	p.Refresh()

	require.Eventually(t, func() bool { return repo.listCount() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, pub.len())
	snap, ok := v.Latest(QueueOwner)
	require.True(t, ok)
	assert.False(t, snap.Unavailable)
	assert.Len(t, snap.Requests, 1)
}

func TestPoller_FirstFailurePublishesUnavailable(t *testing.T) {
	repo := &fakeRequests{listErr: apperr.New(apperr.KindNetwork, "x", "down")}
	e := newTestEngine(repo, nil)
	v := ownerView()
	pub := &published{}

	p := NewPoller(e, v, QueueOwner, time.Hour, pub.add, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.Eventually(t, func() bool { return pub.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, pub.last().Unavailable)
}

func TestPoller_MutationTriggersRefresh(t *testing.T) {
	repo := &fakeRequests{owned: []domain.BorrowRequest{req(1, 1, 10, 20, nil, nil)}}
	e := newTestEngine(repo, nil)
	v := ownerView()
	pub := &published{}

	p := NewPoller(e, v, QueueOwner, time.Hour, pub.add, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	require.Eventually(t, func() bool { return pub.len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, e.Accept(ctx, v, 1))

	require.Eventually(t, func() bool { return pub.len() == 2 }, time.Second, 5*time.Millisecond)
}

func TestPoller_StopDiscardsInFlightFetch(t *testing.T) {
	gate := make(chan struct{})
	repo := &fakeRequests{owned: []domain.BorrowRequest{req(1, 1, 10, 20, nil, nil)}, gate: gate}
	e := newTestEngine(repo, nil)
	v := ownerView()
	pub := &published{}

	p := NewPoller(e, v, QueueOwner, time.Hour, pub.add, logger.Nop())
	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return repo.listCount() == 1 }, time.Second, 5*time.Millisecond)
	p.Stop()
	close(gate)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not exit")
	}

	assert.Equal(t, 0, pub.len())
	_, ok := v.Latest(QueueOwner)
	assert.False(t, ok)
	assert.True(t, p.Stopped())
}

func TestPoller_DroppedSessionStops(t *testing.T) {
	repo := &fakeRequests{}
	e := newTestEngine(repo, nil)
	views := NewViews()
	v := views.For(&domain.Session{ID: "s", Token: "t", ViewerID: 10})
	views.Drop("s")

	p := NewPoller(e, v, QueueOwner, 10*time.Millisecond, nil, logger.Nop())
	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not exit")
	}
	assert.Equal(t, 0, repo.listCount())
}

func TestViews_Sweep(t *testing.T) {
	views := NewViews()
	a := views.For(&domain.Session{ID: "a", ViewerID: 1})
	views.For(&domain.Session{ID: "b", ViewerID: 2})

	assert.Equal(t, 0, views.Sweep(time.Now().Add(-time.Hour)))
	assert.Equal(t, 2, views.Sweep(time.Now().Add(time.Second)))
	assert.Equal(t, 0, views.Len())
	assert.Nil(t, a.Session())
}

func TestViews_SweepKeepsPolledViewWhileBackendIsDown(t *testing.T) {
	repo := &fakeRequests{listErr: apperr.New(apperr.KindNetwork, "x", "down")}
	e := newTestEngine(repo, nil)
	views := NewViews()
	sess := &domain.Session{ID: "s", Token: "t", ViewerID: 10}
	v := views.For(sess)

	p := NewPoller(e, v, QueueOwner, 10*time.Millisecond, nil, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return repo.listCount() >= 2 }, time.Second, 5*time.Millisecond)

	// every tick failed, so the view was never refreshed
	assert.Equal(t, 0, views.Sweep(time.Now().Add(time.Minute)))
	same := views.For(sess)
	assert.Same(t, v, same)

	v.Forms.Open(7)
	assert.True(t, same.Forms.IsOpen(7))
	assert.False(t, p.Stopped())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not exit")
	}

	assert.Equal(t, 1, views.Sweep(time.Now().Add(time.Minute)))
	assert.Nil(t, v.Session())
}

func TestPoller_OwnerAndBorrowerBothSeeActive(t *testing.T) {
	record := req(7, 1, 10, 20, at(time.Hour), nil)
	repo := &fakeRequests{
		owned:    []domain.BorrowRequest{record},
		borrowed: []domain.BorrowRequest{record},
	}
	e := newTestEngine(repo, nil)
	ownerPub, borrowerPub := &published{}, &published{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewPoller(e, ownerView(), QueueOwner, 10*time.Millisecond, ownerPub.add, logger.Nop()).Run(ctx)
	go NewPoller(e, borrowerView(), QueueBorrower, 10*time.Millisecond, borrowerPub.add, logger.Nop()).Run(ctx)

	require.Eventually(t, func() bool {
		return ownerPub.len() >= 2 && borrowerPub.len() >= 2
	}, time.Second, 5*time.Millisecond)

	for _, pub := range []*published{ownerPub, borrowerPub} {
		pub.mu.Lock()
		for _, snap := range pub.snaps {
			require.Len(t, snap.Requests, 1)
			assert.Equal(t, StateActive, Classify(&snap.Requests[0]))
		}
		pub.mu.Unlock()
	}

	ownerQueue := OwnerQueue(ownerPub.last().Requests, 10)
	require.Len(t, ownerQueue, 1)
	assert.Equal(t, int64(7), ownerQueue[0].ID)

	open := OpenBorrows(borrowerPub.last().Requests, 20)
	require.Len(t, open, 1)
	assert.Equal(t, int64(7), open[0].ID)
}

func TestView_UnavailableNeverOverwritesGood(t *testing.T) {
	v := ownerView()
	v.Apply(Snapshot{Kind: QueueOwner, Requests: []domain.BorrowRequest{req(1, 1, 10, 20, nil, nil)}})
	v.Apply(Snapshot{Kind: QueueOwner, Unavailable: true})

	snap, _ := v.Latest(QueueOwner)
	assert.False(t, snap.Unavailable)
	assert.Len(t, snap.Requests, 1)
}
