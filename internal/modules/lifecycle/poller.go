package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const DefaultPollInterval = 5 * time.Second

// Poller keeps one queue of a view fresh. Every tick is a full fetch that
// replaces the snapshot; a failed tick is logged and skipped so the last good
// snapshot stays on screen.
type Poller struct {
	engine   *Engine
	view     *View
	kind     QueueKind
	interval time.Duration
	publish  func(Snapshot)
	log      *zap.SugaredLogger

	refresh  chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	closed   atomic.Bool
}

func NewPoller(engine *Engine, view *View, kind QueueKind, interval time.Duration, publish func(Snapshot), log *zap.SugaredLogger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if publish == nil {
		publish = func(Snapshot) {}
	}
	return &Poller{
		engine:   engine,
		view:     view,
		kind:     kind,
		interval: interval,
		publish:  publish,
		log:      log,
		refresh:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Run polls until ctx is done or Stop is called. The first fetch happens
// immediately. Local mutations on the view trigger an extra fetch. The view
// stays registered for as long as Run does.
func (p *Poller) Run(ctx context.Context) {
	release := p.view.hold()
	defer release()
	unsubscribe := p.view.OnChange(p.Refresh)
	defer unsubscribe()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			p.tick(ctx)
		case <-p.refresh:
			p.tick(ctx)
		}
	}
}

// Refresh asks for an out-of-band fetch. Requests made while one is already
// queued collapse into it.
func (p *Poller) Refresh() {
	if p.closed.Load() {
		return
	}
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Stop tears the poller down. A fetch already in flight is discarded when it
// returns.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.closed.Store(true)
		close(p.stop)
	})
}

func (p *Poller) Stopped() bool {
	return p.closed.Load()
}

func (p *Poller) tick(ctx context.Context) {
	if p.closed.Load() {
		return
	}
	if p.view.Session() == nil {
		p.Stop()
		return
	}

	list, err := p.engine.Fetch(ctx, p.view, p.kind)
	if p.closed.Load() {
		return
	}
	if err != nil {
		p.log.Warnw("poll failed", "queue", p.kind, "viewer_id", p.view.ViewerID(), "error", err)
		if _, ok := p.view.Latest(p.kind); !ok {
			snap := Snapshot{Kind: p.kind, FetchedAt: p.engine.now(), Unavailable: true}
			p.view.Apply(snap)
			p.publish(snap)
		}
		return
	}

	snap := Snapshot{Kind: p.kind, Requests: list, FetchedAt: p.engine.now()}
	p.view.Apply(snap)
	p.publish(snap)
}
