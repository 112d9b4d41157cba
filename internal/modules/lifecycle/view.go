package lifecycle

import (
	"sync"
	"time"

	"gamelend/internal/domain"
)

type QueueKind string

const (
	QueueOwner    QueueKind = "owner"    // requests for games the viewer lends out
	QueueBorrower QueueKind = "borrower" // requests the viewer made
)

func ParseQueueKind(s string) (QueueKind, bool) {
	switch QueueKind(s) {
	case QueueOwner, QueueBorrower:
		return QueueKind(s), true
	}
	return "", false
}

// Snapshot is one full fetch of a list endpoint. It always replaces the
// previous snapshot of the same kind; nothing is merged.
type Snapshot struct {
	Kind        QueueKind
	Requests    []domain.BorrowRequest
	FetchedAt   time.Time
	Unavailable bool
}

// ReturnForms tracks which requests have the rating/comment form revealed.
// It is UI state only and never reaches the backend.
type ReturnForms struct {
	mu   sync.Mutex
	open map[int64]bool
}

func NewReturnForms() *ReturnForms {
	return &ReturnForms{open: make(map[int64]bool)}
}

func (f *ReturnForms) Open(id int64) {
	f.mu.Lock()
	f.open[id] = true
	f.mu.Unlock()
}

func (f *ReturnForms) Close(id int64) {
	f.mu.Lock()
	delete(f.open, id)
	f.mu.Unlock()
}

func (f *ReturnForms) IsOpen(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open[id]
}

// View is what one viewer currently sees: the latest snapshot per queue plus
// UI-only form state. Pollers and actions may touch it concurrently; the last
// applied snapshot wins.
type View struct {
	Forms *ReturnForms

	mu       sync.RWMutex
	sess     *domain.Session
	latest   map[QueueKind]Snapshot
	lastUsed time.Time
	holders  int

	subMu   sync.Mutex
	nextSub int
	subs    map[int]func()
}

func NewView(sess *domain.Session) *View {
	return &View{
		sess:     sess,
		Forms:    NewReturnForms(),
		latest:   make(map[QueueKind]Snapshot),
		lastUsed: time.Now(),
		subs:     make(map[int]func()),
	}
}

// Session returns the credentials the view acts with, nil once dropped.
func (v *View) Session() *domain.Session {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.sess
}

func (v *View) setSession(sess *domain.Session) {
	v.mu.Lock()
	v.sess = sess
	v.lastUsed = time.Now()
	v.mu.Unlock()
}

func (v *View) ViewerID() int64 {
	if sess := v.Session(); sess != nil {
		return sess.ViewerID
	}
	return 0
}

// Apply replaces the snapshot of s.Kind. An Unavailable snapshot never
// overwrites a good one.
func (v *View) Apply(s Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if s.Unavailable {
		if prev, ok := v.latest[s.Kind]; ok && !prev.Unavailable {
			return
		}
	}
	v.latest[s.Kind] = s
	v.lastUsed = time.Now()
}

func (v *View) Latest(kind QueueKind) (Snapshot, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	s, ok := v.latest[kind]
	return s, ok
}

// Lookup searches the latest owner snapshot first, so a viewer who appears on
// both sides gets the owner interpretation.
func (v *View) Lookup(id int64) (domain.BorrowRequest, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, kind := range []QueueKind{QueueOwner, QueueBorrower} {
		if s, ok := v.latest[kind]; ok {
			if r, found := Find(s.Requests, id); found {
				return r, true
			}
		}
	}
	return domain.BorrowRequest{}, false
}

// OpenGames returns the games this view has seen under an open request.
func (v *View) OpenGames() map[int64]bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	lists := make([][]domain.BorrowRequest, 0, len(v.latest))
	for _, s := range v.latest {
		lists = append(lists, s.Requests)
	}
	return OpenGameIDs(lists...)
}

// hold marks the view as in use by a live poller until the returned func is
// called. Held views are never swept, however long their fetches fail.
func (v *View) hold() func() {
	v.mu.Lock()
	v.holders++
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			v.holders--
			v.lastUsed = time.Now()
			v.mu.Unlock()
		})
	}
}

// idleBefore reports an unheld view last used before cutoff.
func (v *View) idleBefore(cutoff time.Time) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.holders == 0 && v.lastUsed.Before(cutoff)
}

// OnChange registers fn to run after every successful local mutation.
// The returned func unregisters it.
func (v *View) OnChange(fn func()) func() {
	v.subMu.Lock()
	id := v.nextSub
	v.nextSub++
	v.subs[id] = fn
	v.subMu.Unlock()

	return func() {
		v.subMu.Lock()
		delete(v.subs, id)
		v.subMu.Unlock()
	}
}

func (v *View) changed() {
	v.subMu.Lock()
	fns := make([]func(), 0, len(v.subs))
	for _, fn := range v.subs {
		fns = append(fns, fn)
	}
	v.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Views keeps one View per browser session.
type Views struct {
	mu    sync.Mutex
	views map[string]*View
}

func NewViews() *Views {
	return &Views{views: make(map[string]*View)}
}

// For returns the view of the session, creating it on first use. A view
// created for an older copy of the session picks up the new credentials.
func (vs *Views) For(sess *domain.Session) *View {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if v, ok := vs.views[sess.ID]; ok {
		v.setSession(sess)
		return v
	}
	v := NewView(sess)
	vs.views[sess.ID] = v
	return v
}

// Drop forgets the session's view and detaches its credentials so that any
// poller still holding it stops reaching the backend.
func (vs *Views) Drop(sessionID string) {
	vs.mu.Lock()
	v, ok := vs.views[sessionID]
	delete(vs.views, sessionID)
	vs.mu.Unlock()

	if ok {
		v.setSession(nil)
	}
}

// Sweep drops views idle since before cutoff and not held by a poller, and
// detaches their credentials like Drop. Returns how many were dropped.
func (vs *Views) Sweep(cutoff time.Time) int {
	vs.mu.Lock()
	var swept []*View
	for id, v := range vs.views {
		if v.idleBefore(cutoff) {
			delete(vs.views, id)
			swept = append(swept, v)
		}
	}
	vs.mu.Unlock()

	for _, v := range swept {
		v.setSession(nil)
	}
	return len(swept)
}

func (vs *Views) Len() int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return len(vs.views)
}
