// Package board owns the concurrent mapping of named boards and the
// broadcast event bus that notifies gallery listeners of board changes.
// All mutation happens under a single read/write lock; the broadcast
// channel is never touched while that lock is held.
package board

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tobert/scry-mcp/sandbox"
)

const (
	maxHistory       = 50
	eventBusCapacity = 64
)

// Snapshot is an immutable record captured when a new render replaces an
// existing one.
type Snapshot struct {
	SVG       string
	PNG       []byte
	Timestamp time.Time
}

// Board is the central entity, keyed by its validated name.
type Board struct {
	Name      string
	Width     uint32
	Height    uint32
	SVG       string
	PNG       []byte
	Namespace *sandbox.Namespace
	CreatedAt time.Time
	UpdatedAt time.Time
	History   []Snapshot
}

// BoardView is a read-only clone of a board, sufficient for rendering the
// gallery and tool-listing responses without holding the store's lock.
type BoardView struct {
	Name       string
	Width      uint32
	Height     uint32
	SVG        string
	PNG        []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
	HistoryLen int
}

// EventKind distinguishes a board's first commit from later ones.
type EventKind int

const (
	Created EventKind = iota
	Updated
)

func (k EventKind) String() string {
	if k == Created {
		return "Created"
	}
	return "Updated"
}

// Event is published on the broadcast bus after every successful commit.
type Event struct {
	BoardName string
	Kind      EventKind
}

// SortField selects the ordering ListSortedBy returns.
type SortField int

const (
	// SortUpdatedDesc orders by UpdatedAt descending, for the gallery index.
	SortUpdatedDesc SortField = iota
	// SortCreatedAsc orders by CreatedAt ascending, for whiteboard_list.
	SortCreatedAsc
)

// Store is the process-singleton board mapping plus its event bus.
type Store struct {
	mu     sync.RWMutex
	boards map[string]*Board
	log    *logrus.Logger

	subMu sync.Mutex
	subs  map[chan Event]struct{}
}

// NewStore returns an empty store. log may be nil, in which case a
// default logrus logger (writing to stderr) is used.
func NewStore(log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.New()
	}
	return &Store{
		boards: make(map[string]*Board),
		log:    log,
		subs:   make(map[chan Event]struct{}),
	}
}

// GetOrCreate returns the board's current namespace, creating the board
// under the exclusive lock if it doesn't exist yet. This is the only way a
// board comes into existence, which closes the time-of-check/time-of-use
// race where two concurrent requests for a new name could each create
// independent namespaces: only one caller observes isNew=true.
func (s *Store) GetOrCreate(name string, w, h uint32) (ns *sandbox.Namespace, isNew bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.boards[name]; ok {
		return b.Namespace, false
	}

	now := time.Now().UTC()
	ns = sandbox.NewNamespace()
	s.boards[name] = &Board{
		Name:      name,
		Width:     w,
		Height:    h,
		Namespace: ns,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return ns, true
}

// Commit overwrites a board's rendered state, pushing the prior (svg, png,
// updated_at) onto history first if the board already had a non-empty svg.
func (s *Store) Commit(name string, svg string, png []byte, ns *sandbox.Namespace, w, h uint32, now time.Time) {
	s.mu.Lock()
	b, ok := s.boards[name]
	if !ok {
		s.mu.Unlock()
		s.log.WithField("board", name).Warn("commit on missing board, ignoring")
		return
	}
	if b.SVG != "" {
		if len(b.History) >= maxHistory {
			b.History = b.History[1:]
		}
		b.History = append(b.History, Snapshot{SVG: b.SVG, PNG: b.PNG, Timestamp: b.UpdatedAt})
	}
	b.SVG = svg
	b.PNG = png
	b.Namespace = ns
	b.Width = w
	b.Height = h
	b.UpdatedAt = now
	s.mu.Unlock()
}

// CommitNamespaceOnly updates a board's namespace and timestamp without
// touching its rendered state, used when execution succeeded but produced
// no image.
func (s *Store) CommitNamespaceOnly(name string, ns *sandbox.Namespace, now time.Time) {
	s.mu.Lock()
	b, ok := s.boards[name]
	if !ok {
		s.mu.Unlock()
		s.log.WithField("board", name).Warn("commit on missing board, ignoring")
		return
	}
	b.Namespace = ns
	b.UpdatedAt = now
	s.mu.Unlock()
}

func viewOf(b *Board) BoardView {
	return BoardView{
		Name:       b.Name,
		Width:      b.Width,
		Height:     b.Height,
		SVG:        b.SVG,
		PNG:        b.PNG,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
		HistoryLen: len(b.History),
	}
}

// ReadSnapshot returns a cloned view of one board under the shared lock.
func (s *Store) ReadSnapshot(name string) (BoardView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.boards[name]
	if !ok {
		return BoardView{}, false
	}
	return viewOf(b), true
}

// ListSortedBy returns clones of every board in the requested order.
func (s *Store) ListSortedBy(field SortField) []BoardView {
	s.mu.RLock()
	views := make([]BoardView, 0, len(s.boards))
	for _, b := range s.boards {
		views = append(views, viewOf(b))
	}
	s.mu.RUnlock()

	switch field {
	case SortUpdatedDesc:
		sortViews(views, func(a, b BoardView) bool { return a.UpdatedAt.After(b.UpdatedAt) })
	case SortCreatedAsc:
		sortViews(views, func(a, b BoardView) bool { return a.CreatedAt.Before(b.CreatedAt) })
	}
	return views
}

func sortViews(views []BoardView, less func(a, b BoardView) bool) {
	for i := 1; i < len(views); i++ {
		for j := i; j > 0 && less(views[j], views[j-1]); j-- {
			views[j-1], views[j] = views[j], views[j-1]
		}
	}
}

// Publish fans an event out to every current subscriber. A subscriber whose
// buffer is full has its oldest queued event dropped in favor of the new
// one, matching a broadcast channel's lag-tolerant semantics: lag is not
// fatal, the next event still triggers a client reload.
func (s *Store) Publish(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// Subscribe registers a new listener and returns its event channel plus an
// unsubscribe function that must be called when the listener goes away.
func (s *Store) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, eventBusCapacity)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	unsubscribe := func() {
		s.subMu.Lock()
		delete(s.subs, ch)
		s.subMu.Unlock()
	}
	return ch, unsubscribe
}
