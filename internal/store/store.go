// Package store holds the explorer's shared application state: the active
// path, its items, overlay flags and navigation progress.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fc_explorer/core-go/internal/cache"
	"fc_explorer/core-go/internal/collectibles"
	"fc_explorer/core-go/internal/navigation"
)

// Loader fetches one page of items for a path. collectibles.Viewer
// satisfies it.
type Loader interface {
	LoadPage(ctx context.Context, path collectibles.Path, cursor string) (collectibles.Page, error)
}

// Field names the part of the state a Change touched.
type Field string

const (
	FieldItems      Field = "items"
	FieldNavigation Field = "navigation"
	FieldSelection  Field = "selection"
	FieldFlags      Field = "flags"
)

type Change struct {
	Generation uint64
	Field      Field
}

// Navigation is the derived navigation view. CurrentIndex is computed from
// Progress on every read.
type Navigation struct {
	PathMode     bool    `json:"isPathMode"`
	Progress     float64 `json:"progress"`
	CurrentIndex int     `json:"currentIndex"`
}

// Snapshot is a copy of the state safe to hand to another goroutine.
type Snapshot struct {
	Path          collectibles.Path   `json:"path"`
	Recent        []collectibles.Item `json:"recent"`
	RecentCursor  string              `json:"recentCursor,omitempty"`
	Collection    []collectibles.Item `json:"collection"`
	Selected      *collectibles.Item  `json:"selected,omitempty"`
	Hologram      bool                `json:"hologram"`
	Loading       bool                `json:"loading"`
	UsingFallback bool                `json:"usingFallback"`
	Navigation    Navigation          `json:"navigation"`
	HasReachedEnd bool                `json:"hasReachedEnd"`
	Generation    uint64              `json:"generation"`
}

// Items returns the list for the active path.
func (s Snapshot) Items() []collectibles.Item {
	if s.Path == collectibles.PathMyCollection {
		return s.Collection
	}
	return s.Recent
}

type Options struct {
	// Flags persists the onboarding flag. Defaults to an in-memory backend.
	Flags cache.Backend
	// OnboardingKey defaults to cache.OnboardingKey.
	OnboardingKey string
	Now           func() time.Time
}

// Store is safe for concurrent use. Subscribers are called synchronously,
// outside the lock, after each mutation.
type Store struct {
	log    zerolog.Logger
	loader Loader
	flags  cache.Backend
	key    string
	now    func() time.Time

	mu            sync.Mutex
	path          collectibles.Path
	recent        []collectibles.Item
	recentCursor  string
	collection    []collectibles.Item
	selected      *collectibles.Item
	hologram      bool
	loading       bool
	usingFallback bool
	pathMode      bool
	progress      float64
	generation    uint64
	// pathSeq increments on every path selection so late fetches for an
	// abandoned path are dropped.
	pathSeq uint64

	subMu  sync.Mutex
	subs   map[int]func(Change)
	nextID int
}

func New(log zerolog.Logger, loader Loader, opts Options) *Store {
	flags := opts.Flags
	if flags == nil {
		flags = cache.NewMemory()
	}
	key := opts.OnboardingKey
	if key == "" {
		key = cache.OnboardingKey
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		log:    log,
		loader: loader,
		flags:  flags,
		key:    key,
		now:    now,
		path:   collectibles.PathRecent,
		subs:   map[int]func(Change){},
	}
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// mutate runs fn under the lock, bumps the generation and notifies.
func (s *Store) mutate(field Field, fn func()) {
	s.mu.Lock()
	fn()
	s.generation++
	c := Change{Generation: s.generation, Field: field}
	s.mu.Unlock()
	s.notify(c)
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Path:          s.path,
		Recent:        append([]collectibles.Item(nil), s.recent...),
		RecentCursor:  s.recentCursor,
		Collection:    append([]collectibles.Item(nil), s.collection...),
		Hologram:      s.hologram,
		Loading:       s.loading,
		UsingFallback: s.usingFallback,
		Navigation:    s.navigationLocked(),
		HasReachedEnd: s.reachedEndLocked(),
		Generation:    s.generation,
	}
	if s.selected != nil {
		sel := *s.selected
		snap.Selected = &sel
	}
	return snap
}

func (s *Store) itemsLocked() []collectibles.Item {
	if s.path == collectibles.PathMyCollection {
		return s.collection
	}
	return s.recent
}

func (s *Store) navigationLocked() Navigation {
	return Navigation{
		PathMode:     s.pathMode,
		Progress:     s.progress,
		CurrentIndex: navigation.FocusIndex(s.progress, len(s.itemsLocked())),
	}
}

func (s *Store) reachedEndLocked() bool {
	n := len(s.itemsLocked())
	return n > 0 && navigation.FocusIndex(s.progress, n) >= n-1
}

// SelectPath fetches the first page for path and replaces the active list.
// When the fetch fails the mock items for the path are used instead and
// UsingFallback is set; the returned error is informational and the store
// is consistent either way. Navigation is reset.
func (s *Store) SelectPath(ctx context.Context, path collectibles.Path) error {
	s.mu.Lock()
	s.pathSeq++
	seq := s.pathSeq
	s.mu.Unlock()
	s.SetLoading(true)

	var (
		page     collectibles.Page
		fetchErr error
	)
	if s.loader == nil {
		fetchErr = errors.New("no loader configured")
	} else {
		page, fetchErr = s.loader.LoadPage(ctx, path, "")
	}

	stale := false
	s.mutate(FieldItems, func() {
		if seq != s.pathSeq {
			stale = true
			return
		}
		items := page.Items
		cursor := page.NextCursor
		s.usingFallback = fetchErr != nil
		if fetchErr != nil {
			items = collectibles.MockItems(path, s.now())
			cursor = ""
		}
		s.path = path
		if path == collectibles.PathMyCollection {
			s.collection = items
		} else {
			s.recent = items
			s.recentCursor = cursor
		}
		s.selected = nil
		s.loading = false
	})
	if stale {
		return nil
	}
	s.ResetNavigation()

	if fetchErr != nil {
		s.log.Warn().Err(fetchErr).Str("path", string(path)).Msg("path fetch failed; showing placeholder items")
		return fmt.Errorf("load %s: %w", path, fetchErr)
	}
	return nil
}

// LoadMore fetches the next page for the active path and appends it. With
// no cursor it reports false and changes nothing.
func (s *Store) LoadMore(ctx context.Context) (hasMore bool, err error) {
	s.mu.Lock()
	path, cursor, seq := s.path, s.recentCursor, s.pathSeq
	s.mu.Unlock()

	if path != collectibles.PathRecent || cursor == "" || s.loader == nil {
		return false, nil
	}

	s.SetLoading(true)
	page, err := s.loader.LoadPage(ctx, path, cursor)
	if err != nil {
		s.SetLoading(false)
		return true, fmt.Errorf("load more: %w", err)
	}

	s.mutate(FieldItems, func() {
		s.loading = false
		if seq != s.pathSeq || s.recentCursor != cursor {
			return
		}
		s.recent = appendUnique(s.recent, page.Items)
		s.recentCursor = page.NextCursor
	})
	return page.NextCursor != "", nil
}

func appendUnique(dst, src []collectibles.Item) []collectibles.Item {
	seen := make(map[string]struct{}, len(dst))
	for _, it := range dst {
		seen[it.ID] = struct{}{}
	}
	for _, it := range src {
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		dst = append(dst, it)
	}
	return dst
}

func (s *Store) ResetNavigation() {
	s.mutate(FieldNavigation, func() {
		s.pathMode = false
		s.progress = 0
	})
}

func (s *Store) Path() collectibles.Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// SetActivePath switches the active list without fetching.
func (s *Store) SetActivePath(p collectibles.Path) {
	s.mutate(FieldItems, func() { s.path = p })
}

func (s *Store) Items() []collectibles.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]collectibles.Item(nil), s.itemsLocked()...)
}

func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.itemsLocked())
}

func (s *Store) SetRecentItems(items []collectibles.Item, cursor string) {
	s.mutate(FieldItems, func() {
		s.recent = items
		s.recentCursor = cursor
	})
}

func (s *Store) SetCollectionItems(items []collectibles.Item) {
	s.mutate(FieldItems, func() { s.collection = items })
}

func (s *Store) RecentCursor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recentCursor
}

func (s *Store) UsingFallback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usingFallback
}

func (s *Store) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// SetProgress stores p clamped to [0, 1].
func (s *Store) SetProgress(p float64) {
	p = navigation.Clamp01(p)
	s.mutate(FieldNavigation, func() { s.progress = p })
}

func (s *Store) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return navigation.FocusIndex(s.progress, len(s.itemsLocked()))
}

func (s *Store) HasReachedEnd() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reachedEndLocked()
}

func (s *Store) PathMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pathMode
}

// SetPathMode toggles trail navigation. Turning it off resets progress.
func (s *Store) SetPathMode(on bool) {
	s.mutate(FieldNavigation, func() {
		s.pathMode = on
		if !on {
			s.progress = 0
		}
	})
}

func (s *Store) Navigation() Navigation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.navigationLocked()
}

// MoveStep moves the focus one item forward or back, stopping at the ends.
func (s *Store) MoveStep(forward bool) {
	s.mutate(FieldNavigation, func() {
		n := len(s.itemsLocked())
		i := navigation.FocusIndex(s.progress, n)
		if forward && i < n-1 {
			i++
		} else if !forward && i > 0 {
			i--
		}
		s.progress = navigation.IndexProgress(i, n)
	})
}

func (s *Store) Selected() *collectibles.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	it := *s.selected
	return &it
}

// SetSelected selects the item, or clears the selection for nil.
func (s *Store) SetSelected(it *collectibles.Item) {
	var cp *collectibles.Item
	if it != nil {
		v := *it
		cp = &v
	}
	s.mutate(FieldSelection, func() { s.selected = cp })
}

// SelectByID selects the active-list item with id. It reports false when
// no such item exists.
func (s *Store) SelectByID(id string) bool {
	found := false
	s.mutate(FieldSelection, func() {
		for _, it := range s.itemsLocked() {
			if it.ID == id {
				v := it
				s.selected = &v
				found = true
				return
			}
		}
	})
	return found
}

func (s *Store) Hologram() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hologram
}

func (s *Store) SetHologram(on bool) {
	s.mutate(FieldFlags, func() { s.hologram = on })
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Store) SetLoading(on bool) {
	s.mutate(FieldFlags, func() { s.loading = on })
}

// OnboardingSeen reports whether the onboarding tip was dismissed. Backend
// errors and unreadable values count as not seen.
func (s *Store) OnboardingSeen(ctx context.Context) bool {
	return cache.Flag(ctx, s.flags, s.key)
}

func (s *Store) DismissOnboarding(ctx context.Context) error {
	if err := cache.SetFlag(ctx, s.flags, s.key, true); err != nil {
		return fmt.Errorf("persist onboarding flag: %w", err)
	}
	s.mutate(FieldFlags, func() {})
	return nil
}
