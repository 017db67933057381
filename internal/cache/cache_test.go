package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type fakeBackend struct {
	getFn func(key string) (Entry, bool, error)
	setFn func(key string, e Entry) error
}

func (f fakeBackend) Get(_ context.Context, key string) (Entry, bool, error) {
	return f.getFn(key)
}

func (f fakeBackend) Set(_ context.Context, key string, e Entry) error {
	if f.setFn == nil {
		return nil
	}
	return f.setFn(key, e)
}

func (f fakeBackend) Delete(context.Context, string) error { return nil }

type page struct {
	Items  []string `json:"items"`
	Cursor string   `json:"cursor"`
}

func TestTTL_FreshUntilBoundary(t *testing.T) {
	ctx := context.Background()
	c := NewTTL(NewMemory(), 5*time.Minute, nil)
	t0 := time.UnixMilli(1_700_000_000_000)
	c.now = func() time.Time { return t0 }

	want := page{Items: []string{"a", "b"}, Cursor: "42"}
	if err := c.Put(ctx, RecentItemsKey, want); err != nil {
		t.Fatalf("put: %v", err)
	}

	c.now = func() time.Time { return t0.Add(299_999 * time.Millisecond) }
	var got page
	if !c.Fresh(ctx, RecentItemsKey, &got) {
		t.Fatalf("expected hit just before ttl")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("cached page mismatch (-want +got):\n%s", diff)
	}

	c.now = func() time.Time { return t0.Add(300_000 * time.Millisecond) }
	if c.Fresh(ctx, RecentItemsKey, &got) {
		t.Fatalf("expected miss at exactly ttl")
	}

	var stale page
	if !c.Stale(ctx, RecentItemsKey, &stale) {
		t.Fatalf("expected stale entry to remain readable")
	}
	if diff := cmp.Diff(want, stale); diff != "" {
		t.Fatalf("stale page mismatch (-want +got):\n%s", diff)
	}
}

func TestTTL_BackendErrorIsMiss(t *testing.T) {
	c := NewTTL(fakeBackend{getFn: func(string) (Entry, bool, error) {
		return Entry{}, false, errors.New("unavailable")
	}}, time.Minute, nil)
	var got page
	if c.Fresh(context.Background(), RecentItemsKey, &got) {
		t.Fatalf("expected miss on backend error")
	}
	if c.Stale(context.Background(), RecentItemsKey, &got) {
		t.Fatalf("expected no stale value on backend error")
	}
}

func TestTTL_CorruptEntryIsMiss(t *testing.T) {
	c := NewTTL(fakeBackend{getFn: func(string) (Entry, bool, error) {
		return Entry{Data: []byte("{not json"), WrittenAt: time.Now()}, true, nil
	}}, time.Minute, nil)
	var got page
	if c.Fresh(context.Background(), RecentItemsKey, &got) {
		t.Fatalf("expected miss on corrupt entry")
	}
}

func TestFlag(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if Flag(ctx, m, OnboardingKey) {
		t.Fatalf("expected unset flag to read false")
	}
	if err := SetFlag(ctx, m, OnboardingKey, true); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if !Flag(ctx, m, OnboardingKey) {
		t.Fatalf("expected flag to read true")
	}

	_ = m.Set(ctx, OnboardingKey, Entry{Data: []byte("maybe")})
	if Flag(ctx, m, OnboardingKey) {
		t.Fatalf("expected corrupt flag to read false")
	}
	if _, err := readFlag(ctx, m, OnboardingKey); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestMemory_CopiesData(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	buf := []byte("abc")
	_ = m.Set(ctx, "k", Entry{Data: buf})
	buf[0] = 'z'
	e, ok, _ := m.Get(ctx, "k")
	if !ok || string(e.Data) != "abc" {
		t.Fatalf("expected stored copy, got %q", e.Data)
	}
	_ = m.Delete(ctx, "k")
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatalf("expected key to be deleted")
	}
}

func TestRedis_RoundTrip(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	r, err := NewRedis(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	if err := r.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	key := "test-" + time.Now().Format("150405.000000000")
	t.Cleanup(func() { _ = r.Delete(ctx, key) })

	if _, ok, err := r.Get(ctx, key); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	written := time.UnixMilli(1_700_000_000_000).UTC()
	if err := r.Set(ctx, key, Entry{Data: []byte(`{"x":1}`), WrittenAt: written}); err != nil {
		t.Fatalf("set: %v", err)
	}
	e, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(e.Data) != `{"x":1}` || !e.WrittenAt.Equal(written) {
		t.Fatalf("unexpected entry %+v", e)
	}
}
