package farcaster

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"fc_explorer/core-go/internal/upstream"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return New(zerolog.Nop(), Options{BaseURL: srv.URL, APIKey: "key"}, nil), &calls
}

func TestProfileByAddress_MatchesCaseInsensitively(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/bulk-by-address" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"0xabcdef0000000000000000000000000000000001":[{"fid":7,"username":"alice","display_name":"Alice","pfp_url":"https://img/a.png"}]}`)
	})

	p, err := c.ProfileByAddress(context.Background(), "0xABCDEF0000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := &Profile{SocialID: 7, Username: "alice", DisplayName: "Alice", AvatarURL: "https://img/a.png"}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Fatalf("profile mismatch (-want +got):\n%s", diff)
	}
}

func TestProfileByAddress_ZeroAddressSkipsNetwork(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	for _, addr := range []string{"", "0x", "0x0000000000000000000000000000000000000000"} {
		p, err := c.ProfileByAddress(context.Background(), addr)
		if err != nil || p != nil {
			t.Fatalf("expected nil profile for %q, got %v, %v", addr, p, err)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no upstream calls, got %d", calls.Load())
	}
}

func TestProfileByAddress_NotFoundIsNil(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"no users"}`, http.StatusNotFound)
	})
	p, err := c.ProfileByAddress(context.Background(), "0x1234")
	if err != nil || p != nil {
		t.Fatalf("expected nil, nil for 404; got %v, %v", p, err)
	}
}

func TestProfileByAddress_UpstreamFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})
	_, err := c.ProfileByAddress(context.Background(), "0x1234")
	if !upstream.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestProfileByUsername_RejectsPlaceholders(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	for _, name := range []string{"", "  ", "undefined", "null"} {
		if _, err := c.ProfileByUsername(context.Background(), name); !errors.Is(err, ErrInvalidUsername) {
			t.Fatalf("expected ErrInvalidUsername for %q, got %v", name, err)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no upstream calls, got %d", calls.Load())
	}
}

func TestProfileByUsername_OK(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("username"); got != "dwr" {
			t.Errorf("expected username=dwr, got %q", got)
		}
		_, _ = io.WriteString(w, `{"user":{"fid":3,"username":"dwr","display_name":"Dan","pfp_url":"p"}}`)
	})
	p, err := c.ProfileByUsername(context.Background(), "dwr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil || p.SocialID != 3 {
		t.Fatalf("expected fid 3, got %+v", p)
	}
}

func TestAddressesByID(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fids") == "404" {
			_, _ = io.WriteString(w, `{"users":[]}`)
			return
		}
		_, _ = io.WriteString(w, `{"users":[{"fid":9,"username":"v","custody_address":"0xc","verified_addresses":{"eth_addresses":["0xa","","0xb"]}}]}`)
	})

	got, err := c.AddressesByID(context.Background(), 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := &Addresses{SocialID: 9, Username: "v", Addresses: []string{"0xc", "0xa", "0xb"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("addresses mismatch (-want +got):\n%s", diff)
	}

	missing, err := c.AddressesByID(context.Background(), 404)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown fid, got %v, %v", missing, err)
	}
}

func TestClient_NotConfigured(t *testing.T) {
	c := New(zerolog.Nop(), Options{}, nil)
	if _, err := c.ProfileByID(context.Background(), 1); !errors.Is(err, upstream.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := c.ProfileByUsername(context.Background(), "alice"); !errors.Is(err, upstream.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
