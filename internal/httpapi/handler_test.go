package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"fc_explorer/core-go/internal/collectibles"
	"fc_explorer/core-go/internal/farcaster"
	"fc_explorer/core-go/internal/fid"
	"fc_explorer/core-go/internal/manifest"
	"fc_explorer/core-go/internal/metrics"
	"fc_explorer/core-go/internal/preview"
	"fc_explorer/core-go/internal/store"
	"fc_explorer/core-go/internal/upstream"
)

type fakeProfiles struct {
	byAddressFn  func(address string) (*farcaster.Profile, error)
	byIDFn       func(id int64) (*farcaster.Profile, error)
	byUsernameFn func(username string) (*farcaster.Profile, error)
	addressesFn  func(id int64) (*farcaster.Addresses, error)
}

func (f fakeProfiles) ProfileByAddress(_ context.Context, address string) (*farcaster.Profile, error) {
	return f.byAddressFn(address)
}

func (f fakeProfiles) ProfileByID(_ context.Context, id int64) (*farcaster.Profile, error) {
	return f.byIDFn(id)
}

func (f fakeProfiles) ProfileByUsername(_ context.Context, username string) (*farcaster.Profile, error) {
	return f.byUsernameFn(username)
}

func (f fakeProfiles) AddressesByID(_ context.Context, id int64) (*farcaster.Addresses, error) {
	return f.addressesFn(id)
}

type fakeTokens struct {
	ownersFn func(tokenID string) ([]string, error)
}

func (f fakeTokens) Contract() string { return "0xc011" }

func (f fakeTokens) OwnersForToken(_ context.Context, tokenID string) ([]string, error) {
	return f.ownersFn(tokenID)
}

type fakeResolver struct {
	resolveFn func(tokenID, contract, txHash string) fid.Result
}

func (f fakeResolver) Resolve(_ context.Context, tokenID, contract, txHash string) fid.Result {
	return f.resolveFn(tokenID, contract, txHash)
}

type fakeCollectibles struct {
	recentFn func(cursor string) (collectibles.Page, error)
	ownedFn  func(addresses []string) (collectibles.Page, error)
	bySIDFn  func(id int64) (collectibles.Page, error)
}

func (f fakeCollectibles) Recent(_ context.Context, cursor string) (collectibles.Page, error) {
	return f.recentFn(cursor)
}

func (f fakeCollectibles) Owned(_ context.Context, addresses []string) (collectibles.Page, error) {
	return f.ownedFn(addresses)
}

func (f fakeCollectibles) OwnedBySocialID(_ context.Context, id int64) (collectibles.Page, error) {
	return f.bySIDFn(id)
}

type fakeLoader struct {
	loadFn func(path collectibles.Path, cursor string) (collectibles.Page, error)
}

func (f fakeLoader) LoadPage(_ context.Context, path collectibles.Path, cursor string) (collectibles.Page, error) {
	return f.loadFn(path, cursor)
}

func newTestHandler(deps Deps) *Handler {
	return NewHandler(zerolog.Nop(), deps)
}

func get(t *testing.T, h *Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode body as json: %v\nbody=%s", err, rr.Body.String())
	}
	return v
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["error"] != msg {
		t.Fatalf("expected error %q, got %v", msg, body)
	}
}

func TestHealthz_SetsRequestID(t *testing.T) {
	rr := get(t, newTestHandler(Deps{}), "/healthz")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); !strings.Contains(got, "application/json") {
		t.Fatalf("expected json content-type, got %q", got)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func TestReadyz(t *testing.T) {
	if rr := get(t, newTestHandler(Deps{}), "/readyz"); rr.Code != http.StatusOK {
		t.Fatalf("expected ready without checks, got %d", rr.Code)
	}

	h := newTestHandler(Deps{Checks: map[string]func(context.Context) error{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}})
	rr := get(t, h, "/readyz")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	failed, _ := decodeBody(t, rr)["failed"].(map[string]any)
	if len(failed) != 1 || failed["redis"] != "connection refused" {
		t.Fatalf("unexpected failed checks %v", failed)
	}
}

func TestProfileByUsername_RejectsPlaceholdersBeforeLookup(t *testing.T) {
	h := newTestHandler(Deps{Profiles: fakeProfiles{byUsernameFn: func(string) (*farcaster.Profile, error) {
		t.Fatalf("lookup must not run for an invalid username")
		return nil, nil
	}}})
	for _, q := range []string{"", "?username=", "?username=undefined", "?username=null"} {
		expectError(t, get(t, h, "/api/farcasterByUsername"+q), http.StatusBadRequest, "valid username is required")
	}
}

func TestProfileByAddress(t *testing.T) {
	var profile *farcaster.Profile
	var lookupErr error
	h := newTestHandler(Deps{Profiles: fakeProfiles{byAddressFn: func(address string) (*farcaster.Profile, error) {
		if address != "0xabc" {
			t.Errorf("unexpected address %q", address)
		}
		return profile, lookupErr
	}}})

	expectError(t, get(t, h, "/api/farcasterByAddress"), http.StatusBadRequest, "address is required")

	rr := get(t, h, "/api/farcasterByAddress?address=0xabc")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "null" {
		t.Fatalf("expected null profile, got %d %q", rr.Code, rr.Body.String())
	}

	profile = &farcaster.Profile{SocialID: 3, Username: "dwr"}
	rr = get(t, h, "/api/farcasterByAddress?address=0xabc")
	if body := decodeBody(t, rr); body["username"] != "dwr" || body["socialId"] != float64(3) {
		t.Fatalf("unexpected profile %v", body)
	}

	profile, lookupErr = nil, upstream.ErrNotConfigured
	expectError(t, get(t, h, "/api/farcasterByAddress?address=0xabc"), http.StatusInternalServerError, "API key not configured")

	lookupErr = &upstream.StatusError{Service: "neynar", Status: http.StatusServiceUnavailable}
	expectError(t, get(t, h, "/api/farcasterByAddress?address=0xabc"), http.StatusServiceUnavailable, "failed to fetch profile")

	lookupErr = fmt.Errorf("neynar: %w", errors.New("connection reset"))
	expectError(t, get(t, h, "/api/farcasterByAddress?address=0xabc"), http.StatusInternalServerError, "failed to fetch profile")
}

func TestProfileByFID_ValidatesID(t *testing.T) {
	h := newTestHandler(Deps{Profiles: fakeProfiles{byIDFn: func(id int64) (*farcaster.Profile, error) {
		return &farcaster.Profile{SocialID: id}, nil
	}}})
	expectError(t, get(t, h, "/api/farcasterByFid"), http.StatusBadRequest, "fid is required")
	expectError(t, get(t, h, "/api/farcasterByFid?fid=-4"), http.StatusBadRequest, "fid must be a positive integer")
	if body := decodeBody(t, get(t, h, "/api/farcasterByFid?fid=42")); body["socialId"] != float64(42) {
		t.Fatalf("unexpected profile %v", body)
	}
}

func TestAddresses(t *testing.T) {
	var (
		addrs *farcaster.Addresses
		err   error
	)
	h := newTestHandler(Deps{Profiles: fakeProfiles{addressesFn: func(int64) (*farcaster.Addresses, error) {
		return addrs, err
	}}})

	expectError(t, get(t, h, "/api/farcaster-addresses"), http.StatusBadRequest, "fid is required")
	expectError(t, get(t, h, "/api/farcaster-addresses?fid=9"), http.StatusNotFound, "user not found")

	err = &upstream.StatusError{Service: "neynar", Status: http.StatusTooManyRequests}
	expectError(t, get(t, h, "/api/farcaster-addresses?fid=9"), http.StatusTooManyRequests, "failed to fetch user data")

	addrs, err = &farcaster.Addresses{SocialID: 9, Username: "v", Addresses: []string{"0x1", "0x2"}}, nil
	rr := get(t, h, "/api/farcaster-addresses?fid=9")
	var got farcaster.Addresses
	if e := json.Unmarshal(rr.Body.Bytes(), &got); e != nil {
		t.Fatalf("decode: %v", e)
	}
	if diff := cmp.Diff(*addrs, got); diff != "" {
		t.Fatalf("addresses mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenOwner(t *testing.T) {
	h := newTestHandler(Deps{Tokens: fakeTokens{ownersFn: func(tokenID string) ([]string, error) {
		if tokenID != "31" {
			return nil, errors.New("boom")
		}
		return []string{"0xowner"}, nil
	}}})

	expectError(t, get(t, h, "/api/token-owner"), http.StatusBadRequest, "tokenId parameter is required")

	rr := get(t, h, "/api/token-owner?tokenId=0x1f")
	want := map[string]any{"success": true, "tokenId": "31", "contractAddress": "0xc011", "owners": []any{"0xowner"}}
	if diff := cmp.Diff(want, decodeBody(t, rr)); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}

	expectError(t, get(t, h, "/api/token-owner?tokenId=32"), http.StatusInternalServerError, "failed to fetch token owner")
	expectError(t, get(t, newTestHandler(Deps{}), "/api/token-owner?tokenId=1"), http.StatusInternalServerError, "API key not configured")
}

func TestFID_PassesContractAndTxHash(t *testing.T) {
	h := newTestHandler(Deps{
		Tokens: fakeTokens{},
		FID: fakeResolver{resolveFn: func(tokenID, contract, txHash string) fid.Result {
			if tokenID != "12345" || contract != "0xc011" || txHash != "0xfeed" {
				t.Errorf("unexpected resolve(%q, %q, %q)", tokenID, contract, txHash)
			}
			return fid.Result{ID: "12345", Success: true, Method: fid.MethodDirectTokenID}
		}},
	})
	body := decodeBody(t, get(t, h, "/api/fid?tokenId=12345&txHash=0xfeed"))
	want := map[string]any{"tokenId": "12345", "fid": "12345", "success": true, "method": fid.MethodDirectTokenID}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}

	expectError(t, get(t, h, "/api/fid?tokenId=abc"), http.StatusBadRequest, `invalid token id "abc"`)
}

func TestCollectibles(t *testing.T) {
	h := newTestHandler(Deps{Collectibles: fakeCollectibles{
		recentFn: func(cursor string) (collectibles.Page, error) {
			if cursor == "bad" {
				return collectibles.Page{}, &upstream.StatusError{Service: "alchemy", Status: http.StatusTooManyRequests}
			}
			if cursor == "down" {
				return collectibles.Page{}, errors.New("dial tcp: connection refused")
			}
			return collectibles.Page{Items: []collectibles.Item{{ID: "a", Tags: []string{}}}, NextCursor: "100", HasMore: true}, nil
		},
		ownedFn: func(addresses []string) (collectibles.Page, error) {
			if len(addresses) != 2 {
				t.Errorf("expected both addresses, got %v", addresses)
			}
			return collectibles.Page{Items: []collectibles.Item{}}, nil
		},
		bySIDFn: func(int64) (collectibles.Page, error) {
			return collectibles.Page{}, fmt.Errorf("lookup: %w", collectibles.ErrUnknownAccount)
		},
	}})

	body := decodeBody(t, get(t, h, "/api/collectibles/recent"))
	if body["nextCursor"] != "100" || body["hasMore"] != true {
		t.Fatalf("unexpected page %v", body)
	}
	expectError(t, get(t, h, "/api/collectibles/recent?cursor=bad"), http.StatusTooManyRequests, "failed to fetch recent collectibles")
	expectError(t, get(t, h, "/api/collectibles/recent?cursor=down"), http.StatusInternalServerError, "failed to fetch recent collectibles")

	expectError(t, get(t, h, "/api/collectibles/user"), http.StatusBadRequest, "address or fid is required")
	if rr := get(t, h, "/api/collectibles/user?address=0x1&address=0x2"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	expectError(t, get(t, h, "/api/collectibles/user?fid=77"), http.StatusNotFound, "user not found")
	expectError(t, get(t, h, "/api/collectibles/user?fid=zero"), http.StatusBadRequest, "fid must be a positive integer")
}

func decodeLayout(t *testing.T, rr *httptest.ResponseRecorder) sceneLayout {
	t.Helper()
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var out sceneLayout
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode layout: %v", err)
	}
	return out
}

func TestSceneLayout_FallbackAtEnd(t *testing.T) {
	h := newTestHandler(Deps{LoaderFor: func(*http.Request) store.Loader {
		return fakeLoader{loadFn: func(collectibles.Path, string) (collectibles.Page, error) {
			return collectibles.Page{}, errors.New("upstream down")
		}}
	}})

	out := decodeLayout(t, get(t, h, "/api/scene/layout?progress=1"))
	if !out.UsingFallback || len(out.Items) != 5 || out.Path != collectibles.PathRecent {
		t.Fatalf("unexpected layout: fallback=%v items=%d path=%q", out.UsingFallback, len(out.Items), out.Path)
	}
	if out.FocusIndex != 4 || !out.ReachedEnd || out.Trail == nil || len(out.Trail.Walked) == 0 {
		t.Fatalf("unexpected navigation fields %+v", out)
	}
	for i, it := range out.Items {
		if !it.Reached {
			t.Fatalf("item %d should be reached at progress 1", i)
		}
	}
	if out.Truncation.Truncated || out.Guidance != nil {
		t.Fatalf("unexpected truncation %+v", out.Truncation)
	}
}

func TestSceneLayout_ClampsAndTruncates(t *testing.T) {
	items := make([]collectibles.Item, 130)
	for i := range items {
		items[i] = collectibles.Item{ID: fmt.Sprintf("item-%d", i)}
	}
	h := newTestHandler(Deps{LoaderFor: func(*http.Request) store.Loader {
		return fakeLoader{loadFn: func(collectibles.Path, string) (collectibles.Page, error) {
			return collectibles.Page{Items: items, NextCursor: "9"}, nil
		}}
	}})

	out := decodeLayout(t, get(t, h, "/api/scene/layout?progress=-3"))
	if out.Progress != 0 || out.FocusIndex != 0 || out.ReachedEnd {
		t.Fatalf("progress not clamped: %+v", out)
	}
	want := sceneTruncation{Returned: sceneMaxItems, Limit: sceneMaxItems, Truncated: true, Total: 130}
	if diff := cmp.Diff(want, out.Truncation); diff != "" {
		t.Fatalf("truncation mismatch (-want +got):\n%s", diff)
	}
	if len(out.Items) != sceneMaxItems || out.Guidance == nil || !out.HasMore {
		t.Fatalf("unexpected layout: %d items, guidance=%v, hasMore=%v", len(out.Items), out.Guidance, out.HasMore)
	}
	if !out.Items[0].Reached || out.Items[1].Reached {
		t.Fatalf("only the first marker is reached at progress 0")
	}
}

func TestSceneLayout_RejectsBadParams(t *testing.T) {
	h := newTestHandler(Deps{})
	if rr := get(t, h, "/api/scene/layout?path=trending"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown path, got %d", rr.Code)
	}
	expectError(t, get(t, h, "/api/scene/layout?progress=half"), http.StatusBadRequest, "progress must be a number")
}

func TestManifestAndPreview(t *testing.T) {
	h := newTestHandler(Deps{
		Manifest: manifest.Build("https://explorer.example", manifest.Options{}),
		Preview:  preview.NewRenderer(preview.Options{Title: "Explorer"}),
	})

	body := decodeBody(t, get(t, h, "/.well-known/farcaster.json"))
	frame, _ := body["frame"].(map[string]any)
	if frame["homeUrl"] != "https://explorer.example" {
		t.Fatalf("unexpected manifest %v", body)
	}

	rr := get(t, h, "/opengraph-image")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected preview response %d %q", rr.Code, rr.Header().Get("Content-Type"))
	}
	img, err := png.Decode(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != preview.Width || b.Dy() != preview.Height {
		t.Fatalf("unexpected image size %v", b)
	}

	expectError(t, get(t, newTestHandler(Deps{}), "/opengraph-image"), http.StatusNotFound, "preview image not configured")
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	m := metrics.New()
	h := newTestHandler(Deps{Metrics: m})
	_ = get(t, h, "/healthz")

	rr := get(t, h, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `path="/healthz"`) {
		t.Fatalf("expected healthz request to be recorded:\n%s", rr.Body.String())
	}
}

func TestSceneSession_NotConfigured(t *testing.T) {
	expectError(t, get(t, newTestHandler(Deps{}), "/api/scene/ws"), http.StatusServiceUnavailable, "navigation sessions not configured")
}

func TestQueryEscaping(t *testing.T) {
	var seen string
	h := newTestHandler(Deps{Profiles: fakeProfiles{byUsernameFn: func(username string) (*farcaster.Profile, error) {
		seen = username
		return nil, nil
	}}})
	_ = get(t, h, "/api/farcasterByUsername?username="+url.QueryEscape(" v&b "))
	if seen != "v&b" {
		t.Fatalf("expected trimmed, decoded username, got %q", seen)
	}
}
