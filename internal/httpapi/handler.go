package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"fc_explorer/core-go/internal/collectibles"
	"fc_explorer/core-go/internal/farcaster"
	"fc_explorer/core-go/internal/fid"
	"fc_explorer/core-go/internal/manifest"
	"fc_explorer/core-go/internal/metrics"
	"fc_explorer/core-go/internal/preview"
	"fc_explorer/core-go/internal/store"
)

// Profiles is the social lookup surface. *farcaster.Client satisfies it.
type Profiles interface {
	ProfileByAddress(ctx context.Context, address string) (*farcaster.Profile, error)
	ProfileByID(ctx context.Context, id int64) (*farcaster.Profile, error)
	ProfileByUsername(ctx context.Context, username string) (*farcaster.Profile, error)
	AddressesByID(ctx context.Context, id int64) (*farcaster.Addresses, error)
}

// Tokens is the chain lookup surface. *chain.Client satisfies it.
type Tokens interface {
	Contract() string
	OwnersForToken(ctx context.Context, tokenID string) ([]string, error)
}

// FIDResolver is satisfied by *fid.Service.
type FIDResolver interface {
	Resolve(ctx context.Context, tokenID, contract, txHash string) fid.Result
}

// Collectibles is satisfied by *collectibles.Service.
type Collectibles interface {
	Recent(ctx context.Context, cursor string) (collectibles.Page, error)
	Owned(ctx context.Context, addresses []string) (collectibles.Page, error)
	OwnedBySocialID(ctx context.Context, id int64) (collectibles.Page, error)
}

// Deps are the collaborators behind the routes. Nil collaborators make their
// routes answer 500 "not configured".
type Deps struct {
	Profiles     Profiles
	Tokens       Tokens
	FID          FIDResolver
	Collectibles Collectibles
	// LoaderFor picks the item loader for scene requests.
	LoaderFor func(r *http.Request) store.Loader
	// Sessions serves the navigation WebSocket.
	Sessions http.Handler
	Manifest manifest.Document
	Preview  *preview.Renderer
	// Checks are run by /readyz; any error makes the service unready.
	Checks  map[string]func(ctx context.Context) error
	Metrics *metrics.Metrics
}

const requestTimeout = 15 * time.Second

type Handler struct {
	log  zerolog.Logger
	deps Deps
}

func NewHandler(log zerolog.Logger, deps Deps) *Handler {
	return &Handler{log: log, deps: deps}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		// Health
		r.Get("/healthz", h.handleHealthz)
		r.Get("/readyz", h.handleReadyZ)
		r.Handle("/metrics", h.deps.Metrics.Handler())

		r.Get("/.well-known/farcaster.json", h.handleManifest)
		r.Get("/opengraph-image", h.handlePreviewImage)
	})

	// API
	r.Route("/api", func(r chi.Router) {
		// Long-lived connections stay outside the request timeout.
		r.Get("/scene/ws", h.handleSceneSession)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Get("/farcasterByAddress", h.handleProfileByAddress)
			r.Get("/farcasterByFid", h.handleProfileByFID)
			r.Get("/farcasterByUsername", h.handleProfileByUsername)
			r.Get("/farcaster-addresses", h.handleAddresses)
			r.Get("/token-owner", h.handleTokenOwner)
			r.Get("/fid", h.handleFID)

			r.Route("/collectibles", func(r chi.Router) {
				r.Get("/recent", h.handleRecentCollectibles)
				r.Get("/user", h.handleUserCollectibles)
			})

			r.Get("/scene/layout", h.handleSceneLayout)
		})
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		h.deps.Metrics.ObserveHTTPRequest(r.Method, route, ww.Status(), time.Since(start))

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorBody{Error: msg})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range h.deps.Checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		h.log.Warn().Interface("failed", failed).Msg("readiness check failed")
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false, "failed": failed})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

func (h *Handler) handleManifest(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.deps.Manifest)
}

func (h *Handler) handlePreviewImage(w http.ResponseWriter, r *http.Request) {
	if h.deps.Preview == nil {
		h.writeError(w, http.StatusNotFound, "preview image not configured")
		return
	}
	data, err := h.deps.Preview.PNG()
	if err != nil {
		h.log.Error().Err(err).Msg("render preview image failed")
		h.writeError(w, http.StatusInternalServerError, "failed to render preview image")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleSceneSession(w http.ResponseWriter, r *http.Request) {
	if h.deps.Sessions == nil {
		h.writeError(w, http.StatusServiceUnavailable, "navigation sessions not configured")
		return
	}
	h.deps.Sessions.ServeHTTP(w, r)
}
