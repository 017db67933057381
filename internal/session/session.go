// Package session runs one navigation session per WebSocket connection: a
// private store, camera controller and frame runner whose output is
// streamed to the client.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"fc_explorer/core-go/internal/cache"
	"fc_explorer/core-go/internal/collectibles"
	"fc_explorer/core-go/internal/metrics"
	"fc_explorer/core-go/internal/navigation"
	"fc_explorer/core-go/internal/store"
)

// LoaderFunc picks the item loader for a new connection, typically a
// collectibles.Viewer bound to the wallets named in the request.
type LoaderFunc func(r *http.Request) store.Loader

type Options struct {
	Tuning navigation.Tuning
	// Flags persists per-client onboarding state.
	Flags        cache.Backend
	PongWait     time.Duration
	PingInterval time.Duration
	WriteWait    time.Duration
	SendQueue    int
	// CheckOrigin defaults to allowing every origin.
	CheckOrigin func(r *http.Request) bool
}

type Handler struct {
	log       zerolog.Logger
	loaderFor LoaderFunc
	opts      Options
	metrics   *metrics.Metrics
	upgrader  websocket.Upgrader
	wg        sync.WaitGroup
}

func NewHandler(log zerolog.Logger, loaderFor LoaderFunc, opts Options, m *metrics.Metrics) *Handler {
	if opts.Tuning == (navigation.Tuning{}) {
		opts.Tuning = navigation.DefaultTuning()
	}
	if opts.Flags == nil {
		opts.Flags = cache.NewMemory()
	}
	if opts.PongWait <= 0 {
		opts.PongWait = 60 * time.Second
	}
	if opts.PingInterval <= 0 || opts.PingInterval >= opts.PongWait {
		opts.PingInterval = opts.PongWait * 9 / 10
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = 10 * time.Second
	}
	if opts.SendQueue <= 0 {
		opts.SendQueue = 256
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		log:       log,
		loaderFor: loaderFor,
		opts:      opts,
		metrics:   m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Wait blocks until every session served by h has torn down.
func (h *Handler) Wait() { h.wg.Wait() }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.wg.Add(1)
	defer h.wg.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	var loader store.Loader
	if h.loaderFor != nil {
		loader = h.loaderFor(r)
	}
	id := uuid.NewString()
	key := cache.OnboardingKey + ":" + id
	if client := strings.TrimSpace(r.URL.Query().Get("client")); client != "" {
		key = cache.OnboardingKey + ":" + client
	}

	s := &session{
		id:   id,
		log:  h.log.With().Str("session_id", id).Logger(),
		conn: conn,
		opts: h.opts,
		out:  make(chan []byte, h.opts.SendQueue),
		done: make(chan struct{}),
	}
	s.store = store.New(s.log, loader, store.Options{Flags: h.opts.Flags, OnboardingKey: key})
	s.ctrl = navigation.NewController(s.store, h.opts.Tuning)
	s.runner = navigation.NewRunner(s.ctrl, h.opts.Tuning.FrameInterval(), s.publishFrame)

	h.metrics.SessionOpened()
	defer h.metrics.SessionClosed()
	s.run(r.Context())
}

type session struct {
	id   string
	log  zerolog.Logger
	conn *websocket.Conn
	opts Options

	store  *store.Store
	ctrl   *navigation.Controller
	runner *navigation.Runner

	out  chan []byte
	done chan struct{}
	// fetches tracks loader calls running off the reader goroutine.
	fetches sync.WaitGroup
	// lastFrame is only touched on the runner goroutine.
	lastFrame navigation.Frame
}

func (s *session) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.writeLoop()
	}()
	go func() {
		defer wg.Done()
		s.runner.Run(ctx)
	}()
	unsubscribe := s.store.Subscribe(s.onChange)

	s.send(MsgHello, Hello{
		SessionID:      s.id,
		OnboardingSeen: s.store.OnboardingSeen(ctx),
		FrameRate:      s.opts.Tuning.FrameRate,
	})
	s.selectPath(ctx, collectibles.PathRecent)

	s.readLoop(ctx)

	cancel()
	s.fetches.Wait()
	s.runner.Stop()
	<-s.runner.Done()
	unsubscribe()
	close(s.done)
	wg.Wait()
	_ = s.conn.Close()
	s.log.Debug().Msg("navigation session closed")
}

func (s *session) readLoop(ctx context.Context) {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError("invalid message: " + err.Error())
			continue
		}
		s.handle(ctx, msg)
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *session) writeLoop() {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	defer s.conn.Close()

	for {
		select {
		case b := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				s.log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			deadline := time.Now().Add(s.opts.WriteWait)
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
	}
}

// send queues a message without blocking; it is dropped when the client
// has fallen behind.
func (s *session) send(typ string, data any) {
	b, err := encode(typ, data)
	if err != nil {
		s.log.Error().Err(err).Str("type", typ).Msg("encode session message")
		return
	}
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.out <- b:
	default:
		s.log.Debug().Str("type", typ).Msg("session send queue full; message dropped")
	}
}

func (s *session) sendError(msg string) {
	s.send(MsgError, ErrorPayload{Error: msg})
}

func (s *session) publishFrame(f navigation.Frame) {
	if f == s.lastFrame {
		return
	}
	s.lastFrame = f
	s.send(MsgFrame, f)
}

// onChange runs on whichever goroutine mutated the store: the reader for
// selection changes, a fetch goroutine for item changes.
func (s *session) onChange(c store.Change) {
	switch c.Field {
	case store.FieldItems:
		snap := s.store.Snapshot()
		items := snap.Items()
		positions := navigation.SpiralLayout(len(items))
		s.runner.Do(func(ctrl *navigation.Controller) { ctrl.SetPositions(positions) })
		s.send(MsgItems, ItemsPayload{
			Path:          snap.Path,
			Items:         items,
			Positions:     positions,
			UsingFallback: snap.UsingFallback,
			HasMore:       snap.Path == collectibles.PathRecent && snap.RecentCursor != "",
		})
	case store.FieldSelection:
		s.send(MsgSelected, s.store.Selected())
	}
}

// fetch runs fn on its own goroutine so navigation input keeps flowing
// while the loader is busy. Superseded path fetches are dropped by the store.
// Only the reader goroutine calls fetch.
func (s *session) fetch(ctx context.Context, fn func(ctx context.Context)) {
	s.fetches.Add(1)
	go func() {
		defer s.fetches.Done()
		fn(ctx)
	}()
}

func (s *session) selectPath(ctx context.Context, p collectibles.Path) {
	s.fetch(ctx, func(ctx context.Context) {
		if err := s.store.SelectPath(ctx, p); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Info().Err(err).Str("path", string(p)).Msg("serving placeholder items")
		}
		pathMode := s.opts.Tuning.DefaultPathMode
		s.runner.Do(func(c *navigation.Controller) { c.SetPathMode(pathMode) })
	})
}

func (s *session) handle(ctx context.Context, msg Inbound) {
	switch msg.Type {
	case MsgSelectPath:
		p, err := collectibles.ParsePath(msg.Path)
		if err != nil {
			s.sendError(err.Error())
			return
		}
		s.selectPath(ctx, p)
	case MsgKeyDown:
		s.runner.Do(func(c *navigation.Controller) { c.KeyDown(msg.Key) })
	case MsgKeyUp:
		s.runner.Do(func(c *navigation.Controller) { c.KeyUp(msg.Key) })
	case MsgPress:
		s.runner.Do(func(c *navigation.Controller) { c.Press(msg.Forward) })
	case MsgWheel:
		s.runner.Do(func(c *navigation.Controller) { c.Wheel(msg.DeltaY) })
	case MsgSwipe:
		s.runner.Do(func(c *navigation.Controller) { c.Swipe(msg.Start[0], msg.Start[1], msg.End[0], msg.End[1]) })
	case MsgGoTo:
		s.runner.Do(func(c *navigation.Controller) { c.GoToIndex(msg.Index) })
	case MsgAutoAdvance:
		s.runner.Do(func(c *navigation.Controller) { c.SetAutoAdvance(msg.On) })
	case MsgPathMode:
		s.runner.Do(func(c *navigation.Controller) { c.SetPathMode(msg.On) })
	case MsgOrbit:
		s.runner.Do(func(c *navigation.Controller) { c.Orbit(msg.DX, msg.DY) })
	case MsgPan:
		s.runner.Do(func(c *navigation.Controller) { c.Pan(msg.DX, msg.DY) })
	case MsgZoom:
		s.runner.Do(func(c *navigation.Controller) { c.Zoom(msg.Scale) })
	case MsgSelectItem:
		if msg.ID == "" {
			s.store.SetSelected(nil)
			s.store.SetHologram(false)
			return
		}
		if !s.store.SelectByID(msg.ID) {
			s.sendError("unknown item " + msg.ID)
			return
		}
		s.store.SetHologram(true)
	case MsgLoadMore:
		s.fetch(ctx, func(ctx context.Context) {
			if _, err := s.store.LoadMore(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("load more failed")
				s.sendError("could not load more items")
			}
		})
	case MsgDismissOnboarding:
		if err := s.store.DismissOnboarding(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn().Err(err).Msg("dismiss onboarding failed")
		}
	default:
		s.sendError("unknown message type " + msg.Type)
	}
}
