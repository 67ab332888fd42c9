package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tavernkeep/rules-server-go/internal/config"
	"github.com/tavernkeep/rules-server-go/internal/game"
	"github.com/tavernkeep/rules-server-go/internal/game/events"
)

// Server is the read-only inspection surface: REST endpoints for
// creature and event snapshots, plus a WebSocket feed streaming every
// event revision as it registers.
type Server struct {
	cfg    config.ServerConfig
	engine *game.Engine
	logger *zap.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	send chan events.Event
}

// New creates the server and subscribes the feed to the engine's event
// queue.
func New(cfg config.ServerConfig, engine *game.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:    cfg,
		engine: engine,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		subscribers: make(map[*subscriber]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/creatures", s.handleCreatures)
	mux.HandleFunc("GET /v1/creatures/{id}", s.handleCreature)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.HandleFunc("GET /v1/events/{id}", s.handleEvent)
	mux.HandleFunc("GET /v1/feed", s.handleFeed)

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	s.attachFeed()
	return s
}

// attachFeed registers a broadcast listener for every phase, so the
// feed observes each revision exactly once.
func (s *Server) attachFeed() {
	q := s.engine.World().Queue
	broadcast := func(evt events.Event, _ uuid.UUID) *events.Event {
		s.broadcast(evt)
		return &evt
	}
	for _, phase := range []events.Phase{
		events.PhaseDeclaration,
		events.PhaseExecution,
		events.PhaseEffect,
		events.PhaseCompletion,
		events.PhaseCancel,
	} {
		q.AddListener("", phase, uuid.Nil, broadcast)
	}
}

// ListenAndServe blocks serving HTTP until Shutdown or failure.
func (s *Server) ListenAndServe() error {
	s.logger.Info("inspection server listening", zap.String("address", s.cfg.Address))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server and closes every feed subscriber.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for sub := range s.subscribers {
		close(sub.send)
		delete(s.subscribers, sub)
	}
	s.mu.Unlock()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreatures(w http.ResponseWriter, _ *http.Request) {
	creatures := s.engine.World().Creatures()
	out := make([]game.CreatureSnapshot, 0, len(creatures))
	for _, c := range creatures {
		out = append(out, c.Snapshot())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreature(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid creature id")
		return
	}
	c, ok := s.engine.World().Creature(id)
	if !ok {
		writeError(w, http.StatusNotFound, "creature not found")
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := s.engine.World().Queue
	var out []events.Event
	switch {
	case r.URL.Query().Get("type") != "":
		out = q.EventsByType(events.EventType(r.URL.Query().Get("type")))
	case r.URL.Query().Get("phase") != "":
		out = q.EventsByPhase(events.Phase(r.URL.Query().Get("phase")))
	default:
		out = q.All()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	q := s.engine.World().Queue
	evt, ok := q.GetEventByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Event   events.Event   `json:"event"`
		History []events.Event `json:"history"`
	}{evt, q.GetEventHistory(evt.LineageID)})
}

// handleFeed upgrades to WebSocket and streams event revisions until
// the client disconnects or falls behind the buffer.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := &subscriber{conn: conn, send: make(chan events.Event, s.cfg.FeedBuffer)}
	s.mu.Lock()
	s.subscribers[sub] = struct{}{}
	s.mu.Unlock()
	s.logger.Debug("feed subscriber connected", zap.String("remote", conn.RemoteAddr().String()))

	go s.writeLoop(sub)
	s.readLoop(sub)
}

// readLoop consumes (and discards) client frames so pings and close
// frames are processed; returning unsubscribes.
func (s *Server) readLoop(sub *subscriber) {
	defer s.drop(sub)
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(sub *subscriber) {
	for evt := range sub.send {
		if err := sub.conn.WriteJSON(evt); err != nil {
			s.drop(sub)
			return
		}
	}
	sub.conn.Close()
}

func (s *Server) broadcast(evt events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subscribers {
		select {
		case sub.send <- evt:
		default:
			s.logger.Warn("feed subscriber too slow, dropping",
				zap.String("remote", sub.conn.RemoteAddr().String()),
			)
			close(sub.send)
			delete(s.subscribers, sub)
		}
	}
}

// drop unsubscribes and closes one subscriber.
func (s *Server) drop(sub *subscriber) {
	s.mu.Lock()
	if _, ok := s.subscribers[sub]; ok {
		close(sub.send)
		delete(s.subscribers, sub)
	}
	s.mu.Unlock()
	sub.conn.Close()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
