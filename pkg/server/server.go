package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"bscwallet/pkg/errs"
	"bscwallet/pkg/events"
	"bscwallet/pkg/logger"
	"bscwallet/pkg/task"
	"bscwallet/pkg/watcher"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server exposes task state and balance checks over HTTP and a websocket feed.
// Nothing here moves funds or returns key material.
type Server struct {
	bus     *events.Bus
	tasks   *task.Manager
	watcher *watcher.Watcher
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	mux     *http.ServeMux
}

func NewServer(bus *events.Bus, tasks *task.Manager, w *watcher.Watcher) *Server {
	s := &Server{
		bus:     bus,
		tasks:   tasks,
		watcher: w,
		clients: make(map[*websocket.Conn]bool),
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleTask)
	s.mux.HandleFunc("POST /api/balances", s.handleBalances)
	s.mux.HandleFunc("/ws", s.handleWS)
}

// Start serves on port until ctx ends.
func (s *Server) Start(ctx context.Context, port int) error {
	go s.listenToBus(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.InfoCF("server", "API server listening", map[string]any{"port": port})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.ErrorCF("server", "API server failed", map[string]any{"error": err.Error()})
		return err
	}
	logger.InfoC("server", "API server stopped")
	return nil
}

func (s *Server) snapshot() map[string]any {
	data := map[string]any{
		"tasks": s.tasks.Tasks(),
		"state": map[task.Op]task.State{
			task.OpBalance:  s.tasks.State(task.OpBalance),
			task.OpGenerate: s.tasks.State(task.OpGenerate),
			task.OpSupply:   s.tasks.State(task.OpSupply),
		},
	}
	if report, ok := s.watcher.LastReport(); ok {
		data["balances"] = report
	}
	return data
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tasks.Get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}
	writeJSON(w, http.StatusOK, t.Info())
}

type balancesRequest struct {
	Addresses []string `json:"addresses"`
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	var req balancesRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	t, err := s.watcher.Refresh(req.Addresses)
	switch {
	case errors.Is(err, errs.ErrBusy):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": t.ID})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("server", "WebSocket upgrade failed", map[string]any{"remote": r.RemoteAddr, "error": err.Error()})
		return
	}
	defer func() { _ = conn.Close() }()

	s.mu.Lock()
	err = conn.WriteJSON(map[string]any{
		"type": "initial",
		"data": s.snapshot(),
	})
	if err == nil {
		s.clients[conn] = true
	}
	s.mu.Unlock()
	if err != nil {
		return
	}

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) listenToBus(ctx context.Context) {
	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub:
			if !ok {
				return
			}
			s.broadcast(event)
		}
	}
}

func (s *Server) broadcast(event events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(event); err != nil {
			logger.DebugCF("server", "Dropping WebSocket client", map[string]any{"error": err.Error()})
			_ = client.Close()
			delete(s.clients, client)
		}
	}
}
