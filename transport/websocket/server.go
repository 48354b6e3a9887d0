package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/tictactoe-live/internal/config"
	"github.com/rocketscienceinc/tictactoe-live/internal/session"
)

// Server upgrades connections and runs one reader and one writer
// goroutine per client. Everything stateful lives in the session
// registry; the server itself only routes actions.
type Server struct {
	logger   *slog.Logger
	registry *session.Registry
	conf     config.Session
	upgrader websocket.Upgrader

	handlers map[string]func(client *Client, msg *Message) error
}

func New(logger *slog.Logger, registry *session.Registry, conf config.Session) *Server {
	server := &Server{
		logger:   logger.With("component", "websocket"),
		registry: registry,
		conf:     conf,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				// the transport boundary does its own origin policy
				return true
			},
		},
	}

	server.handlers = map[string]func(*Client, *Message) error{
		actionJoin:  server.handleJoin,
		actionTurn:  server.handleTurn,
		actionReset: server.handleReset,
	}

	return server
}

// Handler - returns the HTTP handler serving /ws upgrades.
func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", that.serveWS)

	return mux
}

// Start - starts the WebSocket server and shuts it down when the context
// is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     that.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// serveWS - upgrades the connection and hands it to a client pair of
// pumps. The reader goroutine owns the connection's lifetime.
func (that *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveWS", "remoteAddr", r.RemoteAddr)

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	log.Info("WebSocket connection established")

	client := newClient(log, that, conn)

	go client.writePump()
	go client.readPump()
}
