package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"saucecnc/controller/config"
)

// lineConn is the minimal duplex line transport the connection loop
// needs; wsConn implements it, and tests can supply a fake.
type lineConn interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
}

// Listener accepts WebSocket connections carrying the SSG protocol
// and serves the persistent configuration over a plain HTTP endpoint.
type Listener struct {
	cfg      *config.MachineConfig
	upgrader websocket.Upgrader
	server   *http.Server
}

// NewListener builds a Listener bound to cfg.ListenAddr.
func NewListener(cfg *config.MachineConfig) *Listener {
	l := &Listener{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", l.handleWS)
	mux.HandleFunc("/config", l.handleConfig)
	l.server = &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	return l
}

// ListenAndServe blocks serving WebSocket and HTTP config traffic
// until the listener is closed or ctx is canceled.
func (l *Listener) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.cfg.ListenAddr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		l.server.Shutdown(shutdownCtx)
	}()
	log.Info().Str("addr", l.cfg.ListenAddr).Msg("controller listening")
	err = l.server.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (l *Listener) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(l.cfg)
}

func (l *Listener) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	go l.serveConnection(newWSConn(conn))
}

// serveConnection runs one host connection's protocol loop: service
// the transport, then periodic housekeeping, matching the spec's
// single-threaded cooperative roles (minus step-pulse ticking, which
// the Engine performs synchronously within HandleLine).
func (l *Listener) serveConnection(conn lineConn) {
	defer conn.Close()

	engine, err := New(l.cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to build engine")
		return
	}

	lines := make(chan string)
	readErrs := make(chan error, 1)
	go func() {
		for {
			line, err := conn.ReadLine()
			if err != nil {
				readErrs <- err
				return
			}
			lines <- line
		}
	}()

	telemetryTick := time.NewTicker(time.Duration(l.cfg.HeartbeatMS) * time.Millisecond)
	defer telemetryTick.Stop()

	start := time.Now()
	nowMS := func() int64 { return time.Since(start).Milliseconds() }

	for {
		select {
		case line := <-lines:
			for _, reply := range engine.HandleLine(nowMS(), line) {
				if err := conn.WriteLine(reply); err != nil {
					return
				}
			}
		case <-telemetryTick.C:
			t := engine.Telemetry()
			b, _ := json.Marshal(t)
			if err := conn.WriteLine("telemetry " + string(b)); err != nil {
				return
			}
			if hb := engine.TickHeartbeat(nowMS()); hb != nil {
				if err := conn.WriteLine(*hb); err != nil {
					return
				}
			}
		case <-readErrs:
			engine.OnDisconnect()
			return
		}
	}
}
