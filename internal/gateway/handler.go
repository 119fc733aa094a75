// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/holomush/eventhub/internal/hub"
	"github.com/holomush/eventhub/internal/logging"
	"github.com/holomush/eventhub/internal/wire"
)

// actionUnknown labels commands rejected before their action is known or
// whose action is not one of the known actions.
const actionUnknown = "unknown"

// session runs the reader and writer tasks of one client connection.
type session struct {
	srv  *Server
	ws   *websocket.Conn
	conn *hub.Conn
}

func newSession(srv *Server, ws *websocket.Conn, conn *hub.Conn) *session {
	return &session{srv: srv, ws: ws, conn: conn}
}

// run blocks until the client goes away or the hub closes the connection.
func (s *session) run(ctx context.Context) {
	id := s.conn.ID()
	ctx = logging.WithConnID(ctx, id.String())
	slog.InfoContext(ctx, "client connected", "remote", s.ws.RemoteAddr().String())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx)
	}()

	s.readLoop(ctx)

	s.srv.hub.Disconnect(id)
	<-writerDone
	_ = s.ws.Close()
	s.srv.limiter.Forget(id)

	slog.InfoContext(ctx, "client disconnected")
}

// readLoop applies commands in arrival order until the transport fails or the
// connection stays silent past the idle timeout.
func (s *session) readLoop(ctx context.Context) {
	idle := s.srv.cfg.IdleTimeout
	s.ws.SetReadLimit(MaxFrameSize)
	_ = s.ws.SetReadDeadline(time.Now().Add(idle))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(idle))
	})

	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.DebugContext(ctx, "client read failed", "error", err)
			}
			return
		}
		_ = s.ws.SetReadDeadline(time.Now().Add(idle))

		if allowed, cooldownMs := s.srv.limiter.Allow(s.conn.ID()); !allowed {
			s.conn.Reject(actionUnknown, wire.ErrRateLimited(cooldownMs))
			continue
		}

		cmd, err := wire.ParseCommand(data)
		if err != nil {
			action := wire.ActionOf(data)
			if action == "" {
				action = actionUnknown
			}
			slog.DebugContext(ctx, "rejecting command", "action", action, "error", err)
			s.conn.Reject(action, err)
			continue
		}
		s.conn.Apply(ctx, cmd)
	}
}

// writeLoop drains the outbox and keeps the link alive with pings. It closes
// the socket on return so a blocked reader wakes up.
func (s *session) writeLoop(ctx context.Context) {
	wait := s.srv.cfg.WriteWait
	ticker := time.NewTicker(s.srv.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-s.conn.Outbox():
			_ = s.ws.SetWriteDeadline(time.Now().Add(wait))
			if !ok {
				_ = s.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := s.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				slog.DebugContext(ctx, "client write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = s.ws.SetWriteDeadline(time.Now().Add(wait))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
