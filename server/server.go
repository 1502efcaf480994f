/*
 *	wscall allows two peers to call functions on each other remotely.
 *	Copyright (C) 2022 Arsen Musayelyan
 *
 *	This program is free software: you can redistribute it and/or modify
 *	it under the terms of the GNU General Public License as published by
 *	the Free Software Foundation, either version 3 of the License, or
 *	(at your option) any later version.
 *
 *	This program is distributed in the hope that it will be useful,
 *	but WITHOUT ANY WARRANTY; without even the implied warranty of
 *	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 *	GNU General Public License for more details.
 *
 *	You should have received a copy of the GNU General Public License
 *	along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.arsenm.dev/wscall/channel"
	"go.arsenm.dev/wscall/transport"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	xwebsocket "golang.org/x/net/websocket"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout is how long ServeWS waits for
// in-flight HTTP requests when its context is done
const shutdownTimeout = 5 * time.Second

// SetupFunc is called for every new channel before it starts
// handling messages. It usually registers the paths the peer
// may call. If it returns an error, the connection is closed.
type SetupFunc func(ch *channel.Channel) error

// Server accepts WebSocket connections and runs a channel on each
type Server struct {
	setup    SetupFunc
	opts     options
	upgrader websocket.Upgrader

	chsMtx sync.Mutex
	chs    map[string]*channel.Channel
}

// New creates and returns a new server
func New(setup SetupFunc, opts ...Option) *Server {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Server{
		setup: setup,
		opts:  o,
		upgrader: websocket.Upgrader{
			CheckOrigin:     o.checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		chs: map[string]*channel.Channel{},
	}
}

// Close closes every open channel
func (s *Server) Close() {
	s.chsMtx.Lock()
	chs := make([]*channel.Channel, 0, len(s.chs))
	for _, ch := range s.chs {
		chs = append(chs, ch)
	}
	s.chsMtx.Unlock()

	for _, ch := range chs {
		ch.Close()
	}
}

// Channels returns the amount of open channels
func (s *Server) Channels() int {
	s.chsMtx.Lock()
	defer s.chsMtx.Unlock()
	return len(s.chs)
}

// ServeConn runs a channel on conn until the connection
// closes or ctx is done. This may be useful if something
// other than a WebSocket needs to be used.
func (s *Server) ServeConn(ctx context.Context, conn transport.Conn) error {
	ch, err := channel.New(conn, s.opts.chOpts...)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return err
	}

	if s.setup != nil {
		if err = s.setup(ch); err != nil {
			ch.Close()
			return err
		}
	}

	s.chsMtx.Lock()
	s.chs[ch.ID()] = ch
	s.chsMtx.Unlock()

	defer func() {
		s.chsMtx.Lock()
		delete(s.chs, ch.ID())
		s.chsMtx.Unlock()
	}()

	return ch.Run(ctx)
}

// ServeHTTP upgrades the request to a WebSocket
// and serves a channel on it
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Upgrade HTTP connection to WebSocket.
	// Upgrade replies to the client on failure.
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.opts.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	s.serveLogged(r.Context(), transport.NewGorilla(conn), conn.RemoteAddr())
}

// XNetHandler returns an http.Handler that serves channels using
// golang.org/x/net/websocket instead of gorilla/websocket
func (s *Server) XNetHandler() http.Handler {
	return xwebsocket.Server{
		Handshake: func(cfg *xwebsocket.Config, r *http.Request) error {
			if s.opts.checkOrigin != nil && !s.opts.checkOrigin(r) {
				return errors.New("origin not allowed")
			}
			return nil
		},
		Handler: func(conn *xwebsocket.Conn) {
			s.serveLogged(conn.Request().Context(), transport.NewXNet(conn), conn.Request().RemoteAddr)
		},
	}
}

func (s *Server) serveLogged(ctx context.Context, conn transport.Conn, remoteAddr any) {
	log := s.opts.logger.With(zap.Any("remote_addr", remoteAddr))
	log.Info("WebSocket connection established")

	err := s.ServeConn(ctx, conn)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("WebSocket connection closed unexpectedly", zap.Error(err))
		return
	}

	log.Info("WebSocket connection closed")
}

// Serve serves WebSocket connections on ln until ctx is done
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler: s,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()

		// Hijacked connections aren't tracked by
		// the HTTP server, so close them here
		s.Close()

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(sctx)
	})

	return g.Wait()
}

// ServeWS listens on addr and serves WebSocket connections
// on it until ctx is done
func (s *Server) ServeWS(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.opts.logger.Info("Listening", zap.String("addr", ln.Addr().String()))
	return s.Serve(ctx, ln)
}
