// Package server wires the listener, worker pool, admission layer, and
// request dispatch into one serving process.
package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dev-harsh1998/irondrop/internal/admission"
	"github.com/dev-harsh1998/irondrop/internal/config"
	"github.com/dev-harsh1998/irondrop/internal/discovery"
	"github.com/dev-harsh1998/irondrop/internal/httpcore"
	"github.com/dev-harsh1998/irondrop/internal/logging"
	"github.com/dev-harsh1998/irondrop/internal/metrics"
	"github.com/dev-harsh1998/irondrop/internal/pathutil"
	"github.com/dev-harsh1998/irondrop/internal/pool"
	"github.com/dev-harsh1998/irondrop/internal/search"
	"github.com/dev-harsh1998/irondrop/internal/stats"
	"github.com/dev-harsh1998/irondrop/internal/templates"
)

// Version is reported by the CLI's --version flag and the health and status
// payloads; the Server header carries no version.
const Version = "2.1.0"

// Maintenance cadence for the admission sweeps.
const sweepInterval = 5 * time.Minute

// Server owns one listening socket and one served root.
type Server struct {
	cfg  *config.Config
	root string // canonical served root

	stats     *stats.Stats
	limiter   *admission.Limiter
	bandwidth *admission.Bandwidth
	engine    *search.Engine
	renderer  templates.Renderer
	workers   *pool.Pool

	listener   net.Listener
	advertiser *discovery.Advertiser

	bg       *errgroup.Group
	bgCancel context.CancelFunc
}

// New resolves the served root and assembles a server. Collaborators are
// explicit so integration tests can run several instances in one process.
func New(cfg *config.Config) (*Server, error) {
	root, err := pathutil.CanonicalRoot(cfg.Directory)
	if err != nil {
		return nil, fmt.Errorf("served root: %w", err)
	}

	return &Server{
		cfg:       cfg,
		root:      root,
		stats:     stats.New(),
		limiter:   admission.NewLimiter(cfg.RequestsPerMinute, cfg.MaxConcurrentPerIP),
		bandwidth: admission.NewBandwidth(cfg.RateLimitMbps),
		engine:    search.NewEngine(root, search.Options{}),
		renderer:  templates.NewEmbedded(),
	}, nil
}

// SetRenderer swaps the template collaborator (test fixture injection).
func (s *Server) SetRenderer(r templates.Renderer) {
	s.renderer = r
}

// Addr returns the bound address, valid after Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the socket, spins up the worker pool, and launches the accept
// loop plus background maintenance. It returns the serving URL.
func (s *Server) Start() (string, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Listen, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("bind %s: %w", addr, err)
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		_ = ln.Close()
		return "", fmt.Errorf("expected TCP listener")
	}
	s.listener = tcpKeepAliveListener{tcpLn}

	s.workers = pool.New(s.cfg.Threads, s.cfg.Threads*2)

	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel
	s.bg, ctx = errgroup.WithContext(ctx)

	// Background thread: periodic index rebuild plus admission sweeps.
	s.bg.Go(func() error {
		return s.engine.RunRebuilder(ctx)
	})
	s.bg.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.limiter.Sweep()
				s.bandwidth.Sweep()
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	go s.acceptLoop()

	if adv, err := discovery.Advertise(
		fmt.Sprintf("irondrop-%d", s.listener.Addr().(*net.TCPAddr).Port),
		"/", s.listener.Addr().(*net.TCPAddr).IP,
		s.listener.Addr().(*net.TCPAddr).Port,
	); err != nil {
		logging.Debug("mDNS advertise failed", zap.Error(err))
	} else {
		s.advertiser = adv
	}

	logging.Info("serving",
		zap.String("root", s.root),
		zap.String("addr", s.listener.Addr().String()),
		zap.Int("threads", s.cfg.Threads),
		zap.Bool("uploads", s.cfg.EnableUpload))

	return fmt.Sprintf("http://%s/", s.listener.Addr().String()), nil
}

// acceptLoop hands each connection to the pool. Submit blocks when the
// queue is full, which is the backpressure toward the kernel accept queue.
func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Listener closed on shutdown.
			return
		}
		s.workers.Submit(func() {
			s.handleConn(conn)
		})
	}
}

// handleConn runs one full transaction: admission, parse, dispatch,
// respond, close.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	_ = conn.SetWriteDeadline(time.Now().Add(httpcore.WriteTimeout))

	bw := bufio.NewWriter(conn)
	defer bw.Flush()

	ip := remoteIP(conn)
	guard, rejection := s.limiter.TryAdmit(ip)
	if rejection != nil {
		metrics.RecordAdmissionRejection(rejection.Reason)
		rw := httpcore.NewResponseWriter(bw, "")
		rw.SetHeader("Retry-After", fmt.Sprintf("%d", rejection.RetryAfter))
		s.renderError(rw, nil, 429, "too many requests")
		return
	}
	defer guard.Release()

	br := bufio.NewReader(conn)
	req, err := httpcore.ParseRequest(conn, br, httpcore.ParseOptions{
		SpoolDir:     s.spoolDir(),
		MaxBodyBytes: s.cfg.MaxUploadBytes(),
	})
	if err != nil {
		rw := httpcore.NewResponseWriter(bw, "")
		s.stats.RecordRequest()
		s.respondError(rw, nil, err)
		s.stats.RecordOutcome(rw.Status())
		s.stats.AddResponseBytes(rw.BodyBytes())
		return
	}
	defer req.Close()

	rw := httpcore.NewResponseWriter(bw, req.Version)
	s.dispatch(rw, req)
}

// spoolDir keeps large-body spool files on the same filesystem as the
// upload commit target when uploads are enabled.
func (s *Server) spoolDir() string {
	if s.cfg.EnableUpload {
		return s.cfg.EffectiveUploadDir()
	}
	return ""
}

func remoteIP(conn net.Conn) string {
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP.String()
	}
	return conn.RemoteAddr().String()
}

// Shutdown closes the listener, drains the worker pool, and stops
// background maintenance.
func (s *Server) Shutdown() error {
	if s.advertiser != nil {
		s.advertiser.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.workers != nil {
		s.workers.Shutdown()
	}
	if s.bgCancel != nil {
		s.bgCancel()
		_ = s.bg.Wait()
	}
	logging.Sync()
	return nil
}

// tcpKeepAliveListener enables keepalive and disables Nagle on accepted
// connections.
type tcpKeepAliveListener struct {
	*net.TCPListener
}

func (ln tcpKeepAliveListener) Accept() (net.Conn, error) {
	tc, err := ln.AcceptTCP()
	if err != nil {
		return nil, err
	}
	_ = tc.SetKeepAlive(true)
	_ = tc.SetKeepAlivePeriod(3 * time.Minute)
	_ = tc.SetNoDelay(true)
	return tc, nil
}
