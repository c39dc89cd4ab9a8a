package embedhttp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yourusername/embedhttp/internal/nettune"
	"github.com/yourusername/embedhttp/internal/reqres"
	"github.com/yourusername/embedhttp/internal/tlsio"
	"github.com/yourusername/embedhttp/internal/worker"
)

// acceptedConn is one socket handed from a listener's accept loop to the
// shared worker pool queue.
type acceptedConn struct {
	conn net.Conn
	info reqres.ConnInfo
}

// connRecord tracks one live connection so Shutdown can interrupt it
// immediately while it is idle between requests, per spec §4.K plus the
// graceful half-close supplement.
type connRecord struct {
	conn net.Conn
	idle atomic.Bool
}

// Server accepts connections on one or more listeners and dispatches them
// to a fixed pool of worker goroutines, modeled on the teacher's
// ShockwaveServer.Serve/handleConnection accept loop.
type Server struct {
	cfg    Config
	worker *worker.Worker
	logger *zap.Logger

	queue chan acceptedConn

	listeners []net.Listener

	connsMu sync.Mutex
	conns   map[net.Conn]*connRecord

	wg           sync.WaitGroup
	shuttingDown atomic.Bool
	done         chan struct{}
}

// New validates cfg and returns a Server ready to Start.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		logger: buildLogger(&cfg, nil),
		queue:  make(chan acceptedConn, cfg.QueueBound),
		conns:  make(map[net.Conn]*connRecord),
		done:   make(chan struct{}),
	}

	wcfg := cfg.workerConfig()
	wcfg.Instrumenter = newLoggingInstrumenter(s.logger, cfg.Instrumenter)
	wcfg.OnIdleChange = s.onIdleChange
	s.worker = worker.New(wcfg, cfg.Handler)

	return s, nil
}

// Start binds every configured listener, launches the fixed worker pool,
// and returns once all listeners are accepting. It returns the first bind
// error encountered, having closed any listeners already opened.
func (s *Server) Start() error {
	for _, lc := range s.cfg.Listeners {
		ln, err := net.Listen("tcp", lc.Addr)
		if err != nil {
			s.closeListeners()
			return fmt.Errorf("embedhttp: listen on %s: %w", lc.Addr, err)
		}
		if !s.cfg.DisableSocketTuning {
			if err := nettune.ApplyListener(ln, s.cfg.SocketTuning); err != nil {
				s.logger.Warn("socket tuning failed on listener", zap.String("addr", lc.Addr), zap.Error(err))
			}
		}
		if lc.TLS != nil {
			ln = newTLSListener(ln, lc.TLS.TLSConfig())
		}
		s.listeners = append(s.listeners, ln)
	}

	for i := 0; i < s.cfg.NumWorkerThreads; i++ {
		s.wg.Add(1)
		go s.runWorkerLoop()
	}

	var limiter *rate.Limiter
	if s.cfg.MaxAcceptsPerSecond > 0 {
		burst := int(s.cfg.MaxAcceptsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(s.cfg.MaxAcceptsPerSecond), burst)
	}

	for _, ln := range s.listeners {
		s.wg.Add(1)
		go s.acceptLoop(ln, limiter)
	}

	return nil
}

func (s *Server) closeListeners() {
	for _, ln := range s.listeners {
		ln.Close()
	}
	s.listeners = nil
}

// acceptLoop is the dedicated accept goroutine for one listener (spec §5:
// "a dedicated accept thread per listener feeds the pool").
func (s *Server) acceptLoop(ln net.Listener, limiter *rate.Limiter) {
	defer s.wg.Done()
	s.logger.Debug("listener started", zap.String("addr", ln.Addr().String()))

	for {
		if limiter != nil {
			if err := limiter.Wait(context.Background()); err != nil {
				return
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			if s.shuttingDown.Load() {
				s.logger.Debug("listener stopped", zap.String("addr", ln.Addr().String()))
				return
			}
			s.logger.Error("accept failed", zap.String("addr", ln.Addr().String()), zap.Error(err))
			continue
		}
		if !s.cfg.DisableSocketTuning {
			_ = nettune.Apply(conn, s.cfg.SocketTuning)
		}

		select {
		case s.queue <- acceptedConn{conn: conn, info: s.connInfo(conn, ln)}:
		case <-s.done:
			conn.Close()
			return
		}
	}
}

func (s *Server) connInfo(conn net.Conn, ln net.Listener) reqres.ConnInfo {
	scheme := "http"
	if _, ok := conn.(*tlsio.Conn); ok {
		scheme = "https"
	}
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	var port int
	fmt.Sscanf(portStr, "%d", &port)
	return reqres.ConnInfo{
		RemoteAddr:     conn.RemoteAddr().String(),
		LocalPort:      port,
		Scheme:         scheme,
		DefaultCharset: s.cfg.DefaultCharset,
	}
}

// runWorkerLoop is one long-lived pool goroutine: it owns connections
// sequentially for its lifetime, the fixed thread pool spec §4.K names.
func (s *Server) runWorkerLoop() {
	defer s.wg.Done()
	for {
		select {
		case ac, ok := <-s.queue:
			if !ok {
				return
			}
			s.serveTracked(ac)
		case <-s.done:
			return
		}
	}
}

func (s *Server) serveTracked(ac acceptedConn) {
	rec := &connRecord{conn: ac.conn}
	s.connsMu.Lock()
	s.conns[ac.conn] = rec
	s.connsMu.Unlock()
	defer func() {
		s.connsMu.Lock()
		delete(s.conns, ac.conn)
		s.connsMu.Unlock()
	}()

	if tc, ok := ac.conn.(*tlsio.Conn); ok {
		ctx := context.Background()
		if s.cfg.InitialReadTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.InitialReadTimeout)
			defer cancel()
		}
		if err := tc.Handshake(ctx); err != nil {
			s.logger.Warn("tls handshake failed", zap.String("remote_addr", ac.info.RemoteAddr), zap.Error(err))
			ac.conn.Close()
			return
		}
	}

	s.worker.Serve(ac.conn, ac.info)
}

// onIdleChange implements worker.Config.OnIdleChange: it closes conn
// immediately if shutdown is already underway when the worker goes idle,
// the graceful half-close mechanism from SPEC_FULL.md §3.
func (s *Server) onIdleChange(conn net.Conn, idle bool) {
	s.connsMu.Lock()
	rec := s.conns[conn]
	s.connsMu.Unlock()
	if rec == nil {
		return
	}
	rec.idle.Store(idle)
	if idle && s.shuttingDown.Load() {
		conn.Close()
	}
}

// Shutdown stops accepting new connections, closes every listener, wakes
// idle connections immediately, and waits up to ctx's deadline (or
// cfg.ShutdownDuration if ctx carries none) for in-flight requests to
// finish before force-closing whatever remains. Idempotent.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.shuttingDown.CompareAndSwap(false, true) {
		return nil
	}

	s.closeListeners()
	close(s.done)
	s.drainQueue()

	s.closeIdleConnections()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.cfg.ShutdownDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownDuration)
		defer cancel()
	}

	complete := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(complete)
	}()

	select {
	case <-complete:
		return nil
	case <-ctx.Done():
		s.closeAllConnections()
		<-complete
		return ctx.Err()
	}
}

// Close immediately closes the server and every active connection,
// without waiting for in-flight requests to finish. Idempotent.
func (s *Server) Close() error {
	if !s.shuttingDown.CompareAndSwap(false, true) {
		return nil
	}
	s.closeListeners()
	close(s.done)
	s.drainQueue()
	s.closeAllConnections()
	s.wg.Wait()
	return nil
}

// drainQueue closes any socket still sitting in the pool queue once the
// accept loops have stopped feeding it, so a race between Shutdown and an
// in-flight accept never leaks a file descriptor.
func (s *Server) drainQueue() {
	for {
		select {
		case ac := <-s.queue:
			ac.conn.Close()
		default:
			return
		}
	}
}

func (s *Server) closeIdleConnections() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn, rec := range s.conns {
		if rec.idle.Load() {
			conn.Close()
		}
	}
}

func (s *Server) closeAllConnections() {
	s.connsMu.Lock()
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.connsMu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

// ListenAndServe is a convenience wrapper: it calls Start and then blocks
// until ctx is cancelled, at which point it calls Shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Shutdown(context.Background())
}
