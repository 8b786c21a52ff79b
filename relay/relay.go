// Package relay exposes a locally attached printer on the network, so that
// the network strategy of another machine can reach it on port 9100.
package relay

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nixxel-company-limited/escpos-receipt-printer/adapter"
	"github.com/nixxel-company-limited/escpos-receipt-printer/logger"
)

// ErrAlreadyRunning is returned by Start on a running relay.
var ErrAlreadyRunning = errors.New("relay already running")

// Server forwards bytes received over TCP to a printer adapter. A client may
// stream raw ESC/POS or send a single HTTP POST whose body is the payload.
type Server struct {
	adapter  adapter.Adapter
	listener net.Listener
	address  string
	mu       sync.Mutex
	writeMu  sync.Mutex
	running  bool
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	log      *logger.Logger
}

// New creates a relay for device listening on address.
func New(device adapter.Adapter, address string, log *logger.Logger) *Server {
	return &Server{
		adapter: device,
		address: address,
		conns:   make(map[net.Conn]struct{}),
		log:     logger.OrNop(log).WithComponent("relay"),
	}
}

// Start listens and blocks until Stop is called.
func (s *Server) Start() error {
	if err := s.listen(); err != nil {
		return err
	}
	s.wg.Add(1)
	s.acceptConnections()
	return nil
}

// StartAsync listens and accepts connections in the background.
func (s *Server) StartAsync() error {
	if err := s.listen(); err != nil {
		return err
	}
	s.wg.Add(1)
	go s.acceptConnections()
	return nil
}

func (s *Server) listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		s.log.Errorw("failed to listen", "address", s.address, "error", err)
		return fmt.Errorf("failed to start relay: %w", err)
	}

	if !s.adapter.IsOpen() {
		if err := s.adapter.Open(); err != nil {
			listener.Close()
			s.log.Errorw("failed to open printer", "error", err)
			return fmt.Errorf("failed to open adapter: %w", err)
		}
		s.log.Infow("printer opened")
	}

	s.listener = listener
	s.running = true
	s.log.Infow("relay listening", "address", listener.Addr().String())
	return nil
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.IsRunning() {
				return
			}
			s.log.Warnw("accept failed", "error", err)
			continue
		}

		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	client := conn.RemoteAddr().String()
	log := s.log.With("client", client)
	log.Debugw("client connected")

	r := bufio.NewReader(conn)
	if isHTTP(conn, r) {
		s.handleHTTP(conn, r, log)
		return
	}

	buf := make([]byte, 4096)
	total := 0
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := s.write(buf[:n]); werr != nil {
				log.Errorw("printer write failed", "error", werr)
				return
			}
			total += n
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warnw("read failed", "error", err)
			}
			log.Infow("raw job relayed", "bytes", total)
			return
		}
	}
}

var httpPrefix = []byte("POST ")

// httpSniffTimeout bounds the wait for the rest of "POST " when the first
// read delivered only part of it.
const httpSniffTimeout = 200 * time.Millisecond

// isHTTP decides from the first bytes whether the client speaks HTTP. Raw
// clients that send a byte at a time are only held up when those bytes are a
// prefix of "POST ".
func isHTTP(conn net.Conn, r *bufio.Reader) bool {
	if _, err := r.Peek(1); err != nil {
		return false
	}
	n := r.Buffered()
	if n < len(httpPrefix) {
		head, _ := r.Peek(n)
		if !bytes.HasPrefix(httpPrefix, head) {
			return false
		}
		_ = conn.SetReadDeadline(time.Now().Add(httpSniffTimeout))
		defer conn.SetReadDeadline(time.Time{})
	}
	head, err := r.Peek(len(httpPrefix))
	return err == nil && bytes.Equal(head, httpPrefix)
}

func (s *Server) handleHTTP(conn net.Conn, r *bufio.Reader, log *logger.Logger) {
	req, err := http.ReadRequest(r)
	if err != nil {
		log.Warnw("malformed request", "error", err)
		respond(conn, http.StatusBadRequest)
		return
	}
	defer req.Body.Close()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		log.Warnw("read body failed", "error", err)
		respond(conn, http.StatusBadRequest)
		return
	}

	if err := s.write(body); err != nil {
		log.Errorw("printer write failed", "error", err)
		respond(conn, http.StatusBadGateway)
		return
	}
	log.Infow("http job relayed", "bytes", len(body))
	respond(conn, http.StatusOK)
}

func respond(w io.Writer, status int) {
	fmt.Fprintf(w, "HTTP/1.1 %d %s\r\nContent-Length: 0\r\nConnection: close\r\n\r\n", status, http.StatusText(status))
}

// write serializes device access across connections.
func (s *Server) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	n, err := s.adapter.Write(data)
	if err != nil {
		return err
	}
	if n < len(data) {
		return io.ErrShortWrite
	}
	return nil
}

// Stop closes the listener, waits for open connections and closes the
// adapter. Stopping a stopped relay is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	listener := s.listener
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	listener.Close()
	s.wg.Wait()

	if s.adapter.IsOpen() {
		if err := s.adapter.Close(); err != nil {
			s.log.Errorw("failed to close printer", "error", err)
			return err
		}
	}
	s.log.Infow("relay stopped")
	return nil
}

// IsRunning returns whether the relay is accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.address
}

// Addr returns the bound address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
