package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

// RawPrintPort is the JetDirect raw printing port.
const RawPrintPort = 9100

// Network delivery modes.
const (
	ModeHTTP = "http"
	ModeRaw  = "raw"
)

// NetworkStrategy sends the payload to the first candidate printer address
// that accepts it.
type NetworkStrategy struct {
	candidates []string
	port       int
	mode       string
	timeout    time.Duration
	client     *http.Client
	dialer     *net.Dialer
}

// NewNetworkStrategy creates a network strategy. Candidates are hosts, or
// host:port pairs that override port.
func NewNetworkStrategy(candidates []string, port int, mode string, timeout time.Duration) *NetworkStrategy {
	if port == 0 {
		port = RawPrintPort
	}
	if mode == "" {
		mode = ModeHTTP
	}
	return &NetworkStrategy{
		candidates: candidates,
		port:       port,
		mode:       mode,
		timeout:    timeout,
		client:     &http.Client{Timeout: timeout},
		dialer:     &net.Dialer{Timeout: timeout},
	}
}

func (s *NetworkStrategy) Name() string { return NameNetwork }

func (s *NetworkStrategy) Available(context.Context) bool {
	return len(s.candidates) > 0
}

func (s *NetworkStrategy) Attempt(ctx context.Context, job Job) error {
	if len(s.candidates) == 0 {
		return Unavailable(NameNetwork, errors.New("no candidate printer addresses"))
	}

	var errs []error
	for _, candidate := range s.candidates {
		addr := s.address(candidate)

		var err error
		if s.mode == ModeRaw {
			err = s.sendRaw(ctx, addr, job.Payload)
		} else {
			err = s.sendHTTP(ctx, addr, job.Payload)
		}
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", addr, err))

		if ctx.Err() != nil {
			break
		}
	}
	return Rejected(NameNetwork, errors.Join(errs...))
}

func (s *NetworkStrategy) address(candidate string) string {
	if _, _, err := net.SplitHostPort(candidate); err == nil {
		return candidate
	}
	return net.JoinHostPort(candidate, strconv.Itoa(s.port))
}

func (s *NetworkStrategy) sendHTTP(ctx context.Context, addr string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+addr+"/", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}

func (s *NetworkStrategy) sendRaw(ctx context.Context, addr string, payload []byte) error {
	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if s.timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.timeout))
	}
	if _, err := conn.Write(payload); err != nil {
		return err
	}
	return nil
}
