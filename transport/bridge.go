package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Hook is a host print command. The payload is written to its stdin.
type Hook struct {
	Name    string
	Command []string
}

// DefaultHooks are the raw-print commands of CUPS and BSD lpr.
var DefaultHooks = []Hook{
	{Name: "cups", Command: []string{"lp", "-o", "raw"}},
	{Name: "lpr", Command: []string{"lpr", "-l"}},
}

// BridgeStrategy hands the payload to a print hook provided by the host.
type BridgeStrategy struct {
	hooks    []Hook
	lookPath func(file string) (string, error)
	run      func(ctx context.Context, path string, args []string, stdin []byte) error
}

// NewBridgeStrategy creates a bridge strategy over hooks, tried in order.
func NewBridgeStrategy(hooks []Hook) *BridgeStrategy {
	return &BridgeStrategy{
		hooks:    hooks,
		lookPath: exec.LookPath,
		run:      runHook,
	}
}

func (s *BridgeStrategy) Name() string { return NameBridge }

// Available reports whether at least one hook executable is installed.
func (s *BridgeStrategy) Available(context.Context) bool {
	for _, h := range s.hooks {
		if _, ok := s.resolve(h); ok {
			return true
		}
	}
	return false
}

func (s *BridgeStrategy) resolve(h Hook) (string, bool) {
	if len(h.Command) == 0 {
		return "", false
	}
	path, err := s.lookPath(h.Command[0])
	return path, err == nil
}

func (s *BridgeStrategy) Attempt(ctx context.Context, job Job) error {
	var errs []error
	for _, h := range s.hooks {
		path, ok := s.resolve(h)
		if !ok {
			continue
		}
		if err := s.run(ctx, path, h.Command[1:], job.Payload); err != nil {
			errs = append(errs, fmt.Errorf("hook %s: %w", h.Name, err))
			continue
		}
		return nil
	}

	if len(errs) == 0 {
		return Unavailable(NameBridge, errors.New("no print hook installed"))
	}
	return Rejected(NameBridge, errors.Join(errs...))
}

func runHook(ctx context.Context, path string, args []string, stdin []byte) error {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = bytes.NewReader(stdin)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
