// Package rpc is the typed Tier 2 client. Every method goes through one
// private call primitive: POST JSON to the service endpoint, decode the
// result shape, surface transport problems as errors and command failures
// as exit codes.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/runshield/bashx/internal/kernel"
)

// Binding describes one remote service: its name, endpoint and the command
// names it advertises.
type Binding struct {
	Name     string
	Endpoint string
	Commands []string
	// Client overrides the HTTP client (tests inject one).
	Client *http.Client
	// Timeout bounds each call; zero means 30s.
	Timeout time.Duration
}

type execRequest struct {
	Command string            `json:"command"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Timeout int64             `json:"timeout,omitempty"`
	Stdin   string            `json:"stdin,omitempty"`
}

type execResponse struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// Service is the typed client for one binding.
type Service struct {
	b Binding
}

// NewService wraps a binding.
func NewService(b Binding) *Service {
	return &Service{b: b}
}

// Name returns the service name used as the tier capability.
func (s *Service) Name() string { return s.b.Name }

// Commands lists what the service advertises.
func (s *Service) Commands() []string { return s.b.Commands }

// Exec runs a command remotely.
func (s *Service) Exec(ctx context.Context, command, stdin string, env map[string]string) (kernel.Result, error) {
	var resp execResponse
	err := s.call(ctx, "/exec", execRequest{Command: command, Env: env, Stdin: stdin}, &resp)
	if err != nil {
		return kernel.Result{}, err
	}
	return kernel.Result{Stdout: resp.Stdout, Stderr: resp.Stderr, ExitCode: resp.ExitCode}, nil
}

// Run is Exec against a specific working directory.
func (s *Service) Run(ctx context.Context, command, cwd string) (kernel.Result, error) {
	var resp execResponse
	err := s.call(ctx, "/run", execRequest{Command: command, Cwd: cwd}, &resp)
	if err != nil {
		return kernel.Result{}, err
	}
	return kernel.Result{Stdout: resp.Stdout, Stderr: resp.Stderr, ExitCode: resp.ExitCode}, nil
}

// call is the shared primitive behind every method.
func (s *Service) call(ctx context.Context, path string, req, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("rpc %s: encode: %w", s.b.Name, err)
	}
	timeout := s.b.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.b.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rpc %s: %w", s.b.Name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := s.b.Client
	if client == nil {
		client = http.DefaultClient
	}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", s.b.Name, err)
	}
	defer httpResp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("rpc %s: read: %w", s.b.Name, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc %s: status %d: %s", s.b.Name, httpResp.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("rpc %s: decode: %w", s.b.Name, err)
	}
	return nil
}
