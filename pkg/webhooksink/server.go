// Package webhooksink runs the shared HTTP server that receives platform
// webhook deliveries and hands the raw payloads to registered accounts.
package webhooksink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// MaxBodySize caps webhook payloads; platform updates are small.
	MaxBodySize = 1 << 20

	// HandlerTimeout bounds how long one delivery may spend in a handler.
	HandlerTimeout = 25 * time.Second

	// BodyReadTimeout bounds reading one delivery's body off the wire.
	BodyReadTimeout = 10 * time.Second

	// SecretHeader carries the shared secret set at subscription time.
	SecretHeader = "X-Max-Bot-Api-Secret"
)

// Handler consumes one verified webhook body.
type Handler func(ctx context.Context, body []byte) error

// Target is one registered webhook consumer.
type Target struct {
	Account string
	Secret  string
	Handler Handler
}

// Server multiplexes webhook deliveries for any number of accounts over a
// single listener. Multiple accounts may share a path as long as their
// secrets differ.
type Server struct {
	mu      sync.RWMutex
	targets map[string][]*Target

	addr        string
	boundTo     net.Addr
	srv         *http.Server
	logger      zerolog.Logger
	readTimeout time.Duration
}

// NewServer creates a webhook sink bound to addr (host:port).
func NewServer(addr string, logger zerolog.Logger) *Server {
	return &Server{
		targets:     make(map[string][]*Target),
		addr:        addr,
		logger:      logger,
		readTimeout: BodyReadTimeout,
	}
}

// NormalizePath canonicalizes a webhook path: ensures a leading slash and
// strips trailing slashes, keeping the bare root as "/". Applying it twice
// yields the same result.
func NormalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

// Register adds a target at path. Registering the same account twice on one
// path is an error.
func (s *Server) Register(path string, target *Target) error {
	path = NormalizePath(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.targets[path] {
		if existing.Account == target.Account {
			return fmt.Errorf("account %s already registered on %s", target.Account, path)
		}
	}
	s.targets[path] = append(s.targets[path], target)
	return nil
}

// Unregister removes an account's target from path.
func (s *Server) Unregister(path, account string) {
	path = NormalizePath(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.targets[path][:0]
	for _, target := range s.targets[path] {
		if target.Account != account {
			kept = append(kept, target)
		}
	}
	if len(kept) == 0 {
		delete(s.targets, path)
	} else {
		s.targets[path] = kept
	}
}

// Start begins serving. It returns once the listener is bound; serving
// continues until Shutdown.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind webhook listener: %w", err)
	}

	s.boundTo = listener.Addr()
	s.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("webhook server stopped")
		}
	}()

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("webhook sink listening")
	return nil
}

// Addr returns the bound listener address, valid after Start.
func (s *Server) Addr() string {
	if s.boundTo == nil {
		return s.addr
	}
	return s.boundTo.String()
}

// Shutdown drains in-flight deliveries and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := NormalizePath(r.URL.Path)

	s.mu.RLock()
	targets := s.targets[path]
	s.mu.RUnlock()

	// a wrong secret and an unknown path are indistinguishable to callers
	target := matchTarget(targets, r.Header.Get(SecretHeader))
	if target == nil {
		s.logger.Warn().Str("path", path).Msg("webhook delivery without matching target")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// bound the body read so a stalled sender cannot hold the worker
	rc := http.NewResponseController(w)
	rc.SetReadDeadline(time.Now().Add(s.readTimeout))

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
	if err != nil {
		if os.IsTimeout(err) {
			http.Error(w, "request timeout", http.StatusRequestTimeout)
			return
		}
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if len(body) > MaxBodySize {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}
	if !looksLikeJSONObject(body) {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), HandlerTimeout)
	defer cancel()

	if err := s.dispatch(ctx, target, body); err != nil {
		s.logger.Error().Err(err).Str("account", target.Account).Msg("webhook handler failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"ok":true}`))
}

// dispatch runs the handler with panic isolation so one bad payload cannot
// take down the sink.
func (s *Server) dispatch(ctx context.Context, target *Target, body []byte) (err error) {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("handler panicked: %v", r)
			}
		}()
		done <- target.Handler(ctx, body)
	}()

	select {
	case err = <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// matchTarget picks the registered target whose secret matches the request.
// Targets with no secret accept any delivery on their path.
func matchTarget(targets []*Target, secret string) *Target {
	for _, target := range targets {
		if target.Secret == "" || target.Secret == secret {
			return target
		}
	}
	return nil
}

// looksLikeJSONObject rejects bodies that cannot be a platform update
// object without paying for a full parse.
func looksLikeJSONObject(body []byte) bool {
	return strings.HasPrefix(strings.TrimSpace(string(body)), "{")
}
