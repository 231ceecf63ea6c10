package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/malbeclabs/datachat/api/metrics"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server exposes the pipeline as MCP tools over streamable HTTP.
type Server struct {
	log *slog.Logger
	cfg Config
	mcp *mcp.Server
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		log: cfg.Logger,
		cfg: cfg,
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "datachat",
			Version: cfg.Version,
		}, nil),
	}

	if err := RegisterAskTool(s.log, s.mcp, cfg.Orchestrator, cfg.MaxRows); err != nil {
		return nil, fmt.Errorf("failed to create ask tool: %w", err)
	}
	if err := RegisterSchemaTool(s.log, s.mcp, cfg.Orchestrator); err != nil {
		return nil, fmt.Errorf("failed to create schema tool: %w", err)
	}
	return s, nil
}

// Handler serves MCP over stateless streamable HTTP.
func (s *Server) Handler() http.Handler {
	var h http.Handler = mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.mcp
	}, &mcp.StreamableHTTPOptions{Stateless: true})
	if len(s.cfg.AllowedTokens) > 0 {
		h = s.authMiddleware(h)
	}
	return h
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reason, msg := s.authenticate(r.Header.Get("Authorization"))
		if reason != "" {
			metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
			w.Header().Set("WWW-Authenticate", "Bearer")
			w.WriteHeader(http.StatusUnauthorized)
			if _, err := w.Write([]byte("unauthorized: " + msg + "\n")); err != nil {
				s.log.Error("mcp/server: failed to write auth error response", "error", err)
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate returns a failure reason and message, or empty strings when
// the header carries an allowed bearer token.
func (s *Server) authenticate(header string) (string, string) {
	if header == "" {
		return "missing_header", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "invalid_format", "invalid authorization header format"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "empty_token", "empty token"
	}
	if !slices.Contains(s.cfg.AllowedTokens, token) {
		return "invalid_token", "invalid token"
	}
	return "", ""
}
