// Package authoritytest provides an in-process OAuth authority and host API
// for exercising the authority client without network access.
package authoritytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog/log"
)

const (
	DefaultCode  = "test-authorization-code"
	DefaultPAT   = "test-personal-access-token"
	DefaultUser  = "user@example.com"
	tenantHeader = "X-VSS-ResourceTenant"
)

// Requests counts the calls received per endpoint.
type Requests struct {
	Token          int
	PersonalToken  int
	ConnectionData int
	LastTenant     string
	LastCompact    bool
	LastForm       map[string]string
}

// Server plays both the sign-in authority and the target host. Exported
// fields may be changed between requests to simulate failures.
type Server struct {
	// Tenant is reported by the host's connection data endpoint. Empty
	// omits the header.
	Tenant string

	// Code is the authorization code accepted by the token endpoint.
	Code string

	// PersonalAccessToken is returned from the session token endpoint.
	PersonalAccessToken string

	// User is written into the upn claim of issued access tokens.
	User string

	// TokenStatus and PATStatus force an error status when non-zero.
	TokenStatus int
	PATStatus   int

	signingKey []byte

	mu       sync.Mutex
	requests Requests
}

// New creates a Server with default values and a fresh signing key.
func New() *Server {
	return &Server{
		Tenant:              "11111111-2222-3333-4444-555555555555",
		Code:                DefaultCode,
		PersonalAccessToken: DefaultPAT,
		User:                DefaultUser,
		signingKey:          []byte(fmt.Sprintf("authoritytest-%d", time.Now().UnixNano())),
	}
}

// Requests returns a snapshot of the request counters.
func (s *Server) Requests() Requests {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.requests
	if s.requests.LastForm != nil {
		r.LastForm = make(map[string]string, len(s.requests.LastForm))
		for k, v := range s.requests.LastForm {
			r.LastForm[k] = v
		}
	}
	return r
}

// Router accepts route registrations, as *http.ServeMux does.
type Router interface {
	Handle(pattern string, handler http.Handler)
}

// Register adds the authority and host endpoints to mux.
func (s *Server) Register(mux Router) {
	mux.Handle("GET /{tenant}/oauth2/authorize", http.HandlerFunc(s.handleAuthorize))
	mux.Handle("POST /{tenant}/oauth2/token", http.HandlerFunc(s.handleToken))
	mux.Handle("POST /_apis/token/sessiontokens", http.HandlerFunc(s.handleSessionToken))
	mux.Handle("GET /_apis/connectiondata", http.HandlerFunc(s.handleConnectionData))
}

// Handler returns a mux serving the authority and host endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// handleAuthorize stands in for the interactive sign-in page.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Signed in to tenant %s.\nAuthorization code: %s\n", r.PathValue("tenant"), s.Code)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	form := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}

	s.mu.Lock()
	s.requests.Token++
	s.requests.LastTenant = r.PathValue("tenant")
	s.requests.LastForm = form
	s.mu.Unlock()

	if s.TokenStatus != 0 {
		writeOAuthError(w, s.TokenStatus, "server_error", "forced failure")
		return
	}

	if form["grant_type"] != "authorization_code" {
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "only authorization_code is supported")
		return
	}

	if form["code"] != s.Code {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "the authorization code is invalid or has expired")
		return
	}

	accessToken, err := s.IssueAccessToken(r.PathValue("tenant"), time.Hour)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": accessToken,
		"token_type":   "Bearer",
	})
}

func (s *Server) handleSessionToken(w http.ResponseWriter, r *http.Request) {
	compact := r.URL.Query().Get("tokentype") == "compact"

	s.mu.Lock()
	s.requests.PersonalToken++
	s.requests.LastCompact = compact
	s.mu.Unlock()

	if s.PATStatus != 0 {
		writeOAuthError(w, s.PATStatus, "server_error", "forced failure")
		return
	}

	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || s.verify(raw) != nil {
		writeOAuthError(w, http.StatusUnauthorized, "invalid_token", "bearer token rejected")
		return
	}

	if r.URL.Query().Get("api-version") == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "api-version required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": s.PersonalAccessToken})
}

func (s *Server) handleConnectionData(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.requests.ConnectionData++
	s.mu.Unlock()

	if s.Tenant != "" {
		w.Header().Set(tenantHeader, s.Tenant)
	}
	w.WriteHeader(http.StatusUnauthorized)
}

// IssueAccessToken signs an access token as the token endpoint would.
func (s *Server) IssueAccessToken(tenant string, lifetime time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": "https://sts.example.com/" + tenant + "/",
		"sub": "subject",
		"upn": s.User,
		"tid": tenant,
		"iat": now.Unix(),
		"exp": now.Add(lifetime).Unix(),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

func (s *Server) verify(raw string) error {
	_, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	return err
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
