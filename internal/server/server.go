// Package server implements the SAGE reference HTTP surface: debug
// introspection endpoints plus the single a2a message endpoint that
// carries both handshake initiation and established-session traffic.
// Grounded on api/sage_handler.go's CORS/OPTIONS/method-switch handler
// style, re-pointed at pkg/registry, internal/agent/hpke, and
// internal/agent/session instead of the demo adapters package.
package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sage-x-project/sage/pkg/envelope"
	"github.com/sage-x-project/sage/pkg/registry"
	"github.com/sage-x-project/sage/pkg/sageerr"

	agenthpke "github.com/sage-x-project/sage/internal/agent/hpke"
	"github.com/sage-x-project/sage/internal/agent/keys"
	"github.com/sage-x-project/sage/internal/agent/middleware"
	agentsession "github.com/sage-x-project/sage/internal/agent/session"
	"github.com/sage-x-project/sage/logger"
)

// Server wires the registry, HPKE handshake acceptor, and session manager
// into the HTTP surface described in spec.md §6.
type Server struct {
	reg        *registry.Registry
	hook       *registry.VerificationHook
	hpkeServer *agenthpke.Server
	sessions   *agentsession.Manager
	auth       *middleware.DIDAuth
	kemPub     keys.KeyPair
	serverDID  string

	// DevMode gates /debug/register-agent: when a Hook is configured, that
	// handler still runs its checks (cooldown, quota, blacklist, signature)
	// before calling the registry; this flag only controls whether the
	// route exists at all.
	DevMode bool
}

// Config contains everything Server needs to construct its handlers.
type Config struct {
	Registry       *registry.Registry
	Hook           *registry.VerificationHook
	HPKEServer     *agenthpke.Server
	SessionManager *agentsession.Manager
	Auth           *middleware.DIDAuth
	KEMKey         keys.KeyPair
	ServerDID      string
	DevMode        bool
}

// New constructs a Server from config.
func New(config Config) *Server {
	return &Server{
		reg:        config.Registry,
		hook:       config.Hook,
		hpkeServer: config.HPKEServer,
		sessions:   config.SessionManager,
		auth:       config.Auth,
		kemPub:     config.KEMKey,
		serverDID:  config.ServerDID,
		DevMode:    config.DevMode,
	}
}

// RegisterRoutes registers every SAGE debug and protocol route on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/kem-pub", s.withCORS(s.handleKemPub))
	mux.HandleFunc("/debug/server-did", s.withCORS(s.handleServerDID))
	mux.HandleFunc("/debug/health", s.withCORS(s.handleHealth))
	mux.HandleFunc("/v1/a2a:sendMessage", s.withCORS(s.handleSendMessage))

	if s.DevMode {
		mux.HandleFunc("/debug/register-agent", s.withCORS(s.handleRegisterAgent))
		logger.Warn("[SAGE] /debug/register-agent is enabled; do not expose this in production")
	}

	logger.Info("[SAGE] routes registered: /debug/kem-pub, /debug/server-did, /debug/health, /v1/a2a:sendMessage")
}

// withCORS applies the permissive debug-surface CORS policy and answers
// preflight requests directly, matching the teacher's handler style.
func (s *Server) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Session-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorf("[SAGE] failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger.Errorf("[SAGE] request failed: %v", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusForError maps the sageerr taxonomy to an HTTP status; unrecognized
// errors fall back to 500.
func statusForError(err error) int {
	var code sageerr.Code
	if e, ok := err.(*sageerr.Error); ok {
		code = e.Code
	} else {
		return http.StatusInternalServerError
	}
	switch code {
	case sageerr.CodeAgentNotFound, sageerr.CodeSessionNotFound:
		return http.StatusNotFound
	case sageerr.CodeInvalidSignature, sageerr.CodeStaleTimestamp, sageerr.CodeBlacklisted,
		sageerr.CodeCooldownActive, sageerr.CodeDailyLimitReached, sageerr.CodeHookDisabled:
		return http.StatusForbidden
	case sageerr.CodeValidation, sageerr.CodeMalformedEnvelope, sageerr.CodeUnsupportedKeyType,
		sageerr.CodeTooManyKeys, sageerr.CodeInvalidKeyIndex:
		return http.StatusBadRequest
	case sageerr.CodeAgentExists:
		return http.StatusConflict
	case sageerr.CodeSessionExpired, sageerr.CodeTooManySessions, sageerr.CodeDecryption:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// handleKemPub serves the server's X25519 KEM public key so that clients
// can address a handshake to it without an out-of-band exchange.
func (s *Server) handleKemPub(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"kem_public_key": base64.StdEncoding.EncodeToString(s.kemPub.Public[:]),
	})
}

// handleServerDID serves the server's own DID.
func (s *Server) handleServerDID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"did": s.serverDID})
}

// healthResponse is the /debug/health wire shape.
type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Sessions  *sessionCounts `json:"sessions,omitempty"`
}

type sessionCounts struct {
	Active int `json:"active"`
	Total  int `json:"total"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if s.sessions != nil {
		active := s.sessions.Count()
		resp.Sessions = &sessionCounts{Active: active, Total: active}
	}
	writeJSON(w, http.StatusOK, resp)
}

// keyEntry is the JSON wire shape for one key-ownership proof in a
// register-agent request.
type keyEntry struct {
	PublicKey string `json:"public_key"` // base64
	KeyType   string `json:"key_type"`   // "ed25519" | "secp256k1"
	Signature string `json:"signature"`  // base64, over owner||did
}

// registerAgentRequest is the dev-only /debug/register-agent wire shape.
type registerAgentRequest struct {
	DID          string     `json:"did"`
	Owner        string     `json:"owner"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Endpoint     string     `json:"endpoint"`
	Capabilities string     `json:"capabilities"`
	Keys         []keyEntry `json:"keys"`
}

func keyTypeFromString(s string) (registry.KeyType, error) {
	switch s {
	case "ed25519":
		return registry.KeyTypeEd25519, nil
	case "secp256k1":
		return registry.KeyTypeSecp256k1, nil
	default:
		return 0, sageerr.New(sageerr.CodeUnsupportedKeyType, "unknown key type: "+s)
	}
}

// handleRegisterAgent is a development convenience that lets a test
// harness register an agent over HTTP instead of driving pkg/registry
// in-process. It runs the same verification-hook checks a real
// registration instruction would (spec.md §4.5) before committing.
func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req registerAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Keys) == 0 {
		writeError(w, http.StatusBadRequest, sageerr.New(sageerr.CodeValidation, "at least one key is required"))
		return
	}

	pubKeys := make([][]byte, len(req.Keys))
	keyTypes := make([]registry.KeyType, len(req.Keys))
	sigs := make([][]byte, len(req.Keys))
	for i, k := range req.Keys {
		pub, err := base64.StdEncoding.DecodeString(k.PublicKey)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sig, err := base64.StdEncoding.DecodeString(k.Signature)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		kt, err := keyTypeFromString(k.KeyType)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		pubKeys[i], keyTypes[i], sigs[i] = pub, kt, sig
	}

	// The hook verifies the same owner||did message and first key-ownership
	// proof that RegisterAgent itself will re-verify per key below;
	// running it first lets cooldown/quota/blacklist reject a bad caller
	// before the registry does any work.
	if s.hook != nil {
		message := append([]byte(req.Owner), []byte(req.DID)...)
		if err := s.hook.VerifyRegistration(req.DID, req.Owner, message, sigs[0], pubKeys[0]); err != nil {
			writeError(w, statusForError(err), err)
			return
		}
	}

	agent, err := s.reg.RegisterAgent(registry.RegisterAgentInput{
		DID:          req.DID,
		Owner:        req.Owner,
		Name:         req.Name,
		Description:  req.Description,
		Endpoint:     req.Endpoint,
		Capabilities: req.Capabilities,
		PublicKeys:   pubKeys,
		KeyTypes:     keyTypes,
		Signatures:   sigs,
	})
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	if s.hook != nil {
		s.hook.AfterRegistration(req.Owner)
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"did":        agent.DID,
		"registered": true,
	})
}

// sendMessageResponse is the /v1/a2a:sendMessage wire shape.
type sendMessageResponse struct {
	SessionID string `json:"session_id,omitempty"`
	Response  string `json:"response"` // base64
}

// handshakeAckWire mirrors internal/agent/hpke's unexported handshakeAck
// so the server can read the session ID it just minted without exporting
// that type across the package boundary.
type handshakeAckWire struct {
	SessionID string `json:"session_id"`
	ServerDID string `json:"server_did"`
}

// handleSendMessage implements spec.md §6's single a2a endpoint: an
// absent X-Session-ID header means the body is a handshake-initiation
// envelope; a present header means the body is a signed envelope wrapping
// ciphertext for that already-established session.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var env envelope.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sessionID := r.Header.Get("X-Session-ID")
	if sessionID == "" {
		s.handleHandshakeInit(w, r, &env)
		return
	}
	s.handleSessionMessage(w, sessionID, &env)
}

func (s *Server) handleHandshakeInit(w http.ResponseWriter, r *http.Request, env *envelope.Envelope) {
	ackBytes, err := s.hpkeServer.HandleHandshake(r.Context(), env)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	var ack handshakeAckWire
	if err := json.Unmarshal(ackBytes, &ack); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	sess, err := s.sessions.Get(ack.SessionID)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	ciphertext, err := sess.Encrypt([]byte(`{"status":"handshake_accepted"}`))
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{
		SessionID: ack.SessionID,
		Response:  base64.StdEncoding.EncodeToString(ciphertext),
	})
}

func (s *Server) handleSessionMessage(w http.ResponseWriter, sessionID string, env *envelope.Envelope) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	message, ok, err := s.auth.Verify(env)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, sageerr.New(sageerr.CodeInvalidSignature, "envelope did not verify"))
		return
	}

	plaintext, err := sess.Decrypt(message)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	// The secure channel's job ends here; a real agent would dispatch
	// plaintext to its own A2A message handler. The reference server
	// just acknowledges receipt over the same session.
	logger.Debugf("[SAGE] session %s received %d plaintext bytes", sessionID, len(plaintext))
	ciphertext, err := sess.Encrypt([]byte(`{"status":"received"}`))
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{
		Response: base64.StdEncoding.EncodeToString(ciphertext),
	})
}
