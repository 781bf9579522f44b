// Package gatewaytest runs an in-memory x402-secure gateway over
// httptest for SDK and application tests: it issues real session and
// trace ids, stores traces with a TTL, answers verify/settle with
// scriptable outcomes, and records every call for assertions. It
// performs no signature checks; like the SDK, it treats verification
// as someone else's job.
package gatewaytest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitwit/x402-secure/headers"
	"github.com/vitwit/x402-secure/types"
)

// DefaultSessionTTL matches the gateway's in-memory session store.
const DefaultSessionTTL = 15 * time.Minute

// DefaultTransaction is the settlement hash returned unless scripted.
var DefaultTransaction = "0x" + strings.Repeat("f", 64)

// Call is one recorded HTTP exchange, in arrival order.
type Call struct {
	Method string
	Path   string
}

type storedTrace struct {
	sid        string
	receivedAt time.Time
	trace      json.RawMessage
}

type override struct {
	status int
	body   string
}

// Server is the in-memory gateway.
type Server struct {
	srv *httptest.Server

	mu           sync.Mutex
	ttl          time.Duration
	sessions     map[string]time.Time
	traces       map[string]storedTrace
	calls        []Call
	lastHeaders  map[string]http.Header
	lastBodies   map[string][]byte
	rejectReason string
	settleReason string
	settleTx     string
	overrides    map[string]override
}

// New starts the gateway. Callers must Close it.
func New() *Server {
	s := &Server{
		ttl:         DefaultSessionTTL,
		sessions:    make(map[string]time.Time),
		traces:      make(map[string]storedTrace),
		lastHeaders: make(map[string]http.Header),
		lastBodies:  make(map[string][]byte),
		settleTx:    DefaultTransaction,
		overrides:   make(map[string]override),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the gateway base URL.
func (s *Server) URL() string { return s.srv.URL }

// Close shuts the server down.
func (s *Server) Close() { s.srv.Close() }

// Calls returns every recorded exchange in order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount reports how many requests hit the given path.
func (s *Server) CallCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Path == path {
			n++
		}
	}
	return n
}

// LastHeaders returns the headers of the most recent request to path.
func (s *Server) LastHeaders(path string) http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeaders[path]
}

// LastBody returns the body of the most recent request to path.
func (s *Server) LastBody(path string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBodies[path]
}

// SetSessionTTL changes the TTL applied to sessions created afterwards.
func (s *Server) SetSessionTTL(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttl = d
}

// ExpireSessions force-expires every open session.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sid := range s.sessions {
		s.sessions[sid] = time.Now().Add(-time.Second)
	}
}

// RejectVerify scripts verify to answer isValid=false with reason.
func (s *Server) RejectVerify(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectReason = reason
}

// FailSettle scripts settle to answer success=false with reason.
func (s *Server) FailSettle(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleReason = reason
}

// SetTransaction overrides the settlement hash.
func (s *Server) SetTransaction(tx string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleTx = tx
}

// Override makes a path answer a fixed status and body, standing in
// for gateway outages and scripted HTTP failures.
func (s *Server) Override(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[path] = override{status: status, body: body}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body := s.record(r)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", uuid.NewString())

	s.mu.Lock()
	ov, overridden := s.overrides[r.URL.Path]
	s.mu.Unlock()
	if overridden {
		w.WriteHeader(ov.status)
		_, _ = w.Write([]byte(ov.body))
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/risk/session":
		s.createSession(w)
	case r.Method == http.MethodPost && r.URL.Path == "/risk/trace":
		s.submitTrace(w, body)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/risk/trace/"):
		s.getTrace(w, strings.TrimPrefix(r.URL.Path, "/risk/trace/"))
	case r.Method == http.MethodPost && r.URL.Path == "/x402/verify":
		s.verify(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/x402/settle":
		s.settle(w, r, body)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
	}
}

func (s *Server) record(r *http.Request) []byte {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path})
	s.lastHeaders[r.URL.Path] = r.Header.Clone()
	s.lastBodies[r.URL.Path] = body
	return body
}

func (s *Server) createSession(w http.ResponseWriter) {
	s.mu.Lock()
	sid := uuid.NewString()
	expires := time.Now().Add(s.ttl).UTC()
	s.sessions[sid] = expires
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sid":        sid,
		"expires_at": expires.Format(time.RFC3339),
	})
}

func (s *Server) submitTrace(w http.ResponseWriter, body []byte) {
	var req struct {
		SID        string          `json:"sid"`
		AgentTrace json.RawMessage `json:"agent_trace"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.SID == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid trace submission"})
		return
	}

	s.mu.Lock()
	expires, ok := s.sessions[req.SID]
	if ok && time.Now().After(expires) {
		delete(s.sessions, req.SID)
		ok = false
	}
	if !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "unknown sid"})
		return
	}
	tid := uuid.NewString()
	s.traces[tid] = storedTrace{sid: req.SID, receivedAt: time.Now().UTC(), trace: req.AgentTrace}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"tid": tid})
}

func (s *Server) getTrace(w http.ResponseWriter, tid string) {
	s.mu.Lock()
	stored, ok := s.traces[tid]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "unknown tid"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tid":         tid,
		"sid":         stored.sid,
		"received_at": stored.receivedAt.Format(time.RFC3339),
		"agent_trace": stored.trace,
	})
}

// payerFrom pulls the payer address out of the X-PAYMENT header, the
// way the real gateway attributes payments.
func payerFrom(r *http.Request) string {
	encoded := r.Header.Get(headers.Payment)
	if encoded == "" {
		return ""
	}
	payload, err := headers.DecodePayment(encoded)
	if err != nil {
		return ""
	}
	return payload.From
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	reason := s.rejectReason
	s.mu.Unlock()

	if reason != "" {
		writeJSON(w, http.StatusOK, types.VerifyResponse{IsValid: false, InvalidReason: reason})
		return
	}
	writeJSON(w, http.StatusOK, types.VerifyResponse{IsValid: true, Payer: payerFrom(r)})
}

func (s *Server) settle(w http.ResponseWriter, r *http.Request, body []byte) {
	s.mu.Lock()
	reason := s.settleReason
	tx := s.settleTx
	s.mu.Unlock()

	payer := payerFrom(r)
	if reason != "" {
		writeJSON(w, http.StatusOK, types.SettleResponse{Success: false, Payer: payer, ErrorReason: reason})
		return
	}

	var req struct {
		PaymentRequirements struct {
			Accepts []struct {
				Chain string `json:"chain"`
			} `json:"accepts"`
		} `json:"paymentRequirements"`
	}
	network := ""
	if err := json.Unmarshal(body, &req); err == nil && len(req.PaymentRequirements.Accepts) > 0 {
		network = req.PaymentRequirements.Accepts[0].Chain
	}

	writeJSON(w, http.StatusOK, types.SettleResponse{
		Success:     true,
		Payer:       payer,
		Transaction: tx,
		Network:     network,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
