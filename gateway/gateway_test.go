package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/x402-secure/headers"
	"github.com/vitwit/x402-secure/types"
)

func TestCreateSessionSetsWireHeaders(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sid":"925ca6ee-7f3c-4b2a-9e1d-8c5a2f6b4d10","expires_at":"2026-09-01T12:00:00Z"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/", UserAgent: "x402-test/1.0"})
	session, err := c.CreateSession(context.Background(), &types.SessionRequest{AppID: "app"})
	require.NoError(t, err)
	assert.Equal(t, "925ca6ee-7f3c-4b2a-9e1d-8c5a2f6b4d10", session.SID)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/risk/session", got.URL.Path)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.Equal(t, "x402-test/1.0", got.Header.Get("User-Agent"))
}

func TestNon2xxMapsToGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", "req-123")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"detail":"settlement backend unreachable"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.SubmitTrace(context.Background(), &types.TraceSubmission{SID: "s"})
	require.Error(t, err)

	var xe *types.X402Error
	require.True(t, errors.As(err, &xe))
	assert.Equal(t, types.ErrGatewayError, xe.Code)
	assert.Contains(t, xe.Message, "settlement backend unreachable")

	data, ok := xe.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, data["status"])
	assert.Equal(t, "/risk/trace", data["path"])
	assert.Equal(t, "req-123", data["request_id"])
}

func TestTransportFailureMapsToTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := New(Config{BaseURL: srv.URL})
	_, err := c.CreateSession(context.Background(), &types.SessionRequest{})
	require.Error(t, err)

	var xe *types.X402Error
	require.True(t, errors.As(err, &xe))
	assert.Equal(t, types.ErrTransportError, xe.Code)
	assert.Error(t, xe.Unwrap())
}

func TestMalformedJSONMapsToGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tid": `))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.SubmitTrace(context.Background(), &types.TraceSubmission{SID: "s"})
	require.Error(t, err)

	var xe *types.X402Error
	require.True(t, errors.As(err, &xe))
	assert.Equal(t, types.ErrGatewayError, xe.Code)
}

func TestVerifyAppliesEnvelope(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{"isValid":true,"payer":"0xabc"}`))
	}))
	defer srv.Close()

	env := headers.Envelope{
		Payment:       "payload",
		PaymentSecure: "w3c.v1;tp=00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01",
		RiskSession:   "925ca6ee-7f3c-4b2a-9e1d-8c5a2f6b4d10",
		AP2Evidence:   "evd.v1;mr=r;ms=m;mt=application/json;sz=1",
	}

	c := New(Config{BaseURL: srv.URL})
	res, err := c.Verify(context.Background(), &types.VerifyRequest{X402Version: 1}, env)
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Equal(t, "0xabc", res.Payer)

	assert.Equal(t, "payload", got.Get(headers.Payment))
	assert.Equal(t, env.PaymentSecure, got.Get(headers.PaymentSecure))
	assert.Equal(t, env.RiskSession, got.Get(headers.RiskSession))
	assert.Equal(t, env.AP2Evidence, got.Get(headers.AP2Evidence))
}

func TestSettleDecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/x402/settle", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"payer":"0xabc","transaction":"0xdeadbeef","network":"base-sepolia"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	res, err := c.Settle(context.Background(), &types.VerifyRequest{X402Version: 1}, headers.Envelope{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "0xdeadbeef", res.Transaction)
	assert.Equal(t, "base-sepolia", res.Network)
}

func TestGetTraceEscapesPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_ = json.NewEncoder(w).Encode(map[string]string{"tid": "t", "sid": "s"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.GetTrace(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "/risk/trace/a%2Fb", gotPath)
}

func TestContextCancellationStopsCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.CreateSession(ctx, &types.SessionRequest{})
	require.Error(t, err)

	var xe *types.X402Error
	require.True(t, errors.As(err, &xe))
	assert.Equal(t, types.ErrTransportError, xe.Code)
}
