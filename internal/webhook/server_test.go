package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derafu/github/internal/notification"
	"github.com/derafu/github/internal/response"
)

type processorFunc func(ctx context.Context, n *notification.Notification) (response.Response, error)

func (f processorFunc) Handle(ctx context.Context, n *notification.Notification) (response.Response, error) {
	return f(ctx, n)
}

type wireBody struct {
	Code     int    `json:"code"`
	HTTPCode int    `json:"http_code"`
	Status   string `json:"status"`
	Data     any    `json:"data"`
}

func newTestServer(t *testing.T, p Processor, maxBody int64) http.Handler {
	t.Helper()
	return NewServer(ServerConfig{Listen: "127.0.0.1:0", MaxBodySize: maxBody}, p, testLogger()).Routes()
}

func doRequest(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, wireBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body wireBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec, body
}

func signedRequest(t *testing.T, method, target, event, body, secret string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", "72d3162e-cc78-11e3-81ab-4c9367dc0958")
	req.Header.Set("X-Hub-Signature-256", mustSign(t, "sha256", body, secret))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestServerPing(t *testing.T) {
	h := newTestHandler(t, Config{})
	srv := newTestServer(t, h, 0)

	req := signedRequest(t, http.MethodPost, "/webhook", "ping", `{"repository":{"full_name":"acme/repo"}}`, testSecret)
	rec, body := doRequest(t, srv, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, 0, body.Code)
	assert.Equal(t, 200, body.HTTPCode)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "Ping from acme/repo received.", body.Data)
}

func TestServerAcceptsDeliveryWithBothSignatureHeaders(t *testing.T) {
	h := newTestHandler(t, Config{})
	srv := newTestServer(t, h, 0)

	payload := `{"repository":{"full_name":"acme/repo"}}`
	req := signedRequest(t, http.MethodPost, "/webhook", "ping", payload, testSecret)
	req.Header.Set("X-Hub-Signature", "sha1="+legacySHA1(payload, testSecret))
	rec, body := doRequest(t, srv, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ping from acme/repo received.", body.Data)
}

func TestServerRejectsLegacySignatureOnly(t *testing.T) {
	h := newTestHandler(t, Config{})
	srv := newTestServer(t, h, 0)

	payload := `{"repository":{"full_name":"acme/repo"}}`
	req := signedRequest(t, http.MethodPost, "/webhook", "ping", payload, testSecret)
	req.Header.Del("X-Hub-Signature-256")
	req.Header.Set("X-Hub-Signature", "sha1="+legacySHA1(payload, testSecret))
	rec, _ := doRequest(t, srv, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServerRejectsBadSignature(t *testing.T) {
	h := newTestHandler(t, Config{})
	srv := newTestServer(t, h, 0)

	req := signedRequest(t, http.MethodPost, "/webhook", "push", `{}`, "wrong-secret")
	rec, body := doRequest(t, srv, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "Invalid signature.", body.Data)
}

func TestServerRejectsWrongMethod(t *testing.T) {
	h := newTestHandler(t, Config{})
	srv := newTestServer(t, h, 0)

	req := signedRequest(t, http.MethodGet, "/webhook", "push", ``, testSecret)
	rec, body := doRequest(t, srv, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.StatusMethodNotAllowed, body.Code)
}

func TestServerHashTokenFromQuery(t *testing.T) {
	h := newTestHandler(t, Config{HashToken: "s3cr3t"})
	srv := newTestServer(t, h, 0)

	req := signedRequest(t, http.MethodPost, "/webhook", "star", `{}`, testSecret)
	rec, _ := doRequest(t, srv, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = signedRequest(t, http.MethodPost, "/webhook?hash=s3cr3t", "star", `{}`, testSecret)
	rec, body := doRequest(t, srv, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `Unhandled event "star" received, no handler is set.`, body.Data)
}

func TestServerNonZeroCodeIsClientError(t *testing.T) {
	p := processorFunc(func(ctx context.Context, n *notification.Notification) (response.Response, error) {
		return response.FromMap(map[string]any{"data": map[string]any{"exit_code": 2}, "code": 2})
	})
	rec, body := doRequest(t, newTestServer(t, p, 0), httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 2, body.Code)
	assert.Equal(t, "error", body.Status)
}

func TestServerBodyLimit(t *testing.T) {
	called := false
	p := processorFunc(func(ctx context.Context, n *notification.Notification) (response.Response, error) {
		called = true
		return response.New("ok"), nil
	})
	srv := newTestServer(t, p, 16)

	rec, _ := doRequest(t, srv, httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(make([]byte, 17))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.False(t, called)

	rec, _ = doRequest(t, srv, httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(make([]byte, 16))))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestServerHidesInternalErrors(t *testing.T) {
	p := processorFunc(func(ctx context.Context, n *notification.Notification) (response.Response, error) {
		return response.Response{}, errors.New("database exploded at /var/lib/secret")
	})
	rec, body := doRequest(t, newTestServer(t, p, 0), httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, body.Data, "secret")
}

func TestServerPassesBodyUnchanged(t *testing.T) {
	payload := `{"a": [1, 2, 3],   "b": "x"}`
	var got []byte
	p := processorFunc(func(ctx context.Context, n *notification.Notification) (response.Response, error) {
		got = n.Body()
		return response.New("ok"), nil
	})
	doRequest(t, newTestServer(t, p, 0), httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload)))
	assert.Equal(t, payload, string(got))
}

func TestServerHealthz(t *testing.T) {
	srv := newTestServer(t, newTestHandler(t, Config{}), 0)
	rec, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body.Data)
}
