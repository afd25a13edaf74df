package httptransport

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	attestationhandler "scorepass/internal/attestation/handler"
	attestationsvc "scorepass/internal/attestation/service"
	"scorepass/internal/attestation/signature"
	attestationstore "scorepass/internal/attestation/store"
	credentialhandler "scorepass/internal/credential/handler"
	credentialsvc "scorepass/internal/credential/service"
	credentialstore "scorepass/internal/credential/store"
	identityhandler "scorepass/internal/identity/handler"
	identitysvc "scorepass/internal/identity/service"
	identitystore "scorepass/internal/identity/store"
	"scorepass/internal/notify"
	"scorepass/internal/platform/health"
	requesthandler "scorepass/internal/request/handler"
	requestsvc "scorepass/internal/request/service"
	requeststore "scorepass/internal/request/store"
	scoringhandler "scorepass/internal/scoring/handler"
	scoringsvc "scorepass/internal/scoring/service"
	scoringstore "scorepass/internal/scoring/store"
	"scorepass/internal/tokens"
	id "scorepass/pkg/domain"
	"scorepass/pkg/enc"
)

const (
	testAdminToken = "test-admin-token"
	testSigningKey = "test-signing-key"
)

var routerSalt = []byte("test-chain-salt")

type apiFixture struct {
	server *httptest.Server
	tokens *tokens.Manager
	priv   ed25519.PrivateKey
	pub    ed25519.PublicKey
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := enc.NewSimulator()
	notifier := notify.NewPublisher(notify.NewInMemoryStore(), nil)

	identities := identitysvc.NewService(identitystore.New(), notifier, identitysvc.WithLogger(log))
	attestations := attestationsvc.NewService(attestationstore.New(), notifier, routerSalt,
		attestationsvc.WithLogger(log))
	scoring := scoringsvc.NewService(scoringstore.New(), backend, notifier, scoringsvc.WithLogger(log))
	credentials := credentialsvc.NewService(credentialstore.New(), notifier, credentialsvc.WithLogger(log))
	requests := requestsvc.NewService(
		requeststore.New(), identities, attestations, scoring, credentials,
		backend, notifier, requestsvc.Config{}, requestsvc.WithLogger(log),
	)

	tokenManager := tokens.New(testSigningKey, time.Hour)
	router := NewRouter(Handlers{
		Identities:   identityhandler.New(identities, log),
		Attestations: attestationhandler.New(attestations, log),
		Scoring:      scoringhandler.New(scoring, log),
		Requests:     requesthandler.New(requests, log),
		Credentials:  credentialhandler.New(credentials, log),
		Health:       health.New("test"),
	}, tokenManager, testAdminToken, log)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &apiFixture{server: server, tokens: tokenManager, priv: priv, pub: pub}
}

func (f *apiFixture) call(t *testing.T, method, path, principal string, admin bool, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if principal != "" {
		token, err := f.tokens.Issue(id.Principal(principal), time.Now())
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if admin {
		req.Header.Set("X-Admin-Token", testAdminToken)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func TestHealthAndMetricsAreUnauthenticated(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.call(t, http.MethodGet, "/health/live", "", false, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.call(t, http.MethodGet, "/metrics", "", false, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.call(t, http.MethodPost, "/identities", "", false,
		map[string]string{"principal": "0xalice"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminRoutesRequireAdminToken(t *testing.T) {
	f := newAPIFixture(t)

	req, err := http.NewRequest(http.MethodPut, f.server.URL+"/admin/scoring/active", bytes.NewBufferString(`{"active":true}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	// Register and verify the subject, then authorize the fintech.
	resp, body := f.call(t, http.MethodPost, "/identities", "0xalice", false,
		map[string]string{"principal": "0xalice", "external_id": "passport-123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	subjectID := body["id"].(string)

	resp, _ = f.call(t, http.MethodPost, "/admin/identities/"+subjectID+"/verify", "", true, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.call(t, http.MethodPost, "/identities/"+subjectID+"/authorizations", "0xalice", false,
		map[string]string{"requester": "0xfintech"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Admin setup: validator whitelist and model parameters.
	resp, _ = f.call(t, http.MethodPut, "/admin/attestations/validators", "", true, map[string]any{
		"principal":  "0xvalidator",
		"public_key": hex.EncodeToString(f.pub),
		"enabled":    true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.call(t, http.MethodPut, "/admin/scoring/parameters", "", true, map[string]any{
		"base_score": 450, "risk_multiplier": 100, "credit_ceiling": 850,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.call(t, http.MethodPut, "/admin/scoring/active", "", true, map[string]any{"active": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Initiate the request as the authorized fintech.
	commitment := id.CommitmentOf([]byte("bureau export"))
	resp, body = f.call(t, http.MethodPost, "/requests", "0xfintech", false, map[string]string{
		"subject_id":      subjectID,
		"data_commitment": commitment.String(),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "pending", body["status"])
	requestIDHex := body["id"].(string)
	requestID, err := id.ParseRequestID(requestIDHex)
	require.NoError(t, err)

	// Attest with a signature aged past the minimum delay.
	signedAt := time.Now().Add(-2 * time.Hour)
	sig := signature.Sign(f.priv, requestID, commitment, signedAt, routerSalt)
	resp, _ = f.call(t, http.MethodPost, "/attestations", "0xvalidator", false, map[string]any{
		"request_id": requestIDHex,
		"commitment": commitment.String(),
		"signature":  hex.EncodeToString(sig),
		"signed_at":  signedAt.Format(time.RFC3339Nano),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = f.call(t, http.MethodPost, "/requests/"+requestIDHex+"/attestation-processed", "0xobserver", false, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "attestation_verified", body["status"])

	// Score server-side and confirm the credential landed on the subject.
	resp, body = f.call(t, http.MethodPost, "/requests/"+requestIDHex+"/score", "0xobserver", false,
		map[string]any{"data": []byte("encrypted bureau blob")})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", body["status"])
	credentialID, ok := body["credential_id"].(string)
	require.True(t, ok)

	resp, body = f.call(t, http.MethodGet, "/credentials/"+credentialID, "0xobserver", false, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["active"])
	assert.Equal(t, subjectID, body["subject"])

	// Replaying the scoring result hits the stale-precondition guard.
	resp, _ = f.call(t, http.MethodPost, "/requests/"+requestIDHex+"/scoring-result", "0xobserver", false,
		map[string]any{"encrypted_score": []byte("late result")})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
