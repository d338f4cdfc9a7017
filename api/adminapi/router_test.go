package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/eduverify/credtrust/identity"
	"github.com/eduverify/credtrust/internal/version"
	"github.com/eduverify/credtrust/lifecycle"
	"github.com/eduverify/credtrust/storage"
	"github.com/eduverify/credtrust/storage/model"
)

var fastArgon = storage.Argon2idParams{
	Time:        1,
	MemoryKiB:   1024,
	Parallelism: 1,
	KeyLen:      16,
	SaltLen:     8,
}

type testAdmin struct {
	app      *fiber.App
	backends model.Backends
	service  *lifecycle.Service
	changes  int
}

func newTestAdmin(t *testing.T) *testAdmin {
	t.Helper()
	backends := storage.LoadMemoryBackends(fastArgon)
	ta := &testAdmin{
		app:      fiber.New(),
		backends: backends,
		service:  lifecycle.NewService(backends.Certificates, backends.Events),
	}
	err := Register(
		ta.app.Group("/admin"), "https://trust.example.org", backends, Services{
			Lifecycle: ta.service,
			OnChange:  func() { ta.changes++ },
		}, &Options{
			UsersEnabled:     true,
			IssuanceDefaults: lifecycle.Policy{RetryBudget: 3},
			OTPDefaults:      OTPSettings{MaxAttempts: 5},
		},
	)
	require.NoError(t, err)
	return ta
}

func (ta *testAdmin) do(t *testing.T, method, path string, body any, user, password string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if user != "" {
		req.SetBasicAuth(user, password)
	}
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestAdaptServerURLPort(t *testing.T) {
	tests := []struct {
		name string
		url  string
		port int
		want string
	}{
		{"no port", "https://trust.example.org", 7672, "https://trust.example.org:7672"},
		{"replace port", "https://trust.example.org:8443/base", 7672, "https://trust.example.org:7672/base"},
		{"zero port", "https://trust.example.org", 0, "https://trust.example.org"},
		{"empty", "", 7672, ""},
	}
	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				assert.Equal(t, tt.want, adaptServerURLPort(tt.url, tt.port))
			},
		)
	}
}

func TestOpenAPIDocument(t *testing.T) {
	ta := newTestAdmin(t)
	status, body := ta.do(t, http.MethodGet, "/admin/openapi.yaml", nil, "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "https://trust.example.org")
	assert.Contains(t, string(body), "basicAuth")

	var doc struct {
		Info struct {
			Version string `yaml:"version"`
		} `yaml:"info"`
	}
	require.NoError(t, yaml.Unmarshal(body, &doc))
	assert.Equal(t, version.VERSION, doc.Info.Version)
}

func TestBootstrapAndAuthentication(t *testing.T) {
	ta := newTestAdmin(t)

	// Without users the API is open so the first admin can be created.
	status, _ := ta.do(
		t, http.MethodPost, "/admin/users", map[string]string{
			"username": "root",
			"password": "s3cret",
		}, "", "",
	)
	require.Equal(t, http.StatusCreated, status)

	status, _ = ta.do(t, http.MethodGet, "/admin/users", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = ta.do(t, http.MethodGet, "/admin/users", nil, "root", "wrong")
	assert.Equal(t, http.StatusUnauthorized, status)
	status, body := ta.do(t, http.MethodGet, "/admin/users", nil, "root", "s3cret")
	require.Equal(t, http.StatusOK, status)
	var users []model.User
	require.NoError(t, json.Unmarshal(body, &users))
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].Role)

	status, _ = ta.do(
		t, http.MethodPost, "/admin/users", map[string]string{
			"username": "ada",
			"password": "pw",
			"role":     "student",
			"email":    "ada@example.org",
		}, "root", "s3cret",
	)
	require.Equal(t, http.StatusCreated, status)
	status, _ = ta.do(t, http.MethodGet, "/admin/users", nil, "ada", "pw")
	assert.Equal(t, http.StatusForbidden, status)
}

func TestCreateUserValidation(t *testing.T) {
	ta := newTestAdmin(t)
	status, _ := ta.do(
		t, http.MethodPost, "/admin/users", map[string]string{
			"username": "x",
			"password": "pw",
			"role":     "superuser",
		}, "", "",
	)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = ta.do(
		t, http.MethodPost, "/admin/users", map[string]string{
			"username": "registrar",
			"password": "pw",
			"role":     "institute",
		}, "", "",
	)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = ta.do(t, http.MethodGet, "/admin/users/nobody", nil, "", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestIssuanceSettings(t *testing.T) {
	ta := newTestAdmin(t)
	status, body := ta.do(t, http.MethodGet, "/admin/settings/issuance", nil, "", "")
	require.Equal(t, http.StatusOK, status)
	var policy lifecycle.Policy
	require.NoError(t, json.Unmarshal(body, &policy))
	assert.Equal(t, lifecycle.Policy{RetryBudget: 3}, policy)

	status, _ = ta.do(
		t, http.MethodPut, "/admin/settings/issuance", map[string]any{"require_confirmation": true},
		"", "",
	)
	require.Equal(t, http.StatusOK, status)
	stored, err := lifecycle.KVPolicy{KV: ta.backends.KV}.IssuancePolicy()
	require.NoError(t, err)
	assert.True(t, stored.RequireConfirmation)
	assert.Equal(t, 3, stored.RetryBudget)

	status, body = ta.do(
		t, http.MethodPut, "/admin/settings/issuance", map[string]any{"auto_approve": true}, "", "",
	)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "auto_approve")
}

func TestOTPSettings(t *testing.T) {
	ta := newTestAdmin(t)
	status, body := ta.do(t, http.MethodGet, "/admin/settings/otp", nil, "", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"max_attempts":5}`, string(body))

	status, _ = ta.do(t, http.MethodPut, "/admin/settings/otp", map[string]any{"max_attempts": 0}, "", "")
	require.Equal(t, http.StatusOK, status)
	var n int
	found, err := ta.backends.KV.GetAs(model.KeyValueScopeOTP, model.KeyValueKeyMaxAttempts, &n)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 0, n)

	status, _ = ta.do(t, http.MethodPut, "/admin/settings/otp", map[string]any{"max_attempts": -1}, "", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSettingsOverridesAndReset(t *testing.T) {
	ta := newTestAdmin(t)
	status, _ := ta.do(t, http.MethodPut, "/admin/settings/otp", map[string]any{"max_attempts": 2}, "", "")
	require.Equal(t, http.StatusOK, status)

	status, body := ta.do(t, http.MethodGet, "/admin/settings", nil, "", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"issuance":{},"otp":{"max_attempts":2}}`, string(body))

	status, _ = ta.do(t, http.MethodDelete, "/admin/settings/otp", nil, "", "")
	require.Equal(t, http.StatusNoContent, status)
	status, body = ta.do(t, http.MethodGet, "/admin/settings/otp", nil, "", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"max_attempts":5}`, string(body))

	status, _ = ta.do(t, http.MethodDelete, "/admin/settings/federation", nil, "", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCertificateManagement(t *testing.T) {
	ta := newTestAdmin(t)
	confidence := 90
	svc := lifecycle.NewService(
		ta.backends.Certificates, ta.backends.Events,
		lifecycle.WithPolicy(lifecycle.StaticPolicy{RequireConfirmation: true}),
	)
	cert, err := svc.Issue(
		context.Background(), "registrar", lifecycle.IssueRequest{
			Fields: identity.Fields{
				StudentName:     "Grace Hopper",
				Degree:          "PhD Mathematics",
				InstitutionName: "Yale University",
			},
			AIConfidenceScore: &confidence,
		},
	)
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, cert.Status)

	path := "/admin/certificates/" + cert.CertificateID
	status, _ := ta.do(t, http.MethodPost, path+"/activate", nil, "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, ta.changes)

	status, _ = ta.do(t, http.MethodPost, path+"/revoke", map[string]string{"reason": "fraud"}, "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, ta.changes)

	status, body := ta.do(t, http.MethodPost, path+"/revoke", nil, "", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, string(body), "already_revoked")
	assert.Equal(t, 2, ta.changes)

	status, _ = ta.do(t, http.MethodPost, "/admin/certificates/EDU-0-AAAAA/revoke", nil, "", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = ta.do(t, http.MethodGet, "/admin/certificates?status=revoked", nil, "", "")
	require.Equal(t, http.StatusOK, status)
	var certs []model.Certificate
	require.NoError(t, json.Unmarshal(body, &certs))
	require.Len(t, certs, 1)
	assert.Equal(t, "fraud", certs[0].RevocationReason)

	status, _ = ta.do(t, http.MethodGet, "/admin/certificates?status=bogus", nil, "", "")
	assert.Equal(t, http.StatusBadRequest, status)
}
