package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"license-engine/internal/api"
	"license-engine/internal/database"
	"license-engine/internal/licensing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, ttl time.Duration, diagnostics *database.Diagnostics) *httptest.Server {
	t.Helper()

	privateKey, publicKey, err := licensing.GenerateKeys()
	require.NoError(t, err)

	now := time.Now()
	token, err := licensing.CreateToken(privateKey, licensing.Claims{
		Issuer:    "license-engine-test",
		Subject:   "cust-7",
		IssuedAt:  now.Add(-time.Minute).Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
		Tier:      licensing.TierProfessional,
		Features:  []string{"drift-rag-advanced", "inference-engine"},
		Limits:    map[string]int64{licensing.LimitMaxTenants: 25},
		Company:   "Globex",
		Contact:   "it@globex.test",
	})
	require.NoError(t, err)

	validator, err := licensing.NewValidator(licensing.Config{
		LicenseKey:   token,
		PublicKeyPEM: publicKey,
		CacheDir:     t.TempDir(),
	})
	require.NoError(t, err)

	if diagnostics != nil {
		validator.AttachDiagnostics(diagnostics)
	}

	r := chi.NewRouter()
	api.NewLicenseService(validator, diagnostics).AddRoutes(r)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()

	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func TestLicenseStatusEndpoint(t *testing.T) {
	server := newTestServer(t, 90*24*time.Hour, nil)

	var status map[string]any
	code := getJSON(t, server.URL+"/license/status", &status)

	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, status["valid"])
	assert.Equal(t, "professional", status["tier"])
	assert.Equal(t, "Globex", status["company"])
	assert.Contains(t, status["features"], "inference-engine")
	assert.NotContains(t, status, "expiring_soon")
}

func TestLicenseStatusFlagsExpiringSoon(t *testing.T) {
	server := newTestServer(t, 15*24*time.Hour, nil)

	var status map[string]any
	code := getJSON(t, server.URL+"/license/status", &status)

	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, status["valid"])
	assert.Equal(t, true, status["expiring_soon"])
}

func TestRevalidateEndpoint(t *testing.T) {
	server := newTestServer(t, 90*24*time.Hour, nil)

	t.Run("configured key", func(t *testing.T) {
		res, err := http.Post(server.URL+"/license/validate", "application/json", nil)
		require.NoError(t, err)
		defer res.Body.Close()

		require.Equal(t, http.StatusOK, res.StatusCode)

		var status map[string]any
		require.NoError(t, json.NewDecoder(res.Body).Decode(&status))
		assert.Equal(t, true, status["valid"])
	})

	t.Run("key override in body", func(t *testing.T) {
		body := strings.NewReader(`{"license_key": "not.a.license"}`)
		res, err := http.Post(server.URL+"/license/validate", "application/json", body)
		require.NoError(t, err)
		defer res.Body.Close()

		require.Equal(t, http.StatusOK, res.StatusCode)

		var status map[string]any
		require.NoError(t, json.NewDecoder(res.Body).Decode(&status))
		assert.Equal(t, false, status["valid"])
		assert.Equal(t, "malformed_token", status["reason"])
	})

	t.Run("malformed body", func(t *testing.T) {
		body := strings.NewReader(`{"license_key": `)
		res, err := http.Post(server.URL+"/license/validate", "application/json", body)
		require.NoError(t, err)
		defer res.Body.Close()

		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})
}

func TestDiagnosticsEndpoint(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		server := newTestServer(t, 90*24*time.Hour, nil)

		res, err := http.Get(server.URL + "/license/diagnostics")
		require.NoError(t, err)
		defer res.Body.Close()
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("configured", func(t *testing.T) {
		db, err := database.NewSqliteDatabase("file::memory:")
		require.NoError(t, err)
		diagnostics := database.NewDiagnostics(db)

		server := newTestServer(t, 90*24*time.Hour, diagnostics)

		var status map[string]any
		require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/license/status", &status))

		var summary map[string]any
		code := getJSON(t, server.URL+"/license/diagnostics", &summary)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, float64(1), summary["total"])
		assert.Equal(t, float64(1), summary["valid"])
	})
}
