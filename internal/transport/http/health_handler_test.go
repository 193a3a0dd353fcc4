package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitpipe/internal/services"
	"pitpipe/internal/shared/testutil"
	"pitpipe/pkg/contracts"
)

func TestHealthHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	svc := services.NewHealthService("1.2.3", logger)
	storeUp := true
	svc.AddCheck("store", func(ctx context.Context) error {
		if !storeUp {
			return errors.New("database is locked")
		}
		return nil
	})

	h := NewHealthHandler(svc, logger)
	r := chi.NewRouter()
	r.Get("/healthz", h.HealthCheck)
	r.Get("/readyz", h.ReadinessCheck)
	r.Get("/livez", h.LivenessCheck)
	r.Get("/version", h.Version)

	decode := func(body []byte) map[string]any {
		var out map[string]any
		require.NoError(t, json.Unmarshal(body, &out))
		return out
	}

	rec := serve(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(rec.Body.Bytes())["status"])
	assert.Equal(t, "1.2.3", decode(rec.Body.Bytes())["version"])

	rec = serve(r, http.MethodGet, "/livez", "")
	assert.Equal(t, "alive", decode(rec.Body.Bytes())["status"])

	rec = serve(r, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode(rec.Body.Bytes())["status"])

	storeUp = false
	rec = serve(r, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(rec.Body.Bytes())
	assert.Equal(t, "not_ready", body["status"])
	assert.Contains(t, rec.Body.String(), "database is locked")

	rec = serve(r, http.MethodGet, "/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contracts.Version, decode(rec.Body.Bytes())["version"])
	assert.Equal(t, contracts.APIVersion, decode(rec.Body.Bytes())["api_version"])
}
