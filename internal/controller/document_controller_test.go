package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"collab-editor-be/internal/entity"
	"collab-editor-be/internal/pkg/serverutils"
	"collab-editor-be/internal/relay"
	"collab-editor-be/internal/repository/memory"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*fiber.App, *relay.Authenticator) {
	t.Helper()
	auth := relay.NewAuthenticator("controller-secret")
	updates := memory.NewDocumentUpdateRepository(time.Hour)
	require.NoError(t, updates.Append(context.Background(), &entity.DocumentUpdate{Document: "doc-42", Payload: []byte(`{"ops":[]}`)}))

	app := fiber.New(fiber.Config{ErrorHandler: serverutils.ErrorHandler})
	NewDocumentController(relay.NewHub(relay.HubConfig{}), updates, auth, time.Hour).RegisterRoutes(app.Group("/api"))
	return app, auth
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestDocumentController_Health(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["rooms"])
	assert.NotEmpty(t, data["instance"])
}

func TestDocumentController_StatusRequiresToken(t *testing.T) {
	app, auth := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/documents/doc-42", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	tok, err := auth.Issue("alice", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/documents/doc-42", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, "doc-42", data["document"])
	assert.Equal(t, false, data["open"])
	assert.Equal(t, float64(1), data["logged_updates"])
}

func TestDocumentController_RefreshSession(t *testing.T) {
	app, auth := newTestApp(t)

	tok, err := auth.Issue("alice", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/session/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := decode(t, resp)["data"].(map[string]interface{})
	user, err := auth.Verify(data["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "alice", user)

	bad := httptest.NewRequest(http.MethodPost, "/api/session/refresh", nil)
	bad.Header.Set("Authorization", "Bearer forged")
	resp, err = app.Test(bad)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
