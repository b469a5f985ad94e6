package panel

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandlerServesIndex(t *testing.T) {
	w := get(t, Handler(""), IndexPath)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<!DOCTYPE html>")
	assert.Contains(t, w.Body.String(), `src="/flashlight.js"`)
	assert.Equal(t, "no-cache, must-revalidate", w.Header().Get("Cache-Control"))
}

func TestHandlerServesScript(t *testing.T) {
	w := get(t, Handler(""), ScriptPath)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "javascript")
	assert.Contains(t, w.Body.String(), "/api/flashlight/current_state")
	assert.Contains(t, w.Body.String(), "/api/flashlight/ws")
}

func TestHandlerUnknownAsset(t *testing.T) {
	w := get(t, Handler(""), "/missing.css")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerServesFromDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<!DOCTYPE html><p>dev</p>"), 0o600))

	w := get(t, Handler(dir), IndexPath)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<p>dev</p>")
}

func TestHandlerMissingDirectoryFallsBack(t *testing.T) {
	w := get(t, Handler(filepath.Join(t.TempDir(), "nope")), ScriptPath)
	assert.Equal(t, http.StatusOK, w.Code)
}
