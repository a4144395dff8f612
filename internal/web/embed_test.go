package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRegisterStaticRoutes(t *testing.T) {
	fsys := fstest.MapFS{
		"index.html":    {Data: []byte("<html>dashboard</html>")},
		"assets/app.js": {Data: []byte("console.log('app')")},
	}
	e := echo.New()
	e.GET("/api/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	RegisterStaticRoutes(e, fsys)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dashboard")

	rec = get("/settings")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dashboard")

	rec = get("/assets/app.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "console.log")
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")

	assert.Equal(t, http.StatusOK, get("/api/health").Code)
	assert.Equal(t, http.StatusNotFound, get("/api/missing").Code)
}

func TestHasIndex(t *testing.T) {
	assert.False(t, hasIndex(fstest.MapFS{}))
	assert.True(t, hasIndex(fstest.MapFS{"index.html": {}}))
	assert.False(t, HasEmbeddedFiles())
}
