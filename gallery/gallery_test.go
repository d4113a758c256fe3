package gallery

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobert/scry-mcp/board"
)

func seedBoard(t *testing.T, store *board.Store, name string) {
	t.Helper()
	ns, _ := store.GetOrCreate(name, 10, 10)
	store.Commit(name, "<svg><rect/></svg>", []byte{0x89, 'P', 'N', 'G'}, ns, 10, 10, time.Now().UTC())
}

func TestIndexListsBoards(t *testing.T) {
	store := board.NewStore(nil)
	seedBoard(t, store, "alpha")

	r := Router(store, nil)
	req := httptest.NewRequest(http.MethodGet, "/gallery/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alpha")
}

func TestRootRedirectsToGalleryIndex(t *testing.T) {
	store := board.NewStore(nil)
	r := Router(store, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusPermanentRedirect, w.Code)
	assert.Equal(t, "/gallery/", w.Header().Get("Location"))
}

func TestBoardDetailFound(t *testing.T) {
	store := board.NewStore(nil)
	seedBoard(t, store, "demo")

	r := Router(store, nil)
	req := httptest.NewRequest(http.MethodGet, "/gallery/board/demo", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "demo")
	assert.Contains(t, w.Body.String(), "Raw PNG")
}

func TestBoardDetailEscapesSVGSource(t *testing.T) {
	store := board.NewStore(nil)
	ns, _ := store.GetOrCreate("escaped", 10, 10)
	store.Commit("escaped", "<svg><script>alert(1)</script></svg>", []byte{0x89}, ns, 10, 10, time.Now().UTC())

	r := Router(store, nil)
	req := httptest.NewRequest(http.MethodGet, "/gallery/board/escaped", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "<script>alert(1)</script>")
	assert.Contains(t, w.Body.String(), "&lt;script&gt;")
}

func TestBoardDetailNotFound(t *testing.T) {
	store := board.NewStore(nil)
	r := Router(store, nil)
	req := httptest.NewRequest(http.MethodGet, "/gallery/board/ghost", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Board not found")
}

func TestBoardPNGServesRawBytes(t *testing.T) {
	store := board.NewStore(nil)
	seedBoard(t, store, "pngboard")

	r := Router(store, nil)
	req := httptest.NewRequest(http.MethodGet, "/gallery/board/pngboard/png", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
}

func TestBoardPNGMissingReturns404(t *testing.T) {
	store := board.NewStore(nil)
	r := Router(store, nil)
	req := httptest.NewRequest(http.MethodGet, "/gallery/board/nope/png", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBoardSVGServesRawMarkup(t *testing.T) {
	store := board.NewStore(nil)
	seedBoard(t, store, "svgboard")

	r := Router(store, nil)
	req := httptest.NewRequest(http.MethodGet, "/gallery/board/svgboard/svg", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "<rect/>")
}

func TestURLForEmptyBaseIsEmpty(t *testing.T) {
	assert.Equal(t, "", URLFor("", "anything"))
}

func TestURLForEncodesName(t *testing.T) {
	got := URLFor("http://localhost:8080", "my board")
	assert.True(t, strings.HasPrefix(got, "http://localhost:8080/gallery/board/"))
	assert.Contains(t, got, "my%20board")
}
