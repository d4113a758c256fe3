// Package gallery serves the read-only HTTP surface over a board.Store: an
// index of every board, a per-board detail page, raw PNG/SVG endpoints, and
// a server-sent-events stream gallery pages use to auto-reload on commit.
// It is component F from SPEC_FULL.md §4.F, grounded on the teacher's chi
// routing idiom and on original_source/src/gallery.rs's HTML/CSS content.
package gallery

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/tobert/scry-mcp/board"
	"github.com/tobert/scry-mcp/codec"
)

const sseKeepAlive = 15 * time.Second

// Router builds the gallery's HTTP handler against store.
func Router(store *board.Store, log *logrus.Logger) http.Handler {
	if log == nil {
		log = logrus.New()
	}
	g := &gallery{store: store, log: log}

	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/gallery/", http.StatusPermanentRedirect)
	})
	r.Get("/gallery/", g.index)
	r.Get("/gallery/board/{name}", g.detail)
	r.Get("/gallery/board/{name}/png", g.png)
	r.Get("/gallery/board/{name}/svg", g.svg)
	r.Get("/gallery/events", g.events)
	return r
}

// URLFor returns the full URL of a board's detail page under base (or ""
// when base is empty), the value handed to mcp.GalleryURL by cmd/scry when
// the gallery is enabled.
func URLFor(base, name string) string {
	if base == "" {
		return ""
	}
	return base + "/gallery/board/" + codec.URLEncode(name)
}

type gallery struct {
	store *board.Store
	log   *logrus.Logger
}

type cardView struct {
	NameHTML  string
	NameURL   string
	HasImage  bool
	Width     uint32
	Height    uint32
	UpdatedAt string
}

func (g *gallery) index(w http.ResponseWriter, r *http.Request) {
	views := g.store.ListSortedBy(board.SortUpdatedDesc)
	cards := make([]cardView, 0, len(views))
	for _, v := range views {
		cards = append(cards, cardView{
			NameHTML:  v.Name,
			NameURL:   codec.URLEncode(v.Name),
			HasImage:  len(v.PNG) > 0,
			Width:     v.Width,
			Height:    v.Height,
			UpdatedAt: v.UpdatedAt.Format("15:04:05"),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, cards); err != nil {
		g.log.WithError(err).Warn("gallery index render failed")
	}
}

type detailView struct {
	Name       string
	NameURL    string
	Found      bool
	HasImage   bool
	ImageB64   string
	Width      uint32
	Height     uint32
	UpdatedAt  string
	HistoryLen int
	SVG        template.HTML
}

func (g *gallery) detail(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	view, ok := g.store.ReadSnapshot(name)

	d := detailView{Name: name, NameURL: codec.URLEncode(name), Found: ok}
	if ok {
		d.HasImage = len(view.PNG) > 0
		if d.HasImage {
			d.ImageB64 = base64.StdEncoding.EncodeToString(view.PNG)
		}
		d.Width, d.Height = view.Width, view.Height
		d.UpdatedAt = view.UpdatedAt.Format("2006-01-02 15:04:05 UTC")
		d.HistoryLen = view.HistoryLen
		d.SVG = template.HTML(codec.HTMLEscape(view.SVG))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := detailTemplate.Execute(w, d); err != nil {
		g.log.WithError(err).Warn("gallery detail render failed")
	}
}

func (g *gallery) png(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	view, ok := g.store.ReadSnapshot(name)
	if !ok || len(view.PNG) == 0 {
		http.Error(w, "Board not found or no render", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(view.PNG)
}

func (g *gallery) svg(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	view, ok := g.store.ReadSnapshot(name)
	if !ok || view.SVG == "" {
		http.Error(w, "Board not found or no SVG", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write([]byte(view.SVG))
}

// events streams board.Event as SSE. A subscriber that falls behind has
// older events dropped by the store itself (see board.Store.Publish); the
// handler's job is just to forward whatever arrives and keep the
// connection alive between commits.
func (g *gallery) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, unsubscribe := g.store.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			payload, err := json.Marshal(map[string]string{
				"board": ev.BoardName,
				"type":  ev.Kind.String(),
			})
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Scry Gallery</title>
<style>` + css + `</style>
</head>
<body>
<header><h1>Scry Gallery</h1></header>
<main class="grid">
{{if .}}
{{range .}}
<div class="card" onclick="location.href='/gallery/board/{{.NameURL}}'">
  <div class="card-img">
    {{if .HasImage}}<img src="/gallery/board/{{.NameURL}}/png" alt="{{.NameHTML}}" loading="lazy">
    {{else}}<div class="placeholder">No render yet</div>{{end}}
  </div>
  <div class="card-info">
    <h2>{{.NameHTML}}</h2>
    <span class="dim">{{.Width}}x{{.Height}} &middot; {{.UpdatedAt}}</span>
  </div>
</div>
{{end}}
{{else}}
<p class="empty">No boards yet. Use the whiteboard tool to create one.</p>
{{end}}
</main>
<script>` + sseReloadJS + `</script>
</body>
</html>`))

var detailTemplate = template.Must(template.New("detail").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Scry — {{.Name}}</title>
<style>` + css + `</style>
</head>
<body>
{{if not .Found}}
<header><h1>Board not found: {{.Name}}</h1></header>
<main><a href="/gallery/">Back to gallery</a></main>
{{else}}
<header>
  <a href="/gallery/" class="back">&larr; Gallery</a>
  <h1>{{.Name}}</h1>
  <span class="dim">{{.Width}}x{{.Height}} &middot; Updated {{.UpdatedAt}} &middot; {{.HistoryLen}} snapshots</span>
</header>
<main>
  {{if .HasImage}}
  <div class="board-img"><img src="data:image/png;base64,{{.ImageB64}}" alt="{{.Name}}"></div>
  <div class="links">
    <a href="/gallery/board/{{.NameURL}}/png">Raw PNG</a>
    <a href="/gallery/board/{{.NameURL}}/svg">Raw SVG</a>
  </div>
  {{else}}
  <p>No render yet.</p>
  {{end}}
  <details>
    <summary>SVG Source</summary>
    <pre><code>{{.SVG}}</code></pre>
  </details>
</main>
<script>` + sseBoardJS + `</script>
{{end}}
</body>
</html>`))

const sseReloadJS = `const es = new EventSource('/gallery/events');
es.onmessage = function(e) { location.reload(); };`

const sseBoardJS = `const es = new EventSource('/gallery/events');
es.onmessage = function(e) {
    const data = JSON.parse(e.data);
    if (data.board === {{.Name}}) {
        location.reload();
    }
};`

const css = `
:root {
    --bg: #1a1a2e;
    --surface: #16213e;
    --border: #0f3460;
    --text: #e0e0e0;
    --dim: #888;
    --accent: #e94560;
}
* { margin: 0; padding: 0; box-sizing: border-box; }
body {
    font-family: 'SF Mono', 'Cascadia Code', 'Fira Code', monospace;
    background: var(--bg);
    color: var(--text);
    min-height: 100vh;
}
header {
    padding: 1.5rem 2rem;
    border-bottom: 1px solid var(--border);
}
header h1 { font-size: 1.4rem; margin-bottom: 0.3rem; }
.back {
    color: var(--accent);
    text-decoration: none;
    font-size: 0.9rem;
}
.back:hover { text-decoration: underline; }
.dim { color: var(--dim); font-size: 0.85rem; }
main { padding: 2rem; }
.grid {
    display: grid;
    grid-template-columns: repeat(auto-fill, minmax(300px, 1fr));
    gap: 1.5rem;
}
.card {
    background: var(--surface);
    border: 1px solid var(--border);
    border-radius: 8px;
    overflow: hidden;
    cursor: pointer;
    transition: border-color 0.2s;
}
.card:hover { border-color: var(--accent); }
.card-img {
    aspect-ratio: 4/3;
    display: flex;
    align-items: center;
    justify-content: center;
    background: #111;
    overflow: hidden;
}
.card-img img {
    max-width: 100%;
    max-height: 100%;
    object-fit: contain;
}
.card-info { padding: 0.8rem 1rem; }
.card-info h2 { font-size: 1rem; margin-bottom: 0.2rem; }
.placeholder {
    color: var(--dim);
    font-size: 0.9rem;
}
.empty {
    color: var(--dim);
    text-align: center;
    padding: 4rem;
    font-size: 1.1rem;
}
.board-img {
    text-align: center;
    margin: 1rem 0;
    background: #111;
    padding: 1rem;
    border-radius: 8px;
}
.board-img img {
    max-width: 100%;
    height: auto;
}
.links {
    margin: 1rem 0;
    display: flex;
    gap: 1rem;
}
.links a {
    color: var(--accent);
    text-decoration: none;
    font-size: 0.9rem;
}
.links a:hover { text-decoration: underline; }
details {
    margin: 1.5rem 0;
    background: var(--surface);
    border: 1px solid var(--border);
    border-radius: 8px;
    padding: 1rem;
}
summary {
    cursor: pointer;
    font-weight: bold;
    margin-bottom: 0.5rem;
}
pre {
    overflow-x: auto;
    font-size: 0.8rem;
    line-height: 1.4;
    padding: 1rem;
    background: #111;
    border-radius: 4px;
}
`
