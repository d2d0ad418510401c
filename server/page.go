package server

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/savegram/grab-server/resolve"
)

var page = `<!doctype html>
<html lang="en">
<head>
<title>Grab Server</title>
<meta charset="utf-8">
<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/water.css@2/out/water.css">
</head>
<body>
	<h1>Grab Server Tester</h1>

	<form method="POST">
		<label for="input">Post URL</label>
		<input type="url" id="input" name="input" placeholder="https://www.instagram.com/reel/..." value="{{.Input}}" style="width: 100%">
		<select name="mode">
			<option value="auto" {{if eq .Mode "auto"}}selected{{end}}>Video / Photo</option>
			<option value="audio" {{if eq .Mode "audio"}}selected{{end}}>Audio (MP3)</option>
		</select>
		<button type="submit">Resolve</button>
	</form>

	{{if .Error}}
		<h2>Error</h2>
		<pre><code>{{.Error}}</code></pre>
	{{end}}

	{{if .Single}}
		<h2>Result</h2>
		<p><a href="{{.Single.URL}}&download=true" target="_blank">Download {{.Single.Filename}}</a></p>
		{{if hasSuffix .Single.Filename ".mp3"}}
			<audio controls src="{{.Single.URL}}"></audio>
		{{else if isPhoto .Single.Filename}}
			<img src="{{.Single.URL}}" alt="Media" style="max-width: 400px; height: auto;">
		{{else}}
			<video controls width="400" src="{{.Single.URL}}"></video>
		{{end}}
	{{end}}

	{{if .Picker}}
		<h2>Gallery ({{len .Picker}} items)</h2>
		<p>Download each item individually; space out clicks so the browser keeps up.</p>
		{{range .Picker}}
			<p>
				<a href="{{.URL}}&download=true" target="_blank">Download {{.Type}}</a>
				{{if eq .Type "photo"}}<br><img src="{{.URL}}" alt="Photo" style="max-width: 200px; height: auto;">{{end}}
			</p>
		{{end}}
	{{end}}

	{{if .History}}
		<h2>Recent Downloads</h2>
		<ul>
		{{range .History}}
			<li>{{.Title}} — {{.SourceURL}} ({{.Kind}}, {{.Timestamp.Format "Jan 2 15:04"}})</li>
		{{end}}
		</ul>
		<form method="POST"><button type="submit" name="clear" value="1">Clear History</button></form>
	{{end}}
</body>
</html>`

type pageMedia struct {
	URL      string
	Filename string
}

type pageData struct {
	Input   string
	Mode    string
	Single  *pageMedia
	Picker  []pickerItem
	Error   string
	History []pageHistoryEntry
}

type pageHistoryEntry struct {
	Title     string
	SourceURL string
	Kind      string
	Timestamp time.Time
}

var photoSuffixes = []string{".jpg", ".jpeg", ".png", ".webp", ".heic"}

var tmpl = template.Must(
	template.New("page").
		Funcs(template.FuncMap{
			"hasSuffix": strings.HasSuffix,
			"isPhoto": func(name string) bool {
				for _, suffix := range photoSuffixes {
					if strings.HasSuffix(name, suffix) {
						return true
					}
				}
				return false
			},
		}).
		Parse(page),
)

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := pageData{Mode: "auto"}

	switch r.Method {
	case http.MethodGet:
		// nothing to resolve
	case http.MethodPost:
		if r.FormValue("clear") == "1" {
			if s.History != nil {
				if err := s.History.Clear(); err != nil {
					slog.Warn("clearing history failed", "err", err)
				}
			}
			break
		}

		data.Input = r.FormValue("input")
		if mode := r.FormValue("mode"); mode != "" {
			data.Mode = mode
		}

		ctx, cancel := context.WithTimeout(r.Context(), ResolveDeadline)
		res, err := s.Resolver.Resolve(ctx, resolve.Request{URL: data.Input, Mode: resolve.Mode(data.Mode)})
		cancel()
		if err != nil {
			data.Error = err.Error()
			break
		}

		out := s.presentResult(res, resolve.Mode(data.Mode))
		s.recordHistory(data.Input, res, out)
		if out.Status == "picker" {
			data.Picker = out.Picker
		} else {
			data.Single = &pageMedia{URL: out.URL, Filename: out.Filename}
		}
	default:
		http.NotFound(w, r)
		return
	}

	data.History = s.pageHistory()
	if err := tmpl.Execute(w, data); err != nil {
		slog.Error("template execute error", "err", err)
	}
}

func (s *Server) pageHistory() []pageHistoryEntry {
	if s.History == nil {
		return nil
	}
	entries, err := s.History.Entries()
	if err != nil {
		slog.Warn("loading history failed", "err", err)
		return nil
	}
	out := make([]pageHistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = pageHistoryEntry{
			Title:     e.Title,
			SourceURL: e.SourceURL,
			Kind:      e.Kind,
			Timestamp: e.Timestamp,
		}
	}
	return out
}
