package dashboard

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	"kobomedia/pkg/harvester"
	"kobomedia/pkg/history"
)

const recentRunsOnPage = 10

var indexTemplate = template.Must(template.New("index").Funcs(template.FuncMap{
	"seconds": func(d time.Duration) string {
		return formatSeconds(d.Seconds())
	},
	"when": func(t time.Time) string {
		return t.Local().Format("2006-01-02 15:04")
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>kobomedia</title>
<style>
body { font-family: sans-serif; margin: 2em auto; max-width: 60em; }
label { display: block; margin-top: .6em; }
table { border-collapse: collapse; margin-top: 1em; }
td, th { border: 1px solid #ccc; padding: .3em .6em; }
.error { color: #b00; }
.warning { color: #b60; }
</style>
</head>
<body>
<h1>Kobo media downloader</h1>

{{with .Result}}
<section>
<h2>Run {{.Status}}</h2>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .Warning}}<p class="warning">{{.Warning}}</p>{{end}}
<table>
<tr><th>Successful</th><th>Failed</th><th>Skipped</th><th>Pages</th><th>Submissions</th></tr>
<tr><td>{{.Stats.Successful}}</td><td>{{.Stats.Failed}}</td><td>{{.Stats.Skipped}}</td><td>{{.Stats.Pages}}</td><td>{{.Stats.Submissions}}</td></tr>
</table>
{{if .ArchiveURL}}<p><a href="{{.ArchiveURL}}">Download ZIP</a></p>{{end}}
{{if .PublishedURL}}<p>Published to {{.PublishedURL}}</p>{{end}}
{{if .Log}}<pre>{{range .Log}}{{.}}
{{end}}</pre>{{end}}
</section>
{{end}}

<form method="post" action="/runs">
<label>Asset UID <input name="asset_uid" value="{{.Options.AssetUID}}" required></label>
<label>Question names <input name="question_names" value="{{.Options.QuestionNames}}"></label>
<label>Page size <input name="limit" type="number" min="1" value="{{.Options.Limit}}"></label>
<label>Query <input name="query" value="{{.Options.Query}}"></label>
<label>Chunk size <input name="chunk_size" type="number" min="1" value="{{.Options.ChunkSize}}"></label>
<label>Throttle (seconds) <input name="throttle" type="number" min="0" step="0.1" value="{{seconds .Options.Throttle}}"></label>
<label>Verbosity
<select name="verbosity">
{{range $v := .Levels}}<option value="{{$v}}"{{if eq $v $.Options.Verbosity}} selected{{end}}>{{$v}}</option>{{end}}
</select>
</label>
{{if .AuthRequired}}<label>Access token <input name="access_token" type="password"></label>{{end}}
<p><button type="submit">Download media</button></p>
</form>

{{if .Runs}}
<h2>Recent runs</h2>
<table>
<tr><th>Started</th><th>Asset</th><th>Status</th><th>Saved</th><th>Failed</th><th>Skipped</th></tr>
{{range .Runs}}<tr><td>{{when .StartedAt}}</td><td>{{.AssetUID}}</td><td>{{.Status}}</td><td>{{.Successful}}</td><td>{{.Failed}}</td><td>{{.Skipped}}</td></tr>
{{end}}</table>
{{end}}
</body>
</html>
`))

type indexData struct {
	Options      harvester.Options
	Levels       []int
	AuthRequired bool
	Result       *runResponse
	Runs         []history.Run
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	s.renderIndex(w, r, http.StatusOK, nil, nil)
}

// renderIndex draws the page. A nil opts fills the form from configuration.
func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, opts *harvester.Options, result *runResponse) {
	data := indexData{
		Options:      harvester.OptionsFromConfig(s.config, ""),
		Levels:       []int{1, 2, 3},
		AuthRequired: s.config.Dashboard.JWTSecret != "",
		Result:       result,
	}
	if opts != nil {
		data.Options = *opts
	}
	// the run list is behind auth when a secret is set
	if !data.AuthRequired || ClaimsFromContext(r.Context()) != nil {
		runs, err := s.recentRuns(r, recentRunsOnPage)
		if err != nil {
			s.logger.WithError(err).Warn("failed to list runs for the index page")
		}
		data.Runs = runs
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		s.logger.WithError(err).Error("failed to render index page")
		writeError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
