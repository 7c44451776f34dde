package server

import (
	"html/template"
	"log"
	"net/http"
)

var indexTemplate = template.Must(template.New("index").Parse(`<html>
<head><title>Camera Tracking</title></head>
<body>
    <h2>Camera Tracking Feed</h2>
    <p>Mode: {{.Mode}}</p>
    <img src="/video_feed">
    <br><br>
    <a href="/start/face">Start Face Tracking</a><br>
    <a href="/start/object">Start Object Tracking</a><br>
    <a href="/stop">Stop Tracking</a>
</body>
</html>
`))

// handleIndex serves the control panel at the root path only.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct{ Mode string }{Mode: s.config.Controller.CurrentMode().String()}
	if err := indexTemplate.Execute(w, data); err != nil {
		log.Printf("Failed to render index: %v", err)
	}
}
