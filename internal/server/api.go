package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/TobiSchelling/nexus/internal/links"
)

// handleLinks serves the tagged items. The key is checked before any data
// access; a rejected request gets an empty 401.
func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		s.log.Warn("read api rejected", "remote", r.RemoteAddr, "key_present", r.Header.Get(APIKeyHeader) != "")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	format, err := links.ParseFormat(q.Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	types := links.ParseTypes(append(q["type"], q["type[]"]...))

	list, err := s.links.Links(r.Context(), types)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := s.links.Write(&buf, format, list); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", s.links.ContentType(format))
	w.Write(buf.Bytes())
}

// authorized compares the key header with the configured secret by exact
// equality. An empty header or an unconfigured secret never matches.
func (s *Server) authorized(r *http.Request) bool {
	key := r.Header.Get(APIKeyHeader)
	return key != "" && s.apiKey != "" && key == s.apiKey
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
