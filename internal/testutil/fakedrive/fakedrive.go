// Package fakedrive is an in-process HTTP fake of the token endpoint and the
// subset of the Drive v3 API used by the uploader. It is meant for tests.
package fakedrive

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
)

const folderMIMEType = "application/vnd.google-apps.folder"

var childQueryPattern = regexp.MustCompile(
	`^'((?:[^'\\]|\\.)*)' in parents and name = '((?:[^'\\]|\\.)*)' and trashed = false( and mimeType = '` +
		regexp.QuoteMeta(folderMIMEType) + `')?$`)

// Item is a file or folder held by the fake.
type Item struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType,omitempty"`
	Parents  []string `json:"parents,omitempty"`
	DriveID  string   `json:"driveId,omitempty"`
	Trashed  bool     `json:"trashed"`
	Size     int64    `json:"size,omitempty,string"`
}

// Upload records one multipart upload request.
type Upload struct {
	Name        string
	Parents     []string
	ContentType string
	UploadType  string
	Body        []byte
}

// Server is a fake token endpoint plus Drive API.
type Server struct {
	*httptest.Server

	// AccessToken is issued by the token endpoint and required on API calls.
	AccessToken string
	// RejectGrant makes the token endpoint answer 400 invalid_grant.
	RejectGrant bool
	// FailCreate makes folder creation answer 403 with this message when non-empty.
	FailCreate string
	// FailUpload makes uploads answer 400 with this message when non-empty.
	FailUpload string

	mu            sync.Mutex
	items         map[string]*Item
	order         []string
	nextID        int
	calls         map[string]int
	tokenRequests []url.Values
	queries       []url.Values
	uploads       []Upload
}

// Call names reported by Calls.
const (
	CallToken        = "token"
	CallGetFolder    = "get"
	CallSearch       = "search"
	CallCreateFolder = "create"
	CallUpload       = "upload"
)

// New starts a fake server. Callers must Close it.
func New() *Server {
	s := &Server{
		AccessToken: "fake-access-token",
		items:       make(map[string]*Item),
		calls:       make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// TokenURL is the URL of the fake token endpoint.
func (s *Server) TokenURL() string {
	return s.URL + "/token"
}

// Endpoint is the Drive API base path, for option.WithEndpoint.
func (s *Server) Endpoint() string {
	return s.URL + "/drive/v3/"
}

// AddFolder stores a folder and returns it.
func (s *Server) AddFolder(id, name, parentID string, trashed bool) *Item {
	return s.add(&Item{ID: id, Name: name, MimeType: folderMIMEType, Parents: parentsOf(parentID), Trashed: trashed})
}

// AddFile stores a plain file and returns it.
func (s *Server) AddFile(id, name, parentID string) *Item {
	return s.add(&Item{ID: id, Name: name, MimeType: "application/octet-stream", Parents: parentsOf(parentID)})
}

// Calls returns how many times the named endpoint was hit.
func (s *Server) Calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

// TotalCalls returns the number of requests served, token exchange included.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// TokenRequests returns the form bodies posted to the token endpoint.
func (s *Server) TokenRequests() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.tokenRequests...)
}

// SearchRequests returns the query parameters of each files.list call.
func (s *Server) SearchRequests() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.queries...)
}

// Uploads returns the recorded uploads.
func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.uploads...)
}

// Item returns a stored item by id.
func (s *Server) Item(id string) (*Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	return it, ok
}

func parentsOf(parentID string) []string {
	if parentID == "" {
		return nil
	}
	return []string{parentID}
}

func (s *Server) add(it *Item) *Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it.ID == "" {
		s.nextID++
		it.ID = fmt.Sprintf("gen-%d", s.nextID)
	}
	if _, exists := s.items[it.ID]; !exists {
		s.order = append(s.order, it.ID)
	}
	s.items[it.ID] = it
	return it
}

func (s *Server) count(name string) {
	s.mu.Lock()
	s.calls[name]++
	s.mu.Unlock()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/token" {
		s.handleToken(w, r)
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+s.AccessToken {
		writeError(w, http.StatusUnauthorized, "Request had invalid authentication credentials.")
		return
	}

	switch {
	case r.Method == http.MethodPost && (strings.HasPrefix(r.URL.Path, "/upload/") || r.URL.Query().Get("uploadType") != ""):
		s.handleUpload(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/files"):
		s.handleCreate(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/files"):
		s.handleSearch(w, r)
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/files/"):
		s.handleGet(w, r)
	default:
		writeError(w, http.StatusNotFound, "unknown route "+r.Method+" "+r.URL.Path)
	}
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.count(CallToken)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.tokenRequests = append(s.tokenRequests, r.PostForm)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if s.RejectGrant {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": s.AccessToken,
		"token_type":   "Bearer",
		"expires_in":   3599,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.count(CallGetFolder)
	id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	it, ok := s.Item(id)
	if !ok {
		writeError(w, http.StatusNotFound, "File not found: "+id+".")
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.count(CallSearch)
	query := r.URL.Query()
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()

	m := childQueryPattern.FindStringSubmatch(query.Get("q"))
	if m == nil {
		writeError(w, http.StatusBadRequest, "Invalid Value")
		return
	}
	parentID, name, foldersOnly := unescape(m[1]), unescape(m[2]), m[3] != ""

	s.mu.Lock()
	files := []*Item{}
	for _, id := range s.order {
		it := s.items[id]
		if it.Trashed || it.Name != name || !contains(it.Parents, parentID) {
			continue
		}
		if foldersOnly && it.MimeType != folderMIMEType {
			continue
		}
		files = append(files, it)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.count(CallCreateFolder)
	if s.FailCreate != "" {
		writeError(w, http.StatusForbidden, s.FailCreate)
		return
	}
	var it Item
	if err := json.NewDecoder(r.Body).Decode(&it); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	it.ID = ""
	writeJSON(w, http.StatusOK, s.add(&it))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.count(CallUpload)
	if s.FailUpload != "" {
		writeError(w, http.StatusBadRequest, s.FailUpload)
		return
	}

	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		writeError(w, http.StatusBadRequest, "expected multipart body")
		return
	}
	mr := multipart.NewReader(r.Body, params["boundary"])

	metaPart, err := mr.NextPart()
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing metadata part")
		return
	}
	var meta Item
	if err := json.NewDecoder(metaPart).Decode(&meta); err != nil {
		writeError(w, http.StatusBadRequest, "bad metadata: "+err.Error())
		return
	}

	mediaPart, err := mr.NextPart()
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing media part")
		return
	}
	body, err := io.ReadAll(mediaPart)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	s.uploads = append(s.uploads, Upload{
		Name:        meta.Name,
		Parents:     meta.Parents,
		ContentType: mediaPart.Header.Get("Content-Type"),
		UploadType:  r.URL.Query().Get("uploadType"),
		Body:        body,
	})
	s.mu.Unlock()

	it := s.add(&Item{
		Name:     meta.Name,
		MimeType: mediaPart.Header.Get("Content-Type"),
		Parents:  meta.Parents,
		Size:     int64(len(body)),
	})
	writeJSON(w, http.StatusOK, it)
}

func unescape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": msg,
		},
	})
}
