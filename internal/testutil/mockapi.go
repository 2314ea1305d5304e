// Package testutil provides configurable mock YTS and Real-Debrid
// servers for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/Zerr0-C00L/YTS-RD/pkg/catalog"
)

// MockYTS is a mock YTS listing server. Pages are 1-based; requests past
// the configured pages return an empty movie list.
type MockYTS struct {
	server *httptest.Server
	mu     sync.RWMutex

	pages    [][]catalog.Movie
	pageSize int

	// Tracking
	RequestCount int
	LastQuery    map[string]string
}

// NewMockYTS creates a mock YTS server serving the given listing pages.
func NewMockYTS(pages ...[]catalog.Movie) *MockYTS {
	mock := &MockYTS{
		pages:    pages,
		pageSize: 50,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/list_movies.json" {
			http.NotFound(w, r)
			return
		}

		mock.mu.Lock()
		mock.RequestCount++
		mock.LastQuery = map[string]string{}
		for key := range r.URL.Query() {
			mock.LastQuery[key] = r.URL.Query().Get(key)
		}
		mock.mu.Unlock()

		mock.listHandler(w, r)
	}))

	return mock
}

// URL returns the mock server base URL.
func (m *MockYTS) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockYTS) Close() {
	m.server.Close()
}

// MovieCount returns the total number of movies across all pages.
func (m *MockYTS) MovieCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, page := range m.pages {
		count += len(page)
	}
	return count
}

// GetRequestCount returns the number of listing requests served.
func (m *MockYTS) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

func (m *MockYTS) listHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	var movies []catalog.Movie
	if page <= len(m.pages) {
		movies = m.pages[page-1]
	}

	// limit=1 is the movie-count probe; it still carries one movie.
	if r.URL.Query().Get("limit") == "1" && len(movies) > 1 {
		movies = movies[:1]
	}

	count := 0
	for _, p := range m.pages {
		count += len(p)
	}

	body := map[string]interface{}{
		"status":         "ok",
		"status_message": "Query was successful",
		"data": map[string]interface{}{
			"movie_count": count,
			"limit":       m.pageSize,
			"page_number": page,
			"movies":      movies,
		},
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}

// mockTorrent is one torrent held by the mock account.
type mockTorrent struct {
	ID     string `json:"id"`
	Hash   string `json:"hash"`
	Status string `json:"status"`
}

// MockDebrid is a stateful mock Real-Debrid server. Added magnets become
// account torrents; listing, selectFiles and delete operate on the
// in-memory account.
type MockDebrid struct {
	server *httptest.Server
	mu     sync.Mutex

	torrents []mockTorrent
	nextID   int
	pageSize int

	// FailAddCode, when non-zero, makes the next FailAddCount addMagnet
	// calls fail with that provider code.
	FailAddCode  int
	FailAddCount int

	// Tracking
	AddedMagnets []string
	SelectedIDs  []string
	DeletedIDs   []string
	LastAuth     string
}

// NewMockDebrid creates a mock Real-Debrid server pre-seeded with the
// given account hashes.
func NewMockDebrid(seedHashes ...string) *MockDebrid {
	mock := &MockDebrid{pageSize: 2500}
	for _, hash := range seedHashes {
		mock.torrents = append(mock.torrents, mockTorrent{
			ID:     mock.newID(),
			Hash:   hash,
			Status: "downloaded",
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/torrents", mock.torrentsHandler)
	mux.HandleFunc("/torrents/addMagnet", mock.addMagnetHandler)
	mux.HandleFunc("/torrents/selectFiles/", mock.selectFilesHandler)
	mux.HandleFunc("/torrents/delete/", mock.deleteHandler)

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.LastAuth = r.Header.Get("Authorization")
		mock.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))

	return mock
}

// URL returns the mock server base URL.
func (m *MockDebrid) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockDebrid) Close() {
	m.server.Close()
}

// Hashes returns the hashes currently in the mock account.
func (m *MockDebrid) Hashes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	hashes := make([]string, 0, len(m.torrents))
	for _, t := range m.torrents {
		hashes = append(hashes, t.Hash)
	}
	return hashes
}

// FailNextAdds makes the next count addMagnet calls fail with the given
// provider code.
func (m *MockDebrid) FailNextAdds(code, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailAddCode = code
	m.FailAddCount = count
}

func (m *MockDebrid) newID() string {
	m.nextID++
	return fmt.Sprintf("MOCK%04d", m.nextID)
}

func (m *MockDebrid) torrentsHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	activeOnly := r.URL.Query().Get("filter") == "active"

	var listing []mockTorrent
	for _, t := range m.torrents {
		if activeOnly && t.Status != "downloading" && t.Status != "queued" {
			continue
		}
		listing = append(listing, t)
	}

	start := (page - 1) * m.pageSize
	if start >= len(listing) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	end := start + m.pageSize
	if end > len(listing) {
		end = len(listing)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listing[start:end])
}

func (m *MockDebrid) addMagnetHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	magnet := r.PostFormValue("magnet")
	m.AddedMagnets = append(m.AddedMagnets, magnet)

	if m.FailAddCode != 0 && m.FailAddCount > 0 {
		m.FailAddCount--
		status := http.StatusForbidden
		if m.FailAddCode == 34 {
			status = http.StatusTooManyRequests
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":      "mock failure",
			"error_code": m.FailAddCode,
		})
		return
	}

	torrent := mockTorrent{
		ID:     m.newID(),
		Hash:   hashFromMagnet(magnet),
		Status: "queued",
	}
	m.torrents = append(m.torrents, torrent)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"id":  torrent.ID,
		"uri": "/torrents/info/" + torrent.ID,
	})
}

func (m *MockDebrid) selectFilesHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := strings.TrimPrefix(r.URL.Path, "/torrents/selectFiles/")
	m.SelectedIDs = append(m.SelectedIDs, id)

	for i := range m.torrents {
		if m.torrents[i].ID == id {
			m.torrents[i].Status = "downloading"
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.Error(w, "unknown torrent", http.StatusNotFound)
}

func (m *MockDebrid) deleteHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := strings.TrimPrefix(r.URL.Path, "/torrents/delete/")
	m.DeletedIDs = append(m.DeletedIDs, id)

	for i := range m.torrents {
		if m.torrents[i].ID == id {
			m.torrents = append(m.torrents[:i], m.torrents[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.Error(w, "unknown torrent", http.StatusNotFound)
}

// hashFromMagnet extracts the info hash from a magnet link.
func hashFromMagnet(magnet string) string {
	const marker = "urn:btih:"
	i := strings.Index(magnet, marker)
	if i < 0 {
		return ""
	}
	rest := magnet[i+len(marker):]
	if j := strings.IndexByte(rest, '&'); j >= 0 {
		rest = rest[:j]
	}
	return strings.ToLower(rest)
}
