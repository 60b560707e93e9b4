package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/painel-dev/painel/internal/broadcast"
	"github.com/painel-dev/painel/internal/cli/client"
	"github.com/painel-dev/painel/internal/cli/config"
	"github.com/painel-dev/painel/internal/session"
)

// memoryStore is an in-memory token store shared by the processes of a test
type memoryStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{tokens: make(map[string]string)}
}

func (m *memoryStore) SaveToken(origin, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[origin] = token
	return nil
}

func (m *memoryStore) LoadToken(origin string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[origin]
	if !ok {
		return "", session.ErrNotAuthenticated
	}
	return token, nil
}

func (m *memoryStore) DeleteToken(origin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, origin)
	return nil
}

func (m *memoryStore) get(origin string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[origin]
	return token, ok
}

// syncBuffer lets a test read output written by a running command
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// fakeAPI mocks the painel backend for alice/correct-pw
type fakeAPI struct {
	*httptest.Server
	token      string
	kpiCalls   atomic.Int32
	rejectAll  atomic.Bool
	lastQuery  client.QueryRequest
	queryMutex sync.Mutex
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	api := &fakeAPI{token: token}
	api.Server = httptest.NewServer(http.HandlerFunc(api.handle))
	t.Cleanup(api.Close)
	return api
}

func (f *fakeAPI) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/token" {
		r.ParseForm()
		if r.PostForm.Get("username") != "alice" || r.PostForm.Get("password") != "correct-pw" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Incorrect username or password"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": f.token, "token_type": "bearer"})
		return
	}

	if f.rejectAll.Load() || r.Header.Get("Authorization") != "Bearer "+f.token {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Could not validate credentials"}`))
		return
	}

	switch r.URL.Path {
	case "/api/me":
		w.Write([]byte(`{"id":"01J0","username":"alice","is_active":true}`))
	case "/api/kpis/gerais":
		f.kpiCalls.Add(1)
		w.Write([]byte(`{"vendas_mes_atual":150,"meta_exemplo":300,"total_produtos":42,"mes":"2024-05"}`))
	case "/api/products/P-001":
		w.Write([]byte(`{
			"id": "01J1",
			"product_code": "P-001",
			"product_name": "Widget",
			"created_at": "2024-01-01T00:00:00Z",
			"history": [
				{"id":"h1","date":"2024-03-31","opening_stock":60,"inbound_quantity":30,"sold_quantity":30,"closing_stock":60},
				{"id":"h2","date":"2024-04-30","opening_stock":60,"inbound_quantity":30,"sold_quantity":30,"closing_stock":60},
				{"id":"h3","date":"2024-05-31","opening_stock":60,"inbound_quantity":30,"sold_quantity":30,"closing_stock":60}
			]
		}`))
	case "/api/query":
		var req client.QueryRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.queryMutex.Lock()
		f.lastQuery = req
		f.queryMutex.Unlock()
		w.Write([]byte(`[
			{"product_code":"P-001","sold_quantity":90},
			{"product_code":"P;002","sold_quantity":12.5}
		]`))
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Not found"}`))
	}
}

func (f *fakeAPI) origin(t *testing.T) string {
	t.Helper()
	origin, err := client.Origin(f.URL)
	require.NoError(t, err)
	return origin
}

// testEnv bundles what several painel processes on one machine share
type testEnv struct {
	api    *fakeAPI
	store  *memoryStore
	hub    *broadcast.Hub
	server *config.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	api := newFakeAPI(t)
	return &testEnv{
		api:    api,
		store:  newMemoryStore(),
		hub:    broadcast.NewHub(),
		server: &config.Server{Alias: "test", URL: api.URL},
	}
}

// options returns the overrides for one process writing to out
func (e *testEnv) options(out *syncBuffer) []Option {
	return []Option{
		WithServer(e.server),
		WithTokenStore(e.store),
		WithChannel(e.hub.Open(broadcast.ChannelName)),
		WithOutput(out),
		WithLogger(zerolog.Nop()),
	}
}

// loggedIn stores a valid token as a previous login would have
func (e *testEnv) loggedIn(t *testing.T) {
	t.Helper()
	require.NoError(t, e.store.SaveToken(e.api.origin(t), e.api.token))
}

// otherProcess opens a session the way a second painel process would
func (e *testEnv) otherProcess(t *testing.T) *session.Manager {
	t.Helper()
	m, err := session.New(e.api.origin(t), e.store, client.New(e.api.URL), e.hub.Open(broadcast.ChannelName))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func mustChdir(t *testing.T, dir string) {
	t.Helper()

	originalDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(originalDir) })
}
