package syncserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuanying/epub-reader/internal/domain"
	"github.com/yuanying/epub-reader/internal/settings"
	"github.com/yuanying/epub-reader/internal/store"
	"github.com/yuanying/epub-reader/internal/syncclient"
)

const testUUID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

func newTestServer(t *testing.T, cfg Config) (*Server, *DB) {
	t.Helper()
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewServer(db, cfg, nil), db
}

func postSync(t *testing.T, s *Server, req domain.SyncRequest) (*httptest.ResponseRecorder, domain.SyncResponse) {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/user/sync", bytes.NewReader(body)))
	var resp domain.SyncResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestGenerate(t *testing.T) {
	s, db := newTestServer(t, DefaultConfig())

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/user/generate", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp domain.GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	_, err := uuid.Parse(resp.Data)
	require.NoError(t, err)

	ok, err := db.UserExists(context.Background(), resp.Data)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSync_InsertsUnknownBooks(t *testing.T) {
	s, db := newTestServer(t, DefaultConfig())

	w, resp := postSync(t, s, domain.SyncRequest{UserUUID: testUUID, Data: []domain.SyncBook{
		{Title: "A", LastReadIndex: 3, TotalIndex: 10, UpdatedAt: 100},
		{Title: "B", LastReadIndex: 1, TotalIndex: 5, UpdatedAt: 200},
	}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"A", "B"}, resp.ServerUpdates)
	assert.Empty(t, resp.UpdatedBooks)

	books, err := db.Books(context.Background(), testUUID)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, 3, books[0].LastReadIndex)
}

func TestBooks(t *testing.T) {
	s, _ := newTestServer(t, DefaultConfig())
	_, _ = postSync(t, s, domain.SyncRequest{UserUUID: testUUID, Data: []domain.SyncBook{
		{Title: "A", LastReadIndex: 7, TotalIndex: 10, UpdatedAt: 100},
	}})

	get := func(path string) (*httptest.ResponseRecorder, domain.SyncResponse) {
		w := httptest.NewRecorder()
		s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		var resp domain.SyncResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return w, resp
	}

	w, resp := get("/user/" + testUUID + "/books")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp.UpdatedBooks, 1)
	assert.Equal(t, "A", resp.UpdatedBooks[0].Title)
	assert.Equal(t, 7, resp.UpdatedBooks[0].LastReadIndex)

	w, _ = get("/user/" + uuid.New().String() + "/books")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = get("/user/not-a-uuid/books")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSync_NewerSideWins(t *testing.T) {
	s, db := newTestServer(t, DefaultConfig())
	_, _ = postSync(t, s, domain.SyncRequest{UserUUID: testUUID, Data: []domain.SyncBook{
		{Title: "A", LastReadIndex: 3, TotalIndex: 10, UpdatedAt: 100},
		{Title: "B", LastReadIndex: 1, TotalIndex: 5, UpdatedAt: 200},
		{Title: "C", LastReadIndex: 2, TotalIndex: 8, UpdatedAt: 300},
	}})

	// A is newer on the client, B older, C equal. E lives only on the
	// server.
	_, _ = postSync(t, s, domain.SyncRequest{UserUUID: testUUID, Data: []domain.SyncBook{
		{Title: "E", LastReadIndex: 4, TotalIndex: 9, UpdatedAt: 50},
	}})

	_, resp := postSync(t, s, domain.SyncRequest{UserUUID: testUUID, Data: []domain.SyncBook{
		{Title: "A", LastReadIndex: 7, TotalIndex: 10, UpdatedAt: 150},
		{Title: "B", LastReadIndex: 0, TotalIndex: 5, UpdatedAt: 20},
		{Title: "C", LastReadIndex: 2, TotalIndex: 8, UpdatedAt: 300},
	}})
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"A"}, resp.ServerUpdates)

	var titles []string
	for _, b := range resp.UpdatedBooks {
		titles = append(titles, b.Title)
	}
	assert.ElementsMatch(t, []string{"B", "E"}, titles)

	books, err := db.Books(context.Background(), testUUID)
	require.NoError(t, err)
	for _, b := range books {
		if b.Title == "A" {
			assert.Equal(t, 7, b.LastReadIndex)
			assert.Equal(t, int64(150), b.UpdatedAt)
		}
	}
}

func TestSync_UsersAreIsolated(t *testing.T) {
	s, _ := newTestServer(t, DefaultConfig())
	_, _ = postSync(t, s, domain.SyncRequest{UserUUID: testUUID, Data: []domain.SyncBook{
		{Title: "A", UpdatedAt: 100},
	}})

	_, resp := postSync(t, s, domain.SyncRequest{UserUUID: uuid.New().String()})
	assert.True(t, resp.Success)
	assert.Empty(t, resp.UpdatedBooks)
}

func TestSync_InvalidRequest(t *testing.T) {
	s, _ := newTestServer(t, DefaultConfig())

	w, resp := postSync(t, s, domain.SyncRequest{UserUUID: "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "user_uuid")

	w = httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/user/sync", bytes.NewReader([]byte("{"))))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, Config{RequestsPerSecond: 0.001, Burst: 1})

	req := func(ip string) int {
		r := httptest.NewRequest(http.MethodGet, "/health", nil)
		r.Header.Set("X-Forwarded-For", ip)
		w := httptest.NewRecorder()
		s.ServeHTTP(w, r)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, req("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, req("10.0.0.1"))
	assert.Equal(t, http.StatusOK, req("10.0.0.2"))
}

func TestClientRoundTrip(t *testing.T) {
	s, _ := newTestServer(t, Config{RequestsPerSecond: 100, Burst: 100})
	ts := httptest.NewServer(s)
	defer ts.Close()
	ctx := context.Background()

	openStore := func(rec domain.BookRecord) (*store.Store, string) {
		st, err := store.OpenInMemory(nil)
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
		key, err := st.Add(ctx, rec)
		require.NoError(t, err)
		return st, key
	}

	prefs := settings.Default()
	prefs.ServerAddress = ts.URL

	user, err := syncclient.New(nil, prefs).Generate(ctx)
	require.NoError(t, err)
	prefs.UUID = user

	phone, _ := openStore(domain.BookRecord{Title: "A", LastReadIndex: 12, TotalIndex: 40, UpdatedAt: 2000, File: []byte("x")})
	tablet, tabletKey := openStore(domain.BookRecord{Title: "A", LastReadIndex: 3, TotalIndex: 40, UpdatedAt: 1000, File: []byte("x")})

	res, err := syncclient.New(phone, prefs).Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, res.Uploaded)

	res, err = syncclient.New(tablet, prefs).Sync(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Uploaded)
	assert.Equal(t, []string{"A"}, res.Downloaded)

	rec, err := tablet.Get(ctx, tabletKey)
	require.NoError(t, err)
	assert.Equal(t, 12, rec.LastReadIndex)
	assert.Equal(t, int64(2000), rec.UpdatedAt)

	res, err = syncclient.New(tablet, prefs).Sync(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Uploaded)
	assert.Empty(t, res.Downloaded)
}
