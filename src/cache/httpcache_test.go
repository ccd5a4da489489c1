package cache

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilithGames/buildcache/src/files"
)

// memHTTPServer is a minimal in-memory PUT/GET server standing in for a real cache
// server, enough to exercise httpCache's wire format without a network dependency.
func memHTTPServer(t *testing.T) (*httptest.Server, func()) {
	var mu sync.Mutex
	store := map[string][]byte{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			store[r.URL.Path] = body
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			body, ok := store[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(body)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	srv := httptest.NewServer(handler)
	return srv, srv.Close
}

func TestHTTPCacheLookupMissReturnsFalse(t *testing.T) {
	srv, closeFn := memHTTPServer(t)
	defer closeFn()
	c := NewHTTPCache(srv.URL, true, 5*time.Second)

	_, ok, err := c.Lookup(digestOf("missing"), files.Table{}, false, false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHTTPCacheAddThenLookupRestoresFiles(t *testing.T) {
	srv, closeFn := memHTTPServer(t)
	defer closeFn()
	c := NewHTTPCache(srv.URL, true, 5*time.Second)

	srcDir := t.TempDir()
	objPath := filepath.Join(srcDir, "out.o")
	require.NoError(t, os.WriteFile(objPath, []byte("remote object bytes"), 0644))

	key := digestOf("remote-compile")
	table := files.Table{{Role: "object", Path: objPath, Required: true}}
	require.NoError(t, c.Add(key, Entry{Stdout: []byte("built")}, table, false))
	require.NoError(t, os.Remove(objPath))

	entry, ok, err := c.Lookup(key, table, false, false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("built"), entry.Stdout)

	restored, err := os.ReadFile(objPath)
	require.NoError(t, err)
	assert.Equal(t, "remote object bytes", string(restored))
}

func TestHTTPCacheReadOnlyAddIsNoOp(t *testing.T) {
	srv, closeFn := memHTTPServer(t)
	defer closeFn()
	c := NewHTTPCache(srv.URL, false, 5*time.Second)

	key := digestOf("readonly")
	require.NoError(t, c.Add(key, Entry{}, files.Table{}, false))

	_, ok, err := c.Lookup(key, files.Table{}, false, false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHTTPCacheDirectBindingRoundTrip(t *testing.T) {
	srv, closeFn := memHTTPServer(t)
	defer closeFn()
	c := NewHTTPCache(srv.URL, true, 5*time.Second)

	implicitDir := t.TempDir()
	headerPath := filepath.Join(implicitDir, "foo.h")
	require.NoError(t, os.WriteFile(headerPath, []byte("#define X 1"), 0644))

	preprocessorKey := digestOf("remote-preprocessed")
	objPath := filepath.Join(implicitDir, "foo.o")
	require.NoError(t, os.WriteFile(objPath, []byte("obj"), 0644))
	table := files.Table{{Role: "object", Path: objPath, Required: true}}
	require.NoError(t, c.Add(preprocessorKey, Entry{}, table, false))

	directKey := digestOf("remote-direct")
	require.NoError(t, c.AddDirect(directKey, preprocessorKey, []string{headerPath}))

	_, ok, err := c.LookupDirect(directKey, table, false, false)
	require.NoError(t, err)
	assert.True(t, ok)
}
