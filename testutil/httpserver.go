package testutil

import (
	"net/http/httptest"
	"testing"

	"github.com/kkloberdanz/jobrun/httpapi"
	"github.com/kkloberdanz/jobrun/registry"
)

// StartServer spins up an httpapi server backed by a fresh registry (scratch
// directories rooted at t.TempDir()) on 127.0.0.1 with an OS-assigned port,
// for integration tests that need a real HTTP round trip. The server is
// closed automatically when the test finishes.
func StartServer(t *testing.T) (addr string, reg *registry.Registry) {
	t.Helper()

	reg = registry.New(t.TempDir())
	srv := httpapi.New(reg)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return ts.URL, reg
}
