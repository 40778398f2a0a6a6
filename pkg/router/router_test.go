package router

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterTracksRoutesAndPaths(t *testing.T) {
	r := New()
	handler := func(w http.ResponseWriter, req *http.Request) {}

	r.GET("/api/v1/runs", handler)
	r.GET("/api/v1/runs/*", handler)

	require.Contains(t, r.Routes(), "GET:/api/v1/runs")
	require.Contains(t, r.Routes(), "GET:/api/v1/runs/*")
	require.True(t, r.Paths()["/api/v1/runs"])
}

func TestMatchWildcardRoute(t *testing.T) {
	// Middle wildcard matches exactly one segment.
	require.True(t, matchWildcardRoute("/api/v1/runs/run-1/files", "/api/v1/runs/*/files"))
	require.False(t, matchWildcardRoute("/api/v1/runs/run-1/errors", "/api/v1/runs/*/files"))
	require.False(t, matchWildcardRoute("/api/v1/runs/run-1", "/api/v1/runs/*/files"))

	// Trailing wildcard swallows the rest of the path.
	require.True(t, matchWildcardRoute("/api/v1/runs/run-1", "/api/v1/runs/*"))
	require.True(t, matchWildcardRoute("/api/v1/runs/run-1/extra", "/api/v1/runs/*"))
	require.False(t, matchWildcardRoute("/api/v2/runs/run-1", "/api/v1/runs/*"))
}
