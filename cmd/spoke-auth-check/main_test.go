package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBitbucketServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, pass, ok := r.BasicAuth()
		if !ok || pass != "p" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"type":"error","error":{"message":"Invalid credentials"}}`)
			return
		}
		if r.URL.Query().Get("role") == "member" {
			_, _ = io.WriteString(w, `{"values":[{"slug":"platform"},{"slug":"web"}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"values":[]}`)
	}))
	t.Cleanup(server.Close)
	return server
}

func writeConfig(t *testing.T, allow, baseURL string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "auth.yaml")
	content := fmt.Sprintf("allow: %q\ncache: in-memory\nbitbucket:\n  baseURL: %s\n", allow, baseURL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun(t *testing.T) {
	t.Setenv("SPOKE_AUTH_PASSWORD", "")
	server := newBitbucketServer(t)

	tests := []struct {
		name     string
		allow    string
		password string
		extra    []string
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{
			name:     "authorized",
			allow:    "platform, ops",
			password: "p",
			wantCode: exitOK,
			wantOut:  "alice is authorized for: platform",
		},
		{
			name:     "no allowed team",
			allow:    "ops",
			password: "p",
			wantCode: exitDenied,
			wantOut:  "not a member of any allowed team",
		},
		{
			name:     "rejected credentials",
			allow:    "platform",
			password: "wrong",
			wantCode: exitFailed,
			wantErr:  "Invalid credentials",
		},
		{
			name:     "metrics dump",
			allow:    "platform",
			password: "p",
			extra:    []string{"-metrics-dump"},
			wantCode: exitOK,
			wantOut:  `spoke_auth_requests_total{result="accepted"} 1`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.allow, server.URL)
			args := append([]string{"-config", path, "-user", "alice", "-password", tt.password, "-log-level", "error"}, tt.extra...)

			var stdout, stderr bytes.Buffer
			code := run(context.Background(), args, &stdout, &stderr)

			assert.Equal(t, tt.wantCode, code, "stderr: %s", stderr.String())
			if tt.wantOut != "" {
				assert.Contains(t, stdout.String(), tt.wantOut)
			}
			if tt.wantErr != "" {
				assert.Contains(t, stderr.String(), tt.wantErr)
			}
		})
	}
}

func TestRun_PasswordFromEnvironment(t *testing.T) {
	server := newBitbucketServer(t)
	path := writeConfig(t, "web", server.URL)
	t.Setenv("SPOKE_AUTH_PASSWORD", "p")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", path, "-user", "alice"}, &stdout, &stderr)

	assert.Equal(t, exitOK, code, "stderr: %s", stderr.String())
	assert.Contains(t, stdout.String(), "alice is authorized for: web")
}

func TestRun_MissingCredentials(t *testing.T) {
	t.Setenv("SPOKE_AUTH_PASSWORD", "")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-user", "alice"}, &stdout, &stderr)

	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr.String(), "required")
}

func TestRun_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.yaml")
	require.NoError(t, os.WriteFile(path, []byte("allow: platform\ncache: memcached\n"), 0o600))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", path, "-user", "alice", "-password", "p"}, &stdout, &stderr)

	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr.String(), "invalid cache engine")
}

func TestRun_Health(t *testing.T) {
	server := newBitbucketServer(t)
	path := writeConfig(t, "platform", server.URL)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", path, "-health", "-log-level", "error"}, &stdout, &stderr)

	assert.Equal(t, exitOK, code, "stderr: %s", stderr.String())
	assert.Contains(t, stdout.String(), `"status": "healthy"`)
	assert.Contains(t, stdout.String(), `"bitbucket"`)

	server.Close()
	stdout.Reset()
	code = run(context.Background(), []string{"-config", path, "-health", "-log-level", "error"}, &stdout, &stderr)
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stdout.String(), `"status": "unhealthy"`)
}
