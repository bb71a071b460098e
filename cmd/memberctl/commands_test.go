package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberhub/internal/api"
	"memberhub/internal/members"
)

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			api.JSON(w, http.StatusOK, map[string]string{"access_token": "tok-123"})
		case "/api/v1/members":
			name := "Jane Doe"
			api.JSON(w, http.StatusOK, []members.Member{{ID: "1", MemberNumber: "TM10003", FullName: &name}})
		case "/api/v1/reports/members":
			_, _ = w.Write([]byte("%PDF-1.3"))
		case "/api/v1/system/analyze":
			api.JSON(w, http.StatusOK, []map[string]any{{"member_number": "TM10003", "errors": []string{"Member not found."}}})
		case "/api/v1/git/push":
			api.JSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "GitHub token not configured"})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, url string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--url", url}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoginPrintsToken(t *testing.T) {
	srv := fakeAPI(t)
	out, err := run(t, srv.URL, "login", "tm10003")
	require.NoError(t, err)
	assert.Equal(t, "tok-123\n", out)
}

func TestMembersPrintsTable(t *testing.T) {
	srv := fakeAPI(t)
	out, err := run(t, srv.URL, "--token", "tok", "members", "jane")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "NUMBER")
	assert.Contains(t, lines[1], "TM10003")
	assert.Contains(t, lines[1], "Jane Doe")
	assert.Contains(t, lines[1], "Not recorded")
}

func TestReportWritesFile(t *testing.T) {
	srv := fakeAPI(t)
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	out, err := run(t, srv.URL, "--token", "tok", "report", "-o", "out.pdf")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved out.pdf (8 bytes)")

	b, err := os.ReadFile(filepath.Join(dir, "out.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(b))
}

func TestGitPushSurfacesServerError(t *testing.T) {
	srv := fakeAPI(t)
	_, err := run(t, srv.URL, "--token", "tok", "git", "push")
	require.Error(t, err)
	assert.Equal(t, "GitHub token not configured", err.Error())
}

func TestAnalyzePrintsResults(t *testing.T) {
	srv := fakeAPI(t)
	out, err := run(t, srv.URL, "--token", "tok", "analyze", "TM10003")
	require.NoError(t, err)
	assert.Contains(t, out, `"member_number": "TM10003"`)
	assert.Contains(t, out, "Member not found.")
}
