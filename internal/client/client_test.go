package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberhub/internal/api"
	"memberhub/internal/gitops"
	"memberhub/internal/members"
)

func TestLoginStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body["member_number"] != "M001" {
				api.Error(w, http.StatusUnauthorized, "Member Z not found in our records.")
				return
			}
			api.JSON(w, http.StatusOK, map[string]string{"id": "s1", "access_token": "tok"})
		case "/api/v1/me":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			api.JSON(w, http.StatusOK, map[string]any{"primary_role": "member", "tabs": []string{"dashboard"}})
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "")
	_, err := c.Login(context.Background(), "Z")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, "Member Z not found in our records.", err.Error())

	_, err = c.Login(context.Background(), "M001")
	require.NoError(t, err)
	assert.Equal(t, "tok", c.Token)

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "member", me.PrimaryRole)
	assert.Equal(t, []string{"dashboard"}, me.Tabs)
}

func TestDownloadReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Ali Khan", r.URL.Query().Get("collector"))
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.3 fake"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	n, err := New(srv.URL, "tok").DownloadReport(context.Background(), "Ali Khan", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)
	assert.Equal(t, "%PDF-1.3 fake", buf.String())
}

func TestGitPushRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.JSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "GitHub API error: Not Found"})
	}))
	defer srv.Close()

	res, err := New(srv.URL, "tok").GitPush(context.Background(), gitops.PushRequest{Branch: "nope"})
	require.Error(t, err)
	assert.Equal(t, "GitHub API error: Not Found", err.Error())
	assert.False(t, res.Success)
}

func TestSearchDiscardsStaleResponse(t *testing.T) {
	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		term := r.URL.Query().Get("search")
		if term == "a" {
			close(slowStarted)
			<-releaseSlow
		}
		api.JSON(w, http.StatusOK, []members.Member{{ID: term, MemberNumber: "result-" + term}})
	}))
	defer srv.Close()

	s := NewSearch(New(srv.URL, "tok"))

	var wg sync.WaitGroup
	var slowApplied bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		applied, err := s.Run(context.Background(), "a")
		assert.NoError(t, err)
		slowApplied = applied
	}()

	<-slowStarted
	applied, err := s.Run(context.Background(), "ab")
	require.NoError(t, err)
	assert.True(t, applied)

	close(releaseSlow)
	wg.Wait()

	assert.False(t, slowApplied)
	term, ms := s.Results()
	assert.Equal(t, "ab", term)
	require.Len(t, ms, 1)
	assert.Equal(t, "result-ab", ms[0].MemberNumber)
}

func TestSearchErrorOfStaleRequestIsDropped(t *testing.T) {
	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("search") == "x" {
			close(slowStarted)
			<-releaseSlow
			api.Error(w, http.StatusInternalServerError, "Could not load members.")
			return
		}
		api.JSON(w, http.StatusOK, []members.Member{})
	}))
	defer srv.Close()

	s := NewSearch(New(srv.URL, "tok"))
	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), "x")
		done <- err
	}()
	<-slowStarted
	_, err := s.Run(context.Background(), "xy")
	require.NoError(t, err)
	close(releaseSlow)
	assert.NoError(t, <-done)
}
