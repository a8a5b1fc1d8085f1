package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	v1 "github.com/shenikar/cityvoice/internal/handler/http/v1"
	"github.com/shenikar/cityvoice/internal/localcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runResult struct {
	out, errOut string
	err         error
}

func runCLI(t *testing.T, args ...string) runResult {
	t.Helper()
	var out, errOut bytes.Buffer
	err := run(context.Background(), args, "test", &out, &errOut)
	return runResult{out: out.String(), errOut: errOut.String(), err: err}
}

func deadAPI(t *testing.T) string {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()
	return url
}

func TestParseGlobalFlags(t *testing.T) {
	t.Setenv("CITYVOICE_API_URL", "http://env:1/api")
	t.Setenv("CITYVOICE_STATE", "")

	gf, rest := parseGlobalFlags([]string{"--pretty", "--state=/tmp/s.db", "list", "--sort", "votes"})
	assert.True(t, gf.pretty)
	assert.Equal(t, "http://env:1/api", gf.api)
	assert.Equal(t, "/tmp/s.db", gf.state)
	assert.Equal(t, []string{"list", "--sort", "votes"}, rest)

	gf, _ = parseGlobalFlags([]string{"--api", "http://flag:2/api", "list"})
	assert.Equal(t, "http://flag:2/api", gf.api)
}

func TestReorderArgs(t *testing.T) {
	got := reorderArgs([]string{"abc", "resolved", "--version", "3"})
	assert.Equal(t, []string{"--version", "3", "abc", "resolved"}, got)

	got = reorderArgs([]string{"--title", "x", "--offline", "--lng", "-73.8"}, "offline")
	assert.Equal(t, []string{"--title", "x", "--offline", "--lng", "-73.8"}, got)

	got = reorderArgs([]string{"-12.5", "--", "--literal"})
	assert.Equal(t, []string{"-12.5", "--literal"}, got)
}

func TestRun_HelpAndUnknown(t *testing.T) {
	res := runCLI(t, "help")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "cityvoice - report and track civic issues")

	res = runCLI(t, "version")
	require.NoError(t, res.err)
	assert.Equal(t, "cityvoice version test\n", res.out)

	res = runCLI(t, "--state", filepath.Join(t.TempDir(), "s.db"), "frobnicate")
	assert.ErrorContains(t, res.err, "unknown command: frobnicate")
}

func TestRun_LoginStoresSessionAndSendsToken(t *testing.T) {
	userID := uuid.New()
	var listToken string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			writeJSON(w, http.StatusOK, v1.LoginResponse{Token: "signed"})
		case "/api/auth/me":
			assert.Equal(t, "signed", r.Header.Get("x-auth-token"))
			writeJSON(w, http.StatusOK, v1.UserResponse{ID: userID, Username: "asha", Email: "asha@example.com", Role: "citizen"})
		case "/api/issues":
			listToken = r.Header.Get("x-auth-token")
			writeJSON(w, http.StatusOK, []v1.IssueResponse{})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	state := filepath.Join(t.TempDir(), "state.db")

	res := runCLI(t, "--api", ts.URL+"/api", "--state", state, "--pretty", "login", "--email", "asha@example.com", "--password", "secret1")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Logged in as asha <asha@example.com> (citizen)")

	res = runCLI(t, "--api", ts.URL+"/api", "--state", state, "list")
	require.NoError(t, res.err)
	assert.Equal(t, "signed", listToken)

	res = runCLI(t, "--api", ts.URL+"/api", "--state", state, "logout")
	require.NoError(t, res.err)
	res = runCLI(t, "--api", ts.URL+"/api", "--state", state, "list")
	require.NoError(t, res.err)
	assert.Empty(t, listToken)
}

func TestRun_ReportFallsBackToLocalCache(t *testing.T) {
	state := filepath.Join(t.TempDir(), "state.db")
	api := deadAPI(t)

	res := runCLI(t, "--api", api, "--state", state, "report",
		"--title", "Pothole", "--description", "Deep", "--category", "Potholes", "--lat", "15.49", "--lng", "73.82")
	require.NoError(t, res.err)
	assert.Contains(t, res.errOut, "saving report locally")

	var saved []localcache.LocalIssue
	require.NoError(t, json.Unmarshal([]byte(res.out), &saved))
	require.Len(t, saved, 1)
	assert.Equal(t, "Just now", saved[0].TimeAgo)

	res = runCLI(t, "--api", api, "--state", state, "local", "list")
	require.NoError(t, res.err)
	var local []localcache.LocalIssue
	require.NoError(t, json.Unmarshal([]byte(res.out), &local))
	require.Len(t, local, 1)
	assert.Equal(t, saved[0].ID, local[0].ID)

	// Лента без API: демонстрационный набор плюс локальные обращения
	res = runCLI(t, "--api", api, "--state", state, "list")
	require.NoError(t, res.err)
	var feed []localcache.LocalIssue
	require.NoError(t, json.Unmarshal([]byte(res.out), &feed))
	assert.Len(t, feed, 13)

	res = runCLI(t, "--api", api, "--state", state, "list", "--category", "potholes")
	require.NoError(t, res.err)
	require.NoError(t, json.Unmarshal([]byte(res.out), &feed))
	assert.Len(t, feed, 3)

	res = runCLI(t, "--api", api, "--state", state, "local", "remove", saved[0].ID)
	require.NoError(t, res.err)
	res = runCLI(t, "--api", api, "--state", state, "local", "list")
	require.NoError(t, res.err)
	require.NoError(t, json.Unmarshal([]byte(res.out), &local))
	assert.Empty(t, local)
}

func TestRun_ReportUsesSavedLocation(t *testing.T) {
	state := filepath.Join(t.TempDir(), "state.db")

	res := runCLI(t, "--state", state, "report", "--offline", "--title", "t", "--description", "d")
	assert.ErrorContains(t, res.err, "no coordinates")

	res = runCLI(t, "--state", state, "location", "set", "15.5", "-73.9")
	require.NoError(t, res.err)

	res = runCLI(t, "--state", state, "report", "--offline", "--title", "t", "--description", "d")
	require.NoError(t, res.err)
	var saved []localcache.LocalIssue
	require.NoError(t, json.Unmarshal([]byte(res.out), &saved))
	require.Len(t, saved, 1)
	assert.Equal(t, localcache.Coordinates{Lat: 15.5, Lng: -73.9}, saved[0].Coordinates)

	res = runCLI(t, "--state", state, "location", "set", "95", "10")
	assert.ErrorContains(t, res.err, "invalid latitude")
}

func TestRun_LocationShow(t *testing.T) {
	state := filepath.Join(t.TempDir(), "state.db")

	res := runCLI(t, "--state", state, "location", "show")
	assert.EqualError(t, res.err, "no saved location")

	res = runCLI(t, "--state", state, "location", "set", "15.49", "73.82")
	require.NoError(t, res.err)

	res = runCLI(t, "--state", state, "location", "show")
	require.NoError(t, res.err)
	var shown struct {
		Lat       float64 `json:"lat"`
		Lng       float64 `json:"lng"`
		Requested bool    `json:"requested"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.out), &shown))
	assert.Equal(t, 15.49, shown.Lat)
	assert.Equal(t, 73.82, shown.Lng)
	assert.True(t, shown.Requested)
}

func TestRun_StatusReportsAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, v1.ErrorResponse{Error: "issue was modified by another request"})
	}))
	t.Cleanup(ts.Close)

	res := runCLI(t, "--api", ts.URL+"/api", "--state", filepath.Join(t.TempDir(), "s.db"),
		"status", uuid.New().String(), "resolved", "--version", "2")

	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "issue was modified by another request")
}
