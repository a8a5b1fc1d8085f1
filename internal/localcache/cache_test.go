package localcache

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *SQLiteStorage) {
	t.Helper()
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cache := New(store)
	cache.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return cache, store
}

func sampleNewIssue(title string) NewIssue {
	return NewIssue{
		Title:       title,
		Description: "Deep pothole",
		Category:    "Potholes",
		Location:    "MG Road, Panaji",
		Coordinates: Coordinates{Lat: 15.49, Lng: 73.82},
		ReportedBy:  "asha",
	}
}

func TestGetReportedIssues_Empty(t *testing.T) {
	cache, _ := newTestCache(t)

	issues, err := cache.GetReportedIssues(context.Background())

	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.NotNil(t, issues)
}

func TestAddReportedIssue(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	issue, err := cache.AddReportedIssue(ctx, sampleNewIssue("first"))
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^user-1717243200000-[0-9a-z]{9}$`), issue.ID)
	assert.Equal(t, "pending", issue.Status)
	assert.Equal(t, "Just now", issue.TimeAgo)
	assert.Equal(t, 0, issue.Upvotes)
	assert.Equal(t, 0, issue.Comments)
	assert.True(t, issue.HasUpvoted)
	assert.Equal(t, []string{}, issue.Images)

	stored, err := cache.GetReportedIssues(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, issue, stored[0])
}

func TestAddReportedIssue_Prepends(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	first, err := cache.AddReportedIssue(ctx, sampleNewIssue("first"))
	require.NoError(t, err)
	second, err := cache.AddReportedIssue(ctx, sampleNewIssue("second"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	stored, err := cache.GetReportedIssues(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "second", stored[0].Title)
	assert.Equal(t, "first", stored[1].Title)
}

func TestRemoveReportedIssue(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	keep, err := cache.AddReportedIssue(ctx, sampleNewIssue("keep"))
	require.NoError(t, err)
	drop, err := cache.AddReportedIssue(ctx, sampleNewIssue("drop"))
	require.NoError(t, err)

	require.NoError(t, cache.RemoveReportedIssue(ctx, drop.ID))
	require.NoError(t, cache.RemoveReportedIssue(ctx, "user-unknown"))

	stored, err := cache.GetReportedIssues(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, keep.ID, stored[0].ID)
}

func TestGetReportedIssues_CorruptBlob(t *testing.T) {
	cache, store := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, store.SetItem(ctx, reportedIssuesKey, "{not json"))

	issues, err := cache.GetReportedIssues(ctx)
	require.NoError(t, err)
	assert.Empty(t, issues)

	// Запись после повреждения начинает список заново
	_, err = cache.AddReportedIssue(ctx, sampleNewIssue("fresh"))
	require.NoError(t, err)
	issues, err = cache.GetReportedIssues(ctx)
	require.NoError(t, err)
	assert.Len(t, issues, 1)
}

func TestAllIssues(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	all, err := cache.AllIssues(ctx)
	require.NoError(t, err)
	require.Len(t, all, 12)
	assert.Equal(t, "1", all[0].ID)
	assert.Equal(t, "Large pothole on MG Road", all[0].Title)
	assert.Equal(t, Coordinates{Lat: 15.4909, Lng: 73.8278}, all[0].Coordinates)
	assert.Equal(t, "12", all[11].ID)

	reported, err := cache.AddReportedIssue(ctx, sampleNewIssue("mine"))
	require.NoError(t, err)
	all, err = cache.AllIssues(ctx)
	require.NoError(t, err)
	require.Len(t, all, 13)
	assert.Equal(t, reported.ID, all[12].ID)
}

func TestDefaultIssues_ReturnsCopies(t *testing.T) {
	now := time.Now()
	first := DefaultIssues(now)
	first[0].Title = "changed"

	assert.Equal(t, "Large pothole on MG Road", DefaultIssues(now)[0].Title)
}

func TestSessionAndLogout(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	empty, err := cache.Session(ctx)
	require.NoError(t, err)
	assert.False(t, empty.LoggedIn)

	session := Session{LoggedIn: true, UserName: "asha", UserEmail: "asha@example.com", Token: "tok"}
	require.NoError(t, cache.SaveSession(ctx, session))
	got, err := cache.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, session, got)

	loc, err := cache.SetLocation(ctx, 15.49, 73.82)
	require.NoError(t, err)
	assert.Equal(t, int64(1717243200000), loc.Timestamp)
	requested, err := cache.HasRequestedLocation(ctx)
	require.NoError(t, err)
	assert.True(t, requested)

	_, err = cache.AddReportedIssue(ctx, sampleNewIssue("survives logout"))
	require.NoError(t, err)

	require.NoError(t, cache.Logout(ctx))

	got, err = cache.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, Session{}, got)
	stored, err := cache.Location(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
	requested, err = cache.HasRequestedLocation(ctx)
	require.NoError(t, err)
	assert.False(t, requested)

	reported, err := cache.GetReportedIssues(ctx)
	require.NoError(t, err)
	assert.Len(t, reported, 1)
}

func TestLocation(t *testing.T) {
	cache, store := newTestCache(t)
	ctx := context.Background()

	_, err := cache.SetLocation(ctx, 15.5, 73.9)
	require.NoError(t, err)
	loc, err := cache.Location(ctx)
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, 15.5, loc.Lat)
	assert.Equal(t, time.Duration(0), cache.LocationAge(loc))

	require.NoError(t, store.SetItem(ctx, keyUserLocation, "broken"))
	loc, err = cache.Location(ctx)
	require.NoError(t, err)
	assert.Nil(t, loc)
}

func TestSQLiteStorage_PersistsAcrossReopen(t *testing.T) {
	path := t.TempDir() + "/state.db"
	ctx := context.Background()

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.SetItem(ctx, "k", "v1"))
	require.NoError(t, store.SetItem(ctx, "k", "v2"))
	require.NoError(t, store.Close())

	store, err = OpenSQLite(path)
	require.NoError(t, err)
	defer store.Close()
	value, ok, err := store.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", value)

	require.NoError(t, store.RemoveItem(ctx, "k"))
	_, ok, err = store.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
