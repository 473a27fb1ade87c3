package usercache

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/manager"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/query"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
	"github.com/homevault/homevault-go/pkg/config"
)

func newTestUserCache(t *testing.T) (*UserCache, *manager.Manager) {
	t.Helper()
	m := manager.NewManager(nil, nil)
	return NewUserCache("alice", m, nil, nil), m
}

func TestGetOrCreateCollectionCacheIdempotent(t *testing.T) {
	u, m := newTestUserCache(t)
	m.SetGlobalPreferences("notes", types.CachePreferences{CacheAll: true})

	first := u.GetOrCreateCollectionCache("notes")
	second := u.GetOrCreateCollectionCache("notes")
	assert.Same(t, first, second)
	assert.ElementsMatch(t, []string{"notes"}, u.CollectionNames())

	other := u.GetOrCreateCollectionCache("photos")
	assert.NotSame(t, first, other)
}

func TestCollectionCacheUsesResolvedPreferences(t *testing.T) {
	u, m := newTestUserCache(t)
	m.SetGlobalPreferences("notes", types.CachePreferences{CacheAll: true})

	notes := u.GetOrCreateCollectionCache("notes")
	require.NoError(t, notes.SetAll([]types.Record{{types.FieldID: "n1", types.FieldModified: float64(1)}}))

	result := notes.Query(map[string]any{}, query.Options{})
	assert.True(t, result.Found)
}

func TestStatsAggregation(t *testing.T) {
	u, _ := newTestUserCache(t)
	notes := u.GetOrCreateCollectionCache("notes")
	notes.Query(map[string]any{"x": "y"}, query.Options{})

	stats := u.Stats()
	require.Contains(t, stats, "notes")
	assert.Equal(t, int64(1), stats["notes"].Misses)
}

func TestClearDropsEntriesAndState(t *testing.T) {
	u, m := newTestUserCache(t)
	notes := u.GetOrCreateCollectionCache("notes")
	require.NoError(t, notes.SetAll([]types.Record{{types.FieldID: "n1", types.FieldModified: float64(1)}}))
	u.MarkMirrored("app1", "a.txt")

	cleared := u.Clear()
	assert.Equal(t, 1, cleared)
	assert.Empty(t, u.CollectionNames())
	assert.Zero(t, m.GetStats().Entries)
	_, tracked := u.MirroredAt("app1", "a.txt")
	assert.False(t, tracked)
}

func TestFileCacheRoundTrip(t *testing.T) {
	u, _ := newTestUserCache(t)
	files := u.FileCacheFor("docs")

	require.NoError(t, files.SetAppFile("readme.md", []byte("hello")))
	content, found := files.AppFile("readme.md")
	require.True(t, found)
	assert.Equal(t, []byte("hello"), content)

	// App and user scopes are distinct namespaces.
	_, found = files.UserFile("readme.md")
	assert.False(t, found)

	require.NoError(t, files.SetUserFile("readme.md", []byte("mine")))
	content, found = files.UserFile("readme.md")
	require.True(t, found)
	assert.Equal(t, []byte("mine"), content)

	require.NoError(t, files.DeleteFile("readme.md"))
	_, found = files.AppFile("readme.md")
	assert.False(t, found)
	_, found = files.UserFile("readme.md")
	assert.False(t, found)
}

func TestFileCacheRejectsOversizedContent(t *testing.T) {
	old := config.MaxCacheableFileBytes
	config.MaxCacheableFileBytes = 16
	t.Cleanup(func() { config.MaxCacheableFileBytes = old })

	u, _ := newTestUserCache(t)
	files := u.FileCacheFor("docs")

	err := files.SetAppFile("big.bin", make([]byte, 17))
	assert.ErrorIs(t, err, ErrFileTooLarge)
	_, found := files.AppFile("big.bin")
	assert.False(t, found)
}

func TestModTimeMarker(t *testing.T) {
	u, _ := newTestUserCache(t)
	files := u.FileCacheFor("docs")

	_, found := files.ModTime("a.txt")
	assert.False(t, found)

	require.NoError(t, files.SetModTime("a.txt", 1700000000000))
	ms, found := files.ModTime("a.txt")
	require.True(t, found)
	assert.Equal(t, int64(1700000000000), ms)
}

func withTokenConfig(t *testing.T, secret string, keep time.Duration) {
	t.Helper()
	oldSecret, oldKeep := config.FileTokenSecret, config.TokenKeepWindow
	config.FileTokenSecret = secret
	config.TokenKeepWindow = keep
	t.Cleanup(func() {
		config.FileTokenSecret = oldSecret
		config.TokenKeepWindow = oldKeep
	})
}

func TestTokenMintAndVerify(t *testing.T) {
	withTokenConfig(t, "test-secret", 10*time.Minute)
	u, _ := newTestUserCache(t)
	files := u.FileCacheFor("docs")

	token, err := files.Token("a.txt")
	require.NoError(t, err)

	parsed, err := jwt.Parse(token, func(tk *jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "alice", claims["sub"])
	assert.Equal(t, "docs", claims["app"])
	assert.Equal(t, "a.txt", claims["path"])
	assert.NotEmpty(t, claims["jti"])
}

func TestTokenReusedWithinKeepWindow(t *testing.T) {
	withTokenConfig(t, "test-secret", 10*time.Minute)
	u, _ := newTestUserCache(t)
	files := u.FileCacheFor("docs")

	first, err := files.Token("a.txt")
	require.NoError(t, err)
	second, err := files.Token("a.txt")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Different paths never share tokens.
	other, err := files.Token("b.txt")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestTokenRemintedAfterKeepWindow(t *testing.T) {
	withTokenConfig(t, "test-secret", 10*time.Millisecond)
	u, _ := newTestUserCache(t)
	files := u.FileCacheFor("docs")

	first, err := files.Token("a.txt")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	second, err := files.Token("a.txt")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestTokenRequiresSecret(t *testing.T) {
	withTokenConfig(t, "", 10*time.Minute)
	u, _ := newTestUserCache(t)
	_, err := u.FileCacheFor("docs").Token("a.txt")
	assert.ErrorIs(t, err, ErrNoTokenSecret)
}

func TestLocalCopyStaleness(t *testing.T) {
	u, _ := newTestUserCache(t)

	assert.True(t, u.IsLocalCopyStale("docs", "a.txt", 0), "untracked is stale")

	u.MarkMirrored("docs", "a.txt")
	mirroredAt, found := u.MirroredAt("docs", "a.txt")
	require.True(t, found)

	assert.False(t, u.IsLocalCopyStale("docs", "a.txt", mirroredAt.UnixMilli()-1000))
	assert.True(t, u.IsLocalCopyStale("docs", "a.txt", mirroredAt.UnixMilli()+1000))

	u.ForgetMirror("docs", "a.txt")
	assert.True(t, u.IsLocalCopyStale("docs", "a.txt", 0))
}
