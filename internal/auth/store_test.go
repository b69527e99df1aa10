package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/yourname/outlook-cli/internal/config"
)

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tokens")
	s := NewFileStore(dir)

	_, err := s.Get("token/a@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("token/a@example.com", []byte(`{"x":1}`)))

	data, err := s.Get("token/a@example.com")
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, string(data))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "token_a@example.com.json", entries[0].Name())

	fi, err := entries[0].Info()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), fi.Mode().Perm())

	require.NoError(t, s.Delete("token/a@example.com"))
	_, err = s.Get("token/a@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is fine
	assert.NoError(t, s.Delete("token/a@example.com"))
}

func TestFileStore_KeyCannotEscapeDir(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "tokens"))

	require.NoError(t, s.Set("../../evil", []byte("x")))

	_, err := os.Stat(filepath.Join(dir, "evil.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestKeyringStore(t *testing.T) {
	s := NewKeyringStore(keyring.NewArrayKeyring(nil))

	_, err := s.Get("msal-cache")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("msal-cache", []byte("blob")))
	data, err := s.Get("msal-cache")
	require.NoError(t, err)
	assert.Equal(t, "blob", string(data))

	require.NoError(t, s.Delete("msal-cache"))
	_, err = s.Get("msal-cache")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenStore(config.TokenStoreFile, dir)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = OpenStore("", dir)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = OpenStore("vault", dir)
	assert.Error(t, err)
}

func TestRecord_RoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir())
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)

	err := SaveRecord(store, &Record{
		Account: "Me@Example.com",
		Flow:    FlowBrowser,
		Token:   &oauth2.Token{AccessToken: "at", RefreshToken: "rt", Expiry: expiry},
	})
	require.NoError(t, err)

	rec, err := LoadRecord(store, "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Me@Example.com", rec.Account)
	assert.Equal(t, FlowBrowser, rec.Flow)
	assert.Equal(t, "at", rec.Token.AccessToken)
	assert.Equal(t, "rt", rec.Token.RefreshToken)
	assert.True(t, expiry.Equal(rec.Token.Expiry))
	assert.False(t, rec.SavedAt.IsZero())

	require.NoError(t, DeleteRecord(store, "ME@example.com"))
	_, err = LoadRecord(store, "me@example.com")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestLoadRecord_Corrupt(t *testing.T) {
	store := NewFileStore(t.TempDir())
	require.NoError(t, store.Set(recordKey("a@example.com"), []byte("{not json")))

	_, err := LoadRecord(store, "a@example.com")

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotLoggedIn)
}

type fakeMarshaler struct{ data []byte }

func (f fakeMarshaler) Marshal() ([]byte, error) { return f.data, nil }

type fakeUnmarshaler struct{ got []byte }

func (f *fakeUnmarshaler) Unmarshal(b []byte) error {
	f.got = b
	return nil
}

func TestTokenCache_ExportReplace(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())
	tc := NewTokenCache(store)

	// Nothing cached yet
	u := &fakeUnmarshaler{}
	require.NoError(t, tc.Replace(ctx, u, cache.ReplaceHints{}))
	assert.Nil(t, u.got)

	require.NoError(t, tc.Export(ctx, fakeMarshaler{data: []byte(`{"AccessToken":{}}`)}, cache.ExportHints{}))

	u = &fakeUnmarshaler{}
	require.NoError(t, NewTokenCache(store).Replace(ctx, u, cache.ReplaceHints{}))
	assert.Equal(t, `{"AccessToken":{}}`, string(u.got))

	require.NoError(t, tc.Clear())
	_, err := store.Get(msalCacheKey)
	assert.ErrorIs(t, err, ErrNotFound)
}
