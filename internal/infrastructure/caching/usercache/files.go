package usercache

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/oklog/ulid/v2"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/interfaces"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
	"github.com/homevault/homevault-go/pkg/config"
)

// ErrFileTooLarge rejects caching file content above the configured ceiling
var ErrFileTooLarge = errors.New("file content exceeds cacheable size")

// ErrNoTokenSecret means FILE_TOKEN_SECRET is not configured
var ErrNoTokenSecret = errors.New("file token secret not configured")

// FileCache wraps the file, mod-time and token entries for one (owner, app)
// pair. Unlike the collection shapes these are plain get/set wrappers; the
// interesting policy is the token keep-window.
type FileCache struct {
	owner string
	app   string
	store interfaces.ScopedStore
}

// FileCacheFor returns the file cache for one app, creating it on first use
func (u *UserCache) FileCacheFor(app string) *FileCache {
	u.mu.Lock()
	defer u.mu.Unlock()
	if cached, found := u.files[app]; found {
		return cached
	}
	cached := &FileCache{
		owner: u.owner,
		app:   app,
		store: u.manager.CreateCollectionInterface(u.owner, app),
	}
	u.files[app] = cached
	return cached
}

func (f *FileCache) key(kind, scope, path string) string {
	return f.owner + ":" + f.app + ":" + kind + ":" + scope + ":" + path
}

// SetAppFile caches app-scoped file content. Content above the configured
// byte ceiling is rejected rather than silently truncated.
func (f *FileCache) SetAppFile(path string, content []byte) error {
	return f.setFile("app", path, content)
}

// SetUserFile caches user-scoped file content
func (f *FileCache) SetUserFile(path string, content []byte) error {
	return f.setFile("user", path, content)
}

func (f *FileCache) setFile(scope, path string, content []byte) error {
	if int64(len(content)) > config.MaxCacheableFileBytes {
		return fmt.Errorf("%w: %s (%d bytes)", ErrFileTooLarge, path, len(content))
	}
	return f.store.Set(f.key("file", scope, path), content, interfaces.EntryOptions{Type: types.TypeFile})
}

// AppFile returns cached app-scoped file content
func (f *FileCache) AppFile(path string) ([]byte, bool) {
	return f.getFile("app", path)
}

// UserFile returns cached user-scoped file content
func (f *FileCache) UserFile(path string) ([]byte, bool) {
	return f.getFile("user", path)
}

func (f *FileCache) getFile(scope, path string) ([]byte, bool) {
	raw, found, err := f.store.Get(f.key("file", scope, path))
	if err != nil || !found {
		return nil, false
	}
	content, ok := raw.([]byte)
	return content, ok
}

// DeleteFile drops cached content for a path in both scopes
func (f *FileCache) DeleteFile(path string) error {
	if err := f.store.Delete(f.key("file", "app", path)); err != nil {
		return err
	}
	return f.store.Delete(f.key("file", "user", path))
}

// SetModTime records a file's remote modification time marker
func (f *FileCache) SetModTime(path string, modifiedMs int64) error {
	return f.store.Set(f.key("modtime", "remote", path), modifiedMs, interfaces.EntryOptions{Type: types.TypeModTime})
}

// ModTime returns the recorded remote modification time for a path
func (f *FileCache) ModTime(path string) (int64, bool) {
	raw, found, err := f.store.Get(f.key("modtime", "remote", path))
	if err != nil || !found {
		return 0, false
	}
	ms, ok := raw.(int64)
	return ms, ok
}

// fileToken is the cached value behind a token entry
type fileToken struct {
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issuedAt"`
}

// Token returns a signed access token for a path. A token issued within the
// keep window is reused; otherwise a fresh one is minted and cached with the
// hard expiry as its TTL, so expired tokens purge themselves.
func (f *FileCache) Token(path string) (string, error) {
	key := f.key("token", "access", path)
	if raw, found, err := f.store.Get(key); err == nil && found {
		if cached, ok := raw.(fileToken); ok {
			if time.Since(cached.IssuedAt) < config.TokenKeepWindow {
				return cached.Token, nil
			}
		}
	}

	token, err := f.mintToken(path)
	if err != nil {
		return "", err
	}
	err = f.store.Set(key, fileToken{Token: token, IssuedAt: time.Now().UTC()}, interfaces.EntryOptions{
		Type:       types.TypeToken,
		TTLSeconds: int(config.TokenExpiry.Seconds()),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (f *FileCache) mintToken(path string) (string, error) {
	if config.FileTokenSecret == "" {
		return "", ErrNoTokenSecret
	}
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":  f.owner,
		"app":  f.app,
		"path": path,
		"jti":  ulid.Make().String(),
		"iat":  now.Unix(),
		"exp":  now.Add(config.TokenExpiry).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(config.FileTokenSecret))
	if err != nil {
		return "", fmt.Errorf("sign file token: %w", err)
	}
	return signed, nil
}
