package usercache

import "time"

// Local file copy registry: tracks which remote files have been mirrored to
// local disk and when, for staleness comparison against the remote mod-time
// marker. Bounded and TTL-expiring; losing an entry only costs a re-mirror.

func copyKey(app, path string) string {
	return app + ":" + path
}

// MarkMirrored records that a file was mirrored to local disk now
func (u *UserCache) MarkMirrored(app, path string) {
	u.localCopies.Add(copyKey(app, path), time.Now().UTC())
}

// MirroredAt returns when a file was last mirrored, if tracked
func (u *UserCache) MirroredAt(app, path string) (time.Time, bool) {
	return u.localCopies.Get(copyKey(app, path))
}

// IsLocalCopyStale reports whether the local mirror predates the remote
// modification time. An untracked file is always stale.
func (u *UserCache) IsLocalCopyStale(app, path string, remoteModifiedMs int64) bool {
	mirroredAt, found := u.MirroredAt(app, path)
	if !found {
		return true
	}
	return mirroredAt.UnixMilli() < remoteModifiedMs
}

// ForgetMirror drops the mirror record for a file
func (u *UserCache) ForgetMirror(app, path string) {
	u.localCopies.Remove(copyKey(app, path))
}
