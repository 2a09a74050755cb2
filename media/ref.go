// Package media resolves the shop's logo and image references before the
// shop record is written.
//
// A [Ref] is either local (a file still on the device, pending upload) or
// remote (a durable http(s) URL). [Resolver] uploads local refs through an
// [Uploader] one at a time; an upload that fails keeps its local ref so the
// save is never blocked on media.
package media

import (
	"net/url"
	"path/filepath"
	"strings"
)

// MaxImages is the maximum number of gallery images attached to a shop.
const MaxImages = 5

var localSchemes = []string{"file://", "content://", "ph://", "assets-library://"}

// Ref is an image or logo reference.
type Ref string

// IsLocal reports whether r refers to a file that has not been uploaded.
func (r Ref) IsLocal() bool {
	s := strings.TrimSpace(string(r))
	for _, scheme := range localSchemes {
		if strings.HasPrefix(s, scheme) {
			return len(s) > len(scheme)
		}
	}
	return filepath.IsAbs(s) && !strings.Contains(s, "://")
}

// IsRemote reports whether r is an http(s) URL with a host.
func (r Ref) IsRemote() bool {
	u, err := url.Parse(strings.TrimSpace(string(r)))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Valid reports whether r is either local or remote.
func (r Ref) Valid() bool {
	return r.IsLocal() || r.IsRemote()
}

// LocalPath returns the filesystem path of a file:// or absolute-path ref,
// or "" for anything else.
func (r Ref) LocalPath() string {
	s := strings.TrimSpace(string(r))
	if strings.HasPrefix(s, "file://") {
		u, err := url.Parse(s)
		if err != nil || u.Path == "" {
			return ""
		}
		return u.Path
	}
	if filepath.IsAbs(s) && !strings.Contains(s, "://") {
		return s
	}
	return ""
}

// Clean drops malformed refs and keeps at most max of the rest, in order.
// A max of zero or less means no cap.
func Clean(refs []Ref, max int) []Ref {
	out := make([]Ref, 0, len(refs))
	for _, r := range refs {
		r = Ref(strings.TrimSpace(string(r)))
		if !r.Valid() {
			continue
		}
		if max > 0 && len(out) == max {
			break
		}
		out = append(out, r)
	}
	return out
}
