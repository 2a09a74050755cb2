package media

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Uploader stores a local file in the object store and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, localRef Ref, destPath string) (string, error)
}

// Result is the outcome of resolving one shop's media.
type Result struct {
	Logo     Ref
	Images   []Ref
	Uploaded int
	Failed   int
}

// Resolver replaces local refs with uploaded remote ones.
type Resolver struct {
	uploader Uploader
	logger   *slog.Logger
	newName  func() string
}

// NewResolver creates a Resolver. A nil uploader leaves every local ref in
// place. If logger is nil, slog.Default() is used.
func NewResolver(uploader Uploader, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{uploader: uploader, logger: logger, newName: uuid.NewString}
}

// Resolve uploads each local ref under keyPrefix, sequentially. A failed
// upload keeps the local ref and does not stop the others. The returned
// images are cleaned and capped at MaxImages; a malformed logo becomes "".
func (r *Resolver) Resolve(ctx context.Context, keyPrefix string, logo Ref, images []Ref) Result {
	var res Result

	if logo.Valid() {
		res.Logo = r.resolveOne(ctx, &res, logo, path.Join(keyPrefix, "logo"+extOf(logo)))
	}

	resolved := make([]Ref, 0, len(images))
	for _, img := range Clean(images, MaxImages) {
		dest := path.Join(keyPrefix, "images", r.newName()+extOf(img))
		resolved = append(resolved, r.resolveOne(ctx, &res, img, dest))
	}
	res.Images = Clean(resolved, MaxImages)
	return res
}

func (r *Resolver) resolveOne(ctx context.Context, res *Result, ref Ref, dest string) Ref {
	if !ref.IsLocal() || r.uploader == nil {
		return ref
	}
	url, err := r.uploader.Upload(ctx, ref, dest)
	if err != nil || !Ref(url).IsRemote() {
		res.Failed++
		r.logger.Warn("media upload failed, keeping local reference",
			"ref", string(ref),
			"dest", dest,
			"error", err,
		)
		return ref
	}
	res.Uploaded++
	return Ref(url)
}

// extOf returns the lowercase file extension of ref, defaulting to ".jpg".
func extOf(ref Ref) string {
	s := string(ref)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	ext := strings.ToLower(path.Ext(s))
	if ext == "" || len(ext) > 5 {
		return ".jpg"
	}
	return ext
}
