package media_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jacentio/storefront/media"
)

func TestRefShape(t *testing.T) {
	tests := []struct {
		ref    media.Ref
		local  bool
		remote bool
	}{
		{"file:///tmp/a.jpg", true, false},
		{"content://media/external/images/1", true, false},
		{"ph://ABC-123", true, false},
		{"assets-library://asset/asset.JPG?id=1", true, false},
		{"/var/mobile/a.png", true, false},
		{"https://cdn.example.com/a.jpg", false, true},
		{"http://cdn.example.com/a.jpg", false, true},
		{"https://", false, false},
		{"file://", false, false},
		{"", false, false},
		{"   ", false, false},
		{"not a ref", false, false},
		{"ftp://host/a.jpg", false, false},
		{"relative/path.jpg", false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.ref), func(t *testing.T) {
			if got := tt.ref.IsLocal(); got != tt.local {
				t.Errorf("IsLocal: expected %v, got %v", tt.local, got)
			}
			if got := tt.ref.IsRemote(); got != tt.remote {
				t.Errorf("IsRemote: expected %v, got %v", tt.remote, got)
			}
			if got := tt.ref.Valid(); got != (tt.local || tt.remote) {
				t.Errorf("Valid: expected %v, got %v", tt.local || tt.remote, got)
			}
		})
	}
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		ref  media.Ref
		want string
	}{
		{"file:///tmp/a.jpg", "/tmp/a.jpg"},
		{"/tmp/b.png", "/tmp/b.png"},
		{"ph://ABC", ""},
		{"https://cdn.example.com/a.jpg", ""},
	}
	for _, tt := range tests {
		if got := tt.ref.LocalPath(); got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.ref, tt.want, got)
		}
	}
}

func TestClean(t *testing.T) {
	in := []media.Ref{"", "https://a.example/1.jpg", "junk", " file:///tmp/2.jpg ", "https://a.example/3.jpg",
		"https://a.example/4.jpg", "https://a.example/5.jpg", "https://a.example/6.jpg"}

	got := media.Clean(in, media.MaxImages)
	if len(got) != media.MaxImages {
		t.Fatalf("expected %d refs, got %d: %v", media.MaxImages, len(got), got)
	}
	if got[0] != "https://a.example/1.jpg" || got[1] != "file:///tmp/2.jpg" {
		t.Errorf("expected order preserved and trimmed, got %v", got)
	}
	if len(media.Clean(in, 0)) != 6 {
		t.Errorf("expected no cap with max 0, got %v", media.Clean(in, 0))
	}
	if got := media.Clean(nil, 5); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

// fakeUploader fails for refs containing "bad".
type fakeUploader struct {
	calls []string
}

func (f *fakeUploader) Upload(_ context.Context, ref media.Ref, dest string) (string, error) {
	f.calls = append(f.calls, dest)
	if strings.Contains(string(ref), "bad") {
		return "", errors.New("upload refused")
	}
	return "https://cdn.example.com/" + dest, nil
}

func TestResolve_IsolatesFailures(t *testing.T) {
	up := &fakeUploader{}
	r := media.NewResolver(up, nil)

	res := r.Resolve(context.Background(), "shops/s1", "file:///tmp/logo.PNG", []media.Ref{
		"file:///tmp/good1.jpg",
		"file:///tmp/bad.jpg",
		"https://cdn.example.com/already.jpg",
		"garbage",
		"file:///tmp/good2.jpg",
	})

	if res.Logo != "https://cdn.example.com/shops/s1/logo.png" {
		t.Errorf("expected uploaded logo, got %s", res.Logo)
	}
	if len(res.Images) != 4 {
		t.Fatalf("expected 4 images, got %d: %v", len(res.Images), res.Images)
	}
	if !res.Images[0].IsRemote() || !res.Images[3].IsRemote() {
		t.Errorf("expected good uploads to become remote, got %v", res.Images)
	}
	if res.Images[1] != "file:///tmp/bad.jpg" {
		t.Errorf("expected failed upload to keep local ref, got %s", res.Images[1])
	}
	if res.Images[2] != "https://cdn.example.com/already.jpg" {
		t.Errorf("expected remote ref untouched, got %s", res.Images[2])
	}
	if res.Uploaded != 3 || res.Failed != 1 {
		t.Errorf("expected 3 uploaded and 1 failed, got %d/%d", res.Uploaded, res.Failed)
	}
	if len(up.calls) != 4 {
		t.Errorf("expected 4 upload attempts, got %d", len(up.calls))
	}
}

func TestResolve_NilUploaderKeepsRefs(t *testing.T) {
	r := media.NewResolver(nil, nil)
	res := r.Resolve(context.Background(), "p", "", []media.Ref{"file:///tmp/a.jpg"})
	if res.Logo != "" {
		t.Errorf("expected empty logo, got %s", res.Logo)
	}
	if len(res.Images) != 1 || res.Images[0] != "file:///tmp/a.jpg" {
		t.Errorf("expected local ref kept, got %v", res.Images)
	}
}

func ExampleClean() {
	refs := media.Clean([]media.Ref{"https://cdn.example.com/a.jpg", "", "nope", "file:///tmp/b.jpg"}, media.MaxImages)
	fmt.Println(refs)
	// Output: [https://cdn.example.com/a.jpg file:///tmp/b.jpg]
}
