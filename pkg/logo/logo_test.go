package logo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/appstore/pkg/config"
	"github.com/windowsadmins/appstore/pkg/retry"
)

var fastRetry = retry.RetryConfig{MaxRetries: 2, InitialInterval: time.Millisecond, Multiplier: 1}

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 120, B: 220, A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

// fakeDDG serves the token page, the JSON endpoint and the image itself.
type fakeDDG struct {
	*httptest.Server
	image    []byte
	searches atomic.Int32
	images   atomic.Int32
	failOnce atomic.Bool
}

func newFakeDDG(t *testing.T, img []byte) *fakeDDG {
	f := &fakeDDG{image: img}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><script>vqd="4-1234567890";</script></html>`)
	})
	mux.HandleFunc("/i.js", func(w http.ResponseWriter, r *http.Request) {
		f.searches.Add(1)
		if r.URL.Query().Get("vqd") != "4-1234567890" || r.URL.Query().Get("o") != "json" {
			http.Error(w, "bad token", http.StatusForbidden)
			return
		}
		if r.URL.Query().Get("q") == "Nothing logo icon filetype:png" {
			fmt.Fprint(w, `{"results":[]}`)
			return
		}
		fmt.Fprintf(w, `{"results":[{"image":"%s/img.png","thumbnail":"x"}]}`, f.URL)
	})
	mux.HandleFunc("/img.png", func(w http.ResponseWriter, r *http.Request) {
		f.images.Add(1)
		if f.failOnce.CompareAndSwap(true, false) {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write(f.image)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func testFetcher(t *testing.T, srv *fakeDDG) (*Fetcher, string) {
	dir := filepath.Join(t.TempDir(), "images")
	cfg := &config.Configuration{ImageCachePath: dir, LogoWorkers: 3, ImageSearchURL: srv.URL}
	return NewFetcher(cfg, WithRetry(fastRetry)), dir
}

func TestThumbnail(t *testing.T) {
	thumb := Thumbnail(solid(200, 100), IconSize)
	assert.Equal(t, image.Rect(0, 0, 48, 24), thumb.Bounds())

	thumb = Thumbnail(solid(30, 90), IconSize)
	assert.Equal(t, image.Rect(0, 0, 16, 48), thumb.Bounds())

	small := Thumbnail(solid(16, 16), IconSize)
	assert.Equal(t, image.Rect(0, 0, 16, 16), small.Bounds())
	r, g, b, _ := small.At(3, 3).RGBA()
	assert.Equal(t, []uint32{10, 120, 220}, []uint32{r >> 8, g >> 8, b >> 8})
}

func TestNormalizeFormats(t *testing.T) {
	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, solid(96, 96), nil))
	out, err := Normalize(jpg.Bytes())
	require.NoError(t, err)
	w, h := decodeSize(t, out)
	assert.Equal(t, 48, w)
	assert.Equal(t, 48, h)

	_, err = Normalize([]byte("<html>not an image</html>"))
	assert.Error(t, err)
}

func TestPlaceholder(t *testing.T) {
	img, err := png.Decode(bytes.NewReader(Placeholder()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, PlaceholderSize, PlaceholderSize), img.Bounds())
	r, g, b, _ := img.At(10, 10).RGBA()
	assert.Equal(t, []uint32{200, 200, 200}, []uint32{r >> 8, g >> 8, b >> 8})

	shown, err := Normalize(Placeholder())
	require.NoError(t, err)
	w, h := decodeSize(t, shown)
	assert.Equal(t, []int{IconSize, IconSize}, []int{w, h})
}

func TestCacheFile(t *testing.T) {
	a := CacheFile("/cache", "Visual Studio Code")
	b := CacheFile("/cache", "Visual-Studio-Code")
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^VisualStudioCode-[0-9a-f]{16}\.png$`, filepath.Base(a))
	assert.Equal(t, a, CacheFile("/cache", "Visual Studio Code"))
}

func TestFetchDownloadsAndCaches(t *testing.T) {
	srv := newFakeDDG(t, pngBytes(t, solid(128, 64)))
	srv.failOnce.Store(true)
	f, dir := testFetcher(t, srv)

	l := f.Fetch(context.Background(), "Git")
	require.False(t, l.Placeholder)
	w, h := decodeSize(t, l.PNG)
	assert.Equal(t, 48, w)
	assert.Equal(t, 24, h)
	assert.Equal(t, CacheFile(dir, "Git"), l.Path)
	assert.FileExists(t, l.Path)
	assert.EqualValues(t, 2, srv.images.Load())

	// Memory cache.
	f.Fetch(context.Background(), "Git")
	assert.EqualValues(t, 1, srv.searches.Load())

	// Disk cache survives a new fetcher.
	f2, _ := testFetcher(t, srv)
	f2.cacheDir = dir
	l2 := f2.Fetch(context.Background(), "Git")
	assert.False(t, l2.Placeholder)
	assert.Equal(t, l.Path, l2.Path)
	assert.EqualValues(t, 1, srv.searches.Load())
}

func TestFetchFallsBackToPlaceholder(t *testing.T) {
	srv := newFakeDDG(t, []byte("garbage"))
	f, dir := testFetcher(t, srv)

	l := f.Fetch(context.Background(), "Broken")
	assert.True(t, l.Placeholder)
	assert.Equal(t, Placeholder(), l.PNG)
	assert.NoFileExists(t, CacheFile(dir, "Broken"))
	assert.EqualValues(t, 1, srv.images.Load())

	l = f.Fetch(context.Background(), "Nothing")
	assert.True(t, l.Placeholder)
}

func TestFetchReplacesCorruptCacheFile(t *testing.T) {
	srv := newFakeDDG(t, pngBytes(t, solid(20, 20)))
	f, dir := testFetcher(t, srv)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(CacheFile(dir, "Zoom"), []byte("junk"), 0644))

	l := f.Fetch(context.Background(), "Zoom")
	assert.False(t, l.Placeholder)
	assert.EqualValues(t, 1, srv.searches.Load())
}

type stubSearcher struct{ err error }

func (s stubSearcher) ImageURL(context.Context, string) (string, error) { return "", s.err }

func TestFetchAll(t *testing.T) {
	srv := newFakeDDG(t, pngBytes(t, solid(64, 64)))
	f, _ := testFetcher(t, srv)

	logos, err := f.FetchAll(context.Background(), []string{"Git", "Zoom", "Git", "7-Zip"})
	require.NoError(t, err)
	assert.Len(t, logos, 3)
	for name, l := range logos {
		assert.Equal(t, name, l.Name)
		assert.False(t, l.Placeholder)
	}
}

func TestFetchAllCancelled(t *testing.T) {
	cfg := &config.Configuration{ImageCachePath: t.TempDir(), LogoWorkers: 2}
	f := NewFetcher(cfg, WithSearcher(stubSearcher{err: errors.New("offline")}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	logos, err := f.FetchAll(ctx, []string{"a", "b", "c"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, logos)
}

func TestDuckDuckGoNoResults(t *testing.T) {
	srv := newFakeDDG(t, nil)
	_, err := NewDuckDuckGo(srv.URL, nil).ImageURL(context.Background(), Query("Nothing"))
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestDuckDuckGoMissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()
	_, err := NewDuckDuckGo(srv.URL, nil).ImageURL(context.Background(), "x")
	assert.ErrorContains(t, err, "token")
}
