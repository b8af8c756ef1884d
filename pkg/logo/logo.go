// pkg/logo/logo.go - best-effort application logos: memory cache, disk cache,
// image search and download. Every failure degrades to a placeholder.

package logo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/windowsadmins/appstore/pkg/config"
	"github.com/windowsadmins/appstore/pkg/logging"
	"github.com/windowsadmins/appstore/pkg/retry"
)

const (
	// DownloadTimeout bounds each HTTP request.
	DownloadTimeout = 10 * time.Second
	maxBody         = 10 << 20
)

// Logo is a PNG ready for display.
type Logo struct {
	Name        string
	PNG         []byte
	Path        string
	Placeholder bool
}

// Fetcher resolves logos for application names.
type Fetcher struct {
	cacheDir string
	workers  int
	searcher Searcher
	client   *http.Client
	retryCfg retry.RetryConfig

	mu  sync.Mutex
	mem map[string]Logo
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithSearcher replaces the image search backend.
func WithSearcher(s Searcher) Option {
	return func(f *Fetcher) { f.searcher = s }
}

// WithRetry sets the download retry policy.
func WithRetry(cfg retry.RetryConfig) Option {
	return func(f *Fetcher) { f.retryCfg = cfg }
}

// NewFetcher creates a Fetcher using cfg's image cache, worker count and
// search URL.
func NewFetcher(cfg *config.Configuration, opts ...Option) *Fetcher {
	client := &http.Client{Timeout: DownloadTimeout}
	f := &Fetcher{
		cacheDir: cfg.ImageCachePath,
		workers:  max(cfg.LogoWorkers, 1),
		searcher: NewDuckDuckGo(cfg.ImageSearchURL, client),
		client:   client,
		retryCfg: retry.DefaultConfig,
		mem:      make(map[string]Logo),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// CacheFile returns the disk cache path for name. The hash keeps names that
// sanitize to the same text apart.
func CacheFile(dir, name string) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%016x.png", nonAlnum.ReplaceAllString(name, ""), xxhash.Sum64String(name)))
}

// Fetch returns the logo for name, or the placeholder.
func (f *Fetcher) Fetch(ctx context.Context, name string) Logo {
	f.mu.Lock()
	cached, ok := f.mem[name]
	f.mu.Unlock()
	if ok {
		return cached
	}

	path := CacheFile(f.cacheDir, name)
	if data, err := os.ReadFile(path); err == nil {
		if img, err := Normalize(data); err == nil {
			return f.remember(Logo{Name: name, PNG: img, Path: path})
		}
		logging.Warn("Discarding unreadable cached logo", "name", name, "path", path)
		os.Remove(path)
	}

	img, err := f.download(ctx, name)
	if err != nil {
		if ctx.Err() == nil {
			logging.Debug("Could not fetch logo", "name", name, "error", err)
		}
		return Logo{Name: name, PNG: Placeholder(), Placeholder: true}
	}

	if err := os.MkdirAll(f.cacheDir, 0755); err != nil {
		logging.Warn("Failed to create image cache directory", "path", f.cacheDir, "error", err)
		path = ""
	} else if err := os.WriteFile(path, img, 0644); err != nil {
		logging.Warn("Failed to cache logo", "path", path, "error", err)
		path = ""
	}
	return f.remember(Logo{Name: name, PNG: img, Path: path})
}

func (f *Fetcher) remember(l Logo) Logo {
	f.mu.Lock()
	f.mem[l.Name] = l
	f.mu.Unlock()
	return l
}

// download searches for an image and returns it as a thumbnail PNG.
func (f *Fetcher) download(ctx context.Context, name string) ([]byte, error) {
	imageURL, err := f.searcher.ImageURL(ctx, Query(name))
	if err != nil {
		return nil, err
	}

	var img []byte
	err = retry.Retry(ctx, f.retryCfg, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)
		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return retry.Permanent(fmt.Errorf("unexpected HTTP status %d", resp.StatusCode))
		default:
			return fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return err
		}
		img, err = Normalize(data)
		return retry.Permanent(err)
	})
	return img, err
}

// FetchAll resolves logos for names on a pool of logo_workers goroutines.
// Names not reached before ctx is cancelled are missing from the result.
func (f *Fetcher) FetchAll(ctx context.Context, names []string) (map[string]Logo, error) {
	var mu sync.Mutex
	logos := make(map[string]Logo, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			l := f.Fetch(gctx, name)
			mu.Lock()
			logos[name] = l
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return logos, err
	}
	return logos, nil
}
