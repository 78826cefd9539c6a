// Package assets resolves media references used by templates into decoded
// images: local files, file:// and http(s) URLs, PDF pages and video
// posters.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/webp"

	"github.com/ivlev/frameforge/internal/cache"
	"github.com/ivlev/frameforge/internal/storage"
)

// Options configure a Library. Zero values fall back to defaults.
type Options struct {
	DPI         int
	CacheTTL    time.Duration
	CacheSize   int
	HTTPTimeout time.Duration
	FFmpegPath  string
}

// Library loads and caches decoded assets. It is safe for concurrent use.
type Library struct {
	opts    Options
	client  *http.Client
	storage storage.Storage
	log     zerolog.Logger

	mu     sync.Mutex
	images *cache.Cache[string, image.Image]
}

func NewLibrary(opts Options, store storage.Storage, log zerolog.Logger) *Library {
	if opts.DPI <= 0 {
		opts.DPI = 150
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 30 * time.Second
	}
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	return &Library{
		opts:    opts,
		client:  &http.Client{Timeout: opts.HTTPTimeout},
		storage: store,
		log:     log,
		images:  cache.New[string, image.Image](opts.CacheTTL, opts.CacheSize),
	}
}

// Image returns the decoded image behind src. A PDF reference may carry a
// 1-based page as a fragment, e.g. deck.pdf#3. Video references resolve to
// their first frame.
func (l *Library) Image(ctx context.Context, src string) (image.Image, error) {
	l.mu.Lock()
	img, ok := l.images.Get(src)
	l.mu.Unlock()
	if ok {
		return img, nil
	}

	img, err := l.load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("load asset %s: %w", src, err)
	}

	l.mu.Lock()
	l.images.Set(src, img)
	l.mu.Unlock()
	return img, nil
}

// Pages counts the pages of a PDF reference.
func (l *Library) Pages(ctx context.Context, src string) (int, error) {
	ref, _ := splitPage(src)
	doc, err := l.openPDF(ctx, ref)
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// Upload validates and stores an asset, returning where it can be fetched.
func (l *Library) Upload(ctx context.Context, name string, r io.Reader, size int64, kind Kind) (storage.Object, error) {
	if err := Validate(name, size, kind); err != nil {
		return storage.Object{}, err
	}
	if l.storage == nil {
		return storage.Object{}, fmt.Errorf("no storage configured")
	}
	key := fmt.Sprintf("assets/%s/%s%s", kind, uuid.NewString(), strings.ToLower(filepath.Ext(name)))
	obj, err := l.storage.Upload(ctx, r, key)
	if err != nil {
		return storage.Object{}, err
	}
	l.log.Info().Str("name", name).Str("key", obj.Key).Str("kind", string(kind)).Msg("asset uploaded")
	return obj, nil
}

func (l *Library) load(ctx context.Context, src string) (image.Image, error) {
	ref, page := splitPage(src)
	ext := strings.ToLower(filepath.Ext(stripQuery(ref)))

	switch {
	case ext == ".pdf":
		doc, err := l.openPDF(ctx, ref)
		if err != nil {
			return nil, err
		}
		defer doc.Close()
		if page < 1 || page > doc.NumPage() {
			return nil, fmt.Errorf("page %d out of range 1..%d", page, doc.NumPage())
		}
		return doc.ImageDPI(page-1, float64(l.opts.DPI))
	case isVideo(ext):
		return l.poster(ctx, ref)
	default:
		rc, err := l.open(ctx, ref)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		img, _, err := image.Decode(rc)
		return img, err
	}
}

func (l *Library) openPDF(ctx context.Context, ref string) (*fitz.Document, error) {
	if p, ok := localPath(ref); ok {
		return fitz.New(p)
	}
	rc, err := l.open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return fitz.NewFromMemory(data)
}

// poster grabs the first frame of a video with ffmpeg.
func (l *Library) poster(ctx context.Context, ref string) (image.Image, error) {
	input := ref
	if p, ok := localPath(ref); ok {
		input = p
	}
	cmd := exec.CommandContext(ctx, l.opts.FFmpegPath, "-v", "error", "-i", input,
		"-frames:v", "1", "-f", "image2pipe", "-vcodec", "png", "-")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("extract poster: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	img, _, err := image.Decode(&out)
	return img, err
}

func (l *Library) open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if p, ok := localPath(ref); ok {
		return os.Open(p)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// localPath maps plain paths and file:// URLs to a filesystem path.
func localPath(ref string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// no scheme, or a Windows drive letter
		return ref, true
	}
	if u.Scheme == "file" {
		return filepath.FromSlash(u.Path), true
	}
	return "", false
}

// splitPage separates a trailing #N page selector. Without one the page
// is 1.
func splitPage(src string) (string, int) {
	i := strings.LastIndex(src, "#")
	if i < 0 {
		return src, 1
	}
	n, err := strconv.Atoi(src[i+1:])
	if err != nil {
		return src, 1
	}
	return src[:i], n
}

func stripQuery(ref string) string {
	if i := strings.IndexAny(ref, "?"); i >= 0 {
		return ref[:i]
	}
	return ref
}

func isVideo(ext string) bool {
	for _, e := range Extensions[KindVideo] {
		if e == ext {
			return true
		}
	}
	return false
}
