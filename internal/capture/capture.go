// Package capture acquires the image the operator annotates: a file on
// disk, a result held by the server, a fresh screenshot through the desktop
// portal, or the clipboard.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/example/maskpaint/internal/clipboard"
	"github.com/example/maskpaint/internal/credential"
)

// Reference prefixes understood by Load besides paths and URLs.
const (
	RefScreen    = "screen:"
	RefRegion    = "region:"
	RefClipboard = "clipboard:"
)

// Source is a loaded image together with its encoded bytes.
type Source struct {
	Data  []byte
	Name  string
	Image image.Image
	// Location is where the image came from: a path, a URL or a reference
	// such as "screen:".
	Location string
}

// Size returns the native dimensions.
func (s *Source) Size() (int, int) {
	if s == nil || s.Image == nil {
		return 0, 0
	}
	b := s.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Decode parses encoded PNG, JPEG or WebP data.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

func newSource(data []byte, name, location string) (*Source, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return &Source{Data: data, Name: name, Image: img, Location: location}, nil
}

// Loader resolves references to sources.
type Loader struct {
	client     *http.Client
	creds      credential.Source
	readFile   func(string) ([]byte, error)
	screenshot func(interactive bool) ([]byte, error)
	clipboard  func() ([]byte, error)
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient sets the client used for URLs.
func WithHTTPClient(c *http.Client) Option { return func(l *Loader) { l.client = c } }

// WithCredentials attaches a bearer token to URL fetches.
func WithCredentials(s credential.Source) Option { return func(l *Loader) { l.creds = s } }

// NewLoader creates a loader using the real file system, portal and
// clipboard.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		client:     http.DefaultClient,
		creds:      credential.Chain{},
		readFile:   os.ReadFile,
		screenshot: portalScreenshot,
		clipboard:  clipboard.ReadPNG,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// ErrUnsupportedRef is returned for references Load cannot interpret.
var ErrUnsupportedRef = errors.New("unsupported image reference")

// Load resolves ref, which may be a file path, an http(s) URL or one of the
// screen:, region: and clipboard: references.
func (l *Loader) Load(ctx context.Context, ref string) (*Source, error) {
	switch {
	case ref == "":
		return nil, fmt.Errorf("%w: empty", ErrUnsupportedRef)
	case ref == RefScreen || ref == RefRegion:
		data, err := l.screenshot(ref == RefRegion)
		if err != nil {
			return nil, fmt.Errorf("capture screen: %w", err)
		}
		return newSource(data, "screenshot.png", ref)
	case ref == RefClipboard:
		data, err := l.clipboard()
		if err != nil {
			return nil, fmt.Errorf("read clipboard: %w", err)
		}
		return newSource(data, "clipboard.png", ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return l.fetch(ctx, ref)
	}
	data, err := l.readFile(ref)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	return newSource(data, filepath.Base(ref), ref)
}

const maxFetch = 64 << 20

func (l *Loader) fetch(ctx context.Context, rawURL string) (*Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if tok, ok := l.creds.Token(); ok {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", rawURL, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetch))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	name := filepath.Base(req.URL.Path)
	if name == "." || name == "/" {
		name = "image"
	}
	return newSource(data, name, rawURL)
}
