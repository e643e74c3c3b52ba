// Package submit sends the painted region of a mask to the processing
// service.
//
// A submission is split in two steps. Prepare runs on the goroutine that
// owns the overlay: it finds the painted region, copies it out and fires the
// seed effect. Send may run anywhere: it encodes the copy, posts it once and
// interprets the response.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"github.com/example/maskpaint/internal/coords"
	"github.com/example/maskpaint/internal/credential"
	"github.com/example/maskpaint/internal/effect"
	"github.com/example/maskpaint/internal/region"
)

// Endpoint paths relative to the server base.
const (
	DirectPath = "apply_fracture"
	QueuedPath = "apply_fracture_queue"
)

// Fixed payload parameters.
const (
	Scale = "1.0"
	Noise = "10"
)

var (
	// ErrEmptyMask is returned when nothing is painted. No request is made.
	ErrEmptyMask = errors.New("nothing painted")
	// ErrEncode wraps a failure to encode the cropped mask.
	ErrEncode = errors.New("encode mask")
	// ErrNoImage is returned for a direct submission without source bytes.
	ErrNoImage = errors.New("no source image")
)

// StatusError reports a non-success HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("server returned %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

const maxErrorBody = 512

// Dispatcher submits regions to one server.
type Dispatcher struct {
	base      *url.URL
	client    *http.Client
	creds     credential.Source
	effect    effect.Notifier
	extractor *region.Extractor
	encode    func(io.Writer, image.Image) error
	now       func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) Option { return func(d *Dispatcher) { d.client = c } }

// WithCredentials sets the bearer token source.
func WithCredentials(s credential.Source) Option { return func(d *Dispatcher) { d.creds = s } }

// WithEffect sets the receiver of seed bursts.
func WithEffect(n effect.Notifier) Option { return func(d *Dispatcher) { d.effect = n } }

// WithExtractor sets the region extractor.
func WithExtractor(e *region.Extractor) Option { return func(d *Dispatcher) { d.extractor = e } }

// WithEncoder replaces the PNG encoder used for the cropped mask.
func WithEncoder(fn func(io.Writer, image.Image) error) Option {
	return func(d *Dispatcher) { d.encode = fn }
}

// WithClock sets the time source for cache-busting markers.
func WithClock(fn func() time.Time) Option { return func(d *Dispatcher) { d.now = fn } }

// New creates a dispatcher for the server at base.
func New(base string, opts ...Option) (*Dispatcher, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("server url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("server url %q: must be absolute", base)
	}
	d := &Dispatcher{
		base:      u,
		client:    http.DefaultClient,
		creds:     credential.Chain{},
		effect:    effect.Discard,
		extractor: region.New(),
		encode:    png.Encode,
		now:       time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Base returns the server base URL.
func (d *Dispatcher) Base() *url.URL { return d.base }

// ModeFor returns the submission mode for an image location.
func (d *Dispatcher) ModeFor(location string) (Mode, JobRef) {
	if ref, ok := ParseJobReference(d.base, location); ok {
		return Queued, ref
	}
	return Direct, JobRef{}
}

// Request is what the editor hands over for one submission.
type Request struct {
	Overlay *image.RGBA
	Space   coords.Space
	// Location identifies where the displayed image came from.
	Location string
	// Image is the encoded source image, required in direct mode.
	Image     []byte
	ImageName string
}

// Prepared is a submission ready to send. It shares no memory with the
// overlay.
type Prepared struct {
	Mode   Mode
	Job    JobRef
	Region region.Result
	Crop   *image.RGBA
	// X and Y are the source-space top-left of the painted region.
	X, Y int

	location  string
	image     []byte
	imageName string
}

// Prepare extracts and copies the painted region and fires the seed effect.
// It must run on the goroutine that owns the overlay.
func (d *Dispatcher) Prepare(req Request) (*Prepared, error) {
	res := d.extractor.Extract(req.Overlay, req.Space)
	if res.Empty() {
		return nil, ErrEmptyMask
	}
	mode, ref := d.ModeFor(req.Location)
	if mode == Direct && len(req.Image) == 0 {
		return nil, ErrNoImage
	}
	crop := image.NewRGBA(image.Rect(0, 0, res.Bounds.Width(), res.Bounds.Height()))
	draw.Draw(crop, crop.Bounds(), req.Overlay, res.Bounds.Rect().Min, draw.Src)
	d.effect.Burst(res.Seeds, effect.DefaultParams)
	lo, _ := res.SourceBox(req.Space)
	x, y := lo.Round()
	return &Prepared{
		Mode:      mode,
		Job:       ref,
		Region:    res,
		Crop:      crop,
		X:         x,
		Y:         y,
		location:  req.Location,
		image:     req.Image,
		imageName: req.ImageName,
	}, nil
}

// Result is the outcome of a successful submission.
type Result struct {
	Mode Mode
	// Image holds the processed image in direct mode.
	Image       []byte
	ContentType string
	// Location is the cache-busted image location in queued mode.
	Location string
}

// Send encodes the prepared crop and posts it once.
func (d *Dispatcher) Send(ctx context.Context, p *Prepared) (*Result, error) {
	blob, err := d.encodeAsync(ctx, p.Crop)
	if err != nil {
		return nil, err
	}
	body, contentType, err := p.payload(blob)
	if err != nil {
		return nil, err
	}
	endpoint := DirectPath
	if p.Mode == Queued {
		endpoint = QueuedPath
	}
	target := d.base.JoinPath(endpoint).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if tok, ok := d.creds.Token(); ok {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}
	if p.Mode == Queued {
		if err := checkQueuedStatus(resp.Body); err != nil {
			return nil, err
		}
		return &Result{Mode: Queued, Location: CacheBust(p.location, d.now())}, nil
	}
	img, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}
	return &Result{Mode: Direct, Image: img, ContentType: resp.Header.Get("Content-Type")}, nil
}

// Submit runs Prepare and Send back to back.
func (d *Dispatcher) Submit(ctx context.Context, req Request) (*Result, error) {
	p, err := d.Prepare(req)
	if err != nil {
		return nil, err
	}
	return d.Send(ctx, p)
}

type encoded struct {
	data []byte
	err  error
}

func (d *Dispatcher) encodeAsync(ctx context.Context, img image.Image) ([]byte, error) {
	ch := make(chan encoded, 1)
	go func() {
		var buf bytes.Buffer
		err := d.encode(&buf, img)
		ch <- encoded{data: buf.Bytes(), err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncode, r.err)
		}
		return r.data, nil
	}
}

func (p *Prepared) payload(mask []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if p.Mode == Direct {
		name := p.imageName
		if name == "" {
			name = "image"
		}
		if err := writeFile(w, "image_file", name, http.DetectContentType(p.image), p.image); err != nil {
			return nil, "", err
		}
	}
	if err := writeFile(w, "overlay_file", "overlay.png", "image/png", mask); err != nil {
		return nil, "", err
	}
	fields := [][2]string{
		{"scale", Scale},
		{"noise", Noise},
		{"x", strconv.Itoa(p.X)},
		{"y", strconv.Itoa(p.Y)},
	}
	if p.Mode == Queued {
		fields = append(fields,
			[2]string{"job_id", strconv.Itoa(p.Job.JobID)},
			[2]string{"choice", strconv.Itoa(p.Job.Choice)},
		)
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write %s: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close payload: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field, filename, contentType string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("write %s: %w", field, err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", field, err)
	}
	return nil
}

// ErrRejected is returned when the queued endpoint answers 2xx with a
// non-success status.
var ErrRejected = errors.New("submission rejected")

func checkQueuedStatus(r io.Reader) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&body); err != nil {
		log.Printf("queued response: %v", err)
		return nil
	}
	if body.Status != "" && body.Status != "success" {
		return fmt.Errorf("%w: %s", ErrRejected, body.Status)
	}
	return nil
}
