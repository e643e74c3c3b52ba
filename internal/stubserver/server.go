// Package stubserver is a local stand-in for the processing service. It
// composites the submitted mask onto the image instead of running the real
// model, which is enough to exercise both submission modes end to end.
package stubserver

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const maxUpload = 32 << 20

// Server holds queued jobs and serves the three endpoints.
type Server struct {
	token  string
	router *chi.Mux

	mu     sync.Mutex
	nextID int
	jobs   map[int]*job
}

type job struct {
	original []byte
	results  [][]byte
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires the given bearer token on submission endpoints.
func WithToken(tok string) Option { return func(s *Server) { s.token = tok } }

// WithRequestLog logs every request with chi's logger middleware.
func WithRequestLog() Option {
	return func(s *Server) { s.router.Use(middleware.Logger) }
}

// New creates a server with no jobs.
func New(opts ...Option) *Server {
	s := &Server{router: chi.NewRouter(), jobs: map[int]*job{}, nextID: 1}
	s.router.Use(middleware.Recoverer)
	for _, o := range opts {
		o(s)
	}
	s.router.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/apply_fracture", s.handleDirect)
		r.Post("/apply_fracture_queue", s.handleQueued)
	})
	s.router.Get("/results/{job_id}/{option}", s.handleResult)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// AddJob stores an original image and its candidate results and returns the
// new job id.
func (s *Server) AddJob(original []byte, results ...[]byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.jobs[id] = &job{original: original, results: append([][]byte(nil), results...)}
	return id
}

// Result returns a stored candidate.
func (s *Server) Result(jobID, choice int) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok || choice < 0 || choice >= len(j.results) {
		return nil, false
	}
	return j.results[choice], true
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type params struct {
	x, y  int
	scale float64
	noise int
}

func parseParams(r *http.Request) (params, error) {
	var p params
	var err error
	if p.x, err = strconv.Atoi(r.FormValue("x")); err != nil {
		return p, fmt.Errorf("x: %w", err)
	}
	if p.y, err = strconv.Atoi(r.FormValue("y")); err != nil {
		return p, fmt.Errorf("y: %w", err)
	}
	if p.scale, err = strconv.ParseFloat(r.FormValue("scale"), 64); err != nil {
		return p, fmt.Errorf("scale: %w", err)
	}
	if p.noise, err = strconv.Atoi(r.FormValue("noise")); err != nil {
		return p, fmt.Errorf("noise: %w", err)
	}
	return p, nil
}

func readFile(r *http.Request, field string) ([]byte, error) {
	f, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	defer func(f multipart.File) { _ = f.Close() }(f)
	return io.ReadAll(f)
}

func (s *Server) handleDirect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p, err := parseParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	src, err := readFile(r, "image_file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	mask, err := readFile(r, "overlay_file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	out, err := Apply(src, mask, p.x, p.y, p.scale)
	if err != nil {
		http.Error(w, "Invalid image or overlay file", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="fractured_image.png"`)
	if _, err := w.Write(out); err != nil {
		log.Printf("write direct response: %v", err)
	}
}

func (s *Server) handleQueued(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	jobID, err := strconv.Atoi(r.FormValue("job_id"))
	if err != nil {
		http.Error(w, "job_id: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	choice, err := strconv.Atoi(r.FormValue("choice"))
	if err != nil {
		http.Error(w, "choice: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	p, err := parseParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	mask, err := readFile(r, "overlay_file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		http.Error(w, "Job ID not found", http.StatusNotFound)
		return
	}
	if choice < 0 || choice >= len(j.results) {
		http.Error(w, "Invalid choice index", http.StatusBadRequest)
		return
	}
	out, err := Apply(j.results[choice], mask, p.x, p.y, p.scale)
	if err != nil {
		http.Error(w, "Invalid image or overlay file", http.StatusBadRequest)
		return
	}
	j.results[choice] = out
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "success"})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	jobID, err := strconv.Atoi(chi.URLParam(r, "job_id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	option := chi.URLParam(r, "option")

	s.mu.Lock()
	j, ok := s.jobs[jobID]
	var data []byte
	if ok {
		if option == "original" {
			data = j.original
		} else if i, err := strconv.Atoi(option); err == nil && i >= 0 && i < len(j.results) {
			data = j.results[i]
		}
	}
	s.mu.Unlock()

	if data == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("Content-Type", http.DetectContentType(data))
	if _, err := w.Write(data); err != nil {
		log.Printf("write result: %v", err)
	}
}

// ErrOutOfBounds is returned by Composite when the mask does not fit inside
// the image at the requested offset.
var ErrOutOfBounds = errors.New("overlay outside image")

// Apply decodes both images, composites the mask and returns PNG bytes. A mask
// that does not fit returns the image unchanged.
func Apply(src, mask []byte, x, y int, scale float64) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	ov, _, err := image.Decode(bytes.NewReader(mask))
	if err != nil {
		return nil, fmt.Errorf("decode overlay: %w", err)
	}
	out, err := Composite(img, ov, x, y, scale)
	if errors.Is(err, ErrOutOfBounds) {
		out = toRGBA(img)
	} else if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return buf.Bytes(), nil
}

// Composite draws overlay, scaled by scale, over img with its top-left at
// (x, y).
func Composite(img, overlay image.Image, x, y int, scale float64) (*image.RGBA, error) {
	if scale <= 0 {
		scale = 1
	}
	ob := overlay.Bounds()
	if scale != 1 {
		w := int(float64(ob.Dx())*scale + 0.5)
		h := int(float64(ob.Dy())*scale + 0.5)
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), overlay, ob, draw.Src, nil)
		overlay, ob = scaled, scaled.Bounds()
	}
	ib := img.Bounds()
	at := image.Rect(ib.Min.X+x, ib.Min.Y+y, ib.Min.X+x+ob.Dx(), ib.Min.Y+y+ob.Dy())
	if x < 0 || y < 0 || !at.In(ib) {
		return nil, ErrOutOfBounds
	}
	out := toRGBA(img)
	draw.Draw(out, at, overlay, ob.Min, draw.Over)
	return out, nil
}

func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	return out
}
