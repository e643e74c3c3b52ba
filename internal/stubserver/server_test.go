package stubserver

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

type form struct {
	files  map[string][]byte
	fields map[string]string
}

func (f form) encode(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range f.files {
		part, err := w.CreateFormFile(k, k+".png")
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write(v)
	}
	for k, v := range f.fields {
		_ = w.WriteField(k, v)
	}
	_ = w.Close()
	return &buf, w.FormDataContentType()
}

func post(t *testing.T, h http.Handler, path, token string, f form) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := f.encode(t)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func baseFields(x, y int) map[string]string {
	return map[string]string{"x": strconv.Itoa(x), "y": strconv.Itoa(y), "scale": "1.0", "noise": "10"}
}

func TestDirectComposites(t *testing.T) {
	s := New()
	src := pngBytes(t, solid(20, 20, color.White))
	mask := pngBytes(t, solid(4, 4, color.RGBA{255, 0, 0, 255}))
	rec := post(t, s, "/apply_fracture", "", form{
		files:  map[string][]byte{"image_file": src, "overlay_file": mask},
		fields: baseFields(5, 6),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type %q", ct)
	}
	out, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	if r, g, _, _ := out.At(6, 7).RGBA(); r != 0xffff || g != 0 {
		t.Fatalf("mask not composited at offset: %v", out.At(6, 7))
	}
	if _, g, _, _ := out.At(4, 6).RGBA(); g != 0xffff {
		t.Fatalf("pixel left of mask changed: %v", out.At(4, 6))
	}
}

func TestDirectOutOfBoundsReturnsImage(t *testing.T) {
	src := pngBytes(t, solid(10, 10, color.White))
	mask := pngBytes(t, solid(4, 4, color.Black))
	out, err := Apply(src, mask, 8, 8, 1)
	if err != nil {
		t.Fatal(err)
	}
	img, _ := png.Decode(bytes.NewReader(out))
	if r, _, _, _ := img.At(9, 9).RGBA(); r != 0xffff {
		t.Fatal("out of bounds mask was drawn")
	}
}

func TestDirectRejectsGarbage(t *testing.T) {
	rec := post(t, New(), "/apply_fracture", "", form{
		files:  map[string][]byte{"image_file": []byte("nope"), "overlay_file": []byte("nope")},
		fields: baseFields(0, 0),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestTokenRequired(t *testing.T) {
	s := New(WithToken("k"))
	f := form{fields: baseFields(0, 0)}
	if rec := post(t, s, "/apply_fracture_queue", "", f); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", rec.Code)
	}
	if rec := post(t, s, "/apply_fracture_queue", "bad", f); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", rec.Code)
	}
}

func TestQueued(t *testing.T) {
	s := New(WithToken("k"))
	first := pngBytes(t, solid(10, 10, color.White))
	id := s.AddJob(first, first, first)
	mask := pngBytes(t, solid(2, 2, color.Black))

	fields := baseFields(1, 1)
	fields["job_id"] = strconv.Itoa(id)
	fields["choice"] = "1"
	rec := post(t, s, "/apply_fracture_queue", "k", form{files: map[string][]byte{"overlay_file": mask}, fields: fields})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if got := rec.Body.String(); got != "{\"status\":\"success\"}\n" {
		t.Fatalf("body %q", got)
	}
	updated, _ := s.Result(id, 1)
	if bytes.Equal(updated, first) {
		t.Fatal("chosen result not replaced")
	}
	untouched, _ := s.Result(id, 0)
	if !bytes.Equal(untouched, first) {
		t.Fatal("other result changed")
	}

	fields["job_id"] = "999"
	if rec := post(t, s, "/apply_fracture_queue", "k", form{files: map[string][]byte{"overlay_file": mask}, fields: fields}); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown job: status %d", rec.Code)
	}
	fields["job_id"] = strconv.Itoa(id)
	fields["choice"] = "5"
	if rec := post(t, s, "/apply_fracture_queue", "k", form{files: map[string][]byte{"overlay_file": mask}, fields: fields}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad choice: status %d", rec.Code)
	}
}

func TestResultsNoCache(t *testing.T) {
	s := New()
	orig := pngBytes(t, solid(3, 3, color.White))
	res := pngBytes(t, solid(3, 3, color.Black))
	id := s.AddJob(orig, res)
	for _, tc := range []struct {
		path string
		want []byte
		code int
	}{
		{"/results/" + strconv.Itoa(id) + "/original", orig, 200},
		{"/results/" + strconv.Itoa(id) + "/0", res, 200},
		{"/results/" + strconv.Itoa(id) + "/1", nil, 404},
		{"/results/42/0", nil, 404},
	} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.code {
			t.Errorf("%s: status %d, want %d", tc.path, rec.Code, tc.code)
			continue
		}
		if tc.code != 200 {
			continue
		}
		if !bytes.Equal(rec.Body.Bytes(), tc.want) {
			t.Errorf("%s: wrong body", tc.path)
		}
		if cc := rec.Header().Get("Cache-Control"); cc != "no-cache, no-store, must-revalidate" {
			t.Errorf("%s: cache control %q", tc.path, cc)
		}
	}
}
