package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"periph.io/x/conn/v3/physic"

	"tftfb/internal/config"
	"tftfb/internal/defio"
	"tftfb/internal/panel"
	"tftfb/internal/region"
	"tftfb/internal/sim"
)

func newTestPanel(t *testing.T) (*panel.Device, *sim.Controller) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ctl := sim.NewController(220, 176, 0x9225)
	ctrl := region.Region{Name: "ctrl", Base: 0x1000, Size: 2}
	data := region.Region{Name: "data", Base: 0x2000, Size: 2}
	d, err := panel.Attach(ctx, panel.ILI9225, panel.Options{
		Control:   ctrl,
		Data:      data,
		Resources: sim.NewProvider(ctl, ctrl.Base, data.Base),
		Registrar: defio.NewRegistry(ctx, 0),
		Rate:      physic.MilliHertz,
		Sleep:     func(time.Duration) {},
	})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	t.Cleanup(d.Detach)
	return d, ctl
}

func newTestServer(t *testing.T, auth *config.BasicAuthConfig) (*Server, *panel.Device, *sim.Controller) {
	t.Helper()
	d, ctl := newTestPanel(t)
	cfg := config.DefaultConfig()
	cfg.BasicAuth = auth
	return NewServer(cfg, d), d, ctl
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndStatus(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	h := s.Handler()

	if rec := do(t, h, http.MethodGet, "/health", nil); rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("/health = %d %q", rec.Code, rec.Body.String())
	}

	rec := do(t, h, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("/api/status = %d", rec.Code)
	}
	var st panel.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Panel != "ili9225" || st.Signature != "0x9225" || st.Pages != 19 || st.Stage != "display-on" {
		t.Errorf("status = %+v", st)
	}

	if rec := do(t, h, http.MethodPost, "/api/status", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/status = %d", rec.Code)
	}
}

func TestFrameUploadAndPreview(t *testing.T) {
	s, d, ctl := newTestServer(t, nil)
	h := s.Handler()

	src := image.NewNRGBA(image.Rect(0, 0, 220, 176))
	for y := 0; y < 176; y++ {
		for x := 0; x < 220; x++ {
			src.SetNRGBA(x, y, color.NRGBA{B: 0xff, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	ctl.ResetOps()
	rec := do(t, h, http.MethodPost, "/api/frame?sync=1", buf.Bytes())
	if rec.Code != http.StatusOK {
		t.Fatalf("/api/frame = %d %s", rec.Code, rec.Body.String())
	}
	if n := ctl.Reprograms(); n != 1 {
		t.Errorf("full frame flush reprogrammed %d times, want 1", n)
	}
	if g := ctl.GRAM(); g[0] != 0x003f || g[len(g)-1] != 0x003f {
		t.Errorf("gram ends = %#x %#x, want blue", g[0], g[len(g)-1])
	}
	if st := d.Stats(); st.Pages != 38 {
		t.Errorf("pages copied = %d, want 38", st.Pages)
	}

	rec = do(t, h, http.MethodGet, "/preview.png", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("/preview.png = %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 220, 176) {
		t.Errorf("preview bounds %v", img.Bounds())
	}
	if r, g, b, _ := img.At(100, 100).RGBA(); r != 0 || g != 0 || b != 0xffff {
		t.Errorf("preview pixel = %#x %#x %#x, want blue", r, g, b)
	}

	if rec := do(t, h, http.MethodPost, "/api/frame", []byte("not a png")); rec.Code != http.StatusBadRequest {
		t.Errorf("bad frame = %d", rec.Code)
	}
}

func TestRefreshAndStandby(t *testing.T) {
	s, d, ctl := newTestServer(t, nil)
	h := s.Handler()

	ctl.ResetOps()
	if rec := do(t, h, http.MethodPost, "/api/refresh", nil); rec.Code != http.StatusOK {
		t.Fatalf("/api/refresh = %d", rec.Code)
	}
	if n := ctl.Reprograms(); n != 1 {
		t.Errorf("refresh reprogrammed %d times, want 1", n)
	}

	tests := []struct {
		target    string
		wantCode  int
		wantStage panel.Stage
	}{
		{"/api/standby?on=1", http.StatusOK, panel.StageStandby},
		{"/api/standby?on=1", http.StatusOK, panel.StageStandby},
		{"/api/standby?on=0", http.StatusOK, panel.StageDisplayOn},
		{"/api/standby?on=maybe", http.StatusBadRequest, panel.StageDisplayOn},
	}
	for _, tt := range tests {
		rec := do(t, h, http.MethodPost, tt.target, nil)
		if rec.Code != tt.wantCode {
			t.Errorf("%s = %d, want %d", tt.target, rec.Code, tt.wantCode)
		}
		if got := d.Stage(); got != tt.wantStage {
			t.Errorf("after %s stage = %v, want %v", tt.target, got, tt.wantStage)
		}
	}

	if rec := do(t, h, http.MethodGet, "/api/standby?on=1", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/standby = %d", rec.Code)
	}

	d.Detach()
	if rec := do(t, h, http.MethodPost, "/api/standby?on=1", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("standby after detach = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/preview.png", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("preview after detach = %d", rec.Code)
	}
}

func TestBasicAuth(t *testing.T) {
	s, _, _ := newTestServer(t, &config.BasicAuthConfig{Username: "admin", Password: "secret"})
	h := s.Handler()

	if rec := do(t, h, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("/health without auth = %d", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusUnauthorized || rec.Header().Get("WWW-Authenticate") == "" {
		t.Errorf("/api/status without auth = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid credentials = %d", rec.Code)
	}
}

func TestSecureCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"", "", true},
		{"abc", "abc", true},
		{"abc", "abd", false},
		{"abc", "abcd", false},
	}
	for _, tt := range tests {
		if got := secureCompare(tt.a, tt.b); got != tt.want {
			t.Errorf("secureCompare(%q, %q) = %v", tt.a, tt.b, got)
		}
	}
}
