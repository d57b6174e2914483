package e2e

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soundwall/api/internal/model"
)

func TestWallpaperJobEndToEnd(t *testing.T) {
	ta := setupApp(t)

	ta.createWallpaper(t, "sess-e2e", `{"sound_id": 1234, "width": 120, "height": 80, "fft_size": 2048}`)

	done := ta.waitForEvent(t, func(e interface{}) bool {
		_, ok := e.(model.AllDoneEvent)
		return ok
	}).(model.AllDoneEvent)

	if done.Session.Status != model.StatusAllDone {
		t.Errorf("status = %s, want all_done", done.Session.Status)
	}
	if want := int64(2 * len(ta.schemes)); done.ImagesProduced != want {
		t.Errorf("images produced = %d, want %d", done.ImagesProduced, want)
	}

	snap := ta.session(t, "sess-e2e")
	if snap.TotalPercentage != 100 {
		t.Errorf("total = %v", snap.TotalPercentage)
	}
	for _, scheme := range ta.schemes {
		v := snap.Variants[scheme]
		if !v.Done {
			t.Errorf("variant %s not done", scheme)
		}
		if v.WaveformURL == "" || v.WaveformThumbnailURL == "" {
			t.Errorf("variant %s missing URLs: %+v", scheme, v)
		}
		// the four artifacts exist on disk
		for _, name := range []string{
			v.WaveformFilename,
			v.SpectrogramFilename,
			"thumb_" + v.WaveformFilename,
			"thumb_" + v.SpectrogramFilename,
		} {
			if _, err := os.Stat(filepath.Join(ta.dataDir, name)); err != nil {
				t.Errorf("artifact %s missing: %v", name, err)
			}
		}
	}

	// the counter feeds the public stats endpoint
	resp, err := doRequest(ta.app, http.MethodGet, "/api/stats", "", nil)
	if err != nil {
		t.Fatalf("stats request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	body := parseJSON(t, resp)
	if got := body["images_produced"]; got != float64(2*len(ta.schemes)) {
		t.Errorf("stats images_produced = %v", got)
	}
}

func TestWallpaperJobsAccumulateCounter(t *testing.T) {
	ta := setupApp(t)

	ta.createWallpaper(t, "sess-1", `{"sound_id": 1}`)
	ta.createWallpaper(t, "sess-2", `{"sound_id": 2}`)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/stats", "", nil)
	if err != nil {
		t.Fatalf("stats request failed: %v", err)
	}
	body := parseJSON(t, resp)
	if got := body["images_produced"]; got != float64(4*len(ta.schemes)) {
		t.Errorf("images_produced = %v, want %d", got, 4*len(ta.schemes))
	}
}

func TestWallpaperInvalidPayloadEmitsFailure(t *testing.T) {
	ta := setupApp(t)

	ta.createWallpaper(t, "sess-bad", `{"sound_id": "half", "width": 1.5}`)

	failed := ta.waitForEvent(t, func(e interface{}) bool {
		_, ok := e.(model.FailedEvent)
		return ok
	}).(model.FailedEvent)

	if failed.Error.Code != "INVALID_PARAMS" {
		t.Errorf("code = %s, want INVALID_PARAMS", failed.Error.Code)
	}
}

func TestServeGeneratedImage(t *testing.T) {
	ta := setupApp(t)

	ta.createWallpaper(t, "sess-img", `{"sound_id": 1234}`)
	snap := ta.session(t, "sess-img")
	v := snap.Variants[ta.schemes[0]]

	resp, err := doRequest(ta.app, http.MethodGet, "/img/"+v.WaveformFilename, "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	if body := readBody(t, resp); !strings.HasPrefix(body, "\x89PNG") {
		t.Error("expected PNG content")
	}
}

func TestServeImageRejectsTraversal(t *testing.T) {
	ta := setupApp(t)

	for _, path := range []string{
		"/img/..%2Fcounter.json",
		"/img/..%5Cetc",
		"/img/%2E%2E%2Fsecret",
	} {
		resp, err := doRequest(ta.app, http.MethodGet, path, "", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestServeImageMissing(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/img/nope.png", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}
