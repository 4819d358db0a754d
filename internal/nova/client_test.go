package nova

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, u.String())

	u, err = parseBaseURL("http://example.com:1234/api/?x=1#frag")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com:1234/", u.String())

	u, err = parseBaseURL("example.com/nova")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/nova/", u.String())

	_, err = parseBaseURL("http://")
	require.Error(t, err)
}

type fakeNova struct {
	t           *testing.T
	uploadMeta  map[string]string
	uploadName  string
	uploadBody  string
	statusCalls int
}

func (f *fakeNova) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		assert.NoError(f.t, json.Unmarshal([]byte(r.FormValue("request-json")), &req))
		if req["apikey"] != "good-key" {
			writeJSON(w, map[string]string{"status": "error", "errormessage": "bad apikey"})
			return
		}
		writeJSON(w, map[string]string{"status": "success", "message": "authenticated user: ", "session": "sess-1"})
	})
	mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(f.t, r.ParseMultipartForm(1<<20))
		assert.NoError(f.t, json.Unmarshal([]byte(r.FormValue("request-json")), &f.uploadMeta))
		file, header, err := r.FormFile("file")
		if !assert.NoError(f.t, err) {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		body, err := io.ReadAll(file)
		assert.NoError(f.t, err)
		f.uploadName = header.Filename
		f.uploadBody = string(body)
		writeJSON(w, map[string]any{"status": "success", "subid": 42, "hash": "abc"})
	})
	mux.HandleFunc("/api/submissions/42", func(w http.ResponseWriter, r *http.Request) {
		f.statusCalls++
		writeJSON(w, map[string]any{
			"processing_started":  "2025-01-02 03:04:05.123456",
			"processing_finished": "None",
			"jobs":                []int64{7, 8},
			"job_calibrations":    [][]int64{{7, 100}},
			"user_images":         []int64{55},
		})
	})
	mux.HandleFunc("/api/jobs/7/info/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status":            "success",
			"original_filename": "m104.jpg",
			"machine_tags":      []string{"M 104"},
			"tags":              []string{"M 104", "NGC 4594"},
			"objects_in_field":  []string{"The Sombrero Galaxy"},
			"calibration":       map[string]float64{"ra": 189.99, "dec": -11.62, "radius": 0.3},
		})
	})
	mux.HandleFunc("/api/jobs/7/annotations/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"annotations": []map[string]any{
			{"type": "ngc", "names": []string{"NGC 4594"}, "pixelx": 10.5, "pixely": 20, "radius": 4},
		}})
	})
	mux.HandleFunc("/wcs_file/7", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("SIMPLE  = T"))
	})
	mux.HandleFunc("/api/jobs/9/info/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, apiKey string) (*Client, *fakeNova) {
	t.Helper()
	fake := &fakeNova{t: t}
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	c, err := NewClient(Options{BaseURL: server.URL, APIKey: apiKey, Timeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, fake
}

func TestClient_LoginStoresSession(t *testing.T) {
	c, _ := newTestClient(t, "good-key")

	token, err := c.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SessionToken("sess-1"), token)
	assert.Equal(t, token, c.Session())
}

func TestClient_LoginRejectsBadKey(t *testing.T) {
	c, _ := newTestClient(t, "bad-key")

	_, err := c.Login(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "bad apikey", authErr.Message)
	assert.Empty(t, c.Session())
}

func TestClient_LoginHTTPAndDecodeErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "platesolve/"))
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(Options{BaseURL: server.URL, APIKey: "k"})
	require.NoError(t, err)
	_, err = c.Login(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusForbidden, authErr.StatusCode)
	assert.Contains(t, err.Error(), "returned status 403")

	malformed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not-json"))
	}))
	t.Cleanup(malformed.Close)
	c, err = NewClient(Options{BaseURL: malformed.URL, APIKey: "k"})
	require.NoError(t, err)
	_, err = c.Login(context.Background())
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_LoginRequiresAPIKey(t *testing.T) {
	c, err := NewClient(Options{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	_, err = c.Login(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestClient_SubmitStreamsMultipart(t *testing.T) {
	c, fake := newTestClient(t, "good-key")
	_, err := c.Login(context.Background())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "m104.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg-bytes"), 0o600))

	res, err := c.Submit(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.SubmissionID)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "sess-1", fake.uploadMeta["session"])
	assert.Equal(t, "n", fake.uploadMeta["publicly_visible"])
	assert.Equal(t, "m104.jpg", fake.uploadName)
	assert.Equal(t, "jpeg-bytes", fake.uploadBody)
}

func TestClient_SubmitErrors(t *testing.T) {
	c, _ := newTestClient(t, "good-key")
	path := filepath.Join(t.TempDir(), "m104.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := c.Submit(context.Background(), path)
	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	_, err = c.Login(context.Background())
	require.NoError(t, err)
	_, err = c.Submit(context.Background(), filepath.Join(t.TempDir(), "missing.fits"))
	require.ErrorAs(t, err, &uploadErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestClient_StatusInfoAnnotationsAndResult(t *testing.T) {
	c, fake := newTestClient(t, "good-key")
	ctx := context.Background()

	status, err := c.SubmissionStatus(ctx, 42)
	require.NoError(t, err)
	assert.True(t, status.Calibrated())
	assert.Equal(t, []int64{7, 8}, status.Jobs)
	assert.Equal(t, 2025, status.ParsedStarted().Year())
	assert.True(t, status.ParsedFinished().IsZero())
	assert.Equal(t, 1, fake.statusCalls)

	info, err := c.JobInfo(ctx, 7)
	require.NoError(t, err)
	assert.True(t, info.Solved())
	assert.Equal(t, []string{"M 104"}, info.MachineTags)
	require.NotNil(t, info.Calibration)
	assert.InDelta(t, 189.99, info.Calibration.RA, 1e-9)

	annotations, err := c.Annotations(ctx, 7)
	require.NoError(t, err)
	require.Len(t, annotations, 1)
	assert.Equal(t, "NGC 4594", annotations[0].Label())

	body, err := c.RetrieveResult(ctx, 7, ArtifactWCS)
	require.NoError(t, err)
	assert.Equal(t, "SIMPLE  = T", string(body))
}

func TestClient_TransportErrors(t *testing.T) {
	c, _ := newTestClient(t, "good-key")
	ctx := context.Background()

	_, err := c.JobInfo(ctx, 9)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "job info", transportErr.Op)
	assert.Equal(t, http.StatusInternalServerError, transportErr.StatusCode)

	_, err = c.RetrieveResult(ctx, 7, ArtifactType("bogus"))
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusNotFound, transportErr.StatusCode)
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	c, _ := newTestClient(t, "good-key")
	_, err := c.Login(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.Empty(t, c.Session())
	require.NoError(t, c.Close())

	// A closed client can log in again.
	_, err = c.Login(context.Background())
	require.NoError(t, err)
}

func TestClient_ContextCancelled(t *testing.T) {
	c, _ := newTestClient(t, "good-key")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.SubmissionStatus(ctx, 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestArtifactTypes(t *testing.T) {
	types := ArtifactTypes()
	assert.Len(t, types, 8)
	assert.Equal(t, ArtifactWCS, types[0])
}

func TestParseArtifactType(t *testing.T) {
	a, ok := ParseArtifactType(" new_fits_file ")
	assert.True(t, ok)
	assert.Equal(t, ArtifactNewFITS, a)
	assert.Equal(t, ".fits", a.Extension())
	assert.Equal(t, ".png", ArtifactAnnotated.Extension())

	_, ok = ParseArtifactType("bogus")
	assert.False(t, ok)
}
