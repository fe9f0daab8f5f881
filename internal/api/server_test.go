package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"cartwright/internal/api/store"
	"cartwright/pkg/cache"
	"cartwright/pkg/errors"
	"cartwright/pkg/pipeline"
)

const apiFixture = `{
	"title": "API Course",
	"lessons": [
		{"id": "l1", "title": "Hello", "body": "<p>hi</p>", "section": "Unit 1"},
		{"id": "l2", "title": "Variables", "body": "<p>vars</p>", "section": "Unit 1"}
	]
}`

const apiBrokenFixture = `{
	"title": "Broken Course",
	"lessons": [
		{"id": "l1", "title": "Hello", "body": "<p>hi</p>"},
		{"id": "l2", "body": "<p>missing title</p>"}
	]
}`

const apiAssetFixture = `{
	"title": "Asset Course",
	"lessons": [
		{"id": "l1", "title": "Hello", "body": "<p>hi</p>", "assets": ["img/logo.png"]}
	]
}`

// newTestServer returns a server backed by a memory store with its worker
// pool running.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	runner := pipeline.NewRunner(cache.NewNullCache(), nil, log.New(io.Discard))
	s := NewServer(Config{
		Addr:    "127.0.0.1:0",
		Store:   store.NewMemoryStore(),
		Runner:  runner,
		Logger:  log.New(io.Discard),
		Workers: 2,
		JobTTL:  time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.jobs.start(ctx)
	t.Cleanup(func() {
		s.jobs.stop()
		cancel()
		runner.Close()
	})
	return s
}

type uploadFile struct {
	field string
	name  string
	data  []byte
}

func encodeUpload(t *testing.T, fields map[string]string, files ...uploadFile) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("create form file %s: %v", f.field, err)
		}
		if _, err := part.Write(f.data); err != nil {
			t.Fatalf("write form file %s: %v", f.field, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func postPackage(t *testing.T, s *Server, fields map[string]string, files ...uploadFile) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := encodeUpload(t, fields, files...)
	req := httptest.NewRequest(http.MethodPost, "/v1/packages", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// waitForJob polls the job endpoint until the job reaches a terminal
// status.
func waitForJob(t *testing.T, s *Server, id string) store.Job {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+id, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET job status = %d: %s", rec.Code, rec.Body.String())
		}
		var job store.Job
		if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
			t.Fatalf("decode job: %v", err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal status in time")
	return store.Job{}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("body = %q, want it to report ok", rec.Body.String())
	}
}

func TestCreatePackage(t *testing.T) {
	s := newTestServer(t)

	rec := postPackage(t, s,
		map[string]string{"title": "Uploaded"},
		uploadFile{"dataset", "course.json", []byte(apiFixture)})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, "/v1/jobs/") {
		t.Errorf("Location = %q, want a /v1/jobs/ path", loc)
	}

	var queued store.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &queued); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if queued.Status != store.StatusQueued {
		t.Errorf("initial status = %q, want %q", queued.Status, store.StatusQueued)
	}

	job := waitForJob(t, s, queued.ID)
	if job.Status != store.StatusCompleted {
		t.Fatalf("final status = %q (error %q), want %q", job.Status, job.Error, store.StatusCompleted)
	}
	if job.Stats == nil || job.Stats.Records != 2 || job.Stats.Skipped != 0 {
		t.Errorf("stats = %+v, want 2 records and no skips", job.Stats)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+queued.ID+"/package", nil)
	dl := httptest.NewRecorder()
	s.Handler().ServeHTTP(dl, req)

	if dl.Code != http.StatusOK {
		t.Fatalf("download status = %d: %s", dl.Code, dl.Body.String())
	}
	if ct := dl.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Content-Type = %q, want application/zip", ct)
	}
	if cd := dl.Header().Get("Content-Disposition"); !strings.Contains(cd, ".imscc") {
		t.Errorf("Content-Disposition = %q, want an .imscc filename", cd)
	}
	if !bytes.HasPrefix(dl.Body.Bytes(), []byte("PK")) {
		t.Error("download body does not look like a zip archive")
	}
}

func TestCreatePackageRejections(t *testing.T) {
	s := newTestServer(t)

	rec := postPackage(t, s, nil,
		uploadFile{"dataset", "course.json", []byte(apiBrokenFixture)})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var queued store.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &queued); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	job := waitForJob(t, s, queued.ID)
	if job.Status != store.StatusCompleted {
		t.Fatalf("status = %q (error %q), want %q", job.Status, job.Error, store.StatusCompleted)
	}
	if job.Stats == nil || job.Stats.Skipped != 1 {
		t.Fatalf("stats = %+v, want 1 skipped record", job.Stats)
	}
	if job.Report == nil || len(job.Report.Rejections) != 1 {
		t.Fatalf("report = %+v, want 1 rejection", job.Report)
	}
	if kind := job.Report.Rejections[0].Kind; kind != errors.ErrCodeSchemaViolation {
		t.Errorf("rejection kind = %q, want %q", kind, errors.ErrCodeSchemaViolation)
	}
}

func TestCreatePackageWithAssets(t *testing.T) {
	s := newTestServer(t)

	rec := postPackage(t, s, nil,
		uploadFile{"dataset", "course.json", []byte(apiAssetFixture)},
		uploadFile{"assets", "img/logo.png", []byte("png")})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var queued store.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &queued); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	job := waitForJob(t, s, queued.ID)
	if job.Status != store.StatusCompleted {
		t.Fatalf("status = %q (error %q), want %q", job.Status, job.Error, store.StatusCompleted)
	}
	if job.Stats == nil || job.Stats.Skipped != 0 {
		t.Errorf("stats = %+v, want no skipped records", job.Stats)
	}
}

func TestCreatePackageMissingDataset(t *testing.T) {
	s := newTestServer(t)

	rec := postPackage(t, s, map[string]string{"title": "No Data"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), "missing dataset file") {
		t.Errorf("body = %q, want a missing dataset message", rec.Body.String())
	}
}

func TestCreatePackageBadOptions(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		want   string
	}{
		{
			name:   "bad base url",
			fields: map[string]string{"base_url": "ftp://cdn.example.com"},
			want:   "http or https",
		},
		{
			name:   "bad workers",
			fields: map[string]string{"workers": "many"},
			want:   "invalid workers value",
		},
		{
			name:   "bad refresh",
			fields: map[string]string{"refresh": "perhaps"},
			want:   "invalid refresh value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			rec := postPackage(t, s, tt.fields,
				uploadFile{"dataset", "course.json", []byte(apiFixture)})
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.want)
			}
		})
	}
}

func TestCreatePackageTooLarge(t *testing.T) {
	runner := pipeline.NewRunner(cache.NewNullCache(), nil, log.New(io.Discard))
	defer runner.Close()
	s := NewServer(Config{
		Addr:        "127.0.0.1:0",
		Store:       store.NewMemoryStore(),
		Runner:      runner,
		Logger:      log.New(io.Discard),
		MaxUploadMB: 1,
		JobTTL:      time.Hour,
	})

	huge := bytes.Repeat([]byte("x"), 2<<20)
	rec := postPackage(t, s, nil, uploadFile{"dataset", "course.json", huge})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
	if !strings.Contains(rec.Body.String(), "1 MB limit") {
		t.Errorf("body = %q, want the size limit named", rec.Body.String())
	}
}

func TestGetJobNotFound(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/nope", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if !strings.Contains(rec.Body.String(), string(errors.ErrCodeJobNotFound)) {
		t.Errorf("body = %q, want code %s", rec.Body.String(), errors.ErrCodeJobNotFound)
	}
}

func TestDownloadNotCompleted(t *testing.T) {
	s := newTestServer(t)

	job := store.NewJob(time.Hour)
	if err := s.cfg.Store.Put(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+job.ID+"/package", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if !strings.Contains(rec.Body.String(), "not completed") {
		t.Errorf("body = %q, want a not-completed message", rec.Body.String())
	}
}

func TestDownloadFailedJob(t *testing.T) {
	s := newTestServer(t)

	job := store.NewJob(time.Hour)
	job.Status = store.StatusFailed
	job.Error = "dataset was unreadable"
	if err := s.cfg.Store.Put(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+job.ID+"/package", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if !strings.Contains(rec.Body.String(), "dataset was unreadable") {
		t.Errorf("body = %q, want the failure message", rec.Body.String())
	}
}

func TestNewServerDefaults(t *testing.T) {
	s := NewServer(Config{Store: store.NewMemoryStore()})

	if s.cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2", s.cfg.Workers)
	}
	if s.cfg.MaxUploadMB != 32 {
		t.Errorf("MaxUploadMB = %d, want 32", s.cfg.MaxUploadMB)
	}
	if s.cfg.JobTTL != 24*time.Hour {
		t.Errorf("JobTTL = %v, want 24h", s.cfg.JobTTL)
	}
}

func TestServerRun(t *testing.T) {
	runner := pipeline.NewRunner(cache.NewNullCache(), nil, log.New(io.Discard))
	defer runner.Close()
	s := NewServer(Config{
		Addr:   "127.0.0.1:0",
		Store:  store.NewMemoryStore(),
		Runner: runner,
		Logger: log.New(io.Discard),
		JobTTL: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	var addr string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if addr = s.BoundAddr(); addr != "" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == "" {
		t.Fatal("server never bound a listener")
	}

	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
