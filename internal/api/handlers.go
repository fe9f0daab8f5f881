package api

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cartwright/internal/api/store"
	"cartwright/pkg/errors"
	"cartwright/pkg/pipeline"
)

// multipartMemory is how much of a parsed upload stays in memory before
// spilling to temp files.
const multipartMemory = 8 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreatePackage accepts a multipart dataset upload, queues a build
// job, and replies 202 with the job's initial state.
func (s *Server) handleCreatePackage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.ContentLength > s.maxUploadBytes() {
		s.writeError(w, http.StatusRequestEntityTooLarge, errors.ErrCodeInvalidInput,
			fmt.Sprintf("upload exceeds the %d MB limit", s.cfg.MaxUploadMB))
		return
	}
	// MaxBytesReader backstops chunked uploads that carry no length header.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, errors.ErrCodeInvalidInput,
				fmt.Sprintf("upload exceeds the %d MB limit", s.cfg.MaxUploadMB))
			return
		}
		s.writeError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput,
			"parse upload: "+err.Error())
		return
	}

	opts, err := parseBuildOptions(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.GetCode(err), errors.UserMessage(err))
		return
	}

	job := store.NewJob(s.cfg.JobTTL)
	if err := s.cfg.Store.Put(ctx, job); err != nil {
		s.logger.Error("Persist job", "job", job.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "persist job")
		return
	}
	if !s.jobs.submit(job.ID, opts) {
		_ = s.cfg.Store.Delete(ctx, job.ID)
		s.writeError(w, http.StatusServiceUnavailable, errors.ErrCodeInternal,
			"build queue is full, retry later")
		return
	}

	s.logger.Info("Job queued", "job", job.ID, "dataset", opts.DatasetName)
	w.Header().Set("Location", "/v1/jobs/"+job.ID)
	s.writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

// handleDownloadPackage streams the finished archive. Jobs that are still
// queued or running, or that failed, answer 409 so clients can tell
// "not yet" from "never".
func (s *Server) handleDownloadPackage(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}

	switch job.Status {
	case store.StatusCompleted:
	case store.StatusFailed:
		s.writeError(w, http.StatusConflict, errors.ErrCodeInvalidInput, "job failed: "+job.Error)
		return
	default:
		s.writeError(w, http.StatusConflict, errors.ErrCodeInvalidInput,
			fmt.Sprintf("job is %s, not completed", job.Status))
		return
	}

	name := job.ArtifactName
	if name == "" {
		name = "package.imscc"
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(job.Artifact)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(job.Artifact)
}

// lookupJob resolves the {id} route parameter, writing the error response
// itself when the job can't be served.
func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) (*store.Job, bool) {
	id := chi.URLParam(r, "id")
	job, err := s.cfg.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, errors.ErrCodeJobNotFound) {
			s.writeError(w, http.StatusNotFound, errors.ErrCodeJobNotFound,
				fmt.Sprintf("job %s not found", id))
			return nil, false
		}
		s.logger.Error("Load job", "job", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "load job")
		return nil, false
	}
	return job, true
}

// parseBuildOptions maps the multipart form onto pipeline options. Bad
// options are a 400 at submit time, not a failed job.
func parseBuildOptions(r *http.Request) (pipeline.Options, error) {
	var opts pipeline.Options

	file, header, err := r.FormFile("dataset")
	if err != nil {
		return opts, errors.New(errors.ErrCodeInvalidInput, "missing dataset file in upload")
	}
	data, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		return opts, errors.Wrap(errors.ErrCodeInvalidInput, err, "read dataset upload")
	}
	opts.Dataset = data
	opts.DatasetName = header.Filename

	opts.Format = r.FormValue("format")
	opts.Title = r.FormValue("title")
	opts.BaseURL = r.FormValue("base_url")
	opts.DefaultSection = r.FormValue("section")
	if v := r.FormValue("workers"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, errors.New(errors.ErrCodeInvalidInput, "invalid workers value %q", v)
		}
		opts.Workers = n
	}
	if v := r.FormValue("refresh"); v != "" {
		refresh, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidInput, "invalid refresh value %q", v)
		}
		opts.Refresh = refresh
	}

	if file, _, err := r.FormFile("schema"); err == nil {
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return opts, errors.Wrap(errors.ErrCodeInvalidInput, err, "read schema upload")
		}
		opts.Schema = data
	}

	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["assets"] {
			f, err := fh.Open()
			if err != nil {
				return opts, errors.Wrap(errors.ErrCodeInvalidInput, err, "open asset %q", fh.Filename)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return opts, errors.Wrap(errors.ErrCodeInvalidInput, err, "read asset %q", fh.Filename)
			}
			if opts.Assets == nil {
				opts.Assets = make(map[string][]byte)
			}
			opts.Assets[fh.Filename] = data
		}
	}

	if err := opts.ValidateAndSetDefaults(); err != nil {
		return opts, err
	}
	return opts, nil
}

func (s *Server) maxUploadBytes() int64 {
	return int64(s.cfg.MaxUploadMB) << 20
}
