package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/maauso/inspectmedia/internal/frames"
	"github.com/maauso/inspectmedia/internal/grid"
	"github.com/maauso/inspectmedia/internal/job"
	"github.com/maauso/inspectmedia/internal/media"
	"github.com/maauso/inspectmedia/internal/storage"
	"github.com/maauso/inspectmedia/internal/transcode"
	"github.com/maauso/inspectmedia/internal/validate"
)

const (
	// uploadField is the multipart field carrying the video.
	uploadField = "video"
	// multipartOverhead is allowed on top of the maximum video size for
	// boundaries and part headers.
	multipartOverhead = 1 << 20
	// multipartMemory is kept in memory before parts spill to disk.
	multipartMemory = 32 << 20
	// frameGridWidth is the width in pixels of grids returned by /frames.
	frameGridWidth = 1200.0
)

// FrameSampler extracts a fixed number of frames from an uploaded video.
type FrameSampler interface {
	SampleReader(ctx context.Context, r io.Reader, filename string, n int) (frames.Set, error)
}

// ReportWriter renders inspection items to PDF.
type ReportWriter interface {
	WritePDF(ctx context.Context, w io.Writer, itemIDs []string) error
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.Service
	prober             media.Prober
	store              storage.Storage
	sampler            FrameSampler
	reports            ReportWriter
	validator          *validator.Validate
	logger             *slog.Logger
	maxUpload          int64
	frameCount         int
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, uploads only create the job and return immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithProber enables POST /videos/info. store holds the upload while it is probed.
func WithProber(p media.Prober, store storage.Storage) HandlerOption {
	return func(h *Handlers) {
		h.prober = p
		h.store = store
	}
}

// WithFrameSampler enables POST /frames.
func WithFrameSampler(s FrameSampler) HandlerOption {
	return func(h *Handlers) {
		h.sampler = s
	}
}

// WithReports enables POST /reports.
func WithReports(r ReportWriter) HandlerOption {
	return func(h *Handlers) {
		h.reports = r
	}
}

// WithMaxUploadSize caps the video size accepted by upload endpoints.
func WithMaxUploadSize(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

// WithFrameCount sets the default number of frames returned by /frames.
func WithFrameCount(n int) HandlerOption {
	return func(h *Handlers) {
		if n > 0 && n <= grid.Cells {
			h.frameCount = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.Service, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		maxUpload:          validate.MaxSize,
		frameCount:         frames.DefaultCount,
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateVideo handles POST /videos requests.
func (h *Handlers) CreateVideo(w http.ResponseWriter, r *http.Request) {
	file, header, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		h.uploadError(w, err)
		return
	}

	pushToS3, _ := strconv.ParseBool(r.FormValue("push_to_s3"))
	asset := media.NewVideoAsset(header.Filename, contentType(header, data), data)

	var created *job.Job
	if h.enableAsyncProcess {
		created, err = h.service.Start(r.Context(), asset, pushToS3)
	} else {
		created, err = h.service.Submit(r.Context(), asset, pushToS3)
	}
	if err != nil {
		var verr *validate.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "video failed validation",
				Code:    "VALIDATION_ERROR",
				Details: verr.Result.Violations,
			})
		case errors.Is(err, job.ErrNotVideo):
			writeError(w, http.StatusBadRequest, err.Error(), "NOT_A_VIDEO")
		default:
			h.logger.Error("failed to create job", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		}
		return
	}

	h.logger.Info("job created",
		slog.String("job_id", created.ID),
		slog.String("filename", created.Filename),
		slog.Int64("size", created.InputSize),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     created.ID,
		Status: string(created.Status),
	})
}

// ListVideos handles GET /videos requests.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_FETCH_FAILED")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetVideo handles GET /videos/{id} requests.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	found, err := h.service.Get(r.Context(), jobID)
	if err != nil {
		h.jobError(w, jobID, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(found))
}

// GetVideoContent handles GET /videos/{id}/content requests. The processed
// MP4 is streamed, or returned as a data URI with ?format=datauri.
func (h *Handlers) GetVideoContent(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	found, rc, err := h.service.OpenOutput(r.Context(), jobID)
	if err != nil {
		h.jobError(w, jobID, err)
		return
	}
	defer func() { _ = rc.Close() }()

	if r.URL.Query().Get("format") == "datauri" {
		uri, err := transcode.DataURI(found.OutputPath)
		if err != nil {
			h.logger.Error("failed to encode output video",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to read video", "VIDEO_READ_FAILED")
			return
		}
		writeJSON(w, http.StatusOK, DataURIResponse{ID: jobID, DataURI: uri})
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, jobID+".mp4", found.UpdatedAt, rs)
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("stream output video",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// DeleteVideo handles DELETE /videos/{id} requests. Active jobs are
// cancelled; finished jobs are removed together with their output.
func (h *Handlers) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	found, err := h.service.Get(r.Context(), jobID)
	if err != nil {
		h.jobError(w, jobID, err)
		return
	}

	if found.IsTerminal() {
		if err := h.service.Delete(r.Context(), jobID); err != nil {
			h.jobError(w, jobID, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.service.Cancel(r.Context(), jobID); err != nil {
		h.jobError(w, jobID, err)
		return
	}
	h.logger.Info("job cancel requested", slog.String("job_id", jobID))
	writeJSON(w, http.StatusAccepted, CreateJobResponse{ID: jobID, Status: string(found.Status)})
}

// VideoInfo handles POST /videos/info requests.
func (h *Handlers) VideoInfo(w http.ResponseWriter, r *http.Request) {
	if h.prober == nil || h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "probing is not configured", "PROBE_DISABLED")
		return
	}

	file, header, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer func() { _ = file.Close() }()

	path, err := h.store.SaveTemp(r.Context(), "probe_"+header.Filename, file)
	if err != nil {
		h.uploadError(w, err)
		return
	}
	defer func() {
		_ = h.store.CleanupTemp(context.WithoutCancel(r.Context()), []string{path})
	}()

	info, err := h.prober.Probe(r.Context(), path)
	if err != nil {
		h.logger.Warn("probe failed",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusUnprocessableEntity, "could not read video metadata", "PROBE_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Frames handles POST /frames requests and returns a PNG frame grid.
func (h *Handlers) Frames(w http.ResponseWriter, r *http.Request) {
	if h.sampler == nil {
		writeError(w, http.StatusServiceUnavailable, "frame sampling is not configured", "FRAMES_DISABLED")
		return
	}

	count := h.frameCount
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > grid.Cells {
			writeError(w, http.StatusBadRequest, "count must be between 1 and "+strconv.Itoa(grid.Cells), "INVALID_COUNT")
			return
		}
		count = n
	}

	file, header, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer func() { _ = file.Close() }()

	set, err := h.sampler.SampleReader(r.Context(), file, header.Filename, count)
	if err != nil {
		h.uploadError(w, err)
		return
	}

	layout := grid.Assemble(set, frameGridWidth, grid.Point{})
	var buf bytes.Buffer
	if err := png.Encode(&buf, grid.Render(layout, 1)); err != nil {
		h.logger.Error("failed to encode frame grid", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to render frames", "RENDER_FAILED")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Placeholder-Count", strconv.Itoa(layout.Placeholders()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// CreateReport handles POST /reports requests and returns a PDF.
func (h *Handlers) CreateReport(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "reports are not configured", "REPORTS_DISABLED")
		return
	}

	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	var buf bytes.Buffer
	if err := h.reports.WritePDF(r.Context(), &buf, req.ItemIDs); err != nil {
		h.logger.Error("failed to build report",
			slog.Int("items", len(req.ItemIDs)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to build report", "REPORT_FAILED")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="inspection-report.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// readUpload caps the request body and opens the uploaded video part.
// It writes the error response itself and reports false on failure.
func (h *Handlers) readUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.uploadError(w, err)
		return nil, nil, false
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field \""+uploadField+"\" is required", "MISSING_VIDEO")
		return nil, nil, false
	}
	return file, header, true
}

func (h *Handlers) uploadError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds the maximum size", "PAYLOAD_TOO_LARGE")
		return
	}
	h.logger.Warn("failed to read upload", slog.String("error", err.Error()))
	writeError(w, http.StatusBadRequest, "invalid multipart upload", "INVALID_UPLOAD")
}

func (h *Handlers) jobError(w http.ResponseWriter, jobID string, err error) {
	switch {
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, job.ErrNoOutput):
		writeError(w, http.StatusConflict, "video is not ready", "VIDEO_NOT_READY")
	case errors.Is(err, job.ErrInvalidTransition), errors.Is(err, job.ErrJobActive):
		writeError(w, http.StatusConflict, err.Error(), "INVALID_STATE")
	default:
		h.logger.Error("job request failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to access job", "JOB_FETCH_FAILED")
	}
}

// contentType returns the declared part type, or the sniffed type when the
// client sent none or a generic one.
func contentType(header *multipart.FileHeader, data []byte) string {
	declared := strings.TrimSpace(header.Header.Get("Content-Type"))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return mimetype.Detect(data).String()
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
