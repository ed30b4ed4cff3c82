package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/maauso/inspectmedia/internal/media"
	"github.com/maauso/inspectmedia/internal/metrics"
	"github.com/maauso/inspectmedia/internal/progress"
	"github.com/maauso/inspectmedia/internal/storage"
	"github.com/maauso/inspectmedia/internal/transcode"
	"github.com/maauso/inspectmedia/internal/validate"
)

// Static errors returned by Service.
var (
	// ErrNoAsset is returned when Submit is called without an asset.
	ErrNoAsset = errors.New("no media asset provided")
	// ErrNotVideo is returned when a non-video asset is submitted for transcoding.
	ErrNotVideo = errors.New("asset is not a video")
	// ErrJobActive is returned when deleting a job that has not finished.
	ErrJobActive = errors.New("job is still active")
	// ErrNoOutput is returned when a job has no processed video.
	ErrNoOutput = errors.New("job has no output video")
)

// Processor ingests and transcodes one video. ingest.Ingestor implements it.
type Processor interface {
	Process(ctx context.Context, r io.Reader, size int64, filename, outputName string, fn progress.Func) (*transcode.Result, error)
}

// Service runs uploaded videos through validation, ingestion and transcoding.
// Jobs are processed one at a time in submission order of their Process calls.
type Service struct {
	repo      Repository
	validator *validate.Validator
	processor Processor
	store     storage.Storage
	logger    *slog.Logger
	sem       chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service.
func NewService(repo Repository, validator *validate.Validator, processor Processor, store storage.Storage, opts ...ServiceOption) *Service {
	s := &Service{
		repo:      repo,
		validator: validator,
		processor: processor,
		store:     store,
		logger:    slog.Default(),
		sem:       make(chan struct{}, 1),
		cancels:   make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates asset and records a queued job for it. A failed check
// returns a *validate.ValidationError carrying every violation and creates
// no job.
func (s *Service) Submit(ctx context.Context, asset *media.Asset, pushToS3 bool) (*Job, error) {
	if asset == nil {
		return nil, ErrNoAsset
	}
	if asset.Kind != media.KindVideo {
		return nil, ErrNotVideo
	}

	if err := s.validator.Check(asset.AssetInfo); err != nil {
		var verr *validate.ValidationError
		if errors.As(err, &verr) {
			for _, v := range verr.Result.Violations {
				metrics.ValidationFailures.WithLabelValues(v.Code).Inc()
			}
		}
		s.logger.Info("upload rejected",
			slog.String("filename", asset.Filename),
			slog.Int64("size", asset.Size),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	job := New()
	job.Filename = asset.Filename
	job.MIMEType = asset.MIMEType
	job.InputSize = asset.Size
	job.PushToS3 = pushToS3

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.String("filename", asset.Filename),
		slog.Int64("size", asset.Size),
		slog.Bool("push_to_s3", pushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job.Clone(), nil
}

// Start submits asset and processes it in the background. The processing
// context is detached from ctx so the job outlives the request that created it.
// The job can be cancelled, or stopped by Shutdown, as soon as Start returns.
func (s *Service) Start(ctx context.Context, asset *media.Asset, pushToS3 bool) (*Job, error) {
	job, err := s.Submit(ctx, asset, pushToS3)
	if err != nil {
		return nil, err
	}

	pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.cancels[job.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		_ = s.Process(pctx, job.ID, asset)
	}()

	return job, nil
}

// Process runs a submitted job to a terminal state. Only one job holds the
// processing slot at a time; others wait in IN_QUEUE. The asset's bytes are
// released when Process returns.
func (s *Service) Process(ctx context.Context, jobID string, asset *media.Asset) error {
	defer asset.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := s.logger.With(slog.String("job_id", jobID))

	job, err := s.track(ctx, jobID, cancel)
	defer s.untrack(jobID)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return nil
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return s.finish(ctx, job, ctx.Err(), logger)
	}
	defer func() { <-s.sem }()

	if err := job.Start(); err != nil {
		return err
	}
	s.save(ctx, job, logger)

	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()

	logger.Info("processing job", slog.String("filename", asset.Filename))
	started := time.Now()

	res, err := s.processor.Process(ctx, bytes.NewReader(asset.Data), asset.Size, asset.Filename, jobID+".mp4",
		func(e progress.Event) {
			job.UpdateProgress(e.Phase, e.Percent)
			s.save(ctx, job, logger)
		})
	if err != nil {
		return s.finish(ctx, job, err, logger)
	}

	job.SetOutput(res.OutputPath, res.OutputSize, res.Duration)
	metrics.TranscodeDuration.Observe(time.Since(started).Seconds())
	if saved := res.InputSize - res.OutputSize; saved > 0 {
		metrics.TranscodeBytesSaved.Add(float64(saved))
	}

	if job.PushToS3 {
		url, err := s.upload(ctx, jobID, res.OutputPath)
		if err != nil {
			return s.finish(ctx, job, err, logger)
		}
		job.SetVideoURL(url)
	}

	return s.finish(ctx, job, nil, logger)
}

func (s *Service) upload(ctx context.Context, jobID, path string) (string, error) {
	rc, err := s.store.LoadTemp(ctx, path)
	if err != nil {
		return "", fmt.Errorf("open output for upload: %w", err)
	}
	defer func() { _ = rc.Close() }()

	return s.store.UploadToS3(ctx, jobID+".mp4", rc)
}

// finish moves job to its terminal state based on err and persists it.
// It returns err so callers can propagate it.
func (s *Service) finish(ctx context.Context, job *Job, err error, logger *slog.Logger) error {
	switch {
	case err == nil:
		_ = job.Complete()
		metrics.JobsTotal.WithLabelValues("completed").Inc()
		logger.Info("job completed",
			slog.String("output", job.OutputPath),
			slog.Int64("output_size", job.OutputSize),
		)
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		_ = job.Cancel()
		metrics.JobsTotal.WithLabelValues("cancelled").Inc()
		logger.Info("job cancelled")
	default:
		_ = job.Fail(failureReason(err))
		metrics.JobsTotal.WithLabelValues("failed").Inc()
		logger.Error("job failed", slog.String("error", err.Error()))
	}

	s.save(ctx, job, logger)
	return err
}

// failureReason is the message stored on a failed job.
func failureReason(err error) string {
	var terr *transcode.TranscodeError
	if errors.As(err, &terr) {
		return terr.Error()
	}
	return err.Error()
}

// save persists job even after ctx is cancelled.
func (s *Service) save(ctx context.Context, job *Job, logger *slog.Logger) {
	if err := s.repo.Save(context.WithoutCancel(ctx), job); err != nil {
		logger.Error("failed to save job", slog.String("error", err.Error()))
	}
}

// track registers cancel for jobID and loads the job. Holding mu across both
// steps orders it against Cancel of a job that has not been picked up yet.
func (s *Service) track(ctx context.Context, jobID string, cancel context.CancelFunc) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[jobID] = cancel
	return s.repo.FindByID(ctx, jobID)
}

func (s *Service) untrack(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, jobID)
}

// Cancel stops a queued or running job. The subprocess is killed and temp
// files removed before the job reaches CANCELLED. Cancelling a terminal job
// returns ErrInvalidTransition.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return ErrInvalidTransition
	}

	if cancel, ok := s.cancels[jobID]; ok {
		cancel()
		return nil
	}

	// Not picked up yet.
	if err := job.Cancel(); err != nil {
		return err
	}
	return s.repo.Save(ctx, job)
}

// Get retrieves a job by ID.
func (s *Service) Get(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.FindByID(ctx, jobID)
}

// List returns all jobs, newest first.
func (s *Service) List(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// OpenOutput opens the processed video of a completed job.
func (s *Service) OpenOutput(ctx context.Context, jobID string) (*Job, io.ReadCloser, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if job.GetStatus() != StatusCompleted || job.OutputPath == "" {
		return job, nil, ErrNoOutput
	}
	rc, err := s.store.LoadTemp(ctx, job.OutputPath)
	if err != nil {
		return job, nil, err
	}
	return job, rc, nil
}

// Delete removes a finished job and its processed video.
func (s *Service) Delete(ctx context.Context, jobID string) error {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.IsTerminal() {
		return ErrJobActive
	}

	if job.OutputPath != "" {
		if err := s.store.CleanupTemp(ctx, []string{job.OutputPath}); err != nil {
			return fmt.Errorf("remove output: %w", err)
		}
	}
	return s.repo.Delete(ctx, jobID)
}

// Shutdown cancels every in-flight job and waits for background processing
// started with Start to finish, or for ctx to end.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
