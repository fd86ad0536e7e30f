package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/player-forms-api/internal/dto"
	"github.com/noah-isme/player-forms-api/internal/models"
	"github.com/noah-isme/player-forms-api/internal/repository"
	"github.com/noah-isme/player-forms-api/pkg/archive"
	appErrors "github.com/noah-isme/player-forms-api/pkg/errors"
	"github.com/noah-isme/player-forms-api/pkg/export"
	"github.com/noah-isme/player-forms-api/pkg/jobs"
	"github.com/noah-isme/player-forms-api/pkg/spreadsheet"
	"github.com/noah-isme/player-forms-api/pkg/storage"
)

const jobTypeGeneration = "forms.generate"

type generationJobStore interface {
	Create(ctx context.Context, job *models.GenerationJob) error
	GetByID(ctx context.Context, id string) (*models.GenerationJob, error)
	Update(ctx context.Context, id string, params repository.UpdateJobParams) error
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.GenerationJob, error)
	Delete(ctx context.Context, id string) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// FormFiller renders one template with the provided field values.
type FormFiller interface {
	Fill(values map[string]string) ([]byte, error)
}

// GenerationUpload carries an uploaded workbook into the service.
type GenerationUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.Reader
}

// ArchiveDownload aggregates resolved download data.
type ArchiveDownload struct {
	File      *os.File
	Filename  string
	SizeBytes int64
	ExpiresAt time.Time
}

// GenerationServiceConfig tunes upload validation and result lifetime.
type GenerationServiceConfig struct {
	MaxUploadBytes   int64
	AllowedMIMEs     []string
	ResultTTL        time.Duration
	CleanupInterval  time.Duration
	DownloadBasePath string
}

// GenerationService orchestrates the upload -> parse -> fill -> archive
// pipeline and the job lifecycle around it.
type GenerationService struct {
	repo      generationJobStore
	queue     jobDispatcher
	templates map[models.TemplateKind]FormFiller
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	packager  *archive.Packager
	pdf       *export.PDFExporter
	csv       *export.CSVExporter
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       GenerationServiceConfig

	mu      sync.Mutex
	uploads map[string][]byte
}

// NewGenerationService constructs the service.
func NewGenerationService(
	repo generationJobStore,
	queue jobDispatcher,
	templates map[models.TemplateKind]FormFiller,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg GenerationServiceConfig,
) *GenerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 * 1024 * 1024
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = time.Hour
	}
	if cfg.DownloadBasePath == "" {
		cfg.DownloadBasePath = "/api/v1/forms/download"
	}
	return &GenerationService{
		repo:      repo,
		queue:     queue,
		templates: templates,
		store:     store,
		signer:    signer,
		packager:  archive.NewPackager(),
		pdf:       export.NewPDFExporter(),
		csv:       export.NewCSVExporter(),
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		uploads:   make(map[string][]byte),
	}
}

// SetQueue attaches the dispatcher after construction. The queue handler is
// the service itself, so the two are wired in two steps.
func (s *GenerationService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// CreateJob validates the upload, registers a job, and enqueues processing.
// The workbook bytes stay in memory until the worker picks them up.
func (s *GenerationService) CreateJob(ctx context.Context, upload GenerationUpload) (*dto.GenerateJobResponse, error) {
	if err := s.validateUpload(upload); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(upload.Content, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer upload")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "uploaded file exceeds size limit")
	}

	job := &models.GenerationJob{
		Filename: upload.Filename,
		Status:   models.JobStatusQueued,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create generation job")
	}

	s.mu.Lock()
	s.uploads[job.ID] = data
	s.mu.Unlock()

	if s.queue == nil {
		s.dropUpload(job.ID)
		s.markFailed(ctx, job.ID, "job queue not configured")
		return nil, appErrors.Clone(appErrors.ErrInternal, "job queue not configured")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: jobTypeGeneration}); err != nil {
		s.dropUpload(job.ID)
		s.markFailed(ctx, job.ID, "failed to enqueue job")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue generation job")
	}
	return &dto.GenerateJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job progress to polling clients.
func (s *GenerationService) GetStatus(ctx context.Context, id string) (*dto.JobStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load generation job")
	}
	resp := &dto.JobStatusResponse{
		ID:       job.ID,
		Status:   job.Status,
		Progress: job.Progress,
		Summary:  job.Summary,
	}
	if job.ResultURL != nil {
		resp.ResultURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates a signed token and opens the stored archive.
func (s *GenerationService) ResolveDownload(ctx context.Context, token string) (*ArchiveDownload, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load generation job")
	}
	if job.Status != models.JobStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "archive not ready")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open archive file")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat archive file")
	}
	return &ArchiveDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		SizeBytes: info.Size(),
		ExpiresAt: expiresAt,
	}, nil
}

// StartCleanup boots a goroutine that purges expired archives periodically.
func (s *GenerationService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *GenerationService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	expired, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
	if err != nil {
		s.logger.Sugar().Warnw("cleanup list failed", "error", err)
		return
	}
	for _, job := range expired {
		if job.ResultURL != nil {
			if token := lastPathSegment(*job.ResultURL); token != "" {
				if _, relPath, _, err := s.signer.Parse(token, true); err == nil {
					if err := s.store.Delete(relPath); err != nil {
						s.logger.Sugar().Warnw("cleanup delete failed", "job_id", job.ID, "error", err)
					}
				}
			}
		}
		if err := s.repo.Delete(ctx, job.ID); err != nil {
			s.logger.Sugar().Warnw("cleanup job delete failed", "job_id", job.ID, "error", err)
		}
	}
	if _, err := s.store.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
		s.logger.Sugar().Warnw("filesystem cleanup failed", "error", err)
	}
}

func (s *GenerationService) validateUpload(upload GenerationUpload) error {
	if upload.Filename == "" || upload.Content == nil {
		return appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if !strings.EqualFold(filepath.Ext(upload.Filename), ".xlsx") {
		return appErrors.Clone(appErrors.ErrValidation, "only .xlsx workbooks are accepted")
	}
	if upload.Size > 0 && upload.Size > s.cfg.MaxUploadBytes {
		return appErrors.Clone(appErrors.ErrValidation, "uploaded file exceeds size limit")
	}
	if len(s.cfg.AllowedMIMEs) > 0 && upload.MimeType != "" {
		allowed := false
		for _, mime := range s.cfg.AllowedMIMEs {
			if strings.EqualFold(mime, upload.MimeType) {
				allowed = true
				break
			}
		}
		if !allowed {
			return appErrors.Clone(appErrors.ErrValidation, "unsupported content type")
		}
	}
	return nil
}

func (s *GenerationService) takeUpload(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.uploads[id]
	delete(s.uploads, id)
	return data, ok
}

func (s *GenerationService) dropUpload(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uploads, id)
}

func (s *GenerationService) markFailed(ctx context.Context, id, msg string) {
	failed := models.JobStatusFailed
	progress := 100
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, id, repository.UpdateJobParams{
		Status:       &failed,
		Progress:     &progress,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Sugar().Warnw("failed to mark job failed", "job_id", id, "error", err)
	}
}

func lastPathSegment(url string) string {
	if url == "" {
		return ""
	}
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

// Handle processes one queued generation job end to end.
func (s *GenerationService) Handle(ctx context.Context, job jobs.Job) error {
	started := time.Now()
	data, ok := s.takeUpload(job.ID)
	if !ok {
		s.markFailed(ctx, job.ID, "upload payload missing")
		return fmt.Errorf("no upload payload for job %s", job.ID)
	}

	processing := models.JobStatusProcessing
	progress := 5
	if err := s.repo.Update(ctx, job.ID, repository.UpdateJobParams{Status: &processing, Progress: &progress}); err != nil {
		return err
	}

	summary, archiveBytes, err := s.generate(ctx, job.ID, data)
	if err != nil {
		s.markFailed(ctx, job.ID, err.Error())
		return err
	}

	filename := fmt.Sprintf("player-forms-%s.zip", job.ID)
	relPath, err := s.store.Save(filename, archiveBytes)
	if err != nil {
		wrapped := appErrors.Wrap(err, appErrors.ErrPackaging.Code, appErrors.ErrPackaging.Status, "failed to store output archive")
		s.markFailed(ctx, job.ID, wrapped.Error())
		return wrapped
	}
	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		wrapped := appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download URL")
		s.markFailed(ctx, job.ID, wrapped.Error())
		return wrapped
	}

	finished := models.JobStatusFinished
	progress = 100
	now := time.Now().UTC()
	url := path.Join(s.cfg.DownloadBasePath, token)
	clear := ""
	if err := s.repo.Update(ctx, job.ID, repository.UpdateJobParams{
		Status:       &finished,
		Progress:     &progress,
		Summary:      summary,
		ResultURL:    &url,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Sugar().Warnw("failed to mark job finished", "job_id", job.ID, "error", err)
		return err
	}
	s.metrics.ObserveGeneration(time.Since(started), summary.FormsGenerated, len(summary.Failures))
	s.logger.Sugar().Infow("generation finished",
		"job_id", job.ID,
		"sheets", summary.Sheets,
		"rows", summary.RowsTotal,
		"forms", summary.FormsGenerated,
		"failures", len(summary.Failures),
	)
	return nil
}

// generate runs parse -> roster -> fill -> package and returns the summary
// plus the final archive bytes.
func (s *GenerationService) generate(ctx context.Context, jobID string, data []byte) (*models.GenerationSummary, []byte, error) {
	sheets, err := spreadsheet.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrMalformedInput.Code, appErrors.ErrMalformedInput.Status, "failed to read workbook")
	}

	groups, failures, err := BuildRoster(sheets)
	if err != nil {
		return nil, nil, err
	}

	summary := &models.GenerationSummary{Sheets: len(groups), Failures: failures}
	for _, sheet := range sheets {
		summary.RowsTotal += len(sheet.Rows)
	}

	entries := make([]archive.Entry, 0, summary.RowsTotal*len(models.TemplateKinds))
	processed := 0
	for _, group := range groups {
		for _, record := range group.Players {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			for _, kind := range models.TemplateKinds {
				content, err := s.renderForm(record, kind)
				if err != nil {
					summary.Failures = append(summary.Failures, models.RowError{
						Sheet:   group.Name,
						Row:     record.SourceRow,
						Player:  record.Name,
						Code:    appErrors.ErrFill.Code,
						Message: fmt.Sprintf("%s: %v", kind.FileSuffix(), err),
					})
					continue
				}
				entries = append(entries, archive.Entry{
					Path: path.Join(group.Name, kind.Folder(), FormFilename(record, kind)),
					Data: content,
				})
				summary.FormsGenerated++
			}
			processed++
			summary.RowsProcessed = processed
			s.updateProgress(ctx, jobID, processed, summary.RowsTotal)
		}
	}

	reportEntries, err := s.reportEntries(summary)
	if err != nil {
		return nil, nil, err
	}
	entries = append(entries, reportEntries...)

	archiveBytes, err := s.packager.Build(entries)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrPackaging.Code, appErrors.ErrPackaging.Status, "failed to build output archive")
	}
	return summary, archiveBytes, nil
}

func (s *GenerationService) renderForm(record models.PlayerRecord, kind models.TemplateKind) ([]byte, error) {
	filler, ok := s.templates[kind]
	if !ok {
		return nil, fmt.Errorf("no template loaded for %s", kind)
	}
	values, err := FieldValues(record, kind)
	if err != nil {
		return nil, err
	}
	return filler.Fill(values)
}

// reportEntries renders the run report: a summary PDF always, plus an error
// CSV when any row or form was skipped.
func (s *GenerationService) reportEntries(summary *models.GenerationSummary) ([]archive.Entry, error) {
	stats := [][2]string{
		{"Sheets", fmt.Sprintf("%d", summary.Sheets)},
		{"Rows read", fmt.Sprintf("%d", summary.RowsTotal)},
		{"Rows processed", fmt.Sprintf("%d", summary.RowsProcessed)},
		{"Forms generated", fmt.Sprintf("%d", summary.FormsGenerated)},
		{"Failures", fmt.Sprintf("%d", len(summary.Failures))},
	}
	records := failureRecords(summary.Failures)
	table := export.Dataset{}
	if len(records) > 0 {
		table = export.FailureDataset(records)
	}
	pdfBytes, err := s.pdf.Render(export.Summary{Title: "Form Generation Report", Stats: stats, Table: table})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPackaging.Code, appErrors.ErrPackaging.Status, "failed to render summary report")
	}
	entries := []archive.Entry{{Path: "summary.pdf", Data: pdfBytes}}

	if len(records) > 0 {
		csvBytes, err := s.csv.RenderFailures(records)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrPackaging.Code, appErrors.ErrPackaging.Status, "failed to render error report")
		}
		entries = append(entries, archive.Entry{Path: "errors.csv", Data: csvBytes})
	}
	return entries, nil
}

func failureRecords(failures []models.RowError) []export.FailureRecord {
	records := make([]export.FailureRecord, 0, len(failures))
	for _, failure := range failures {
		records = append(records, export.FailureRecord{
			Sheet:   failure.Sheet,
			Row:     failure.Row,
			Player:  failure.Player,
			Code:    failure.Code,
			Message: failure.Message,
		})
	}
	return records
}

// updateProgress maps processed rows onto the 5..95 band; 100 is reserved
// for the stored archive.
func (s *GenerationService) updateProgress(ctx context.Context, jobID string, processed, total int) {
	if total <= 0 {
		return
	}
	progress := 5 + processed*90/total
	if err := s.repo.Update(ctx, jobID, repository.UpdateJobParams{Progress: &progress}); err != nil {
		s.logger.Sugar().Warnw("failed to update progress", "job_id", jobID, "error", err)
	}
}
