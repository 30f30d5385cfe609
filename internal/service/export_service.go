package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
	"github.com/noah-isme/lms-portal-api/pkg/export"
	"github.com/noah-isme/lms-portal-api/pkg/jobs"
)

type exportRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.ExportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id, resultURL string, finishedAt time.Time) error
	MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error
	ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]models.ExportJob, error)
	Delete(ctx context.Context, id string) error
}

type exportBookingRepository interface {
	List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, int, error)
	ListByClass(ctx context.Context, classID string) ([]models.BookingDetail, error)
}

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type exportSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
}

// CreateExportRequest queues an asynchronous export.
type CreateExportRequest struct {
	Type   models.ExportType   `json:"type" validate:"required,oneof=bookings roster"`
	Format models.ExportFormat `json:"format" validate:"required,oneof=csv pdf xlsx"`

	ClassID   *string    `json:"class_id"`
	TeacherID *string    `json:"teacher_id"`
	StudentID *string    `json:"student_id"`
	From      *time.Time `json:"from"`
	To        *time.Time `json:"to"`
}

// ExportService renders booking and roster exports on a background queue
// and hands results out through signed download tokens.
type ExportService struct {
	repo     exportRepository
	bookings exportBookingRepository
	storage  exportStorage
	signer   exportSigner

	csv  *export.CSVExporter
	pdf  *export.PDFExporter
	xlsx *export.XLSXExporter

	queue     *jobs.Queue
	retention time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExportService creates an instance of ExportService. The queue must be
// started before exports are accepted.
func NewExportService(repo exportRepository, bookings exportBookingRepository, storage exportStorage,
	signer exportSigner, retention time.Duration, queueCfg jobs.QueueConfig,
	validate *validator.Validate, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	s := &ExportService{
		repo:      repo,
		bookings:  bookings,
		storage:   storage,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		xlsx:      export.NewXLSXExporter(),
		retention: retention,
		validator: validate,
		logger:    logger,
	}
	s.queue = jobs.NewQueue("exports", s.process, queueCfg)
	return s
}

// Start launches the export worker pool.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export worker pool.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Enqueue persists a queued export job and schedules it for processing.
func (s *ExportService) Enqueue(ctx context.Context, userID string, req CreateExportRequest) (*models.ExportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	if req.Type == models.ExportTypeRoster && (req.ClassID == nil || *req.ClassID == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roster exports require a class_id")
	}

	job := &models.ExportJob{
		ID:     uuid.NewString(),
		Type:   req.Type,
		Status: models.ExportStatusQueued,
		Params: models.ExportJobParams{
			ClassID:   req.ClassID,
			TeacherID: req.TeacherID,
			StudentID: req.StudentID,
			From:      req.From,
			To:        req.To,
			Format:    req.Format,
		},
		CreatedBy: userID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type), Payload: job.ID}); err != nil {
		now := time.Now().UTC()
		if markErr := s.repo.MarkFailed(ctx, job.ID, "queue unavailable", now); markErr != nil {
			s.logger.Error("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to schedule export job")
	}
	return job, nil
}

// Get returns an export job visible to the requester.
func (s *ExportService) Get(ctx context.Context, id, userID string, role models.UserRole) (*models.ExportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.CreatedBy != userID && role != models.RoleAdmin && role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export job belongs to another user")
	}
	return job, nil
}

// List returns the requester's export jobs.
func (s *ExportService) List(ctx context.Context, userID string, limit int) ([]models.ExportJob, error) {
	exportJobs, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list export jobs")
	}
	return exportJobs, nil
}

// Download validates a signed token and opens the rendered file.
func (s *ExportService) Download(ctx context.Context, token string) (*os.File, *models.ExportJob, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "export is not finished")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file missing")
	}
	return file, job, nil
}

// Cleanup removes finished exports past the retention window.
func (s *ExportService) Cleanup(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.retention)
	stale, err := s.repo.ListFinishedBefore(ctx, cutoff)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list stale exports")
	}
	removed := 0
	for _, job := range stale {
		if err := s.storage.Delete(exportFilename(job.ID, job.Params.Format)); err != nil {
			s.logger.Warn("failed to delete export file", zap.String("job_id", job.ID), zap.Error(err))
		}
		if err := s.repo.Delete(ctx, job.ID); err != nil {
			s.logger.Warn("failed to delete export job", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

func (s *ExportService) process(ctx context.Context, queued jobs.Job) error {
	jobID, _ := queued.Payload.(string)
	if jobID == "" {
		jobID = queued.ID
	}

	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", jobID, err)
	}
	if err := s.repo.MarkProcessing(ctx, job.ID); err != nil {
		return fmt.Errorf("mark export processing: %w", err)
	}

	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		s.fail(ctx, job.ID, err)
		return nil
	}

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(*dataset, title)
	case models.ExportFormatXLSX:
		payload, err = s.xlsx.Render(*dataset, title)
	default:
		payload, err = s.csv.Render(*dataset)
	}
	if err != nil {
		s.fail(ctx, job.ID, err)
		return nil
	}

	filename := exportFilename(job.ID, job.Params.Format)
	if _, err := s.storage.Save(filename, payload); err != nil {
		s.fail(ctx, job.ID, err)
		return nil
	}

	token, _, err := s.signer.Generate(job.ID, filename)
	if err != nil {
		s.fail(ctx, job.ID, err)
		return nil
	}

	if err := s.repo.MarkFinished(ctx, job.ID, token, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark export finished: %w", err)
	}
	s.logger.Info("export finished", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	return nil
}

func (s *ExportService) fail(ctx context.Context, jobID string, cause error) {
	s.logger.Error("export failed", zap.String("job_id", jobID), zap.Error(cause))
	if err := s.repo.MarkFailed(ctx, jobID, cause.Error(), time.Now().UTC()); err != nil {
		s.logger.Error("failed to mark export failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (*export.Dataset, string, error) {
	switch job.Type {
	case models.ExportTypeRoster:
		roster, err := s.bookings.ListByClass(ctx, *job.Params.ClassID)
		if err != nil {
			return nil, "", fmt.Errorf("load roster: %w", err)
		}
		return rosterDataset(roster), "Class roster", nil
	default:
		bookings, err := s.collectBookings(ctx, job.Params)
		if err != nil {
			return nil, "", err
		}
		return bookingsDataset(bookings), "Bookings", nil
	}
}

func (s *ExportService) collectBookings(ctx context.Context, params models.ExportJobParams) ([]models.BookingDetail, error) {
	filter := models.BookingFilter{
		From:      params.From,
		To:        params.To,
		Page:      1,
		PageSize:  100,
		SortBy:    "start_time",
		SortOrder: "ASC",
	}
	if params.ClassID != nil {
		filter.ClassID = *params.ClassID
	}
	if params.TeacherID != nil {
		filter.TeacherID = *params.TeacherID
	}
	if params.StudentID != nil {
		filter.StudentID = *params.StudentID
	}

	var all []models.BookingDetail
	for {
		page, total, err := s.bookings.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("load bookings page %d: %w", filter.Page, err)
		}
		all = append(all, page...)
		if len(all) >= total || len(page) == 0 {
			return all, nil
		}
		filter.Page++
	}
}

func bookingsDataset(bookings []models.BookingDetail) *export.Dataset {
	headers := []string{"Booking ID", "Student", "Course", "Teacher", "Start", "Status", "Booked At"}
	rows := make([]map[string]string, 0, len(bookings))
	for _, b := range bookings {
		rows = append(rows, map[string]string{
			"Booking ID": b.ID,
			"Student":    b.StudentName,
			"Course":     b.CourseTitle,
			"Teacher":    b.TeacherName,
			"Start":      b.ClassStartTime.Format(time.RFC3339),
			"Status":     string(b.Status),
			"Booked At":  b.BookedAt.Format(time.RFC3339),
		})
	}
	return &export.Dataset{Headers: headers, Rows: rows}
}

func rosterDataset(roster []models.BookingDetail) *export.Dataset {
	headers := []string{"Student", "Email", "Status", "Booked At"}
	rows := make([]map[string]string, 0, len(roster))
	for _, b := range roster {
		rows = append(rows, map[string]string{
			"Student":   b.StudentName,
			"Email":     b.StudentEmail,
			"Status":    string(b.Status),
			"Booked At": b.BookedAt.Format(time.RFC3339),
		})
	}
	return &export.Dataset{Headers: headers, Rows: rows}
}

func exportFilename(jobID string, format models.ExportFormat) string {
	ext := string(format)
	if ext == "" {
		ext = "csv"
	}
	return jobID + "." + ext
}
