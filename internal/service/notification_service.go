package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
	"github.com/noah-isme/lms-portal-api/pkg/jobs"
	"github.com/noah-isme/lms-portal-api/pkg/mailer"
)

type notificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string, readAt time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID string, readAt time.Time) (int64, error)
}

type emailSender interface {
	Send(msg mailer.Message) error
}

// NotificationService records in-app notifications and fans out emails
// through a background worker queue.
type NotificationService struct {
	repo         notificationRepository
	sender       emailSender
	queue        *jobs.Queue
	emailEnabled bool
	logger       *zap.Logger
}

// NewNotificationService creates an instance of NotificationService. The
// email queue must be started before notifications are emitted.
func NewNotificationService(repo notificationRepository, sender emailSender, emailEnabled bool,
	queueCfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		repo:         repo,
		sender:       sender,
		emailEnabled: emailEnabled && sender != nil,
		logger:       logger,
	}
	s.queue = jobs.NewQueue("notification-emails", s.handleEmailJob, queueCfg)
	return s
}

// Start launches the email worker pool.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the email worker pool.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// List returns a user's notifications.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	notifications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return notifications, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// UnreadCount returns the user's unread badge count.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead marks one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	marked, err := s.repo.MarkRead(ctx, id, userID, time.Now().UTC())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	if !marked {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found or already read")
	}
	return nil
}

// MarkAllRead marks all of a user's notifications as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	marked, err := s.repo.MarkAllRead(ctx, userID, time.Now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return marked, nil
}

// NotifyBookingConfirmed emits the booking confirmation notification.
func (s *NotificationService) NotifyBookingConfirmed(ctx context.Context, booking *models.BookingDetail) {
	s.emit(ctx, booking.StudentID, booking.StudentEmail, models.NotificationBookingConfirmed,
		"Booking confirmed",
		fmt.Sprintf("Your booking for %s on %s is confirmed.",
			booking.CourseTitle, booking.ClassStartTime.Format("Mon, 02 Jan 2006 15:04 MST")))
}

// NotifyBookingCancelled emits the booking cancellation notification.
func (s *NotificationService) NotifyBookingCancelled(ctx context.Context, booking *models.BookingDetail) {
	s.emit(ctx, booking.StudentID, booking.StudentEmail, models.NotificationBookingCancelled,
		"Booking cancelled",
		fmt.Sprintf("Your booking for %s on %s was cancelled.",
			booking.CourseTitle, booking.ClassStartTime.Format("Mon, 02 Jan 2006 15:04 MST")))
}

// NotifyBookingRescheduled emits the reschedule notification.
func (s *NotificationService) NotifyBookingRescheduled(ctx context.Context, booking *models.BookingDetail) {
	s.emit(ctx, booking.StudentID, booking.StudentEmail, models.NotificationBookingReschedule,
		"Booking rescheduled",
		fmt.Sprintf("Your booking was moved to %s on %s.",
			booking.CourseTitle, booking.ClassStartTime.Format("Mon, 02 Jan 2006 15:04 MST")))
}

// NotifyClassCancelled tells a booked student their class was cancelled.
func (s *NotificationService) NotifyClassCancelled(ctx context.Context, booking *models.BookingDetail) {
	s.emit(ctx, booking.StudentID, booking.StudentEmail, models.NotificationClassCancelled,
		"Class cancelled",
		fmt.Sprintf("%s on %s was cancelled by the school. Your booking has been cancelled.",
			booking.CourseTitle, booking.ClassStartTime.Format("Mon, 02 Jan 2006 15:04 MST")))
}

// NotifyWaitlistPromoted tells a student their waitlist entry became a booking.
func (s *NotificationService) NotifyWaitlistPromoted(ctx context.Context, booking *models.BookingDetail) {
	s.emit(ctx, booking.StudentID, booking.StudentEmail, models.NotificationWaitlistPromoted,
		"A seat opened up",
		fmt.Sprintf("You were promoted from the waitlist: %s on %s is now booked for you.",
			booking.CourseTitle, booking.ClassStartTime.Format("Mon, 02 Jan 2006 15:04 MST")))
}

// NotifyPasswordReset emails a reset token. No in-app record is written since
// the user may be locked out of the portal.
func (s *NotificationService) NotifyPasswordReset(ctx context.Context, user *models.User, token string, expiresAt time.Time) {
	s.enqueueEmail(user.Email, "Password reset",
		fmt.Sprintf("Use this token to reset your password: %s\nIt expires at %s.",
			token, expiresAt.Format(time.RFC1123)))
}

func (s *NotificationService) emit(ctx context.Context, userID, email string, kind models.NotificationType, title, body string) {
	notification := &models.Notification{
		ID:     uuid.NewString(),
		UserID: userID,
		Type:   kind,
		Title:  title,
		Body:   body,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		s.logger.Error("failed to record notification",
			zap.String("user_id", userID), zap.String("type", string(kind)), zap.Error(err))
	}
	s.enqueueEmail(email, title, body)
}

func (s *NotificationService) enqueueEmail(to, subject, body string) {
	if !s.emailEnabled || to == "" {
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:   uuid.NewString(),
		Type: "email",
		Payload: mailer.Message{
			To:      to,
			Subject: subject,
			Body:    body,
		},
	})
	if err != nil {
		s.logger.Warn("failed to enqueue notification email", zap.String("to", to), zap.Error(err))
	}
}

func (s *NotificationService) handleEmailJob(_ context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(mailer.Message)
	if !ok {
		s.logger.Error("unexpected email job payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.sender.Send(msg)
}
