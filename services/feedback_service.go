package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-reservations/models"
)

const maxFeedbackComment = 2000

type FeedbackService struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewFeedbackService(db *gorm.DB, log logrus.FieldLogger) *FeedbackService {
	return &FeedbackService{db: db, log: log}
}

// Submit stores a rating from 1 to 5 with an optional comment.
func (s *FeedbackService) Submit(ctx context.Context, userID uint, rating int, comment string) (*models.Feedback, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: user is required", ErrValidation)
	}
	if rating < models.MinFeedbackRating || rating > models.MaxFeedbackRating {
		return nil, fmt.Errorf("%w: rating must be between %d and %d",
			ErrValidation, models.MinFeedbackRating, models.MaxFeedbackRating)
	}
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > maxFeedbackComment {
		return nil, fmt.Errorf("%w: comment is longer than %d characters", ErrValidation, maxFeedbackComment)
	}

	fb := &models.Feedback{UserID: userID, Rating: rating, Comment: comment}
	if err := s.db.WithContext(ctx).Create(fb).Error; err != nil {
		return nil, err
	}
	s.log.WithField("feedback_id", fb.ID).WithField("rating", rating).Info("feedback received")
	return fb, nil
}

// List returns feedback newest first with the author attached.
func (s *FeedbackService) List(ctx context.Context) ([]models.Feedback, error) {
	var out []models.Feedback
	err := s.db.WithContext(ctx).Preload("User").Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}
