package upvotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// upvoteService implements Backend on top of a Repository
type upvoteService struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new upvote backend
func NewService(repo Repository, logger *slog.Logger) Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &upvoteService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

func validatePair(issueID, userID string) error {
	if issueID == "" {
		return NewValidationError("issueId", "required")
	}
	if userID == "" {
		return NewValidationError("userId", "required")
	}
	return nil
}

// InsertUpvote creates the upvote record for the pair
func (s *upvoteService) InsertUpvote(ctx context.Context, issueID, userID string) error {
	if err := validatePair(issueID, userID); err != nil {
		return err
	}

	upvote := &Upvote{
		IssueID:   issueID,
		UserID:    userID,
		CreatedAt: s.now().UTC(),
	}

	if err := s.repo.Create(ctx, upvote); err != nil {
		if errors.Is(err, ErrUpvoteAlreadyExists) || errors.Is(err, ErrIssueNotFound) {
			s.logger.Warn("upvote rejected",
				"user", userID,
				"issue", issueID,
				"error", err)
			return err
		}
		s.logger.Error("failed to insert upvote",
			"error", err,
			"user", userID,
			"issue", issueID)
		return fmt.Errorf("failed to insert upvote: %w", err)
	}

	s.logger.Info("upvote created",
		"user", userID,
		"issue", issueID)

	return nil
}

// DeleteUpvote removes the upvote record for the pair, if any
func (s *upvoteService) DeleteUpvote(ctx context.Context, issueID, userID string) error {
	if err := validatePair(issueID, userID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, issueID, userID); err != nil {
		s.logger.Error("failed to delete upvote",
			"error", err,
			"user", userID,
			"issue", issueID)
		return fmt.Errorf("failed to delete upvote: %w", err)
	}

	s.logger.Info("upvote removed",
		"user", userID,
		"issue", issueID)

	return nil
}
