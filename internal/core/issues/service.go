package issues

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/UjjawalMishra93/civic-issue-system/internal/realtime"
)

type issueService struct {
	repo    Repository
	upvotes UpvoteIndex
	changes ChangeSource
	logger  *slog.Logger
}

// NewService creates a new issue service.
// changes may be nil, in which case OnChange never fires.
func NewService(repo Repository, upvotes UpvoteIndex, changes ChangeSource, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &issueService{
		repo:    repo,
		upvotes: upvotes,
		changes: changes,
		logger:  logger,
	}
}

func (s *issueService) FetchIssues(ctx context.Context) ([]*Issue, error) {
	return s.ListIssues(ctx, Filter{})
}

func (s *issueService) ListIssues(ctx context.Context, filter Filter) ([]*Issue, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if strings.EqualFold(filter.District, AllDistricts) {
		filter.District = ""
	}
	if filter.Limit < 0 {
		return nil, NewValidationError("limit", "must not be negative")
	}
	if filter.Offset < 0 {
		return nil, NewValidationError("offset", "must not be negative")
	}

	result, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}

	s.logger.Debug("issues fetched",
		"status", filter.Status,
		"district", filter.District,
		"count", len(result))

	return result, nil
}

func (s *issueService) GetIssue(ctx context.Context, id string) (*Issue, error) {
	if id == "" {
		return nil, NewValidationError("id", "required")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *issueService) FetchUserUpvotes(ctx context.Context, userID string) (map[string]struct{}, error) {
	if userID == "" {
		return nil, NewValidationError("userId", "required")
	}

	ids, err := s.upvotes.ListIssueIDsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user upvotes: %w", err)
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (s *issueService) OnChange(handler realtime.Handler) func() {
	if s.changes == nil {
		return func() {}
	}
	return s.changes.OnChange(handler)
}
