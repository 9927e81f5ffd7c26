package services

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/techagentng/collabhub/config"
	"github.com/techagentng/collabhub/db"
	errs "github.com/techagentng/collabhub/errors"
	"github.com/techagentng/collabhub/metrics"
	"github.com/techagentng/collabhub/models"
	"github.com/techagentng/collabhub/services/chatid"
)

const (
	defaultRatingMaxAttempts = 8
	ratingRetryBase          = 2 * time.Millisecond
)

// SocialService is the social graph aggregator: connection edges, ratings and the
// per-user rating aggregate.
type SocialService interface {
	Connect(ctx context.Context, userID, otherID string) error
	Disconnect(ctx context.Context, userID, otherID string) error
	ListConnections(ctx context.Context, userID string) ([]models.Connection, error)
	IsConnected(ctx context.Context, userID, otherID string) (bool, error)
	// SubmitRating records the rating and folds it into the rated user's aggregate.
	SubmitRating(ctx context.Context, raterID, ratedID string, score int, comment string) (*models.Rating, error)
	GetAggregate(ctx context.Context, userID string) (models.RatingAggregate, error)
	ListRatings(ctx context.Context, ratedID string) ([]models.Rating, error)
}

type socialService struct {
	Config     *config.Config
	socialRepo db.SocialRepository
	userRepo   db.UserRepository
	now        func() time.Time
}

func NewSocialService(socialRepo db.SocialRepository, userRepo db.UserRepository, conf *config.Config) SocialService {
	return &socialService{
		Config:     conf,
		socialRepo: socialRepo,
		userRepo:   userRepo,
		now:        time.Now,
	}
}

func (s *socialService) Connect(ctx context.Context, userID, otherID string) error {
	if _, _, err := chatid.Order(userID, otherID); err != nil {
		return err
	}
	for _, id := range []string{userID, otherID} {
		if _, err := s.userRepo.FindUserByID(ctx, id); err != nil {
			return err
		}
	}
	return s.socialRepo.Connect(ctx, userID, otherID)
}

func (s *socialService) Disconnect(ctx context.Context, userID, otherID string) error {
	if _, _, err := chatid.Order(userID, otherID); err != nil {
		return err
	}
	return s.socialRepo.Disconnect(ctx, userID, otherID)
}

func (s *socialService) ListConnections(ctx context.Context, userID string) ([]models.Connection, error) {
	return s.socialRepo.ListConnections(ctx, userID)
}

func (s *socialService) IsConnected(ctx context.Context, userID, otherID string) (bool, error) {
	return s.socialRepo.IsConnected(ctx, userID, otherID)
}

func (s *socialService) SubmitRating(ctx context.Context, raterID, ratedID string, score int, comment string) (*models.Rating, error) {
	if score < models.MinRatingScore || score > models.MaxRatingScore {
		return nil, errs.Wrap(errs.ErrInvalidRating, "got %d", score)
	}
	if raterID == "" || ratedID == "" {
		return nil, errs.Wrap(errs.ErrInvalidParticipant, "rater and rated user are required")
	}
	if raterID == ratedID {
		return nil, errs.ErrSelfRatingForbidden
	}
	// the rated user's existence is checked by GetAggregate below
	if _, err := s.userRepo.FindUserByID(ctx, raterID); err != nil {
		return nil, err
	}

	attempts := defaultRatingMaxAttempts
	if s.Config != nil && s.Config.RatingMaxAttempts > 0 {
		attempts = s.Config.RatingMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		prev, err := s.socialRepo.GetAggregate(ctx, ratedID)
		if err != nil {
			return nil, err
		}
		rating := &models.Rating{
			ID:        uuid.New(),
			RaterID:   raterID,
			RatedID:   ratedID,
			Score:     score,
			Comment:   comment,
			CreatedAt: s.now().UTC(),
		}
		_, err = s.socialRepo.SaveRating(ctx, rating, prev)
		if err == nil {
			metrics.RatingsSubmitted.Inc()
			return rating, nil
		}
		if !errors.Is(err, errs.ErrConcurrencyConflict) {
			return nil, err
		}

		lastErr = err
		metrics.RatingConflicts.Inc()
		log.Debug().Str("rated_id", ratedID).Int("attempt", attempt).Msg("rating aggregate changed underneath, retrying")
		if err := backoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// backoff sleeps a random duration that grows with attempt.
func backoff(ctx context.Context, attempt int) error {
	d := time.Duration(rand.Int63n(int64(ratingRetryBase) * int64(attempt)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *socialService) GetAggregate(ctx context.Context, userID string) (models.RatingAggregate, error) {
	return s.socialRepo.GetAggregate(ctx, userID)
}

func (s *socialService) ListRatings(ctx context.Context, ratedID string) ([]models.Rating, error) {
	if _, err := s.userRepo.FindUserByID(ctx, ratedID); err != nil {
		return nil, err
	}
	return s.socialRepo.ListRatings(ctx, ratedID)
}
