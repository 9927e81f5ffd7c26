package db

import (
	"context"
	"time"

	"github.com/pkg/errors"
	errs "github.com/techagentng/collabhub/errors"
	"github.com/techagentng/collabhub/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SocialRepository persists connection edges, ratings and rating aggregates.
type SocialRepository interface {
	Connect(ctx context.Context, userID, otherID string) error
	Disconnect(ctx context.Context, userID, otherID string) error
	ListConnections(ctx context.Context, userID string) ([]models.Connection, error)
	IsConnected(ctx context.Context, userID, otherID string) (bool, error)
	GetAggregate(ctx context.Context, userID string) (models.RatingAggregate, error)
	// SaveRating stores rating, adds the rater -> rated edge if missing, and moves
	// the rated user's aggregate from prev to prev.With(rating.Score), all in one
	// transaction. It fails with errors.ErrConcurrencyConflict when the stored
	// aggregate no longer equals prev.
	SaveRating(ctx context.Context, rating *models.Rating, prev models.RatingAggregate) (models.RatingAggregate, error)
	ListRatings(ctx context.Context, ratedID string) ([]models.Rating, error)
}

type socialRepo struct {
	DB *gorm.DB
}

func NewSocialRepo(db *GormDB) SocialRepository {
	return &socialRepo{db.DB}
}

func (s *socialRepo) Connect(ctx context.Context, userID, otherID string) error {
	now := time.Now().UTC()
	edges := []models.Connection{
		{UserID: userID, ConnectedID: otherID, CreatedAt: now},
		{UserID: otherID, ConnectedID: userID, CreatedAt: now},
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&edges).Error
	if err != nil {
		return errors.Wrap(err, "connect users")
	}
	return nil
}

func (s *socialRepo) Disconnect(ctx context.Context, userID, otherID string) error {
	err := s.DB.WithContext(ctx).
		Where("(user_id = ? AND connected_id = ?) OR (user_id = ? AND connected_id = ?)", userID, otherID, otherID, userID).
		Delete(&models.Connection{}).Error
	if err != nil {
		return errors.Wrap(err, "disconnect users")
	}
	return nil
}

func (s *socialRepo) ListConnections(ctx context.Context, userID string) ([]models.Connection, error) {
	var edges []models.Connection
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, connected_id ASC").Find(&edges).Error
	if err != nil {
		return nil, errors.Wrap(err, "list connections")
	}
	return edges, nil
}

func (s *socialRepo) IsConnected(ctx context.Context, userID, otherID string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Connection{}).
		Where("user_id = ? AND connected_id = ?", userID, otherID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "check connection")
	}
	return count > 0, nil
}

func (s *socialRepo) GetAggregate(ctx context.Context, userID string) (models.RatingAggregate, error) {
	user := &models.User{}
	err := s.DB.WithContext(ctx).Select("id", "rating_sum", "rating_count").Where("id = ?", userID).First(user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RatingAggregate{}, errs.Wrap(errs.ErrNotFound, "user %s", userID)
		}
		return models.RatingAggregate{}, errors.Wrap(err, "get rating aggregate")
	}
	return user.Aggregate(), nil
}

func (s *socialRepo) SaveRating(ctx context.Context, rating *models.Rating, prev models.RatingAggregate) (models.RatingAggregate, error) {
	next := prev.With(rating.Score)

	tx := s.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return models.RatingAggregate{}, errors.Wrap(tx.Error, "begin transaction")
	}

	// Compare-and-swap on the aggregate read by the caller.
	result := tx.Model(&models.User{}).
		Where("id = ? AND rating_count = ? AND rating_sum = ?", rating.RatedID, prev.Count, prev.Sum).
		Updates(map[string]interface{}{
			"rating_sum":     next.Sum,
			"rating_count":   next.Count,
			"rating_average": next.Average(),
		})
	if result.Error != nil {
		tx.Rollback()
		return models.RatingAggregate{}, errors.Wrap(result.Error, "update rating aggregate")
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return models.RatingAggregate{}, errs.Wrap(errs.ErrConcurrencyConflict, "aggregate of %s changed", rating.RatedID)
	}

	if err := tx.Create(rating).Error; err != nil {
		tx.Rollback()
		return models.RatingAggregate{}, errors.Wrap(err, "insert rating")
	}

	edge := &models.Connection{UserID: rating.RaterID, ConnectedID: rating.RatedID, CreatedAt: rating.CreatedAt}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(edge).Error; err != nil {
		tx.Rollback()
		return models.RatingAggregate{}, errors.Wrap(err, "record rating edge")
	}

	if err := tx.Commit().Error; err != nil {
		return models.RatingAggregate{}, errors.Wrap(err, "commit rating")
	}
	return next, nil
}

func (s *socialRepo) ListRatings(ctx context.Context, ratedID string) ([]models.Rating, error) {
	var ratings []models.Rating
	err := s.DB.WithContext(ctx).Where("rated_id = ?", ratedID).Order("created_at DESC").Find(&ratings).Error
	if err != nil {
		return nil, errors.Wrap(err, "list ratings")
	}
	return ratings, nil
}
