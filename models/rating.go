package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinRatingScore = 1
	MaxRatingScore = 5
)

// Rating is append-only.
type Rating struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	RaterID   string    `json:"rater_id" gorm:"type:varchar(128);not null;index"`
	RatedID   string    `json:"rated_id" gorm:"type:varchar(128);not null;index"`
	Score     int       `json:"score" gorm:"not null"`
	Comment   string    `json:"comment" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

// RatingAggregate is the rolling summary stored on the rated user. The average is
// derived from the integer sum so repeated updates never accumulate float error.
type RatingAggregate struct {
	Sum   int64 `json:"-"`
	Count int64 `json:"count"`
}

// Average returns sum/count, or 0 when nothing has been rated.
func (a RatingAggregate) Average() float64 {
	if a.Count == 0 {
		return 0
	}
	return float64(a.Sum) / float64(a.Count)
}

// With returns the aggregate after one more score: the new average equals
// (oldAverage*oldCount + score) / (oldCount + 1).
func (a RatingAggregate) With(score int) RatingAggregate {
	return RatingAggregate{Sum: a.Sum + int64(score), Count: a.Count + 1}
}

type SubmitRatingRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment" conform:"trim"`
}
