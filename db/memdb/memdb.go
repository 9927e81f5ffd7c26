// Package memdb is an in-process implementation of the db repositories. It keeps
// the same transactional guarantees as the gorm repositories and is used by tests
// and by single-instance deployments running with store_driver=memory.
package memdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/techagentng/collabhub/db"
	errs "github.com/techagentng/collabhub/errors"
	"github.com/techagentng/collabhub/models"
)

var (
	_ db.ChatRepository   = (*Store)(nil)
	_ db.UserRepository   = (*Store)(nil)
	_ db.SocialRepository = (*Store)(nil)
	_ db.DeviceRepository = (*Store)(nil)
)

type edge struct {
	from, to string
}

// Store holds every table behind one mutex; each method is one transaction.
type Store struct {
	mu            sync.RWMutex
	users         map[string]models.User
	conversations map[string]models.Conversation
	messages      map[string][]models.Message
	connections   map[edge]models.Connection
	ratings       []models.Rating
	devices       map[string]models.DeviceToken
}

func New() *Store {
	return &Store{
		users:         map[string]models.User{},
		conversations: map[string]models.Conversation{},
		messages:      map[string][]models.Message{},
		connections:   map[edge]models.Connection{},
		devices:       map[string]models.DeviceToken{},
	}
}

func (s *Store) EnsureConversation(ctx context.Context, conv *models.Conversation) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.ensureLocked(conv)
	return &stored, nil
}

func (s *Store) ensureLocked(conv *models.Conversation) models.Conversation {
	if stored, ok := s.conversations[conv.ID]; ok {
		return stored
	}
	stored := *conv
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.conversations[stored.ID] = stored
	return stored
}

func (s *Store) AppendMessage(ctx context.Context, conv *models.Conversation, msg *models.Message) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.ensureLocked(conv)
	msg.ConversationID = stored.ID
	msg.Seq = stored.LastSeq + 1
	msg.CreatedAt = models.NextMessageTime(stored.LastMessageAt, msg.CreatedAt)

	stored.LastMessage = msg.Body
	stored.LastMessageAt = msg.CreatedAt
	stored.LastSeq = msg.Seq
	s.conversations[stored.ID] = stored
	s.messages[stored.ID] = append(s.messages[stored.ID], *msg)
	return &stored, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, errs.Wrap(errs.ErrNotFound, "conversation %s", id)
	}
	return &conv, nil
}

func (s *Store) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var convs []models.Conversation
	for _, c := range s.conversations {
		if c.HasParticipant(userID) {
			convs = append(convs, c)
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		return models.ConversationLess(convs[i], convs[j])
	})
	return convs, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	return s.ListMessagesAfter(ctx, conversationID, 0)
}

func (s *Store) ListMessagesAfter(ctx context.Context, conversationID string, seq int64) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[conversationID]
	// messages are stored in seq order starting at 1
	if seq < 0 {
		seq = 0
	}
	if seq >= int64(len(all)) {
		return nil, nil
	}
	out := make([]models.Message, len(all)-int(seq))
	copy(out, all[seq:])
	return out, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return errs.Wrap(errs.ErrProfileExists, "user %s", user.ID)
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, errs.Wrap(errs.ErrNotFound, "user %s", id)
	}
	return &user, nil
}

func (s *Store) FindUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []models.User
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id string, fields map[string]interface{}) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, errs.Wrap(errs.ErrNotFound, "user %s", id)
	}
	for k, v := range fields {
		value, _ := v.(string)
		switch k {
		case "display_name":
			user.DisplayName = value
		case "category":
			user.Category = value
		case "location":
			user.Location = value
		case "bio":
			user.Bio = value
		}
	}
	user.UpdatedAt = time.Now().UTC()
	s.users[id] = user
	return &user, nil
}

func (s *Store) Connect(ctx context.Context, userID, otherID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.addEdgeLocked(userID, otherID, now)
	s.addEdgeLocked(otherID, userID, now)
	return nil
}

func (s *Store) addEdgeLocked(from, to string, at time.Time) {
	key := edge{from, to}
	if _, ok := s.connections[key]; ok {
		return
	}
	s.connections[key] = models.Connection{UserID: from, ConnectedID: to, CreatedAt: at}
}

func (s *Store) Disconnect(ctx context.Context, userID, otherID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, edge{userID, otherID})
	delete(s.connections, edge{otherID, userID})
	return nil
}

func (s *Store) ListConnections(ctx context.Context, userID string) ([]models.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Connection
	for k, c := range s.connections {
		if k.from == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ConnectedID < out[j].ConnectedID
	})
	return out, nil
}

func (s *Store) IsConnected(ctx context.Context, userID, otherID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.connections[edge{userID, otherID}]
	return ok, nil
}

func (s *Store) GetAggregate(ctx context.Context, userID string) (models.RatingAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return models.RatingAggregate{}, errs.Wrap(errs.ErrNotFound, "user %s", userID)
	}
	return user.Aggregate(), nil
}

func (s *Store) SaveRating(ctx context.Context, rating *models.Rating, prev models.RatingAggregate) (models.RatingAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[rating.RatedID]
	if !ok {
		return models.RatingAggregate{}, errs.Wrap(errs.ErrNotFound, "user %s", rating.RatedID)
	}
	if user.Aggregate() != prev {
		return models.RatingAggregate{}, errs.Wrap(errs.ErrConcurrencyConflict, "aggregate of %s changed", rating.RatedID)
	}

	next := prev.With(rating.Score)
	user.RatingSum = next.Sum
	user.RatingCount = next.Count
	user.RatingAverage = next.Average()
	s.users[user.ID] = user
	s.ratings = append(s.ratings, *rating)
	s.addEdgeLocked(rating.RaterID, rating.RatedID, rating.CreatedAt)
	return next, nil
}

func (s *Store) ListRatings(ctx context.Context, ratedID string) ([]models.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Rating
	for i := len(s.ratings) - 1; i >= 0; i-- {
		if s.ratings[i].RatedID == ratedID {
			out = append(out, s.ratings[i])
		}
	}
	return out, nil
}

func (s *Store) SaveDeviceToken(ctx context.Context, token *models.DeviceToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	s.devices[token.Token] = *token
	return nil
}

func (s *Store) ListDeviceTokens(ctx context.Context, userID string) ([]models.DeviceToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DeviceToken
	for _, t := range s.devices {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}

func (s *Store) DeleteDeviceToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.devices, token)
	return nil
}
