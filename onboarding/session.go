// Staging sessions link a parse result to a later commit. Sessions hold
// user-supplied credential material that is not yet encrypted, so they live
// in redis behind a hard TTL and are deleted on commit.
package onboarding

import (
	"context"
	"errors"
	"time"

	"onerouter/envparser"
	"onerouter/types"

	"github.com/infinitybotlist/eureka/crypto"
	"github.com/infinitybotlist/eureka/jsonimpl"
	"github.com/redis/go-redis/v9"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const sessionKeyPrefix = "env_session:"

// Returned when a commit references an unknown, expired or foreign session id
var ErrSessionExpired = errors.New("unknown or expired onboarding session")

type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Session struct {
	ID        string                  `json:"id"`
	UserID    string                  `json:"user_id"`
	Vars      []EnvVar                `json:"vars"`
	Detected  []types.DetectedService `json:"detected_services"`
	CreatedAt time.Time               `json:"created_at"`
}

// VarMap rebuilds the ordered variable view the parser produced
func (s *Session) VarMap() *orderedmap.OrderedMap[string, string] {
	vars := orderedmap.New[string, string]()

	for _, v := range s.Vars {
		vars.Set(v.Key, v.Value)
	}

	return vars
}

type SessionStore struct {
	Redis *redis.Client
	TTL   time.Duration
}

// Create stages a parse result under a fresh unguessable id
func (s *SessionStore) Create(ctx context.Context, userID string, res *envparser.Result) (*Session, error) {
	sess := &Session{
		ID:        crypto.RandString(64),
		UserID:    userID,
		Detected:  res.Detected,
		CreatedAt: time.Now().UTC(),
	}

	for pair := res.Vars.Oldest(); pair != nil; pair = pair.Next() {
		sess.Vars = append(sess.Vars, EnvVar{Key: pair.Key, Value: pair.Value})
	}

	payload, err := jsonimpl.Marshal(sess)

	if err != nil {
		return nil, err
	}

	err = s.Redis.Set(ctx, sessionKeyPrefix+sess.ID, payload, s.TTL).Err()

	if err != nil {
		return nil, err
	}

	return sess, nil
}

// Get fetches a staged session, verifying ownership. A session owned by
// another user behaves exactly like an expired one.
func (s *SessionStore) Get(ctx context.Context, id string, userID string) (*Session, error) {
	payload, err := s.Redis.Get(ctx, sessionKeyPrefix+id).Bytes()

	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionExpired
	}

	if err != nil {
		return nil, err
	}

	var sess Session

	if err := jsonimpl.Unmarshal(payload, &sess); err != nil {
		// A corrupted session is unusable, drop it
		s.Redis.Del(ctx, sessionKeyPrefix+id)
		return nil, ErrSessionExpired
	}

	if sess.UserID != userID {
		return nil, ErrSessionExpired
	}

	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.Redis.Del(ctx, sessionKeyPrefix+id).Err()
}
