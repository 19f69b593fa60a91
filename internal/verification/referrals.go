package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/klicktape/backend/internal/cache"
)

// pendingReferralTTL bounds how long an unconsumed code survives
const pendingReferralTTL = 30 * 24 * time.Hour

// PendingReferralStore holds referral codes captured at signup until the
// account is verified and the code can be redeemed.
type PendingReferralStore struct {
	redis *cache.RedisClient
}

// NewPendingReferralStore creates a store backed by the given Redis client
func NewPendingReferralStore(redis *cache.RedisClient) *PendingReferralStore {
	return &PendingReferralStore{redis: redis}
}

func referralKey(userID string) string {
	return fmt.Sprintf("referral:pending:%s", userID)
}

// Set stores a pending referral code for the user
func (s *PendingReferralStore) Set(ctx context.Context, userID, code string) error {
	if userID == "" || code == "" {
		return fmt.Errorf("user id and referral code are required")
	}
	return s.redis.SetEx(ctx, referralKey(userID), code, pendingReferralTTL)
}

// Consume atomically reads and deletes the pending code. Returns an empty
// string when no code is stored; the code is gone after this call either way.
func (s *PendingReferralStore) Consume(ctx context.Context, userID string) (string, error) {
	code, err := s.redis.GetDel(ctx, referralKey(userID))
	if err != nil {
		if cache.IsNil(err) {
			return "", nil
		}
		return "", err
	}
	return code, nil
}
