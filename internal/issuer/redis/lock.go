package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis serializes issuance per unit label. The count-then-continue serial
// derivation is only correct with a single writer per label, so every
// IssueBatch call must hold this lock for its full duration.
type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

// getLabelLockDuration returns the lock TTL from the environment or the
// default. The TTL is a liveness guard against crashed holders, not the
// normal release path.
func (r *Redis) getLabelLockDuration() time.Duration {
	defaultDuration := 10 * time.Minute

	lockTTLStr := os.Getenv("LABEL_LOCK_TTL_MINUTES")
	if lockTTLStr == "" {
		return defaultDuration
	}

	lockTTLMin, err := strconv.Atoi(lockTTLStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid LABEL_LOCK_TTL_MINUTES value '" + lockTTLStr + "', using default 10 minutes")
		return defaultDuration
	}

	return time.Duration(lockTTLMin) * time.Minute
}

// LockLabel acquires the issuance lock for a unit label. Returns false if
// another holder already has it.
func (r *Redis) LockLabel(ctx context.Context, unitLabel, holderID string) (bool, error) {
	key := "label_lock:" + unitLabel
	ok, err := r.Client.SetNX(ctx, key, holderID, r.getLabelLockDuration()).Result()
	return ok, err
}

// UnlockLabel releases the lock, but only if this holder still owns it.
func (r *Redis) UnlockLabel(ctx context.Context, unitLabel, holderID string) error {
	key := fmt.Sprintf("label_lock:%s", unitLabel)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released or expired
	}
	if err != nil {
		return err
	}
	if val == holderID {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// CheckLabelLocked reports whether a label currently has a lock holder.
func (r *Redis) CheckLabelLocked(ctx context.Context, unitLabel string) (bool, error) {
	key := "label_lock:" + unitLabel
	_, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
