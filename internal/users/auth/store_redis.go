// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/constants"
	redisstore "github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/redis"
)

// minSpentTTL keeps a spent marker alive when a token is claimed right at the
// edge of its validity window.
const minSpentTTL = time.Second

// RedisSpentTokenStore implements [SpentTokenStore] using Redis.
type RedisSpentTokenStore struct {
	client *redis.Client
}

// NewSpentTokenStore creates a new Redis-backed SpentTokenStore.
func NewSpentTokenStore(client *redis.Client) *RedisSpentTokenStore {
	return &RedisSpentTokenStore{client: client}
}

/*
Claim atomically marks a verification token id as spent.

Description: SET NX decides the race. The marker expires together with the
token it guards, after which the token fails validation on its own.

Parameters:
  - context: context.Context
  - tokenID: string (The token's jti)
  - ttl: time.Duration (Remaining validity of the token)

Returns:
  - bool: True if this call spent the token, false if it was spent before
  - error: Execution errors
*/
func (repository *RedisSpentTokenStore) Claim(context context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if ttl < minSpentTTL {
		ttl = minSpentTTL
	}

	key := redisstore.Key(constants.RedisPrefixSpentVerifyToken, tokenID)

	claimed, err := repository.client.SetNX(context, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis_spent_token_claim_failed: %w", err)
	}
	return claimed, nil
}

// Release implements [SpentTokenStore].
func (repository *RedisSpentTokenStore) Release(context context.Context, tokenID string) error {
	if err := repository.client.Del(context, redisstore.Key(constants.RedisPrefixSpentVerifyToken, tokenID)).Err(); err != nil {
		return fmt.Errorf("redis_spent_token_release_failed: %w", err)
	}
	return nil
}
