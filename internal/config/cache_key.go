package config

import (
	"fmt"
	"strings"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionKey returns the cache key holding a session record.
func (r *CacheKeyStruct) SessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// AccountSessionsKey returns the set of live session ids for an account.
func (r *CacheKeyStruct) AccountSessionsKey(accountID int64) string {
	return fmt.Sprintf("account:%d:sessions", accountID)
}

// LoginFailuresKey returns the counter key for failed logins of a username from an IP.
func (r *CacheKeyStruct) LoginFailuresKey(ip, username string) string {
	return fmt.Sprintf("login_failures:%s:%s", ip, strings.ToLower(username))
}

// LoginLockKey returns the key that marks a username locked out from an IP.
func (r *CacheKeyStruct) LoginLockKey(ip, username string) string {
	return fmt.Sprintf("login_lock:%s:%s", ip, strings.ToLower(username))
}

// RegisterAttemptsKey returns the counter key for registration attempts from an IP.
func (r *CacheKeyStruct) RegisterAttemptsKey(ip string) string {
	return fmt.Sprintf("register_attempts:%s", ip)
}

// RateLimitKey returns the counter key for the generic per-IP request limiter.
func (r *CacheKeyStruct) RateLimitKey(scope, ip string) string {
	return fmt.Sprintf("rl:%s:%s", scope, ip)
}

var CacheKey = NewCacheKeyStruct()
