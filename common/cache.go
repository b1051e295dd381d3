package common

import "time"

// CacheRepository defines a minimal interface for a key/value cache used to
// hold raw API response bytes. The values are stored as raw []byte, which
// callers marshal/unmarshal from JSON as needed.
//
// The in-process implementation in this package is backed by go-cache; it
// could equally be backed by Redis, Memcached, or any other caching system.
type CacheRepository interface {
	Get(key string) (value []byte, found bool)
	Set(key string, value []byte, expiration time.Duration)
	Delete(key string)
}
