// Package redis holds the Redis-backed adapters: the access token denylist,
// the per-blast send lock and the analytics summary cache.
package redis
