// Package redis implements store.FlagStore using Redis. Each flag is a
// plain string key holding "1" or "0".
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis
