package kv

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	redisKeyPrefix    = "pos:"
	redisNotifChannel = "pos.changes"
)

// RedisStore implements Store on a shared Redis instance. Unlike the local
// backends, its change notifications travel through a pub/sub channel, so
// watchers also see keys mutated by other terminals.
type RedisStore struct {
	rdb    *redis.Client
	n      notifier
	sub    *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	s := &RedisStore{
		rdb:    rdb,
		sub:    rdb.Subscribe(runCtx, redisNotifChannel),
		cancel: runCancel,
		done:   make(chan struct{}),
	}
	go s.forward(runCtx)
	return s, nil
}

// forward turns pub/sub messages (local and remote writers alike) into
// watcher events.
func (s *RedisStore) forward(ctx context.Context) {
	defer close(s.done)
	ch := s.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.n.publish(Event{Key: msg.Payload})
		}
	}
}

func (s *RedisStore) Close() error {
	s.cancel()
	err := s.sub.Close()
	<-s.done
	if cerr := s.rdb.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *RedisStore) Get(key string) (string, bool) {
	ctx := context.Background()
	v, err := s.rdb.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

func (s *RedisStore) Set(key, value string) error {
	ctx := context.Background()
	if err := s.rdb.Set(ctx, redisKeyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	s.rdb.Publish(ctx, redisNotifChannel, key)
	return nil
}

func (s *RedisStore) Remove(key string) error {
	ctx := context.Background()
	if err := s.rdb.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	s.rdb.Publish(ctx, redisNotifChannel, key)
	return nil
}

func (s *RedisStore) Range(fn func(key, value string) error) error {
	ctx := context.Background()
	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		v, err := s.rdb.Get(ctx, full).Result()
		if err == redis.Nil {
			continue // removed between scan and get
		}
		if err != nil {
			return fmt.Errorf("redis get %s: %w", full, err)
		}
		if err := fn(strings.TrimPrefix(full, redisKeyPrefix), v); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	return nil
}

// LoadAll replaces the full contents with the provided snapshot.
func (s *RedisStore) LoadAll(all map[string]string) {
	ctx := context.Background()
	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	var toDelete []string
	for iter.Next(ctx) {
		toDelete = append(toDelete, iter.Val())
	}
	if len(toDelete) > 0 {
		if err := s.rdb.Del(ctx, toDelete...).Err(); err != nil {
			log.Printf("redis: load snapshot del: %v", err)
		}
	}
	for k, v := range all {
		if err := s.rdb.Set(ctx, redisKeyPrefix+k, v, 0).Err(); err != nil {
			log.Printf("redis: load snapshot set %s: %v", k, err)
		}
	}
}

func (s *RedisStore) Watch() (<-chan Event, func()) { return s.n.subscribe() }
