package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emandor/quiz_service/internal/telemetry"
)

func MustConnect(addr, password string, db int) *redis.Client {
	r, err := Connect(addr, password, db)
	if err != nil {
		log := telemetry.Module("cache")
		log.Fatal().Err(err).Str("addr", addr).Msg("redis_connect_failed")
	}
	return r
}

func Connect(addr, password string, db int) (*redis.Client, error) {
	r := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}
