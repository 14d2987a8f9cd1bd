package snapshot

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/randalmurphal/eventhub/pkg/eventhub/config"
)

// Open builds the store selected by the settings. It returns nil, nil when
// no backend is configured. A configured Redis backend is pinged before
// being returned.
func Open(ctx context.Context, cfg config.Snapshot) (Store, error) {
	switch {
	case cfg.Path != "":
		return NewSQLiteStore(cfg.Path)
	case cfg.RedisAddr != "":
		s := NewRedisStore(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB}, "")
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("connect snapshot redis: %w", err)
		}
		return s, nil
	}
	return nil, nil
}
