package kvstore

import (
	"fmt"

	"github.com/richxcame/support-chat/pkg/config"
)

// Open builds the Store selected by cfg.Store.Driver.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return NewMemory(), nil
	case "pebble":
		return OpenPebble(cfg.Store.Path)
	case "redis":
		client, err := NewRedisClient(&cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedis(client, cfg.Redis.TTL()), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
