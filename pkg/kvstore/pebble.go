package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/richxcame/support-chat/pkg/logger"
	"github.com/richxcame/support-chat/pkg/tracing"
	"go.uber.org/zap"
)

const tracerName = "kvstore"

// Pebble is an on-disk Store backed by cockroachdb/pebble. Writes are
// synced so a value survives an abrupt process exit.
type Pebble struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) a Pebble database at path.
func OpenPebble(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Get().Error("pebble open failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("open pebble store: %w", err)
	}
	logger.Get().Debug("pebble store opened", zap.String("path", path))
	return &Pebble{db: db}, nil
}

func (p *Pebble) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := tracing.TraceStoreOp(ctx, tracerName, "pebble", "get", key, IsNotFound, func(context.Context) error {
		data, closer, err := p.db.Get([]byte(key))
		if errors.Is(err, pebble.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("pebble get %s: %w", key, err)
		}
		value = string(data)
		return closer.Close()
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

func (p *Pebble) Set(ctx context.Context, key, value string) error {
	return tracing.TraceStoreOp(ctx, tracerName, "pebble", "set", key, nil, func(context.Context) error {
		if err := p.db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
			return fmt.Errorf("pebble set %s: %w", key, err)
		}
		return nil
	})
}

func (p *Pebble) Delete(ctx context.Context, key string) error {
	return tracing.TraceStoreOp(ctx, tracerName, "pebble", "delete", key, nil, func(context.Context) error {
		if err := p.db.Delete([]byte(key), pebble.Sync); err != nil {
			return fmt.Errorf("pebble delete %s: %w", key, err)
		}
		return nil
	})
}

func (p *Pebble) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}
