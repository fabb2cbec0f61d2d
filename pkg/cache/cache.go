package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service defines the key/value, list, set and pub/sub operations used by
// alert mirroring and the Telegram mute set. Keys are namespaced by the
// implementation's prefix.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	// PushCapped prepends value to the list at key and trims it to max entries.
	PushCapped(ctx context.Context, key string, value interface{}, max int64) error
	// Range returns list entries between start and stop inclusive, newest first.
	Range(ctx context.Context, key string, start, stop int64) ([]string, error)
	Publish(ctx context.Context, channel string, value interface{}) error
	SetAdd(ctx context.Context, key string, members ...string) error
	SetRemove(ctx context.Context, key string, members ...string) error
	SetMembers(ctx context.Context, key string) ([]string, error)
	Close() error
}

// encode turns a value into its stored form. Strings and byte slices are
// stored as is; everything else is JSON.
func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(value)
	}
}

func decode(data []byte, dest interface{}) error {
	switch d := dest.(type) {
	case *string:
		*d = string(data)
		return nil
	case *[]byte:
		*d = append((*d)[:0], data...)
		return nil
	default:
		return json.Unmarshal(data, dest)
	}
}
