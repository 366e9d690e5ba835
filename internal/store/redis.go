package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/auxroom/auxroom/internal/core"
	"github.com/auxroom/auxroom/internal/domain"
)

const (
	roomKeyPrefix = "room:"
	roomSeqKey    = "room_seq"
)

// RedisStore persists each room as one JSON blob under "room:<id>". The
// engine's per-room lock serializes read-modify-write cycles, so UpdateRoom
// can do a plain GET/SET without WATCH.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Ping verifies the connection at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) NextID(ctx context.Context) (domain.RoomID, error) {
	n, err := s.client.Incr(ctx, roomSeqKey).Result()
	if err != nil {
		return "", &domain.StoreError{Op: "next_id", Err: err}
	}
	return domain.RoomID(fmt.Sprintf("room%d", n)), nil
}

func (s *RedisStore) CreateRoom(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return &domain.StoreError{Op: "create", Err: err}
	}
	if err := s.client.Set(ctx, roomKeyPrefix+string(room.ID), data, 0).Err(); err != nil {
		return &domain.StoreError{Op: "create", Err: err}
	}
	return nil
}

func (s *RedisStore) FindRoomByID(ctx context.Context, id domain.RoomID, includeSecrets bool) (*domain.Room, error) {
	data, err := s.client.Get(ctx, roomKeyPrefix+string(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, &domain.StoreError{Op: "find", Err: err}
	}
	var room domain.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, &domain.StoreError{Op: "find", Err: err}
	}
	if !includeSecrets {
		room.RoomPassword = ""
	}
	return &room, nil
}

func (s *RedisStore) UpdateRoom(ctx context.Context, id domain.RoomID, patch core.RoomPatch) error {
	room, err := s.FindRoomByID(ctx, id, true)
	if err != nil {
		return err
	}
	applyPatch(room, patch)
	data, err := json.Marshal(room)
	if err != nil {
		return &domain.StoreError{Op: "update", Err: err}
	}
	if err := s.client.Set(ctx, roomKeyPrefix+string(id), data, 0).Err(); err != nil {
		return &domain.StoreError{Op: "update", Err: err}
	}
	return nil
}

func (s *RedisStore) AllRooms(ctx context.Context) ([]*domain.Room, error) {
	var out []*domain.Room
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, roomKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, &domain.StoreError{Op: "list", Err: err}
		}
		if len(keys) > 0 {
			values, err := s.client.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, &domain.StoreError{Op: "list", Err: err}
			}
			for i, v := range values {
				raw, ok := v.(string)
				if !ok {
					continue // deleted between SCAN and MGET
				}
				var room domain.Room
				if err := json.Unmarshal([]byte(raw), &room); err != nil {
					log.Warn().Err(err).Str("module", "store.redis").Str("key", keys[i]).Msg("skipping unreadable room record")
					continue
				}
				room.RoomPassword = ""
				out = append(out, &room)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}
