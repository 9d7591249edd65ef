package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/entity"
)

// GameRepository keeps finished games.
type GameRepository interface {
	Save(ctx context.Context, record entity.GameRecord) error
	GetByID(ctx context.Context, id string) (*entity.GameRecord, error)
	ListByPlayer(ctx context.Context, playerID string, limit int64) ([]entity.GameRecord, error)
}

type dbGame struct {
	client  *redis.Client
	ttl     time.Duration
	history int64
}

// NewGameRepository - ttl of zero keeps records forever, history caps the per-player list.
func NewGameRepository(client *redis.Client, ttl time.Duration, history int64) GameRepository {
	return &dbGame{
		client:  client,
		ttl:     ttl,
		history: history,
	}
}

func gameKey(id string) string {
	return "game:" + id
}

func playerGamesKey(playerID string) string {
	return "player:" + playerID + ":games"
}

func (that *dbGame) Save(ctx context.Context, record entity.GameRecord) error {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("could not marshal game: %w", err)
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, gameKey(record.ID), recordJSON, that.ttl)

		for _, player := range record.Players {
			key := playerGamesKey(player.ID)
			pipe.LPush(ctx, key, record.ID)
			if that.history > 0 {
				pipe.LTrim(ctx, key, 0, that.history-1)
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save game: %w", err)
	}

	return nil
}

func (that *dbGame) GetByID(ctx context.Context, id string) (*entity.GameRecord, error) {
	response, err := that.client.Get(ctx, gameKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("game %s: %w", id, apperror.ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get game by id: %w", err)
	}

	var record entity.GameRecord
	if err = json.Unmarshal([]byte(response), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game: %w", err)
	}

	return &record, nil
}

// ListByPlayer - newest first. Ids whose record already expired are skipped.
func (that *dbGame) ListByPlayer(ctx context.Context, playerID string, limit int64) ([]entity.GameRecord, error) {
	if limit <= 0 {
		limit = that.history
	}

	ids, err := that.client.LRange(ctx, playerGamesKey(playerID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list player games: %w", err)
	}

	records := make([]entity.GameRecord, 0, len(ids))
	if len(ids) == 0 {
		return records, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = gameKey(id)
	}

	values, err := that.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get games: %w", err)
	}

	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var record entity.GameRecord
		if err = json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal game: %w", err)
		}

		records = append(records, record)
	}

	return records, nil
}
