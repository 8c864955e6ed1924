package services

import (
	"context"
	"testing"
	"time"

	"quizchat/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestChannelStore_LoadMissingChannel(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewRedisChannelStore(rdb, 0)

	_, err := store.LoadChannel(context.Background(), "Game")
	require.ErrorIs(t, err, ErrChannelNotFound)
}

func TestChannelStore_VersionedWrites(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	store := NewRedisChannelStore(rdb, 0)

	doc := models.NewGameChannel("Game")
	doc.EnsureEntry("u-1", "Ann")
	v1, err := store.SaveChannel(ctx, doc, 0)
	req.NoError(err)
	req.Equal(int64(1), v1)

	// creating again must fail: the channel exists
	_, err = store.SaveChannel(ctx, doc, 0)
	req.ErrorIs(err, ErrVersionConflict)

	loaded, err := store.LoadChannel(ctx, "Game")
	req.NoError(err)
	req.Equal(v1, loaded.Version)
	req.Len(loaded.Leaderboard, 1)

	loaded.IsActive = true
	v2, err := store.SaveChannel(ctx, loaded, loaded.Version)
	req.NoError(err)
	req.Equal(int64(2), v2)

	// a writer holding the old version loses and changes nothing
	doc.Leaderboard = nil
	_, err = store.SaveChannel(ctx, doc, v1)
	req.ErrorIs(err, ErrVersionConflict)

	final, err := store.LoadChannel(ctx, "Game")
	req.NoError(err)
	req.Equal(v2, final.Version)
	req.True(final.IsActive)
	req.Len(final.Leaderboard, 1)
}

func TestChannelStore_NamesAreCaseSensitive(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	store := NewRedisChannelStore(rdb, 0)

	_, err := store.SaveChannel(ctx, models.NewGameChannel("Game"), 0)
	req.NoError(err)
	_, err = store.LoadChannel(ctx, "game")
	req.ErrorIs(err, ErrChannelNotFound)
}

func TestChannelStore_AppliesTTL(t *testing.T) {
	req := require.New(t)
	mr, rdb := newTestRedis(t)
	store := NewRedisChannelStore(rdb, time.Hour)

	_, err := store.SaveChannel(context.Background(), models.NewGameChannel("Game"), 0)
	req.NoError(err)
	req.Equal(time.Hour, mr.TTL(channelKey("Game")))
}
