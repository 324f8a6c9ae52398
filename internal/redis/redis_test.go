package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

func newCache(t *testing.T) (*ScheduleCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewScheduleCache(rdb), mr
}

func TestScheduleCache(t *testing.T) {
	ctx := context.Background()
	cache, mr := newCache(t)
	day := model.Date{Year: 2024, Month: 5, Day: 6}
	start := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

	_, ok, err := cache.Get(ctx, day, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Store(ctx, day, map[int][]model.Schedule{
		1: {{ID: 4, Name: "promo", Target: model.OnMonitors(1), Start: start, End: start.Add(time.Hour)}},
		2: nil,
	}))

	e, ok, err := cache.Get(ctx, day, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, e.Schedules, 1)
	assert.Equal(t, "promo", e.Schedules[0].Name)
	assert.NotEmpty(t, e.ETag)

	empty, ok, err := cache.Get(ctx, day, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, empty.Schedules)
	assert.NotEqual(t, e.ETag, empty.ETag)

	tag, err := cache.ETag(ctx, day, 1)
	require.NoError(t, err)
	assert.Equal(t, e.ETag, tag)

	require.NoError(t, cache.Store(ctx, day, map[int][]model.Schedule{1: {}}))
	tag2, err := cache.ETag(ctx, day, 1)
	require.NoError(t, err)
	assert.NotEqual(t, tag, tag2)

	assert.True(t, mr.Exists("schedules:2024-05-06:monitor:1"))
	assert.Greater(t, mr.TTL("schedules:2024-05-06:monitor:1"), time.Hour)
}
