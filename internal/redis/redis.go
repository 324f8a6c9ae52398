package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

var Rdb *redis.Client

func InitRedis(redisAddress string, redisUsername string, redisPassword string) *redis.Client {
	Rdb = redis.NewClient(&redis.Options{
		Addr:     redisAddress,
		Username: redisUsername,
		Password: redisPassword,
		DB:       0,
	})
	return Rdb
}

const DefaultTTL = 48 * time.Hour

// ScheduleCache keeps one day's schedule list per monitor together with an
// ETag of that list.
type ScheduleCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewScheduleCache(rdb *redis.Client) *ScheduleCache {
	return &ScheduleCache{rdb: rdb, ttl: DefaultTTL}
}

func listKey(day model.Date, monitorID int) string {
	return "schedules:" + day.String() + ":monitor:" + strconv.Itoa(monitorID)
}

func etagKey(day model.Date, monitorID int) string {
	return "schedules:" + day.String() + ":etag:" + strconv.Itoa(monitorID)
}

// Entry is the cached list of one monitor.
type Entry struct {
	Schedules []model.Schedule
	ETag      string
}

// Store replaces the cached lists of every monitor in byMonitor.
func (c *ScheduleCache) Store(ctx context.Context, day model.Date, byMonitor map[int][]model.Schedule) error {
	pipe := c.rdb.TxPipeline()
	for id, list := range byMonitor {
		if list == nil {
			list = []model.Schedule{}
		}
		raw, err := json.Marshal(list)
		if err != nil {
			return fmt.Errorf("encode schedules of monitor %d: %w", id, err)
		}
		sum := sha256.Sum256(raw)
		pipe.Set(ctx, listKey(day, id), raw, c.ttl)
		pipe.Set(ctx, etagKey(day, id), `"`+hex.EncodeToString(sum[:16])+`"`, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Str("day", day.String()).Msg("failed to store schedule cache")
		return err
	}
	return nil
}

// Get returns the cached list of a monitor. ok is false when nothing is
// cached for that day.
func (c *ScheduleCache) Get(ctx context.Context, day model.Date, monitorID int) (Entry, bool, error) {
	vals, err := c.rdb.MGet(ctx, listKey(day, monitorID), etagKey(day, monitorID)).Result()
	if err != nil {
		return Entry{}, false, err
	}
	raw, ok := vals[0].(string)
	if !ok {
		return Entry{}, false, nil
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e.Schedules); err != nil {
		return Entry{}, false, fmt.Errorf("decode cached schedules of monitor %d: %w", monitorID, err)
	}
	e.ETag, _ = vals[1].(string)
	return e, true, nil
}

// ETag returns only the tag, for conditional requests.
func (c *ScheduleCache) ETag(ctx context.Context, day model.Date, monitorID int) (string, error) {
	tag, err := c.rdb.Get(ctx, etagKey(day, monitorID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return tag, err
}
