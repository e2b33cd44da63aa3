package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"sigma-quiz-service/internal/app"
	"sigma-quiz-service/internal/domain"
)

// storeIfCurrent writes the cached view only while the generation counter
// still holds the value read before loading.
var storeIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// ResultsCache stores quiz results as JSON in Redis and falls back to a
// loader on cache miss.
// Views are stored as:  SET  results:{quizID}      <json>
// Invalidations bump:   INCR results:{quizID}:gen
type ResultsCache struct {
	client *redis.Client
	loader app.ResultsLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewResultsCache(client *redis.Client, loader app.ResultsLoader, ttl time.Duration) *ResultsCache {
	return &ResultsCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ResultsCache) GetResults(ctx context.Context, quizID string) (domain.QuizResults, error) {
	if res, ok := c.lookup(ctx, quizID); ok {
		return res, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if res, ok := c.lookup(ctx, quizID); ok {
			return res, nil
		}

		gen, err := c.client.Get(ctx, genKey(quizID)).Result()
		if errors.Is(err, redis.Nil) {
			gen, err = "0", nil
		}
		if err != nil {
			log.Printf("results cache: read generation for %s: %v", quizID, err)
		}

		res, loadErr := c.loader.LoadResults(ctx, quizID)
		if loadErr != nil {
			return domain.QuizResults{}, loadErr
		}
		if err == nil {
			c.store(ctx, quizID, gen, res)
		}
		return res, nil
	})
	if err != nil {
		return domain.QuizResults{}, err
	}
	return result.(domain.QuizResults), nil
}

// Invalidate deletes the cached view and bumps the generation so loads
// already in flight do not repopulate it.
func (c *ResultsCache) Invalidate(ctx context.Context, quizID string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, resultsKey(quizID))
	pipe.Incr(ctx, genKey(quizID))
	_, err := pipe.Exec(ctx)
	c.sf.Forget(quizID)
	return err
}

func (c *ResultsCache) lookup(ctx context.Context, quizID string) (domain.QuizResults, bool) {
	raw, err := c.client.Get(ctx, resultsKey(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("results cache: get %s: %v", quizID, err)
		}
		return domain.QuizResults{}, false
	}
	var res domain.QuizResults
	if err := json.Unmarshal(raw, &res); err != nil {
		log.Printf("results cache: decode %s: %v", quizID, err)
		return domain.QuizResults{}, false
	}
	return res, true
}

func (c *ResultsCache) store(ctx context.Context, quizID, gen string, res domain.QuizResults) {
	raw, err := json.Marshal(res)
	if err != nil {
		log.Printf("results cache: encode %s: %v", quizID, err)
		return
	}
	ttl := strconv.FormatInt(c.ttlWithJitter().Milliseconds(), 10)
	keys := []string{resultsKey(quizID), genKey(quizID)}
	if err := storeIfCurrent.Run(ctx, c.client, keys, gen, raw, ttl).Err(); err != nil {
		log.Printf("results cache: set %s: %v", quizID, err)
	}
}

func resultsKey(quizID string) string {
	return "results:" + quizID
}

func genKey(quizID string) string {
	return "results:" + quizID + ":gen"
}

func (c *ResultsCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
