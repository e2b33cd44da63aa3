package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"sigma-quiz-service/internal/app"
	"sigma-quiz-service/internal/domain"
)

// ResultsCache keeps assembled quiz results in process with a TTL so that
// repeated reads skip the loader.
type ResultsCache struct {
	loader app.ResultsLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedResults
	// generation is bumped by Invalidate so that a load started earlier
	// does not store a stale view.
	generation map[string]uint64
}

type cachedResults struct {
	results   domain.QuizResults
	expiresAt time.Time
}

func NewResultsCache(loader app.ResultsLoader, ttl time.Duration) *ResultsCache {
	return &ResultsCache{
		loader:     loader,
		ttl:        ttl,
		clock:      time.Now,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:      make(map[string]cachedResults),
		generation: make(map[string]uint64),
	}
}

func (c *ResultsCache) GetResults(ctx context.Context, quizID string) (domain.QuizResults, error) {
	if res, ok := c.lookup(quizID); ok {
		return res, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		if res, ok := c.lookup(quizID); ok {
			return res, nil
		}

		c.mu.RLock()
		gen := c.generation[quizID]
		c.mu.RUnlock()

		res, err := c.loader.LoadResults(ctx, quizID)
		if err != nil {
			return domain.QuizResults{}, err
		}

		c.mu.Lock()
		if c.ttl > 0 && c.generation[quizID] == gen {
			c.cache[quizID] = cachedResults{
				results:   res,
				expiresAt: c.clock().Add(c.ttlWithJitter()),
			}
		}
		c.mu.Unlock()
		return res, nil
	})
	if err != nil {
		return domain.QuizResults{}, err
	}
	return result.(domain.QuizResults), nil
}

// Invalidate drops the cached view of a quiz.
func (c *ResultsCache) Invalidate(_ context.Context, quizID string) error {
	c.mu.Lock()
	delete(c.cache, quizID)
	c.generation[quizID]++
	c.mu.Unlock()
	c.sf.Forget(quizID)
	return nil
}

func (c *ResultsCache) lookup(quizID string) (domain.QuizResults, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[quizID]
	if !ok || !entry.expiresAt.After(now) {
		return domain.QuizResults{}, false
	}
	return entry.results, true
}

// ttlWithJitter is called with mu held, which also guards rnd.
func (c *ResultsCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
