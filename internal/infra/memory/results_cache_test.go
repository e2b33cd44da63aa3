package memory

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"sigma-quiz-service/internal/domain"
)

func TestResultsCacheCaches(t *testing.T) {
	loader := &countingLoader{}
	cache := NewResultsCache(loader, time.Minute)

	if _, err := cache.GetResults(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get results: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader once, got %d", loader.count())
	}

	if _, err := cache.GetResults(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get results 2: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.count())
	}
}

func TestResultsCacheInvalidate(t *testing.T) {
	loader := &countingLoader{}
	cache := NewResultsCache(loader, time.Minute)
	ctx := context.Background()

	_, _ = cache.GetResults(ctx, "quiz-1")
	if err := cache.Invalidate(ctx, "quiz-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	res, err := cache.GetResults(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get results: %v", err)
	}
	if loader.count() != 2 || res.Title != "load 2" {
		t.Fatalf("expected reload after invalidate, calls=%d title=%q", loader.count(), res.Title)
	}
}

func TestResultsCacheExpires(t *testing.T) {
	loader := &countingLoader{}
	cache := NewResultsCache(loader, time.Minute)
	now := time.Now()
	cache.clock = func() time.Time { return now }
	ctx := context.Background()

	_, _ = cache.GetResults(ctx, "quiz-1")
	now = now.Add(2 * time.Minute)
	_, _ = cache.GetResults(ctx, "quiz-1")
	if loader.count() != 2 {
		t.Fatalf("expected reload after ttl, calls=%d", loader.count())
	}
}

func TestResultsCacheDoesNotCacheErrors(t *testing.T) {
	loader := &countingLoader{err: domain.ErrQuizNotFound}
	cache := NewResultsCache(loader, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := cache.GetResults(ctx, "missing"); err != domain.ErrQuizNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if loader.count() != 2 {
		t.Fatalf("errors must not be cached, calls=%d", loader.count())
	}
}

type countingLoader struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (l *countingLoader) LoadResults(_ context.Context, quizID string) (domain.QuizResults, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return domain.QuizResults{}, l.err
	}
	return domain.QuizResults{Quiz: domain.Quiz{ID: quizID, Title: "load " + strconv.Itoa(l.calls)}}, nil
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}
