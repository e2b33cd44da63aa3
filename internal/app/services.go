package app

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// Options carries the configurable policies of the engine.
type Options struct {
	Shrink  ShrinkPolicy
	Ranking RankingPolicy
}

// Services bundles the use cases exposed to transports.
type Services struct {
	Catalog      *CatalogService
	Rounds       *RoundService
	Registry     *RegistryService
	Marking      *MarkingService
	Scoring      *ScoringService
	RoundScoring *RoundScoringService
}

// NewServices wires every use case over one store and results repository.
func NewServices(store Store, results ResultsRepository, opts Options) *Services {
	scoring := NewScoringService(store, results, opts.Ranking)
	return &Services{
		Catalog:      NewCatalogService(store, results),
		Rounds:       NewRoundService(store, results, opts.Shrink),
		Registry:     NewRegistryService(store, results),
		Marking:      NewMarkingService(store, results),
		Scoring:      scoring,
		RoundScoring: NewRoundScoringService(store, results, opts.Ranking, scoring),
	}
}

var newID = uuid.NewString

// invalidate drops the cached results of a quiz after a committed write.
// The write already succeeded, so a cache failure is only logged.
func invalidate(ctx context.Context, results ResultsRepository, quizID string) {
	if results == nil {
		return
	}
	if err := results.Invalidate(ctx, quizID); err != nil {
		log.Printf("invalidate results for quiz %s: %v", quizID, err)
	}
}
