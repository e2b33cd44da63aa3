package app

import (
	"context"
	"sort"

	"sigma-quiz-service/internal/domain"
)

// QuizScorer recomputes quiz-wide standings. RoundScoringService calls it
// after persisting round standings.
type QuizScorer interface {
	ComputeQuizScores(ctx context.Context, quizID string) (domain.QuizResults, error)
}

// ScoringService aggregates round scores into quiz standings and serves results.
type ScoringService struct {
	store   Store
	results ResultsRepository
	ranking RankingPolicy
}

func NewScoringService(store Store, results ResultsRepository, ranking RankingPolicy) *ScoringService {
	if ranking == "" {
		ranking = RankSequential
	}
	return &ScoringService{store: store, results: results, ranking: ranking}
}

// ComputeQuizScores sums each registration's round scores, ranks the
// registrations and returns the refreshed results view.
func (s *ScoringService) ComputeQuizScores(ctx context.Context, quizID string) (domain.QuizResults, error) {
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		if _, err := r.LockQuiz(ctx, quizID); err != nil {
			return err
		}
		regs, err := r.ListRegistrations(ctx, quizID)
		if err != nil {
			return err
		}
		parts, err := r.ListQuizParticipations(ctx, quizID)
		if err != nil {
			return err
		}

		totals := make(map[string]int, len(regs))
		for _, p := range parts {
			totals[p.RegistrationID] += p.Score
		}
		entries := make([]standing, 0, len(regs))
		for _, reg := range regs {
			entries = append(entries, standing{id: reg.ID, score: totals[reg.ID]})
		}
		for _, e := range rank(entries, s.ranking) {
			if err := r.UpdateRegistrationStanding(ctx, e.id, e.score, e.position); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.QuizResults{}, err
	}
	invalidate(ctx, s.results, quizID)
	return s.FetchResults(ctx, quizID)
}

// FetchResults returns the read-only results projection of a quiz.
func (s *ScoringService) FetchResults(ctx context.Context, quizID string) (domain.QuizResults, error) {
	return s.results.GetResults(ctx, quizID)
}

// RoundScoringService turns a round's marked questions into participation
// scores and positions, then hands over to the quiz scorer.
type RoundScoringService struct {
	store   Store
	results ResultsRepository
	ranking RankingPolicy
	quiz    QuizScorer
}

func NewRoundScoringService(store Store, results ResultsRepository, ranking RankingPolicy, quiz QuizScorer) *RoundScoringService {
	if ranking == "" {
		ranking = RankSequential
	}
	return &RoundScoringService{store: store, results: results, ranking: ranking, quiz: quiz}
}

// ComputeRoundScores scores every participation of the round:
// correct answers * marks per question + bonus questions * marks per bonus question.
func (s *RoundScoringService) ComputeRoundScores(ctx context.Context, roundID string) (domain.QuizResults, error) {
	var round domain.Round
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		var err error
		round, err = r.LockRound(ctx, roundID)
		if err != nil {
			return err
		}
		parts, err := r.ListRoundParticipations(ctx, roundID)
		if err != nil {
			return err
		}
		questions, err := r.ListQuestions(ctx, roundID)
		if err != nil {
			return err
		}
		for _, e := range rank(roundScores(round, parts, questions), s.ranking) {
			if err := r.UpdateParticipationStanding(ctx, e.id, e.score, e.position); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.QuizResults{}, err
	}
	invalidate(ctx, s.results, round.QuizID)
	return s.quiz.ComputeQuizScores(ctx, round.QuizID)
}

type standing struct {
	id       string
	score    int
	position int
}

func roundScores(round domain.Round, parts []domain.RoundParticipation, questions []domain.Question) []standing {
	correct := make(map[string]int)
	bonus := make(map[string]int)
	for _, q := range questions {
		if q.CorrectlyAnswered() {
			correct[*q.AnsweredByID]++
		}
		if q.BonusToID != nil {
			bonus[*q.BonusToID]++
		}
	}
	entries := make([]standing, 0, len(parts))
	for _, p := range parts {
		entries = append(entries, standing{
			id:    p.ID,
			score: correct[p.ID]*round.MarksPerQuestion + bonus[p.ID]*round.MarksPerBonusQuestion,
		})
	}
	return entries
}

// rank orders entries by descending score (ties by id, for reproducibility)
// and assigns 1-based positions according to policy.
func rank(entries []standing, policy RankingPolicy) []standing {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].id < entries[j].id
	})
	for i := range entries {
		entries[i].position = i + 1
		if policy == RankCompetition && i > 0 && entries[i].score == entries[i-1].score {
			entries[i].position = entries[i-1].position
		}
	}
	return entries
}
