package app

import (
	"context"
	"fmt"

	"sigma-quiz-service/internal/domain"
)

// Store runs units of work. Every service operation executes inside Tx so
// multi-entity writes are all-or-nothing.
type Store interface {
	Tx(ctx context.Context, fn func(ctx context.Context, r Repository) error) error
}

// Repository is the transaction-scoped persistence contract. Lookups return
// the matching domain.Err*NotFound value when a row is missing; inserts that
// violate a unique constraint return an error wrapping domain.ErrDuplicateKey.
type Repository interface {
	InsertQuiz(ctx context.Context, quiz *domain.Quiz) error
	GetQuiz(ctx context.Context, id string) (domain.Quiz, error)
	// LockQuiz reads the quiz and holds a write lock on it until the transaction ends.
	LockQuiz(ctx context.Context, id string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
	UpdateQuizStatus(ctx context.Context, id string, status domain.QuizStatus) error
	DeleteQuiz(ctx context.Context, id string) error

	InsertSchool(ctx context.Context, school *domain.School) error
	GetSchool(ctx context.Context, id string) (domain.School, error)
	// ListSchools filters by a case-insensitive name substring when search is not empty.
	ListSchools(ctx context.Context, search string) ([]domain.School, error)

	InsertRound(ctx context.Context, round *domain.Round) error
	GetRound(ctx context.Context, id string) (domain.Round, error)
	// LockRound reads the round and holds a write lock on it until the transaction ends.
	LockRound(ctx context.Context, id string) (domain.Round, error)
	ListRounds(ctx context.Context, quizID string) ([]domain.Round, error)
	UpdateRound(ctx context.Context, round domain.Round) error
	DeleteRound(ctx context.Context, id string) error

	InsertQuestions(ctx context.Context, questions []domain.Question) error
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
	ListQuestions(ctx context.Context, roundID string) ([]domain.Question, error)
	// MaxQuestionNumber returns 0 for a round without questions.
	MaxQuestionNumber(ctx context.Context, roundID string) (int, error)
	// CountRecordedAbove counts questions numbered above n that carry an answer or a bonus.
	CountRecordedAbove(ctx context.Context, roundID string, n int) (int, error)
	DeleteQuestionsAbove(ctx context.Context, roundID string, n int) error
	// MarkQuestion records the answer only while the question is unanswered
	// or already answered by participationID. It reports whether the row changed.
	// Marking as correct clears any bonus holder.
	MarkQuestion(ctx context.Context, questionID, participationID string, correct bool) (bool, error)
	// AssignBonus sets the bonus holder only while the question was answered
	// incorrectly by another participation and the bonus is free or already
	// held by participationID. It reports whether the row changed.
	AssignBonus(ctx context.Context, questionID, participationID string) (bool, error)

	InsertRegistration(ctx context.Context, reg *domain.QuizRegistration) error
	GetRegistration(ctx context.Context, id string) (domain.QuizRegistration, error)
	FindRegistration(ctx context.Context, quizID, schoolID string) (domain.QuizRegistration, error)
	ListRegistrations(ctx context.Context, quizID string) ([]domain.QuizRegistration, error)
	// DeleteRegistration removes the registration and its participations and
	// clears question references to those participations.
	DeleteRegistration(ctx context.Context, id string) error
	UpdateRegistrationStanding(ctx context.Context, id string, score, position int) error

	InsertParticipation(ctx context.Context, p *domain.RoundParticipation) error
	GetParticipation(ctx context.Context, id string) (domain.RoundParticipation, error)
	FindParticipation(ctx context.Context, roundID, registrationID string) (domain.RoundParticipation, error)
	CountParticipations(ctx context.Context, roundID string) (int, error)
	ListRoundParticipations(ctx context.Context, roundID string) ([]domain.RoundParticipation, error)
	ListQuizParticipations(ctx context.Context, quizID string) ([]domain.RoundParticipation, error)
	// DeleteParticipation removes the participation and clears question references to it.
	// Questions it answered lose their bonus holder as well.
	DeleteParticipation(ctx context.Context, id string) error
	UpdateParticipationStanding(ctx context.Context, id string, score, position int) error
}

// ResultsLoader builds the results projection from a backing store.
type ResultsLoader interface {
	LoadResults(ctx context.Context, quizID string) (domain.QuizResults, error)
}

// ResultsRepository serves results views, typically through a cache.
type ResultsRepository interface {
	GetResults(ctx context.Context, quizID string) (domain.QuizResults, error)
	Invalidate(ctx context.Context, quizID string) error
}

// ShrinkPolicy decides what happens to recorded answers when a round loses questions.
type ShrinkPolicy string

const (
	// ShrinkBlock rejects a shrink that would drop recorded answers.
	ShrinkBlock ShrinkPolicy = "block"
	// ShrinkCascade deletes truncated questions with whatever they recorded.
	ShrinkCascade ShrinkPolicy = "cascade"
)

// ParseShrinkPolicy maps a config value to a policy; empty means ShrinkBlock.
func ParseShrinkPolicy(raw string) (ShrinkPolicy, error) {
	switch ShrinkPolicy(raw) {
	case "", ShrinkBlock:
		return ShrinkBlock, nil
	case ShrinkCascade:
		return ShrinkCascade, nil
	}
	return "", fmt.Errorf("unknown shrink policy %q", raw)
}

// RankingPolicy decides how tied scores are positioned.
type RankingPolicy string

const (
	// RankSequential gives every entry a distinct position 1..n.
	RankSequential RankingPolicy = "sequential"
	// RankCompetition shares a position between equal scores and skips the next ones.
	RankCompetition RankingPolicy = "competition"
)

// ParseRankingPolicy maps a config value to a policy; empty means RankSequential.
func ParseRankingPolicy(raw string) (RankingPolicy, error) {
	switch RankingPolicy(raw) {
	case "", RankSequential:
		return RankSequential, nil
	case RankCompetition:
		return RankCompetition, nil
	}
	return "", fmt.Errorf("unknown ranking policy %q", raw)
}
