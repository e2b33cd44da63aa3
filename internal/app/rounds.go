package app

import (
	"context"
	"errors"

	"sigma-quiz-service/internal/domain"
)

// RoundService manages rounds and keeps each round's question set in sync
// with its configured question count.
type RoundService struct {
	store   Store
	results ResultsRepository
	shrink  ShrinkPolicy
}

func NewRoundService(store Store, results ResultsRepository, shrink ShrinkPolicy) *RoundService {
	if shrink == "" {
		shrink = ShrinkBlock
	}
	return &RoundService{store: store, results: results, shrink: shrink}
}

// CreateRound inserts the round and its questions in one transaction.
func (s *RoundService) CreateRound(ctx context.Context, in RoundInput) (domain.Round, error) {
	if err := validateInput(in); err != nil {
		return domain.Round{}, err
	}
	round := domain.Round{
		ID:                    newID(),
		QuizID:                in.QuizID,
		Name:                  in.Name,
		RoundNumber:           in.RoundNumber,
		NoOfQuestions:         in.NoOfQuestions,
		NoOfSchools:           in.NoOfSchools,
		MarksPerQuestion:      in.MarksPerQuestion,
		MarksPerBonusQuestion: in.MarksPerBonusQuestion,
	}

	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		if _, err := r.GetQuiz(ctx, in.QuizID); err != nil {
			return err
		}
		if err := r.InsertRound(ctx, &round); err != nil {
			if errors.Is(err, domain.ErrDuplicateKey) {
				return domain.Conflictf("quiz round number %d already exists", round.RoundNumber)
			}
			return err
		}
		return createRoundQuestions(ctx, r, round)
	})
	if err != nil {
		return domain.Round{}, err
	}
	invalidate(ctx, s.results, round.QuizID)
	return round, nil
}

// UpdateRound applies patch and reconciles the question set atomically.
func (s *RoundService) UpdateRound(ctx context.Context, id string, patch RoundPatch) (domain.Round, error) {
	var updated domain.Round
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		current, err := r.LockRound(ctx, id)
		if err != nil {
			return err
		}
		in := patch.apply(current)
		if err := validateInput(in); err != nil {
			return err
		}

		participants, err := r.CountParticipations(ctx, id)
		if err != nil {
			return err
		}
		if in.NoOfSchools < participants {
			return domain.Conflictf("round already has %d participating schools; remove schools from the round first or increase no of schools", participants)
		}

		updated = current
		updated.Name = in.Name
		updated.RoundNumber = in.RoundNumber
		updated.NoOfQuestions = in.NoOfQuestions
		updated.NoOfSchools = in.NoOfSchools
		updated.MarksPerQuestion = in.MarksPerQuestion
		updated.MarksPerBonusQuestion = in.MarksPerBonusQuestion
		if err := r.UpdateRound(ctx, updated); err != nil {
			if errors.Is(err, domain.ErrDuplicateKey) {
				return domain.Conflictf("quiz round number %d already exists", updated.RoundNumber)
			}
			return err
		}
		return reconcileRoundQuestions(ctx, r, updated, s.shrink)
	})
	if err != nil {
		return domain.Round{}, err
	}
	invalidate(ctx, s.results, updated.QuizID)
	return updated, nil
}

// DeleteRound removes a round with its questions and participations.
func (s *RoundService) DeleteRound(ctx context.Context, id string) error {
	var quizID string
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		round, err := r.LockRound(ctx, id)
		if err != nil {
			return err
		}
		quizID = round.QuizID
		return r.DeleteRound(ctx, id)
	})
	if err != nil {
		return err
	}
	invalidate(ctx, s.results, quizID)
	return nil
}

func (s *RoundService) GetRound(ctx context.Context, id string) (domain.Round, error) {
	var round domain.Round
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		var err error
		round, err = r.GetRound(ctx, id)
		return err
	})
	return round, err
}

// ListRounds returns the rounds of a quiz ordered by round number.
func (s *RoundService) ListRounds(ctx context.Context, quizID string) ([]domain.Round, error) {
	var rounds []domain.Round
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		if _, err := r.GetQuiz(ctx, quizID); err != nil {
			return err
		}
		var err error
		rounds, err = r.ListRounds(ctx, quizID)
		return err
	})
	return rounds, err
}

// ListRoundQuestions returns the round's questions with answerer and bonus schools resolved.
func (s *RoundService) ListRoundQuestions(ctx context.Context, roundID string) ([]domain.QuestionResult, error) {
	var out []domain.QuestionResult
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		if _, err := r.GetRound(ctx, roundID); err != nil {
			return err
		}
		questions, err := r.ListQuestions(ctx, roundID)
		if err != nil {
			return err
		}
		refs, err := roundRefs(ctx, r, roundID)
		if err != nil {
			return err
		}
		out = make([]domain.QuestionResult, 0, len(questions))
		for _, q := range questions {
			out = append(out, domain.DescribeQuestion(q, refs))
		}
		return nil
	})
	return out, err
}
