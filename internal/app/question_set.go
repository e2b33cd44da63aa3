package app

import (
	"context"
	"errors"

	"sigma-quiz-service/internal/domain"
)

// createRoundQuestions inserts questions 1..NoOfQuestions for a new round.
func createRoundQuestions(ctx context.Context, r Repository, round domain.Round) error {
	return insertQuestionRange(ctx, r, round.ID, 1, round.NoOfQuestions)
}

// reconcileRoundQuestions grows or shrinks the tail of the round's question
// set until its numbers are exactly 1..NoOfQuestions.
func reconcileRoundQuestions(ctx context.Context, r Repository, round domain.Round, policy ShrinkPolicy) error {
	last, err := r.MaxQuestionNumber(ctx, round.ID)
	if err != nil {
		return err
	}
	target := round.NoOfQuestions

	switch {
	case last == target:
		return nil
	case last < target:
		return insertQuestionRange(ctx, r, round.ID, last+1, target)
	}

	if policy != ShrinkCascade {
		recorded, err := r.CountRecordedAbove(ctx, round.ID, target)
		if err != nil {
			return err
		}
		if recorded > 0 {
			return domain.Conflictf("cannot reduce round to %d questions: %d of the removed questions already have recorded answers", target, recorded)
		}
	}
	return r.DeleteQuestionsAbove(ctx, round.ID, target)
}

func insertQuestionRange(ctx context.Context, r Repository, roundID string, from, to int) error {
	if from > to {
		return nil
	}
	questions := make([]domain.Question, 0, to-from+1)
	for n := from; n <= to; n++ {
		questions = append(questions, domain.Question{
			ID:             newID(),
			RoundID:        roundID,
			QuestionNumber: n,
		})
	}
	if err := r.InsertQuestions(ctx, questions); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return domain.Conflictf("question numbers %d..%d already exist in round", from, to)
		}
		return err
	}
	return nil
}
