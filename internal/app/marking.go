package app

import (
	"context"

	"sigma-quiz-service/internal/domain"
)

// MarkingService drives the per-question state machine:
// Unanswered -> Answered(by, correct) -> BonusAssigned(to).
type MarkingService struct {
	store   Store
	results ResultsRepository
}

func NewMarkingService(store Store, results ResultsRepository) *MarkingService {
	return &MarkingService{store: store, results: results}
}

// MarkQuestion records which school answered and whether correctly. The
// answering school may re-mark its own question; any other school gets a conflict.
func (s *MarkingService) MarkQuestion(ctx context.Context, questionID, schoolID string, correct bool) (domain.QuestionResult, error) {
	var (
		out   domain.QuestionResult
		round domain.Round
	)
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		q, err := r.GetQuestion(ctx, questionID)
		if err != nil {
			return err
		}
		round, err = r.GetRound(ctx, q.RoundID)
		if err != nil {
			return err
		}
		p, err := resolveParticipation(ctx, r, round, schoolID)
		if err != nil {
			return err
		}
		if err := markConflict(ctx, r, q, p.ID); err != nil {
			return err
		}

		ok, err := r.MarkQuestion(ctx, q.ID, p.ID, correct)
		if err != nil {
			return err
		}
		if !ok {
			// Another school won the race between our read and the write.
			if q, err = r.GetQuestion(ctx, questionID); err != nil {
				return err
			}
			if err := markConflict(ctx, r, q, p.ID); err != nil {
				return err
			}
			return domain.Conflictf("question was marked concurrently; reload and retry")
		}

		out, err = describeQuestion(ctx, r, questionID)
		return err
	})
	if err != nil {
		return domain.QuestionResult{}, err
	}
	invalidate(ctx, s.results, round.QuizID)
	return out, nil
}

// AssignBonusQuestion hands an incorrectly answered question to a different school.
func (s *MarkingService) AssignBonusQuestion(ctx context.Context, questionID, schoolID string) (domain.QuestionResult, error) {
	var (
		out   domain.QuestionResult
		round domain.Round
	)
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		q, err := r.GetQuestion(ctx, questionID)
		if err != nil {
			return err
		}
		round, err = r.GetRound(ctx, q.RoundID)
		if err != nil {
			return err
		}
		p, err := resolveParticipation(ctx, r, round, schoolID)
		if err != nil {
			return err
		}
		if err := bonusConflict(ctx, r, q, p.ID); err != nil {
			return err
		}

		ok, err := r.AssignBonus(ctx, q.ID, p.ID)
		if err != nil {
			return err
		}
		if !ok {
			if q, err = r.GetQuestion(ctx, questionID); err != nil {
				return err
			}
			if err := bonusConflict(ctx, r, q, p.ID); err != nil {
				return err
			}
			return domain.Conflictf("question was updated concurrently; reload and retry")
		}

		out, err = describeQuestion(ctx, r, questionID)
		return err
	})
	if err != nil {
		return domain.QuestionResult{}, err
	}
	invalidate(ctx, s.results, round.QuizID)
	return out, nil
}

// markConflict reports why participationID may not mark q, or nil if it may.
func markConflict(ctx context.Context, r Repository, q domain.Question, participationID string) error {
	if !q.Answered() || q.AnsweredBy(participationID) {
		return nil
	}
	return domain.Conflictf("question already marked as answered by %s", participationName(ctx, r, *q.AnsweredByID))
}

// bonusConflict reports why participationID may not receive the bonus of q, or nil if it may.
func bonusConflict(ctx context.Context, r Repository, q domain.Question, participationID string) error {
	switch {
	case !q.Answered():
		return domain.Conflictf("can't assign bonus question except marked as answered incorrectly by another school")
	case q.AnsweredBy(participationID):
		return domain.Conflictf("can not assign bonus question: question already marked as answered by this school")
	case q.CorrectlyAnswered():
		return domain.Conflictf("can not assign bonus question: question already answered correctly by %s", participationName(ctx, r, *q.AnsweredByID))
	case q.BonusToID != nil && !q.BonusTo(participationID):
		return domain.Conflictf("bonus question already assigned to %s", participationName(ctx, r, *q.BonusToID))
	}
	return nil
}

// participationName names the school behind a participation for error messages.
func participationName(ctx context.Context, r Repository, participationID string) string {
	p, err := r.GetParticipation(ctx, participationID)
	if err != nil {
		return "another school"
	}
	ref, err := schoolRef(ctx, r, p)
	if err != nil {
		return "another school"
	}
	return ref.SchoolName
}

func describeQuestion(ctx context.Context, r Repository, questionID string) (domain.QuestionResult, error) {
	q, err := r.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.QuestionResult{}, err
	}
	refs, err := roundRefs(ctx, r, q.RoundID)
	if err != nil {
		return domain.QuestionResult{}, err
	}
	return domain.DescribeQuestion(q, refs), nil
}
