package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"sigma-quiz-service/internal/app"
	"sigma-quiz-service/internal/domain"
)

func TestStoreRollsBackFailedTx(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Tx(ctx, func(ctx context.Context, r app.Repository) error {
		if err := r.InsertQuiz(ctx, &domain.Quiz{ID: "quiz-1", Date: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected tx error, got %v", err)
	}

	err = store.Tx(ctx, func(ctx context.Context, r app.Repository) error {
		_, err := r.GetQuiz(ctx, "quiz-1")
		return err
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected rolled back quiz to be missing, got %v", err)
	}
}

func TestStoreEnforcesUniqueKeys(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.Tx(ctx, func(ctx context.Context, r app.Repository) error {
		if err := r.InsertRound(ctx, &domain.Round{ID: "r1", QuizID: "quiz-1", RoundNumber: 1}); err != nil {
			return err
		}
		return r.InsertRound(ctx, &domain.Round{ID: "r2", QuizID: "quiz-1", RoundNumber: 1})
	})
	if !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected duplicate round number, got %v", err)
	}

	err = store.Tx(ctx, func(ctx context.Context, r app.Repository) error {
		return r.InsertQuestions(ctx, []domain.Question{
			{ID: "q1", RoundID: "r1", QuestionNumber: 1},
			{ID: "q2", RoundID: "r1", QuestionNumber: 1},
		})
	})
	if !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected duplicate question number, got %v", err)
	}
}

func TestStoreConditionalMarking(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.Tx(ctx, func(ctx context.Context, r app.Repository) error {
		if err := r.InsertQuestions(ctx, []domain.Question{{ID: "q1", RoundID: "r1", QuestionNumber: 1}}); err != nil {
			return err
		}
		if ok, err := r.AssignBonus(ctx, "q1", "p-b"); err != nil || ok {
			t.Fatalf("bonus on unanswered question: ok=%v err=%v", ok, err)
		}
		if ok, err := r.MarkQuestion(ctx, "q1", "p-a", false); err != nil || !ok {
			t.Fatalf("first mark: ok=%v err=%v", ok, err)
		}
		if ok, err := r.MarkQuestion(ctx, "q1", "p-b", true); err != nil || ok {
			t.Fatalf("mark by another participation should be refused: ok=%v err=%v", ok, err)
		}
		if ok, err := r.AssignBonus(ctx, "q1", "p-b"); err != nil || !ok {
			t.Fatalf("bonus: ok=%v err=%v", ok, err)
		}
		if ok, err := r.AssignBonus(ctx, "q1", "p-c"); err != nil || ok {
			t.Fatalf("bonus held by another should be refused: ok=%v err=%v", ok, err)
		}
		if ok, err := r.MarkQuestion(ctx, "q1", "p-a", true); err != nil || !ok {
			t.Fatalf("re-mark: ok=%v err=%v", ok, err)
		}
		q, err := r.GetQuestion(ctx, "q1")
		if err != nil {
			return err
		}
		if q.BonusToID != nil {
			t.Fatalf("correct re-mark should clear the bonus")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func TestDeleteParticipationClearsReferences(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.Tx(ctx, func(ctx context.Context, r app.Repository) error {
		if err := r.InsertParticipation(ctx, &domain.RoundParticipation{ID: "p-a", RoundID: "r1", RegistrationID: "reg-a"}); err != nil {
			return err
		}
		if err := r.InsertQuestions(ctx, []domain.Question{{ID: "q1", RoundID: "r1", QuestionNumber: 1}}); err != nil {
			return err
		}
		if _, err := r.MarkQuestion(ctx, "q1", "p-a", true); err != nil {
			return err
		}
		if err := r.DeleteParticipation(ctx, "p-a"); err != nil {
			return err
		}
		q, err := r.GetQuestion(ctx, "q1")
		if err != nil {
			return err
		}
		if q.Answered() || q.AnsweredCorrectly != nil {
			t.Fatalf("answer should be cleared: %+v", q)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}
