package sqlstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"sigma-quiz-service/internal/app"
	"sigma-quiz-service/internal/domain"
	"sigma-quiz-service/internal/infra/sqlstore"
	"sigma-quiz-service/internal/infra/sqlstore/migrations"
)

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	db, err := sqlstore.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return sqlstore.New(db)
}

func seedRound(ctx context.Context, r app.Repository) error {
	if err := r.InsertQuiz(ctx, &domain.Quiz{ID: "quiz-1", Year: 2024, Title: "2024 Sigma Quiz", Date: time.Date(2024, 11, 22, 0, 0, 0, 0, time.UTC), Status: domain.QuizPending}); err != nil {
		return err
	}
	if err := r.InsertSchool(ctx, &domain.School{ID: "s-a", Name: "Alpha", State: "Lagos"}); err != nil {
		return err
	}
	if err := r.InsertSchool(ctx, &domain.School{ID: "s-b", Name: "Beta", State: "Oyo"}); err != nil {
		return err
	}
	if err := r.InsertRound(ctx, &domain.Round{ID: "r1", QuizID: "quiz-1", Name: "Round 1", RoundNumber: 1, NoOfQuestions: 2, NoOfSchools: 2, MarksPerQuestion: 2, MarksPerBonusQuestion: 1}); err != nil {
		return err
	}
	if err := r.InsertQuestions(ctx, []domain.Question{
		{ID: "q1", RoundID: "r1", QuestionNumber: 1},
		{ID: "q2", RoundID: "r1", QuestionNumber: 2},
	}); err != nil {
		return err
	}
	for _, reg := range []domain.QuizRegistration{
		{ID: "reg-a", QuizID: "quiz-1", SchoolID: "s-a"},
		{ID: "reg-b", QuizID: "quiz-1", SchoolID: "s-b"},
	} {
		if err := r.InsertRegistration(ctx, &reg); err != nil {
			return err
		}
	}
	for _, p := range []domain.RoundParticipation{
		{ID: "p-a", RoundID: "r1", RegistrationID: "reg-a"},
		{ID: "p-b", RoundID: "r1", RegistrationID: "reg-b"},
	} {
		if err := r.InsertParticipation(ctx, &p); err != nil {
			return err
		}
	}
	return nil
}

func TestStoreMapsUniqueViolations(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	if err := store.Tx(ctx, seedRound); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cases := map[string]func(ctx context.Context, r app.Repository) error{
		"quiz date": func(ctx context.Context, r app.Repository) error {
			return r.InsertQuiz(ctx, &domain.Quiz{ID: "quiz-2", Date: time.Date(2024, 11, 22, 0, 0, 0, 0, time.UTC), Status: domain.QuizPending})
		},
		"round number": func(ctx context.Context, r app.Repository) error {
			return r.InsertRound(ctx, &domain.Round{ID: "r2", QuizID: "quiz-1", Name: "dup", RoundNumber: 1, NoOfQuestions: 2, NoOfSchools: 2, MarksPerQuestion: 1, MarksPerBonusQuestion: 1})
		},
		"question number": func(ctx context.Context, r app.Repository) error {
			return r.InsertQuestions(ctx, []domain.Question{{ID: "q9", RoundID: "r1", QuestionNumber: 2}})
		},
		"registration": func(ctx context.Context, r app.Repository) error {
			return r.InsertRegistration(ctx, &domain.QuizRegistration{ID: "reg-x", QuizID: "quiz-1", SchoolID: "s-a"})
		},
		"participation": func(ctx context.Context, r app.Repository) error {
			return r.InsertParticipation(ctx, &domain.RoundParticipation{ID: "p-x", RoundID: "r1", RegistrationID: "reg-a"})
		},
	}
	for name, insert := range cases {
		t.Run(name, func(t *testing.T) {
			err := store.Tx(ctx, insert)
			if !errors.Is(err, domain.ErrDuplicateKey) {
				t.Fatalf("expected duplicate key, got %v", err)
			}
		})
	}
}

func TestStoreGuardedWrites(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	if err := store.Tx(ctx, seedRound); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := store.Tx(ctx, func(ctx context.Context, r app.Repository) error {
		if ok, err := r.AssignBonus(ctx, "q1", "p-b"); err != nil || ok {
			t.Fatalf("bonus on unanswered: ok=%v err=%v", ok, err)
		}
		if ok, err := r.MarkQuestion(ctx, "q1", "p-a", false); err != nil || !ok {
			t.Fatalf("mark: ok=%v err=%v", ok, err)
		}
		if ok, err := r.MarkQuestion(ctx, "q1", "p-b", true); err != nil || ok {
			t.Fatalf("mark by other: ok=%v err=%v", ok, err)
		}
		if ok, err := r.AssignBonus(ctx, "q1", "p-a"); err != nil || ok {
			t.Fatalf("self bonus: ok=%v err=%v", ok, err)
		}
		if ok, err := r.AssignBonus(ctx, "q1", "p-b"); err != nil || !ok {
			t.Fatalf("bonus: ok=%v err=%v", ok, err)
		}
		if ok, err := r.MarkQuestion(ctx, "q1", "p-a", true); err != nil || !ok {
			t.Fatalf("re-mark: ok=%v err=%v", ok, err)
		}
		q, err := r.GetQuestion(ctx, "q1")
		if err != nil {
			return err
		}
		if !q.CorrectlyAnswered() || q.BonusToID != nil {
			t.Fatalf("expected correct answer without bonus, got %+v", q)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func TestStoreQuestionSetQueries(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	if err := store.Tx(ctx, seedRound); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := store.Tx(ctx, func(ctx context.Context, r app.Repository) error {
		top, err := r.MaxQuestionNumber(ctx, "r1")
		if err != nil {
			return err
		}
		if top != 2 {
			t.Fatalf("expected max 2, got %d", top)
		}
		if empty, err := r.MaxQuestionNumber(ctx, "none"); err != nil || empty != 0 {
			t.Fatalf("empty round: max=%d err=%v", empty, err)
		}
		if _, err := r.MarkQuestion(ctx, "q2", "p-a", true); err != nil {
			return err
		}
		recorded, err := r.CountRecordedAbove(ctx, "r1", 1)
		if err != nil {
			return err
		}
		if recorded != 1 {
			t.Fatalf("expected 1 recorded question above 1, got %d", recorded)
		}
		if err := r.DeleteQuestionsAbove(ctx, "r1", 1); err != nil {
			return err
		}
		qs, err := r.ListQuestions(ctx, "r1")
		if err != nil {
			return err
		}
		if len(qs) != 1 || qs[0].QuestionNumber != 1 {
			t.Fatalf("expected only question 1, got %+v", qs)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func TestStoreTxRollsBack(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Tx(ctx, func(ctx context.Context, r app.Repository) error {
		if err := seedRound(ctx, r); err != nil {
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
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected rollback, got %v", err)
	}
}

func TestDeleteAnswererClearsBonus(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	if err := store.Tx(ctx, seedRound); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := store.Tx(ctx, func(ctx context.Context, r app.Repository) error {
		if _, err := r.MarkQuestion(ctx, "q1", "p-a", false); err != nil {
			return err
		}
		if ok, err := r.AssignBonus(ctx, "q1", "p-b"); err != nil || !ok {
			t.Fatalf("bonus: ok=%v err=%v", ok, err)
		}
		if err := r.DeleteParticipation(ctx, "p-a"); err != nil {
			return err
		}
		q, err := r.GetQuestion(ctx, "q1")
		if err != nil {
			return err
		}
		if q.Answered() || q.AnsweredCorrectly != nil || q.BonusToID != nil {
			t.Fatalf("answer and bonus should be cleared: %+v", q)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}
