package app_test

import (
	"sync"
	"testing"

	"sigma-quiz-service/internal/app"
	"sigma-quiz-service/internal/domain"
)

func TestMarkQuestionSameSchoolIsIdempotent(t *testing.T) {
	eachStore(t, app.Options{}, func(t *testing.T, f *fixture) {
		s := f.twoSchoolRound()
		q := s.qs[0]

		f.mark(q.ID, s.a, false)
		res, err := f.svc.Marking.MarkQuestion(f.ctx, q.ID, s.a.ID, true)
		if err != nil {
			t.Fatalf("re-mark: %v", err)
		}
		if !res.CorrectlyAnswered() {
			t.Fatalf("re-mark should update correctness")
		}
		if res.AnsweredBy == nil || res.AnsweredBy.SchoolID != s.a.ID || res.AnsweredBy.SchoolName != s.a.Name {
			t.Fatalf("expected answerer Alpha, got %+v", res.AnsweredBy)
		}
	})
}

func TestMarkQuestionByAnotherSchoolConflicts(t *testing.T) {
	eachStore(t, app.Options{}, func(t *testing.T, f *fixture) {
		s := f.twoSchoolRound()
		f.mark(s.qs[0].ID, s.a, true)

		_, err := f.svc.Marking.MarkQuestion(f.ctx, s.qs[0].ID, s.b.ID, false)
		expectKind(t, err, domain.ErrConflict, "already marked as answered by Alpha College")

		_, err = f.svc.Marking.MarkQuestion(f.ctx, "missing", s.a.ID, true)
		expectKind(t, err, domain.ErrNotFound, "question")

		outsider := f.school("Gamma")
		_, err = f.svc.Marking.MarkQuestion(f.ctx, s.qs[1].ID, outsider.ID, true)
		expectKind(t, err, domain.ErrNotFound, "not participating")
	})
}

func TestAssignBonusRules(t *testing.T) {
	eachStore(t, app.Options{}, func(t *testing.T, f *fixture) {
		s := f.twoSchoolRound()
		c := f.school("Gamma Grammar")
		f.register(s.quiz.ID, c)
		// Widen the round so a third school can hold bonuses.
		if _, err := f.svc.Rounds.UpdateRound(f.ctx, s.round.ID, app.RoundPatch{NoOfSchools: ptr(3)}); err != nil {
			t.Fatalf("widen round: %v", err)
		}
		f.participate(s.round.ID, c)

		unanswered, wrong, right := s.qs[0], s.qs[1], s.qs[2]
		f.mark(wrong.ID, s.a, false)
		f.mark(right.ID, s.a, true)

		_, err := f.svc.Marking.AssignBonusQuestion(f.ctx, unanswered.ID, s.b.ID)
		expectKind(t, err, domain.ErrConflict, "except marked as answered incorrectly")

		_, err = f.svc.Marking.AssignBonusQuestion(f.ctx, wrong.ID, s.a.ID)
		expectKind(t, err, domain.ErrConflict, "answered by this school")

		_, err = f.svc.Marking.AssignBonusQuestion(f.ctx, right.ID, s.b.ID)
		expectKind(t, err, domain.ErrConflict, "answered correctly by Alpha College")

		res, err := f.svc.Marking.AssignBonusQuestion(f.ctx, wrong.ID, s.b.ID)
		if err != nil {
			t.Fatalf("assign bonus: %v", err)
		}
		if res.BonusTo == nil || res.BonusTo.SchoolName != s.b.Name {
			t.Fatalf("expected bonus to Beta, got %+v", res.BonusTo)
		}

		// Re-assigning to the holder is accepted.
		f.bonus(wrong.ID, s.b)

		_, err = f.svc.Marking.AssignBonusQuestion(f.ctx, wrong.ID, c.ID)
		expectKind(t, err, domain.ErrConflict, "already assigned to Beta Academy")
	})
}

func TestMarkCorrectClearsBonus(t *testing.T) {
	eachStore(t, app.Options{}, func(t *testing.T, f *fixture) {
		s := f.twoSchoolRound()
		q := s.qs[0]
		f.mark(q.ID, s.a, false)
		f.bonus(q.ID, s.b)

		res, err := f.svc.Marking.MarkQuestion(f.ctx, q.ID, s.a.ID, true)
		if err != nil {
			t.Fatalf("re-mark correct: %v", err)
		}
		if res.BonusToID != nil || res.BonusTo != nil {
			t.Fatalf("a correct answer cannot carry a bonus: %+v", res)
		}
	})
}

func TestConcurrentMarkingHasOneWinner(t *testing.T) {
	f := newFixture(t, newSQLiteStore(t), app.Options{})
	s := f.twoSchoolRound()
	q := s.qs[0]

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, school := range []domain.School{s.a, s.b} {
		wg.Add(1)
		go func(i int, school domain.School) {
			defer wg.Done()
			_, errs[i] = f.svc.Marking.MarkQuestion(f.ctx, q.ID, school.ID, true)
		}(i, school)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			expectKind(t, err, domain.ErrConflict, "")
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one successful mark, got %d (%v)", ok, errs)
	}
}
