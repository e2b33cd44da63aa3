package app_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"sigma-quiz-service/internal/app"
	"sigma-quiz-service/internal/domain"
	"sigma-quiz-service/internal/infra/memory"
	"sigma-quiz-service/internal/infra/sqlstore"
	"sigma-quiz-service/internal/infra/sqlstore/migrations"
)

// eachStore runs fn against the in-memory store and a migrated SQLite store.
func eachStore(t *testing.T, opts app.Options, fn func(t *testing.T, f *fixture)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, newFixture(t, memory.NewStore(), opts))
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, newFixture(t, newSQLiteStore(t), opts))
	})
}

func newSQLiteStore(t *testing.T) app.Store {
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

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store app.Store
	svc   *app.Services
	day   int
}

func newFixture(t *testing.T, store app.Store, opts app.Options) *fixture {
	results := memory.NewResultsCache(app.NewStoreResultsLoader(store), time.Minute)
	return &fixture{
		t:     t,
		ctx:   context.Background(),
		store: store,
		svc:   app.NewServices(store, results, opts),
	}
}

func (f *fixture) quiz() domain.Quiz {
	f.t.Helper()
	f.day++
	quiz, err := f.svc.Catalog.CreateQuiz(f.ctx, app.QuizInput{
		Date: time.Date(2024, time.November, f.day, 9, 30, 0, 0, time.UTC),
	})
	if err != nil {
		f.t.Fatalf("create quiz: %v", err)
	}
	return quiz
}

func (f *fixture) school(name string) domain.School {
	f.t.Helper()
	school, err := f.svc.Catalog.CreateSchool(f.ctx, app.SchoolInput{Name: name, State: "Lagos"})
	if err != nil {
		f.t.Fatalf("create school %s: %v", name, err)
	}
	return school
}

// round creates a round awarding 2 marks per question and 3 per bonus.
func (f *fixture) round(quizID string, number, questions, schools int) domain.Round {
	f.t.Helper()
	round, err := f.svc.Rounds.CreateRound(f.ctx, app.RoundInput{
		QuizID:                quizID,
		Name:                  fmt.Sprintf("Round %d", number),
		RoundNumber:           number,
		NoOfQuestions:         questions,
		NoOfSchools:           schools,
		MarksPerQuestion:      2,
		MarksPerBonusQuestion: 3,
	})
	if err != nil {
		f.t.Fatalf("create round %d: %v", number, err)
	}
	return round
}

func (f *fixture) register(quizID string, schools ...domain.School) {
	f.t.Helper()
	for _, s := range schools {
		if _, err := f.svc.Registry.RegisterSchoolForQuiz(f.ctx, quizID, s.ID); err != nil {
			f.t.Fatalf("register %s: %v", s.Name, err)
		}
	}
}

func (f *fixture) participate(roundID string, schools ...domain.School) {
	f.t.Helper()
	for _, s := range schools {
		if _, err := f.svc.Registry.AddSchoolParticipationInRound(f.ctx, roundID, s.ID); err != nil {
			f.t.Fatalf("add %s to round: %v", s.Name, err)
		}
	}
}

func (f *fixture) questions(roundID string) []domain.QuestionResult {
	f.t.Helper()
	qs, err := f.svc.Rounds.ListRoundQuestions(f.ctx, roundID)
	if err != nil {
		f.t.Fatalf("list questions: %v", err)
	}
	return qs
}

func (f *fixture) mark(questionID string, school domain.School, correct bool) {
	f.t.Helper()
	if _, err := f.svc.Marking.MarkQuestion(f.ctx, questionID, school.ID, correct); err != nil {
		f.t.Fatalf("mark %s for %s: %v", questionID, school.Name, err)
	}
}

func (f *fixture) bonus(questionID string, school domain.School) {
	f.t.Helper()
	if _, err := f.svc.Marking.AssignBonusQuestion(f.ctx, questionID, school.ID); err != nil {
		f.t.Fatalf("bonus %s for %s: %v", questionID, school.Name, err)
	}
}

// setup is a quiz with one round of 6 questions for 2 schools, both
// registered and participating.
type setup struct {
	quiz  domain.Quiz
	round domain.Round
	a, b  domain.School
	qs    []domain.QuestionResult
}

func (f *fixture) twoSchoolRound() setup {
	f.t.Helper()
	s := setup{quiz: f.quiz(), a: f.school("Alpha College"), b: f.school("Beta Academy")}
	s.round = f.round(s.quiz.ID, 1, 6, 2)
	f.register(s.quiz.ID, s.a, s.b)
	f.participate(s.round.ID, s.a, s.b)
	s.qs = f.questions(s.round.ID)
	return s
}

func expectKind(t *testing.T, err, kind error, contains string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v error, got %v", kind, err)
	}
	if contains != "" && !strings.Contains(err.Error(), contains) {
		t.Fatalf("expected error containing %q, got %q", contains, err.Error())
	}
}

func questionNumbers(qs []domain.QuestionResult) []int {
	out := make([]int, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.QuestionNumber)
	}
	return out
}

func contiguous(numbers []int, n int) bool {
	if len(numbers) != n {
		return false
	}
	for i, got := range numbers {
		if got != i+1 {
			return false
		}
	}
	return true
}

func ptr[T any](v T) *T {
	return &v
}
