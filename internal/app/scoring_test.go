package app_test

import (
	"testing"

	"sigma-quiz-service/internal/app"
	"sigma-quiz-service/internal/domain"
)

func standingFor(t *testing.T, rr domain.RoundResult, schoolID string) domain.ParticipationStanding {
	t.Helper()
	for _, p := range rr.Participations {
		if p.SchoolID == schoolID {
			return p
		}
	}
	t.Fatalf("school %s not in round %d", schoolID, rr.RoundNumber)
	return domain.ParticipationStanding{}
}

func registrationFor(t *testing.T, res domain.QuizResults, schoolID string) domain.RegistrationStanding {
	t.Helper()
	for _, r := range res.Registrations {
		if r.School.ID == schoolID {
			return r
		}
	}
	t.Fatalf("school %s not registered", schoolID)
	return domain.RegistrationStanding{}
}

func TestComputeRoundScores(t *testing.T) {
	eachStore(t, app.Options{}, func(t *testing.T, f *fixture) {
		s := f.twoSchoolRound()
		// Alpha: 3 correct + 1 bonus, Beta: 1 correct. 2 marks per question, 3 per bonus.
		f.mark(s.qs[0].ID, s.a, true)
		f.mark(s.qs[1].ID, s.a, true)
		f.mark(s.qs[2].ID, s.a, true)
		f.mark(s.qs[3].ID, s.b, true)
		f.mark(s.qs[4].ID, s.b, false)
		f.bonus(s.qs[4].ID, s.a)

		res, err := f.svc.RoundScoring.ComputeRoundScores(f.ctx, s.round.ID)
		if err != nil {
			t.Fatalf("compute round scores: %v", err)
		}
		if len(res.Rounds) != 1 {
			t.Fatalf("expected one round, got %d", len(res.Rounds))
		}
		a := standingFor(t, res.Rounds[0], s.a.ID)
		b := standingFor(t, res.Rounds[0], s.b.ID)
		if a.Score != 9 || a.Position != 1 {
			t.Fatalf("Alpha: expected score 9 position 1, got %d/%d", a.Score, a.Position)
		}
		if b.Score != 2 || b.Position != 2 {
			t.Fatalf("Beta: expected score 2 position 2, got %d/%d", b.Score, b.Position)
		}
		if res.Rounds[0].Participations[0].SchoolID != s.a.ID {
			t.Fatalf("round standings should be ordered by position")
		}

		// Round scoring feeds the quiz scores.
		if reg := registrationFor(t, res, s.a.ID); reg.Score != 9 || reg.Position != 1 {
			t.Fatalf("Alpha quiz standing: got %d/%d", reg.Score, reg.Position)
		}
	})
}

func TestComputeQuizScoresSumsRounds(t *testing.T) {
	eachStore(t, app.Options{}, func(t *testing.T, f *fixture) {
		s := f.twoSchoolRound()
		second := f.round(s.quiz.ID, 2, 4, 2)
		f.participate(second.ID, s.a, s.b)
		q2 := f.questions(second.ID)

		f.mark(s.qs[0].ID, s.a, true) // Alpha 2
		f.mark(s.qs[1].ID, s.b, true) // Beta 2
		f.mark(q2[0].ID, s.b, true)   // Beta 2
		f.mark(q2[1].ID, s.b, true)   // Beta 2
		f.mark(q2[2].ID, s.a, false)
		f.bonus(q2[2].ID, s.b) // Beta 3

		if _, err := f.svc.RoundScoring.ComputeRoundScores(f.ctx, s.round.ID); err != nil {
			t.Fatalf("score round 1: %v", err)
		}
		res, err := f.svc.RoundScoring.ComputeRoundScores(f.ctx, second.ID)
		if err != nil {
			t.Fatalf("score round 2: %v", err)
		}

		a := registrationFor(t, res, s.a.ID)
		b := registrationFor(t, res, s.b.ID)
		if a.Score != 2 || b.Score != 9 {
			t.Fatalf("expected totals Alpha=2 Beta=9, got %d and %d", a.Score, b.Score)
		}
		for _, reg := range []domain.RegistrationStanding{a, b} {
			sum := 0
			for _, r := range reg.Rounds {
				sum += r.Score
			}
			if sum != reg.Score {
				t.Fatalf("%s: quiz score %d != sum of round scores %d", reg.School.Name, reg.Score, sum)
			}
			if len(reg.Rounds) != 2 || reg.Rounds[0].RoundNumber != 1 {
				t.Fatalf("%s: expected per-round breakdown ordered by round", reg.School.Name)
			}
		}
		if b.Position != 1 || a.Position != 2 {
			t.Fatalf("expected Beta first, got Beta=%d Alpha=%d", b.Position, a.Position)
		}
		if res.Registrations[0].School.ID != s.b.ID {
			t.Fatalf("registrations should be ordered by position")
		}

		fetched, err := f.svc.Scoring.FetchResults(f.ctx, s.quiz.ID)
		if err != nil {
			t.Fatalf("fetch results: %v", err)
		}
		if registrationFor(t, fetched, s.b.ID).Score != 9 {
			t.Fatalf("fetched results should reflect the latest scores")
		}
	})
}

func TestTiedScoresRanking(t *testing.T) {
	cases := []struct {
		name      string
		policy    app.RankingPolicy
		positions []int
	}{
		{name: "sequential", policy: app.RankSequential, positions: []int{1, 2, 3}},
		{name: "competition", policy: app.RankCompetition, positions: []int{1, 1, 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, newSQLiteStore(t), app.Options{Ranking: tc.policy})
			quiz := f.quiz()
			round := f.round(quiz.ID, 1, 3, 3)
			a, b, c := f.school("Alpha"), f.school("Beta"), f.school("Gamma")
			f.register(quiz.ID, a, b, c)
			f.participate(round.ID, a, b, c)
			qs := f.questions(round.ID)
			f.mark(qs[0].ID, a, true)
			f.mark(qs[1].ID, b, true)

			res, err := f.svc.RoundScoring.ComputeRoundScores(f.ctx, round.ID)
			if err != nil {
				t.Fatalf("compute: %v", err)
			}
			got := make([]int, 0, 3)
			for _, p := range res.Rounds[0].Participations {
				got = append(got, p.Position)
			}
			for i := range tc.positions {
				if got[i] != tc.positions[i] {
					t.Fatalf("expected positions %v, got %v", tc.positions, got)
				}
			}
			if last := res.Rounds[0].Participations[2]; last.SchoolID != c.ID || last.Score != 0 {
				t.Fatalf("Gamma should be last with 0, got %+v", last)
			}
		})
	}
}

func TestComputeScoresUnknownIDs(t *testing.T) {
	eachStore(t, app.Options{}, func(t *testing.T, f *fixture) {
		_, err := f.svc.RoundScoring.ComputeRoundScores(f.ctx, "missing")
		expectKind(t, err, domain.ErrNotFound, "round")
		_, err = f.svc.Scoring.ComputeQuizScores(f.ctx, "missing")
		expectKind(t, err, domain.ErrNotFound, "quiz")
		_, err = f.svc.Scoring.FetchResults(f.ctx, "missing")
		expectKind(t, err, domain.ErrNotFound, "quiz")
	})
}
