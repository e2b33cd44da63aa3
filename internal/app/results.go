package app

import (
	"context"

	"sigma-quiz-service/internal/domain"
)

// StoreResultsLoader assembles results through the Repository contract, so
// it works over any Store.
type StoreResultsLoader struct {
	store Store
}

func NewStoreResultsLoader(store Store) *StoreResultsLoader {
	return &StoreResultsLoader{store: store}
}

func (l *StoreResultsLoader) LoadResults(ctx context.Context, quizID string) (domain.QuizResults, error) {
	var snap domain.ResultsSnapshot
	err := l.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		var err error
		if snap.Quiz, err = r.GetQuiz(ctx, quizID); err != nil {
			return err
		}
		if snap.Rounds, err = r.ListRounds(ctx, quizID); err != nil {
			return err
		}
		for _, round := range snap.Rounds {
			questions, err := r.ListQuestions(ctx, round.ID)
			if err != nil {
				return err
			}
			snap.Questions = append(snap.Questions, questions...)
		}
		if snap.Registrations, err = r.ListRegistrations(ctx, quizID); err != nil {
			return err
		}
		if snap.Participations, err = r.ListQuizParticipations(ctx, quizID); err != nil {
			return err
		}
		for _, reg := range snap.Registrations {
			school, err := r.GetSchool(ctx, reg.SchoolID)
			if err != nil {
				return err
			}
			snap.Schools = append(snap.Schools, school)
		}
		return nil
	})
	if err != nil {
		return domain.QuizResults{}, err
	}
	return domain.NewQuizResults(snap), nil
}
