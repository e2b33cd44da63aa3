package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sigma-quiz-service/internal/domain"
)

// CatalogService manages quiz metadata and the school directory.
type CatalogService struct {
	store   Store
	results ResultsRepository
}

func NewCatalogService(store Store, results ResultsRepository) *CatalogService {
	return &CatalogService{store: store, results: results}
}

// CreateQuiz registers a new quiz edition. Only one quiz may be held per date.
func (s *CatalogService) CreateQuiz(ctx context.Context, in QuizInput) (domain.Quiz, error) {
	if err := validateInput(in); err != nil {
		return domain.Quiz{}, err
	}
	date := time.Date(in.Date.Year(), in.Date.Month(), in.Date.Day(), 0, 0, 0, 0, time.UTC)
	quiz := domain.Quiz{
		ID:          newID(),
		Year:        date.Year(),
		Title:       fmt.Sprintf("%d Sigma Quiz", date.Year()),
		Description: in.Description,
		Date:        date,
		Status:      in.Status,
	}
	if in.Title != nil {
		quiz.Title = *in.Title
	}
	if quiz.Status == "" {
		quiz.Status = domain.QuizPending
	}

	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		if err := r.InsertQuiz(ctx, &quiz); err != nil {
			if errors.Is(err, domain.ErrDuplicateKey) {
				return domain.Conflictf("quiz with date %s already exists", date.Format(time.DateOnly))
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

func (s *CatalogService) GetQuiz(ctx context.Context, id string) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		var err error
		quiz, err = r.GetQuiz(ctx, id)
		return err
	})
	return quiz, err
}

func (s *CatalogService) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	var quizzes []domain.Quiz
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		var err error
		quizzes, err = r.ListQuizzes(ctx)
		return err
	})
	return quizzes, err
}

// UpdateQuizStatus moves a quiz to a new lifecycle status.
func (s *CatalogService) UpdateQuizStatus(ctx context.Context, id string, status domain.QuizStatus) (domain.Quiz, error) {
	if !status.Valid() {
		return domain.Quiz{}, domain.Invalidf("unknown quiz status %q", status)
	}
	var quiz domain.Quiz
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		if _, err := r.LockQuiz(ctx, id); err != nil {
			return err
		}
		if err := r.UpdateQuizStatus(ctx, id, status); err != nil {
			return err
		}
		var err error
		quiz, err = r.GetQuiz(ctx, id)
		return err
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	invalidate(ctx, s.results, id)
	return quiz, nil
}

// DeleteQuiz removes a quiz with its rounds and registrations.
func (s *CatalogService) DeleteQuiz(ctx context.Context, id string) error {
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		if _, err := r.LockQuiz(ctx, id); err != nil {
			return err
		}
		return r.DeleteQuiz(ctx, id)
	})
	if err != nil {
		return err
	}
	invalidate(ctx, s.results, id)
	return nil
}

func (s *CatalogService) CreateSchool(ctx context.Context, in SchoolInput) (domain.School, error) {
	if err := validateInput(in); err != nil {
		return domain.School{}, err
	}
	school := domain.School{
		ID:      newID(),
		Name:    strings.TrimSpace(in.Name),
		State:   strings.TrimSpace(in.State),
		Address: in.Address,
	}
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		return r.InsertSchool(ctx, &school)
	})
	if err != nil {
		return domain.School{}, err
	}
	return school, nil
}

func (s *CatalogService) GetSchool(ctx context.Context, id string) (domain.School, error) {
	var school domain.School
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		var err error
		school, err = r.GetSchool(ctx, id)
		return err
	})
	return school, err
}

// ListSchools returns all schools, or those whose name contains search.
func (s *CatalogService) ListSchools(ctx context.Context, search string) ([]domain.School, error) {
	var schools []domain.School
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		var err error
		schools, err = r.ListSchools(ctx, strings.TrimSpace(search))
		return err
	})
	return schools, err
}
