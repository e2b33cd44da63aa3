package app

import (
	"context"
	"errors"

	"sigma-quiz-service/internal/domain"
)

// RegisteredSchool is a quiz registration with its school.
type RegisteredSchool struct {
	domain.QuizRegistration
	School domain.School `json:"school"`
}

// RegistryService enrolls schools into quizzes and rounds.
type RegistryService struct {
	store   Store
	results ResultsRepository
}

func NewRegistryService(store Store, results ResultsRepository) *RegistryService {
	return &RegistryService{store: store, results: results}
}

// RegisterSchoolForQuiz enrolls a school; a second registration is a conflict.
func (s *RegistryService) RegisterSchoolForQuiz(ctx context.Context, quizID, schoolID string) (domain.QuizRegistration, error) {
	reg := domain.QuizRegistration{ID: newID(), QuizID: quizID, SchoolID: schoolID}
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		if _, err := r.GetQuiz(ctx, quizID); err != nil {
			return err
		}
		school, err := r.GetSchool(ctx, schoolID)
		if err != nil {
			return err
		}
		if err := r.InsertRegistration(ctx, &reg); err != nil {
			if errors.Is(err, domain.ErrDuplicateKey) {
				return domain.Conflictf("%s is already registered for this quiz", school.Name)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.QuizRegistration{}, err
	}
	invalidate(ctx, s.results, quizID)
	return reg, nil
}

// ListQuizRegistrations returns the schools registered for a quiz.
func (s *RegistryService) ListQuizRegistrations(ctx context.Context, quizID string) ([]RegisteredSchool, error) {
	var out []RegisteredSchool
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		if _, err := r.GetQuiz(ctx, quizID); err != nil {
			return err
		}
		var err error
		out, err = registeredSchools(ctx, r, quizID)
		return err
	})
	return out, err
}

// UnregisterSchoolForQuiz removes a school from a quiz, including all of its
// round participations, and returns the remaining registrations.
func (s *RegistryService) UnregisterSchoolForQuiz(ctx context.Context, quizID, schoolID string) ([]RegisteredSchool, error) {
	var out []RegisteredSchool
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		if _, err := r.GetQuiz(ctx, quizID); err != nil {
			return err
		}
		reg, err := r.FindRegistration(ctx, quizID, schoolID)
		if err != nil {
			return err
		}
		if err := r.DeleteRegistration(ctx, reg.ID); err != nil {
			return err
		}
		out, err = registeredSchools(ctx, r, quizID)
		return err
	})
	if err != nil {
		return nil, err
	}
	invalidate(ctx, s.results, quizID)
	return out, nil
}

// AddSchoolParticipationInRound enrolls a registered school into a round
// while the round has free capacity.
func (s *RegistryService) AddSchoolParticipationInRound(ctx context.Context, roundID, schoolID string) (domain.RoundParticipation, error) {
	var (
		p     domain.RoundParticipation
		round domain.Round
	)
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		var err error
		round, err = r.LockRound(ctx, roundID)
		if err != nil {
			return err
		}
		school, err := r.GetSchool(ctx, schoolID)
		if err != nil {
			return err
		}
		reg, err := r.FindRegistration(ctx, round.QuizID, schoolID)
		if err != nil {
			return err
		}

		_, err = r.FindParticipation(ctx, roundID, reg.ID)
		switch {
		case err == nil:
			return domain.Conflictf("%s is already participating in this quiz round", school.Name)
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		count, err := r.CountParticipations(ctx, roundID)
		if err != nil {
			return err
		}
		if count >= round.NoOfSchools {
			return domain.Conflictf("round is full: it allows a maximum of %d schools", round.NoOfSchools)
		}

		p = domain.RoundParticipation{ID: newID(), RoundID: roundID, RegistrationID: reg.ID}
		if err := r.InsertParticipation(ctx, &p); err != nil {
			if errors.Is(err, domain.ErrDuplicateKey) {
				return domain.Conflictf("%s is already participating in this quiz round", school.Name)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.RoundParticipation{}, err
	}
	invalidate(ctx, s.results, round.QuizID)
	return p, nil
}

// ListRoundParticipations returns the schools taking part in a round.
func (s *RegistryService) ListRoundParticipations(ctx context.Context, roundID string) ([]domain.ParticipationStanding, error) {
	var out []domain.ParticipationStanding
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		round, err := r.GetRound(ctx, roundID)
		if err != nil {
			return err
		}
		out, err = participatingSchools(ctx, r, round)
		return err
	})
	return out, err
}

// RemoveSchoolFromQuizRound deletes the school's participation, clears the
// question references that pointed at it and returns the remaining participants.
func (s *RegistryService) RemoveSchoolFromQuizRound(ctx context.Context, roundID, schoolID string) ([]domain.ParticipationStanding, error) {
	var (
		out   []domain.ParticipationStanding
		round domain.Round
	)
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		var err error
		round, err = r.LockRound(ctx, roundID)
		if err != nil {
			return err
		}
		p, err := resolveParticipation(ctx, r, round, schoolID)
		if err != nil {
			return err
		}
		if err := r.DeleteParticipation(ctx, p.ID); err != nil {
			return err
		}
		out, err = participatingSchools(ctx, r, round)
		return err
	})
	if err != nil {
		return nil, err
	}
	invalidate(ctx, s.results, round.QuizID)
	return out, nil
}

// FetchSchoolParticipationForQuizRound resolves a school to its participation in a round.
func (s *RegistryService) FetchSchoolParticipationForQuizRound(ctx context.Context, roundID, schoolID string) (domain.RoundParticipation, error) {
	var p domain.RoundParticipation
	err := s.store.Tx(ctx, func(ctx context.Context, r Repository) error {
		round, err := r.GetRound(ctx, roundID)
		if err != nil {
			return err
		}
		p, err = resolveParticipation(ctx, r, round, schoolID)
		return err
	})
	return p, err
}

func resolveParticipation(ctx context.Context, r Repository, round domain.Round, schoolID string) (domain.RoundParticipation, error) {
	if _, err := r.GetSchool(ctx, schoolID); err != nil {
		return domain.RoundParticipation{}, err
	}
	reg, err := r.FindRegistration(ctx, round.QuizID, schoolID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.RoundParticipation{}, domain.ErrParticipationNotFound
	}
	if err != nil {
		return domain.RoundParticipation{}, err
	}
	return r.FindParticipation(ctx, round.ID, reg.ID)
}

func registeredSchools(ctx context.Context, r Repository, quizID string) ([]RegisteredSchool, error) {
	regs, err := r.ListRegistrations(ctx, quizID)
	if err != nil {
		return nil, err
	}
	out := make([]RegisteredSchool, 0, len(regs))
	for _, reg := range regs {
		school, err := r.GetSchool(ctx, reg.SchoolID)
		if err != nil {
			return nil, err
		}
		out = append(out, RegisteredSchool{QuizRegistration: reg, School: school})
	}
	return out, nil
}

func participatingSchools(ctx context.Context, r Repository, round domain.Round) ([]domain.ParticipationStanding, error) {
	parts, err := r.ListRoundParticipations(ctx, round.ID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ParticipationStanding, 0, len(parts))
	for _, p := range parts {
		ref, err := schoolRef(ctx, r, p)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.ParticipationStanding{
			RoundParticipation: p,
			RoundNumber:        round.RoundNumber,
			SchoolID:           ref.SchoolID,
			SchoolName:         ref.SchoolName,
		})
	}
	return out, nil
}

func schoolRef(ctx context.Context, r Repository, p domain.RoundParticipation) (domain.SchoolRef, error) {
	reg, err := r.GetRegistration(ctx, p.RegistrationID)
	if err != nil {
		return domain.SchoolRef{}, err
	}
	school, err := r.GetSchool(ctx, reg.SchoolID)
	if err != nil {
		return domain.SchoolRef{}, err
	}
	return domain.SchoolRef{ParticipationID: p.ID, SchoolID: school.ID, SchoolName: school.Name}, nil
}

// roundRefs maps every participation of a round to its school.
func roundRefs(ctx context.Context, r Repository, roundID string) (map[string]domain.SchoolRef, error) {
	parts, err := r.ListRoundParticipations(ctx, roundID)
	if err != nil {
		return nil, err
	}
	refs := make(map[string]domain.SchoolRef, len(parts))
	for _, p := range parts {
		ref, err := schoolRef(ctx, r, p)
		if err != nil {
			return nil, err
		}
		refs[p.ID] = ref
	}
	return refs, nil
}
