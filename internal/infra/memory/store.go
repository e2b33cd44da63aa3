package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"sigma-quiz-service/internal/app"
	"sigma-quiz-service/internal/domain"
)

// Store is an in-memory implementation of app.Store. Transactions are
// serialised by a single mutex and work on a copy of the data that replaces
// the original only when fn succeeds.
type Store struct {
	mu   sync.Mutex
	data *state
}

func NewStore() *Store {
	return &Store{data: newState()}
}

func (s *Store) Tx(ctx context.Context, fn func(ctx context.Context, r app.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.data.clone()
	if err := fn(ctx, work); err != nil {
		return err
	}
	s.data = work
	return nil
}

type state struct {
	quizzes        map[string]domain.Quiz
	schools        map[string]domain.School
	rounds         map[string]domain.Round
	questions      map[string]domain.Question
	registrations  map[string]domain.QuizRegistration
	participations map[string]domain.RoundParticipation
}

func newState() *state {
	return &state{
		quizzes:        make(map[string]domain.Quiz),
		schools:        make(map[string]domain.School),
		rounds:         make(map[string]domain.Round),
		questions:      make(map[string]domain.Question),
		registrations:  make(map[string]domain.QuizRegistration),
		participations: make(map[string]domain.RoundParticipation),
	}
}

// clone copies every map. Entity pointer fields are shared, which is safe
// because they are replaced, never written through.
func (s *state) clone() *state {
	return &state{
		quizzes:        cloneMap(s.quizzes),
		schools:        cloneMap(s.schools),
		rounds:         cloneMap(s.rounds),
		questions:      cloneMap(s.questions),
		registrations:  cloneMap(s.registrations),
		participations: cloneMap(s.participations),
	}
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func duplicate(what string) error {
	return fmt.Errorf("%s: %w", what, domain.ErrDuplicateKey)
}

func ptr[T any](v T) *T {
	return &v
}

func (s *state) InsertQuiz(_ context.Context, quiz *domain.Quiz) error {
	if _, ok := s.quizzes[quiz.ID]; ok {
		return duplicate("quizzes (id)")
	}
	for _, existing := range s.quizzes {
		if existing.Date.Equal(quiz.Date) {
			return duplicate("quizzes (date)")
		}
	}
	s.quizzes[quiz.ID] = *quiz
	return nil
}

func (s *state) GetQuiz(_ context.Context, id string) (domain.Quiz, error) {
	quiz, ok := s.quizzes[id]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (s *state) LockQuiz(ctx context.Context, id string) (domain.Quiz, error) {
	return s.GetQuiz(ctx, id)
}

func (s *state) ListQuizzes(_ context.Context) ([]domain.Quiz, error) {
	out := make([]domain.Quiz, 0, len(s.quizzes))
	for _, quiz := range s.quizzes {
		out = append(out, quiz)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *state) UpdateQuizStatus(_ context.Context, id string, status domain.QuizStatus) error {
	quiz, ok := s.quizzes[id]
	if !ok {
		return domain.ErrQuizNotFound
	}
	quiz.Status = status
	s.quizzes[id] = quiz
	return nil
}

func (s *state) DeleteQuiz(ctx context.Context, id string) error {
	if _, ok := s.quizzes[id]; !ok {
		return domain.ErrQuizNotFound
	}
	for roundID, round := range s.rounds {
		if round.QuizID == id {
			if err := s.DeleteRound(ctx, roundID); err != nil {
				return err
			}
		}
	}
	for regID, reg := range s.registrations {
		if reg.QuizID == id {
			if err := s.DeleteRegistration(ctx, regID); err != nil {
				return err
			}
		}
	}
	delete(s.quizzes, id)
	return nil
}

func (s *state) InsertSchool(_ context.Context, school *domain.School) error {
	if _, ok := s.schools[school.ID]; ok {
		return duplicate("schools (id)")
	}
	s.schools[school.ID] = *school
	return nil
}

func (s *state) GetSchool(_ context.Context, id string) (domain.School, error) {
	school, ok := s.schools[id]
	if !ok {
		return domain.School{}, domain.ErrSchoolNotFound
	}
	return school, nil
}

func (s *state) ListSchools(_ context.Context, search string) ([]domain.School, error) {
	needle := strings.ToLower(search)
	out := make([]domain.School, 0, len(s.schools))
	for _, school := range s.schools {
		if needle == "" || strings.Contains(strings.ToLower(school.Name), needle) {
			out = append(out, school)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *state) InsertRound(_ context.Context, round *domain.Round) error {
	if _, ok := s.rounds[round.ID]; ok {
		return duplicate("rounds (id)")
	}
	if s.roundNumberTaken(*round) {
		return duplicate("rounds (quiz_id, round_number)")
	}
	s.rounds[round.ID] = *round
	return nil
}

func (s *state) roundNumberTaken(round domain.Round) bool {
	for _, existing := range s.rounds {
		if existing.ID != round.ID && existing.QuizID == round.QuizID && existing.RoundNumber == round.RoundNumber {
			return true
		}
	}
	return false
}

func (s *state) GetRound(_ context.Context, id string) (domain.Round, error) {
	round, ok := s.rounds[id]
	if !ok {
		return domain.Round{}, domain.ErrRoundNotFound
	}
	return round, nil
}

func (s *state) LockRound(ctx context.Context, id string) (domain.Round, error) {
	return s.GetRound(ctx, id)
}

func (s *state) ListRounds(_ context.Context, quizID string) ([]domain.Round, error) {
	out := make([]domain.Round, 0)
	for _, round := range s.rounds {
		if round.QuizID == quizID {
			out = append(out, round)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (s *state) UpdateRound(_ context.Context, round domain.Round) error {
	if _, ok := s.rounds[round.ID]; !ok {
		return domain.ErrRoundNotFound
	}
	if s.roundNumberTaken(round) {
		return duplicate("rounds (quiz_id, round_number)")
	}
	s.rounds[round.ID] = round
	return nil
}

func (s *state) DeleteRound(_ context.Context, id string) error {
	if _, ok := s.rounds[id]; !ok {
		return domain.ErrRoundNotFound
	}
	for qid, q := range s.questions {
		if q.RoundID == id {
			delete(s.questions, qid)
		}
	}
	for pid, p := range s.participations {
		if p.RoundID == id {
			delete(s.participations, pid)
		}
	}
	delete(s.rounds, id)
	return nil
}

func (s *state) InsertQuestions(_ context.Context, questions []domain.Question) error {
	taken := make(map[string]map[int]bool)
	for _, q := range s.questions {
		if taken[q.RoundID] == nil {
			taken[q.RoundID] = make(map[int]bool)
		}
		taken[q.RoundID][q.QuestionNumber] = true
	}
	for _, q := range questions {
		if _, ok := s.questions[q.ID]; ok {
			return duplicate("questions (id)")
		}
		if taken[q.RoundID][q.QuestionNumber] {
			return duplicate("questions (round_id, question_number)")
		}
		if taken[q.RoundID] == nil {
			taken[q.RoundID] = make(map[int]bool)
		}
		taken[q.RoundID][q.QuestionNumber] = true
	}
	for _, q := range questions {
		s.questions[q.ID] = q
	}
	return nil
}

func (s *state) GetQuestion(_ context.Context, id string) (domain.Question, error) {
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (s *state) ListQuestions(_ context.Context, roundID string) ([]domain.Question, error) {
	out := make([]domain.Question, 0)
	for _, q := range s.questions {
		if q.RoundID == roundID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionNumber < out[j].QuestionNumber })
	return out, nil
}

func (s *state) MaxQuestionNumber(_ context.Context, roundID string) (int, error) {
	max := 0
	for _, q := range s.questions {
		if q.RoundID == roundID && q.QuestionNumber > max {
			max = q.QuestionNumber
		}
	}
	return max, nil
}

func (s *state) CountRecordedAbove(_ context.Context, roundID string, n int) (int, error) {
	count := 0
	for _, q := range s.questions {
		if q.RoundID == roundID && q.QuestionNumber > n && (q.AnsweredByID != nil || q.BonusToID != nil) {
			count++
		}
	}
	return count, nil
}

func (s *state) DeleteQuestionsAbove(_ context.Context, roundID string, n int) error {
	for id, q := range s.questions {
		if q.RoundID == roundID && q.QuestionNumber > n {
			delete(s.questions, id)
		}
	}
	return nil
}

func (s *state) MarkQuestion(_ context.Context, questionID, participationID string, correct bool) (bool, error) {
	q, ok := s.questions[questionID]
	if !ok {
		return false, nil
	}
	if q.Answered() && !q.AnsweredBy(participationID) {
		return false, nil
	}
	q.AnsweredByID = ptr(participationID)
	q.AnsweredCorrectly = ptr(correct)
	if correct {
		q.BonusToID = nil
	}
	s.questions[questionID] = q
	return true, nil
}

func (s *state) AssignBonus(_ context.Context, questionID, participationID string) (bool, error) {
	q, ok := s.questions[questionID]
	if !ok {
		return false, nil
	}
	if !q.Answered() || q.AnsweredBy(participationID) || q.AnsweredCorrectly == nil || *q.AnsweredCorrectly {
		return false, nil
	}
	if q.BonusToID != nil && !q.BonusTo(participationID) {
		return false, nil
	}
	q.BonusToID = ptr(participationID)
	s.questions[questionID] = q
	return true, nil
}

func (s *state) InsertRegistration(_ context.Context, reg *domain.QuizRegistration) error {
	if _, ok := s.registrations[reg.ID]; ok {
		return duplicate("quiz_registrations (id)")
	}
	for _, existing := range s.registrations {
		if existing.QuizID == reg.QuizID && existing.SchoolID == reg.SchoolID {
			return duplicate("quiz_registrations (quiz_id, school_id)")
		}
	}
	s.registrations[reg.ID] = *reg
	return nil
}

func (s *state) GetRegistration(_ context.Context, id string) (domain.QuizRegistration, error) {
	reg, ok := s.registrations[id]
	if !ok {
		return domain.QuizRegistration{}, domain.ErrRegistrationNotFound
	}
	return reg, nil
}

func (s *state) FindRegistration(_ context.Context, quizID, schoolID string) (domain.QuizRegistration, error) {
	for _, reg := range s.registrations {
		if reg.QuizID == quizID && reg.SchoolID == schoolID {
			return reg, nil
		}
	}
	return domain.QuizRegistration{}, domain.ErrRegistrationNotFound
}

func (s *state) ListRegistrations(_ context.Context, quizID string) ([]domain.QuizRegistration, error) {
	out := make([]domain.QuizRegistration, 0)
	for _, reg := range s.registrations {
		if reg.QuizID == quizID {
			out = append(out, reg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *state) DeleteRegistration(ctx context.Context, id string) error {
	if _, ok := s.registrations[id]; !ok {
		return domain.ErrRegistrationNotFound
	}
	for pid, p := range s.participations {
		if p.RegistrationID == id {
			if err := s.DeleteParticipation(ctx, pid); err != nil {
				return err
			}
		}
	}
	delete(s.registrations, id)
	return nil
}

func (s *state) UpdateRegistrationStanding(_ context.Context, id string, score, position int) error {
	reg, ok := s.registrations[id]
	if !ok {
		return domain.ErrRegistrationNotFound
	}
	reg.Score = score
	reg.Position = position
	s.registrations[id] = reg
	return nil
}

func (s *state) InsertParticipation(_ context.Context, p *domain.RoundParticipation) error {
	if _, ok := s.participations[p.ID]; ok {
		return duplicate("round_participations (id)")
	}
	for _, existing := range s.participations {
		if existing.RoundID == p.RoundID && existing.RegistrationID == p.RegistrationID {
			return duplicate("round_participations (round_id, registration_id)")
		}
	}
	s.participations[p.ID] = *p
	return nil
}

func (s *state) GetParticipation(_ context.Context, id string) (domain.RoundParticipation, error) {
	p, ok := s.participations[id]
	if !ok {
		return domain.RoundParticipation{}, domain.ErrParticipationNotFound
	}
	return p, nil
}

func (s *state) FindParticipation(_ context.Context, roundID, registrationID string) (domain.RoundParticipation, error) {
	for _, p := range s.participations {
		if p.RoundID == roundID && p.RegistrationID == registrationID {
			return p, nil
		}
	}
	return domain.RoundParticipation{}, domain.ErrParticipationNotFound
}

func (s *state) CountParticipations(_ context.Context, roundID string) (int, error) {
	count := 0
	for _, p := range s.participations {
		if p.RoundID == roundID {
			count++
		}
	}
	return count, nil
}

func (s *state) ListRoundParticipations(_ context.Context, roundID string) ([]domain.RoundParticipation, error) {
	return s.participationsWhere(func(p domain.RoundParticipation) bool { return p.RoundID == roundID }), nil
}

func (s *state) ListQuizParticipations(_ context.Context, quizID string) ([]domain.RoundParticipation, error) {
	return s.participationsWhere(func(p domain.RoundParticipation) bool {
		round, ok := s.rounds[p.RoundID]
		return ok && round.QuizID == quizID
	}), nil
}

func (s *state) participationsWhere(keep func(domain.RoundParticipation) bool) []domain.RoundParticipation {
	out := make([]domain.RoundParticipation, 0)
	for _, p := range s.participations {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *state) DeleteParticipation(_ context.Context, id string) error {
	if _, ok := s.participations[id]; !ok {
		return domain.ErrParticipationNotFound
	}
	for qid, q := range s.questions {
		changed := false
		if q.AnsweredBy(id) {
			q.AnsweredByID = nil
			q.AnsweredCorrectly = nil
			q.BonusToID = nil
			changed = true
		}
		if q.BonusTo(id) {
			q.BonusToID = nil
			changed = true
		}
		if changed {
			s.questions[qid] = q
		}
	}
	delete(s.participations, id)
	return nil
}

func (s *state) UpdateParticipationStanding(_ context.Context, id string, score, position int) error {
	p, ok := s.participations[id]
	if !ok {
		return domain.ErrParticipationNotFound
	}
	p.Score = score
	p.Position = position
	s.participations[id] = p
	return nil
}
