package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"sigma-quiz-service/internal/domain"
)

// ResultsLoader reads the results projection of a quiz straight from
// Postgres with a handful of flat queries.
type ResultsLoader struct {
	pool *pgxpool.Pool
}

func NewResultsLoader(pool *pgxpool.Pool) *ResultsLoader {
	return &ResultsLoader{pool: pool}
}

func (l *ResultsLoader) LoadResults(ctx context.Context, quizID string) (domain.QuizResults, error) {
	// One read-only snapshot keeps the queries consistent with each other.
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return domain.QuizResults{}, fmt.Errorf("begin results tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var snap domain.ResultsSnapshot
	snap.Quiz, err = loadQuiz(ctx, tx, quizID)
	if err != nil {
		return domain.QuizResults{}, err
	}
	if snap.Rounds, err = loadRounds(ctx, tx, quizID); err != nil {
		return domain.QuizResults{}, fmt.Errorf("load rounds: %w", err)
	}
	if snap.Questions, err = loadQuestions(ctx, tx, quizID); err != nil {
		return domain.QuizResults{}, fmt.Errorf("load questions: %w", err)
	}
	if snap.Registrations, err = loadRegistrations(ctx, tx, quizID); err != nil {
		return domain.QuizResults{}, fmt.Errorf("load registrations: %w", err)
	}
	if snap.Participations, err = loadParticipations(ctx, tx, quizID); err != nil {
		return domain.QuizResults{}, fmt.Errorf("load participations: %w", err)
	}
	if snap.Schools, err = loadSchools(ctx, tx, quizID); err != nil {
		return domain.QuizResults{}, fmt.Errorf("load schools: %w", err)
	}
	return domain.NewQuizResults(snap), nil
}

func loadQuiz(ctx context.Context, tx pgx.Tx, quizID string) (domain.Quiz, error) {
	var q domain.Quiz
	var status string
	err := tx.QueryRow(ctx,
		`SELECT id, year, title, description, date, status FROM quizzes WHERE id=$1`, quizID,
	).Scan(&q.ID, &q.Year, &q.Title, &q.Description, &q.Date, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	q.Status = domain.QuizStatus(status)
	return q, nil
}

func loadRounds(ctx context.Context, tx pgx.Tx, quizID string) ([]domain.Round, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, quiz_id, name, round_number, no_of_questions, no_of_schools,
		       marks_per_question, marks_per_bonus_question
		FROM rounds WHERE quiz_id=$1 ORDER BY round_number`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Round
	for rows.Next() {
		var r domain.Round
		if err := rows.Scan(&r.ID, &r.QuizID, &r.Name, &r.RoundNumber, &r.NoOfQuestions,
			&r.NoOfSchools, &r.MarksPerQuestion, &r.MarksPerBonusQuestion); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func loadQuestions(ctx context.Context, tx pgx.Tx, quizID string) ([]domain.Question, error) {
	rows, err := tx.Query(ctx, `
		SELECT q.id, q.round_id, q.question_number, q.answered_by_id, q.answered_correctly, q.bonus_to_id
		FROM questions q JOIN rounds r ON r.id = q.round_id
		WHERE r.quiz_id=$1 ORDER BY r.round_number, q.question_number`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Question
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.RoundID, &q.QuestionNumber, &q.AnsweredByID,
			&q.AnsweredCorrectly, &q.BonusToID); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func loadRegistrations(ctx context.Context, tx pgx.Tx, quizID string) ([]domain.QuizRegistration, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, quiz_id, school_id, score, position FROM quiz_registrations WHERE quiz_id=$1`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.QuizRegistration
	for rows.Next() {
		var r domain.QuizRegistration
		if err := rows.Scan(&r.ID, &r.QuizID, &r.SchoolID, &r.Score, &r.Position); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func loadParticipations(ctx context.Context, tx pgx.Tx, quizID string) ([]domain.RoundParticipation, error) {
	rows, err := tx.Query(ctx, `
		SELECT p.id, p.round_id, p.registration_id, p.score, p.position
		FROM round_participations p JOIN rounds r ON r.id = p.round_id
		WHERE r.quiz_id=$1`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.RoundParticipation
	for rows.Next() {
		var p domain.RoundParticipation
		if err := rows.Scan(&p.ID, &p.RoundID, &p.RegistrationID, &p.Score, &p.Position); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func loadSchools(ctx context.Context, tx pgx.Tx, quizID string) ([]domain.School, error) {
	rows, err := tx.Query(ctx, `
		SELECT s.id, s.name, s.state, s.address
		FROM schools s JOIN quiz_registrations g ON g.school_id = s.id
		WHERE g.quiz_id=$1`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.School
	for rows.Next() {
		var s domain.School
		if err := rows.Scan(&s.ID, &s.Name, &s.State, &s.Address); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
