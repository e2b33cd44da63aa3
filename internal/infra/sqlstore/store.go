package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"sigma-quiz-service/internal/app"
	"sigma-quiz-service/internal/domain"
)

// Store implements app.Store on bun. Every Tx runs in one database
// transaction; Postgres additionally takes row locks for LockQuiz/LockRound.
type Store struct {
	db       *bun.DB
	lockRows bool
}

func New(db *bun.DB) *Store {
	return &Store{db: db, lockRows: db.Dialect().Name() == dialect.PG}
}

func (s *Store) Tx(ctx context.Context, fn func(ctx context.Context, r app.Repository) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &repository{db: tx, lockRows: s.lockRows})
	})
}

type repository struct {
	db       bun.IDB
	lockRows bool
}

func writeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isDuplicate(err):
		return fmt.Errorf("%s: %w", op, domain.ErrDuplicateKey)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// affected converts a zero-row write into notFound.
func affected(op string, res sql.Result, err error, notFound error) error {
	if err != nil {
		return writeErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func readErr(op string, err error, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *repository) roundsOfQuiz(quizID string) *bun.SelectQuery {
	return r.db.NewSelect().Model((*roundRow)(nil)).Column("id").Where("quiz_id = ?", quizID)
}

func (r *repository) InsertQuiz(ctx context.Context, quiz *domain.Quiz) error {
	_, err := r.db.NewInsert().Model(newQuizRow(*quiz)).Exec(ctx)
	return writeErr("insert quiz", err)
}

func (r *repository) GetQuiz(ctx context.Context, id string) (domain.Quiz, error) {
	return r.selectQuiz(ctx, id, false)
}

func (r *repository) LockQuiz(ctx context.Context, id string) (domain.Quiz, error) {
	return r.selectQuiz(ctx, id, r.lockRows)
}

func (r *repository) selectQuiz(ctx context.Context, id string, lock bool) (domain.Quiz, error) {
	row := new(quizRow)
	q := r.db.NewSelect().Model(row).Where("id = ?", id)
	if lock {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return domain.Quiz{}, readErr("get quiz", err, domain.ErrQuizNotFound)
	}
	return row.toDomain(), nil
}

func (r *repository) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	var rows []quizRow
	if err := r.db.NewSelect().Model(&rows).Order("date ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	out := make([]domain.Quiz, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *repository) UpdateQuizStatus(ctx context.Context, id string, status domain.QuizStatus) error {
	res, err := r.db.NewUpdate().Model((*quizRow)(nil)).
		Set("status = ?", string(status)).
		Where("id = ?", id).
		Exec(ctx)
	return affected("update quiz status", res, err, domain.ErrQuizNotFound)
}

func (r *repository) DeleteQuiz(ctx context.Context, id string) error {
	rounds := r.roundsOfQuiz(id)
	if _, err := r.db.NewDelete().Model((*questionRow)(nil)).Where("round_id IN (?)", rounds).Exec(ctx); err != nil {
		return fmt.Errorf("delete quiz questions: %w", err)
	}
	if _, err := r.db.NewDelete().Model((*participationRow)(nil)).Where("round_id IN (?)", rounds).Exec(ctx); err != nil {
		return fmt.Errorf("delete quiz participations: %w", err)
	}
	if _, err := r.db.NewDelete().Model((*roundRow)(nil)).Where("quiz_id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("delete quiz rounds: %w", err)
	}
	if _, err := r.db.NewDelete().Model((*registrationRow)(nil)).Where("quiz_id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("delete quiz registrations: %w", err)
	}
	res, err := r.db.NewDelete().Model((*quizRow)(nil)).Where("id = ?", id).Exec(ctx)
	return affected("delete quiz", res, err, domain.ErrQuizNotFound)
}

func (r *repository) InsertSchool(ctx context.Context, school *domain.School) error {
	row := &schoolRow{ID: school.ID, Name: school.Name, State: school.State, Address: school.Address}
	_, err := r.db.NewInsert().Model(row).Exec(ctx)
	return writeErr("insert school", err)
}

func (r *repository) GetSchool(ctx context.Context, id string) (domain.School, error) {
	row := new(schoolRow)
	if err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return domain.School{}, readErr("get school", err, domain.ErrSchoolNotFound)
	}
	return row.toDomain(), nil
}

func (r *repository) ListSchools(ctx context.Context, search string) ([]domain.School, error) {
	var rows []schoolRow
	q := r.db.NewSelect().Model(&rows).Order("name ASC", "id ASC")
	if search != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	out := make([]domain.School, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *repository) InsertRound(ctx context.Context, round *domain.Round) error {
	_, err := r.db.NewInsert().Model(newRoundRow(*round)).Exec(ctx)
	return writeErr("insert round", err)
}

func (r *repository) GetRound(ctx context.Context, id string) (domain.Round, error) {
	return r.selectRound(ctx, id, false)
}

func (r *repository) LockRound(ctx context.Context, id string) (domain.Round, error) {
	return r.selectRound(ctx, id, r.lockRows)
}

func (r *repository) selectRound(ctx context.Context, id string, lock bool) (domain.Round, error) {
	row := new(roundRow)
	q := r.db.NewSelect().Model(row).Where("id = ?", id)
	if lock {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return domain.Round{}, readErr("get round", err, domain.ErrRoundNotFound)
	}
	return row.toDomain(), nil
}

func (r *repository) ListRounds(ctx context.Context, quizID string) ([]domain.Round, error) {
	var rows []roundRow
	if err := r.db.NewSelect().Model(&rows).Where("quiz_id = ?", quizID).Order("round_number ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	out := make([]domain.Round, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *repository) UpdateRound(ctx context.Context, round domain.Round) error {
	res, err := r.db.NewUpdate().Model(newRoundRow(round)).
		ExcludeColumn("id", "quiz_id").
		WherePK().
		Exec(ctx)
	return affected("update round", res, err, domain.ErrRoundNotFound)
}

func (r *repository) DeleteRound(ctx context.Context, id string) error {
	if _, err := r.db.NewDelete().Model((*questionRow)(nil)).Where("round_id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("delete round questions: %w", err)
	}
	if _, err := r.db.NewDelete().Model((*participationRow)(nil)).Where("round_id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("delete round participations: %w", err)
	}
	res, err := r.db.NewDelete().Model((*roundRow)(nil)).Where("id = ?", id).Exec(ctx)
	return affected("delete round", res, err, domain.ErrRoundNotFound)
}

func (r *repository) InsertQuestions(ctx context.Context, questions []domain.Question) error {
	if len(questions) == 0 {
		return nil
	}
	rows := make([]questionRow, 0, len(questions))
	for _, q := range questions {
		rows = append(rows, questionRow{
			ID:                q.ID,
			RoundID:           q.RoundID,
			QuestionNumber:    q.QuestionNumber,
			AnsweredByID:      q.AnsweredByID,
			AnsweredCorrectly: q.AnsweredCorrectly,
			BonusToID:         q.BonusToID,
		})
	}
	_, err := r.db.NewInsert().Model(&rows).Exec(ctx)
	return writeErr("insert questions", err)
}

func (r *repository) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	row := new(questionRow)
	if err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return domain.Question{}, readErr("get question", err, domain.ErrQuestionNotFound)
	}
	return row.toDomain(), nil
}

func (r *repository) ListQuestions(ctx context.Context, roundID string) ([]domain.Question, error) {
	var rows []questionRow
	if err := r.db.NewSelect().Model(&rows).Where("round_id = ?", roundID).Order("question_number ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	out := make([]domain.Question, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *repository) MaxQuestionNumber(ctx context.Context, roundID string) (int, error) {
	var max sql.NullInt64
	err := r.db.NewSelect().Model((*questionRow)(nil)).
		ColumnExpr("MAX(question_number)").
		Where("round_id = ?", roundID).
		Scan(ctx, &max)
	if err != nil {
		return 0, fmt.Errorf("max question number: %w", err)
	}
	return int(max.Int64), nil
}

func (r *repository) CountRecordedAbove(ctx context.Context, roundID string, n int) (int, error) {
	count, err := r.db.NewSelect().Model((*questionRow)(nil)).
		Where("round_id = ?", roundID).
		Where("question_number > ?", n).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("answered_by_id IS NOT NULL").WhereOr("bonus_to_id IS NOT NULL")
		}).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count recorded questions: %w", err)
	}
	return count, nil
}

func (r *repository) DeleteQuestionsAbove(ctx context.Context, roundID string, n int) error {
	_, err := r.db.NewDelete().Model((*questionRow)(nil)).
		Where("round_id = ?", roundID).
		Where("question_number > ?", n).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}
	return nil
}

// MarkQuestion only writes while the question is unanswered or already
// held by participationID; a false return means the guard rejected it.
func (r *repository) MarkQuestion(ctx context.Context, questionID, participationID string, correct bool) (bool, error) {
	q := r.db.NewUpdate().Model((*questionRow)(nil)).
		Set("answered_by_id = ?", participationID).
		Set("answered_correctly = ?", correct).
		Where("id = ?", questionID).
		WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Where("answered_by_id IS NULL").WhereOr("answered_by_id = ?", participationID)
		})
	if correct {
		q = q.Set("bonus_to_id = NULL")
	}
	return guardedWrite(ctx, "mark question", q)
}

// AssignBonus only writes while the question is answered incorrectly by a
// different participation and its bonus is free or already participationID's.
func (r *repository) AssignBonus(ctx context.Context, questionID, participationID string) (bool, error) {
	q := r.db.NewUpdate().Model((*questionRow)(nil)).
		Set("bonus_to_id = ?", participationID).
		Where("id = ?", questionID).
		Where("answered_by_id IS NOT NULL").
		Where("answered_by_id <> ?", participationID).
		Where("answered_correctly = ?", false).
		WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Where("bonus_to_id IS NULL").WhereOr("bonus_to_id = ?", participationID)
		})
	return guardedWrite(ctx, "assign bonus", q)
}

func guardedWrite(ctx context.Context, op string, q *bun.UpdateQuery) (bool, error) {
	res, err := q.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

func (r *repository) InsertRegistration(ctx context.Context, reg *domain.QuizRegistration) error {
	row := &registrationRow{ID: reg.ID, QuizID: reg.QuizID, SchoolID: reg.SchoolID, Score: reg.Score, Position: reg.Position}
	_, err := r.db.NewInsert().Model(row).Exec(ctx)
	return writeErr("insert registration", err)
}

func (r *repository) GetRegistration(ctx context.Context, id string) (domain.QuizRegistration, error) {
	row := new(registrationRow)
	if err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return domain.QuizRegistration{}, readErr("get registration", err, domain.ErrRegistrationNotFound)
	}
	return row.toDomain(), nil
}

func (r *repository) FindRegistration(ctx context.Context, quizID, schoolID string) (domain.QuizRegistration, error) {
	row := new(registrationRow)
	err := r.db.NewSelect().Model(row).
		Where("quiz_id = ?", quizID).
		Where("school_id = ?", schoolID).
		Scan(ctx)
	if err != nil {
		return domain.QuizRegistration{}, readErr("find registration", err, domain.ErrRegistrationNotFound)
	}
	return row.toDomain(), nil
}

func (r *repository) ListRegistrations(ctx context.Context, quizID string) ([]domain.QuizRegistration, error) {
	var rows []registrationRow
	err := r.db.NewSelect().Model(&rows).
		Where("quiz_id = ?", quizID).
		Order("position ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	out := make([]domain.QuizRegistration, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *repository) DeleteRegistration(ctx context.Context, id string) error {
	parts := r.db.NewSelect().Model((*participationRow)(nil)).Column("id").Where("registration_id = ?", id)
	if err := r.clearReferences(ctx, parts); err != nil {
		return err
	}
	if _, err := r.db.NewDelete().Model((*participationRow)(nil)).Where("registration_id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("delete registration participations: %w", err)
	}
	res, err := r.db.NewDelete().Model((*registrationRow)(nil)).Where("id = ?", id).Exec(ctx)
	return affected("delete registration", res, err, domain.ErrRegistrationNotFound)
}

func (r *repository) UpdateRegistrationStanding(ctx context.Context, id string, score, position int) error {
	res, err := r.db.NewUpdate().Model((*registrationRow)(nil)).
		Set("score = ?", score).
		Set("position = ?", position).
		Where("id = ?", id).
		Exec(ctx)
	return affected("update registration standing", res, err, domain.ErrRegistrationNotFound)
}

func (r *repository) InsertParticipation(ctx context.Context, p *domain.RoundParticipation) error {
	row := &participationRow{ID: p.ID, RoundID: p.RoundID, RegistrationID: p.RegistrationID, Score: p.Score, Position: p.Position}
	_, err := r.db.NewInsert().Model(row).Exec(ctx)
	return writeErr("insert participation", err)
}

func (r *repository) GetParticipation(ctx context.Context, id string) (domain.RoundParticipation, error) {
	row := new(participationRow)
	if err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return domain.RoundParticipation{}, readErr("get participation", err, domain.ErrParticipationNotFound)
	}
	return row.toDomain(), nil
}

func (r *repository) FindParticipation(ctx context.Context, roundID, registrationID string) (domain.RoundParticipation, error) {
	row := new(participationRow)
	err := r.db.NewSelect().Model(row).
		Where("round_id = ?", roundID).
		Where("registration_id = ?", registrationID).
		Scan(ctx)
	if err != nil {
		return domain.RoundParticipation{}, readErr("find participation", err, domain.ErrParticipationNotFound)
	}
	return row.toDomain(), nil
}

func (r *repository) CountParticipations(ctx context.Context, roundID string) (int, error) {
	count, err := r.db.NewSelect().Model((*participationRow)(nil)).Where("round_id = ?", roundID).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count participations: %w", err)
	}
	return count, nil
}

func (r *repository) ListRoundParticipations(ctx context.Context, roundID string) ([]domain.RoundParticipation, error) {
	return r.listParticipations(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("round_id = ?", roundID)
	})
}

func (r *repository) ListQuizParticipations(ctx context.Context, quizID string) ([]domain.RoundParticipation, error) {
	return r.listParticipations(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("round_id IN (?)", r.roundsOfQuiz(quizID))
	})
}

func (r *repository) listParticipations(ctx context.Context, filter func(*bun.SelectQuery) *bun.SelectQuery) ([]domain.RoundParticipation, error) {
	var rows []participationRow
	q := r.db.NewSelect().Model(&rows).Order("position ASC", "id ASC")
	if err := filter(q).Scan(ctx); err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}
	out := make([]domain.RoundParticipation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *repository) DeleteParticipation(ctx context.Context, id string) error {
	parts := r.db.NewSelect().Model((*participationRow)(nil)).Column("id").Where("id = ?", id)
	if err := r.clearReferences(ctx, parts); err != nil {
		return err
	}
	res, err := r.db.NewDelete().Model((*participationRow)(nil)).Where("id = ?", id).Exec(ctx)
	return affected("delete participation", res, err, domain.ErrParticipationNotFound)
}

// clearReferences resets answers and bonuses held by the given participations.
// Clearing an answer also drops the bonus awarded against it.
func (r *repository) clearReferences(ctx context.Context, parts *bun.SelectQuery) error {
	_, err := r.db.NewUpdate().Model((*questionRow)(nil)).
		Set("answered_by_id = NULL").
		Set("answered_correctly = NULL").
		Set("bonus_to_id = NULL").
		Where("answered_by_id IN (?)", parts).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("clear answers: %w", err)
	}
	_, err = r.db.NewUpdate().Model((*questionRow)(nil)).
		Set("bonus_to_id = NULL").
		Where("bonus_to_id IN (?)", parts).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("clear bonuses: %w", err)
	}
	return nil
}

func (r *repository) UpdateParticipationStanding(ctx context.Context, id string, score, position int) error {
	res, err := r.db.NewUpdate().Model((*participationRow)(nil)).
		Set("score = ?", score).
		Set("position = ?", position).
		Where("id = ?", id).
		Exec(ctx)
	return affected("update participation standing", res, err, domain.ErrParticipationNotFound)
}
