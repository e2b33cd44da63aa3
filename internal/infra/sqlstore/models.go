package sqlstore

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"sigma-quiz-service/internal/domain"
)

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:qz"`

	ID          string    `bun:"id,pk"`
	Year        int       `bun:"year,notnull"`
	Title       string    `bun:"title,notnull"`
	Description *string   `bun:"description"`
	Date        time.Time `bun:"date,notnull,unique"`
	Status      string    `bun:"status,notnull"`
}

func (r quizRow) toDomain() domain.Quiz {
	return domain.Quiz{
		ID:          r.ID,
		Year:        r.Year,
		Title:       r.Title,
		Description: r.Description,
		Date:        r.Date.UTC(),
		Status:      domain.QuizStatus(r.Status),
	}
}

func newQuizRow(q domain.Quiz) *quizRow {
	return &quizRow{ID: q.ID, Year: q.Year, Title: q.Title, Description: q.Description, Date: q.Date, Status: string(q.Status)}
}

type schoolRow struct {
	bun.BaseModel `bun:"table:schools,alias:sc"`

	ID      string  `bun:"id,pk"`
	Name    string  `bun:"name,notnull"`
	State   string  `bun:"state,notnull"`
	Address *string `bun:"address"`
}

func (r schoolRow) toDomain() domain.School {
	return domain.School{ID: r.ID, Name: r.Name, State: r.State, Address: r.Address}
}

type roundRow struct {
	bun.BaseModel `bun:"table:rounds,alias:rd"`

	ID                    string `bun:"id,pk"`
	QuizID                string `bun:"quiz_id,notnull,unique:quiz_round_number"`
	Name                  string `bun:"name,notnull"`
	RoundNumber           int    `bun:"round_number,notnull,unique:quiz_round_number"`
	NoOfQuestions         int    `bun:"no_of_questions,notnull"`
	NoOfSchools           int    `bun:"no_of_schools,notnull"`
	MarksPerQuestion      int    `bun:"marks_per_question,notnull"`
	MarksPerBonusQuestion int    `bun:"marks_per_bonus_question,notnull"`
}

func (r roundRow) toDomain() domain.Round {
	return domain.Round{
		ID:                    r.ID,
		QuizID:                r.QuizID,
		Name:                  r.Name,
		RoundNumber:           r.RoundNumber,
		NoOfQuestions:         r.NoOfQuestions,
		NoOfSchools:           r.NoOfSchools,
		MarksPerQuestion:      r.MarksPerQuestion,
		MarksPerBonusQuestion: r.MarksPerBonusQuestion,
	}
}

func newRoundRow(r domain.Round) *roundRow {
	return &roundRow{
		ID:                    r.ID,
		QuizID:                r.QuizID,
		Name:                  r.Name,
		RoundNumber:           r.RoundNumber,
		NoOfQuestions:         r.NoOfQuestions,
		NoOfSchools:           r.NoOfSchools,
		MarksPerQuestion:      r.MarksPerQuestion,
		MarksPerBonusQuestion: r.MarksPerBonusQuestion,
	}
}

type registrationRow struct {
	bun.BaseModel `bun:"table:quiz_registrations,alias:qr"`

	ID       string `bun:"id,pk"`
	QuizID   string `bun:"quiz_id,notnull,unique:quiz_school"`
	SchoolID string `bun:"school_id,notnull,unique:quiz_school"`
	Score    int    `bun:"score,notnull"`
	Position int    `bun:"position,notnull"`
}

func (r registrationRow) toDomain() domain.QuizRegistration {
	return domain.QuizRegistration{ID: r.ID, QuizID: r.QuizID, SchoolID: r.SchoolID, Score: r.Score, Position: r.Position}
}

type participationRow struct {
	bun.BaseModel `bun:"table:round_participations,alias:rp"`

	ID             string `bun:"id,pk"`
	RoundID        string `bun:"round_id,notnull,unique:round_registration"`
	RegistrationID string `bun:"registration_id,notnull,unique:round_registration"`
	Score          int    `bun:"score,notnull"`
	Position       int    `bun:"position,notnull"`
}

func (r participationRow) toDomain() domain.RoundParticipation {
	return domain.RoundParticipation{ID: r.ID, RoundID: r.RoundID, RegistrationID: r.RegistrationID, Score: r.Score, Position: r.Position}
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:qn"`

	ID                string  `bun:"id,pk"`
	RoundID           string  `bun:"round_id,notnull,unique:round_question"`
	QuestionNumber    int     `bun:"question_number,notnull,unique:round_question"`
	AnsweredByID      *string `bun:"answered_by_id"`
	AnsweredCorrectly *bool   `bun:"answered_correctly"`
	BonusToID         *string `bun:"bonus_to_id"`
}

func (r questionRow) toDomain() domain.Question {
	return domain.Question{
		ID:                r.ID,
		RoundID:           r.RoundID,
		QuestionNumber:    r.QuestionNumber,
		AnsweredByID:      r.AnsweredByID,
		AnsweredCorrectly: r.AnsweredCorrectly,
		BonusToID:         r.BonusToID,
	}
}

// tables lists the models in creation order along with their foreign keys.
var tables = []struct {
	model       interface{}
	foreignKeys []string
}{
	{model: (*quizRow)(nil)},
	{model: (*schoolRow)(nil)},
	{
		model:       (*roundRow)(nil),
		foreignKeys: []string{`("quiz_id") REFERENCES "quizzes" ("id") ON DELETE CASCADE`},
	},
	{
		model: (*registrationRow)(nil),
		foreignKeys: []string{
			`("quiz_id") REFERENCES "quizzes" ("id") ON DELETE CASCADE`,
			`("school_id") REFERENCES "schools" ("id") ON DELETE CASCADE`,
		},
	},
	{
		model: (*participationRow)(nil),
		foreignKeys: []string{
			`("round_id") REFERENCES "rounds" ("id") ON DELETE CASCADE`,
			`("registration_id") REFERENCES "quiz_registrations" ("id") ON DELETE CASCADE`,
		},
	},
	{
		model: (*questionRow)(nil),
		foreignKeys: []string{
			`("round_id") REFERENCES "rounds" ("id") ON DELETE CASCADE`,
			`("answered_by_id") REFERENCES "round_participations" ("id") ON DELETE SET NULL`,
			`("bonus_to_id") REFERENCES "round_participations" ("id") ON DELETE SET NULL`,
		},
	},
}

// CreateSchema creates every table that does not exist yet.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, t := range tables {
		q := db.NewCreateTable().Model(t.model).IfNotExists()
		for _, fk := range t.foreignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// DropSchema drops the tables in reverse creation order.
func DropSchema(ctx context.Context, db bun.IDB) error {
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(tables[i].model).IfExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
