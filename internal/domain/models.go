package domain

import "time"

// QuizStatus tracks where a quiz is in its lifecycle.
type QuizStatus string

const (
	QuizPending    QuizStatus = "pending"
	QuizInProgress QuizStatus = "in_progress"
	QuizCompleted  QuizStatus = "completed"
)

// Valid reports whether s is a known status.
func (s QuizStatus) Valid() bool {
	switch s {
	case QuizPending, QuizInProgress, QuizCompleted:
		return true
	}
	return false
}

// Role gates mutating operations.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleQuizMaster Role = "quiz_master"
	RoleAdhoc      Role = "adhoc"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleQuizMaster, RoleAdhoc:
		return true
	}
	return false
}

// Quiz is one edition of the competition, held on a unique date.
type Quiz struct {
	ID          string     `json:"id"`
	Year        int        `json:"year"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Date        time.Time  `json:"date"`
	Status      QuizStatus `json:"status"`
}

// School is static reference data.
type School struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	State   string  `json:"state"`
	Address *string `json:"address,omitempty"`
}

// Round is one scored segment of a quiz with its own question set and capacity.
type Round struct {
	ID                    string `json:"id"`
	QuizID                string `json:"quizId"`
	Name                  string `json:"name"`
	RoundNumber           int    `json:"roundNumber"`
	NoOfQuestions         int    `json:"noOfQuestions"`
	NoOfSchools           int    `json:"noOfSchools"`
	MarksPerQuestion      int    `json:"marksPerQuestion"`
	MarksPerBonusQuestion int    `json:"marksPerBonusQuestion"`
}

// QuizRegistration enrolls a school in a quiz.
type QuizRegistration struct {
	ID       string `json:"id"`
	QuizID   string `json:"quizId"`
	SchoolID string `json:"schoolId"`
	Score    int    `json:"score"`
	Position int    `json:"position"`
}

// RoundParticipation enrolls a quiz registration in one round.
type RoundParticipation struct {
	ID             string `json:"id"`
	RoundID        string `json:"roundId"`
	RegistrationID string `json:"registrationId"`
	Score          int    `json:"score"`
	Position       int    `json:"position"`
}

// Question is a numbered slot in a round. AnsweredByID and BonusToID
// reference round participations but never own them.
type Question struct {
	ID                string  `json:"id"`
	RoundID           string  `json:"roundId"`
	QuestionNumber    int     `json:"questionNumber"`
	AnsweredByID      *string `json:"answeredById,omitempty"`
	AnsweredCorrectly *bool   `json:"answeredCorrectly,omitempty"`
	BonusToID         *string `json:"bonusToId,omitempty"`
}

// Answered reports whether a school has been recorded against the question.
func (q Question) Answered() bool {
	return q.AnsweredByID != nil
}

// AnsweredBy reports whether participationID is the recorded answerer.
func (q Question) AnsweredBy(participationID string) bool {
	return q.AnsweredByID != nil && *q.AnsweredByID == participationID
}

// BonusTo reports whether participationID holds the bonus.
func (q Question) BonusTo(participationID string) bool {
	return q.BonusToID != nil && *q.BonusToID == participationID
}

// CorrectlyAnswered is true only for an answered question marked correct.
func (q Question) CorrectlyAnswered() bool {
	return q.Answered() && q.AnsweredCorrectly != nil && *q.AnsweredCorrectly
}
