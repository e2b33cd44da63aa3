package domain

import "sort"

// SchoolRef identifies the school behind a round participation.
type SchoolRef struct {
	ParticipationID string `json:"participationId"`
	SchoolID        string `json:"schoolId"`
	SchoolName      string `json:"schoolName"`
}

// QuestionResult is a question with its answerer and bonus holder resolved.
type QuestionResult struct {
	Question
	AnsweredBy *SchoolRef `json:"answeredBy,omitempty"`
	BonusTo    *SchoolRef `json:"bonusTo,omitempty"`
}

// ParticipationStanding is a school's score and position in one round.
type ParticipationStanding struct {
	RoundParticipation
	RoundNumber int    `json:"roundNumber"`
	SchoolID    string `json:"schoolId"`
	SchoolName  string `json:"schoolName"`
}

// RoundResult is a round with its question outcomes and standings.
type RoundResult struct {
	Round
	Questions      []QuestionResult        `json:"questions"`
	Participations []ParticipationStanding `json:"participations"`
}

// RegistrationStanding is a school's overall result with its per-round breakdown.
type RegistrationStanding struct {
	QuizRegistration
	School School                  `json:"school"`
	Rounds []ParticipationStanding `json:"rounds"`
}

// QuizResults is the read-only projection served to presentation layers.
type QuizResults struct {
	Quiz
	Rounds        []RoundResult          `json:"rounds"`
	Registrations []RegistrationStanding `json:"registrations"`
}

// ResultsSnapshot is the flat data a results projection is assembled from.
type ResultsSnapshot struct {
	Quiz           Quiz
	Rounds         []Round
	Questions      []Question
	Registrations  []QuizRegistration
	Participations []RoundParticipation
	Schools        []School
}

// NewQuizResults assembles the nested projection. Rows that reference
// entities missing from the snapshot are skipped.
func NewQuizResults(s ResultsSnapshot) QuizResults {
	schools := make(map[string]School, len(s.Schools))
	for _, school := range s.Schools {
		schools[school.ID] = school
	}
	registrations := make(map[string]QuizRegistration, len(s.Registrations))
	for _, reg := range s.Registrations {
		registrations[reg.ID] = reg
	}
	roundNumbers := make(map[string]int, len(s.Rounds))
	for _, round := range s.Rounds {
		roundNumbers[round.ID] = round.RoundNumber
	}

	refs := make(map[string]SchoolRef, len(s.Participations))
	standingsByRound := make(map[string][]ParticipationStanding)
	standingsByRegistration := make(map[string][]ParticipationStanding)
	for _, p := range s.Participations {
		reg, ok := registrations[p.RegistrationID]
		if !ok {
			continue
		}
		school := schools[reg.SchoolID]
		refs[p.ID] = SchoolRef{ParticipationID: p.ID, SchoolID: school.ID, SchoolName: school.Name}
		standing := ParticipationStanding{
			RoundParticipation: p,
			RoundNumber:        roundNumbers[p.RoundID],
			SchoolID:           school.ID,
			SchoolName:         school.Name,
		}
		standingsByRound[p.RoundID] = append(standingsByRound[p.RoundID], standing)
		standingsByRegistration[p.RegistrationID] = append(standingsByRegistration[p.RegistrationID], standing)
	}

	questionsByRound := make(map[string][]QuestionResult)
	for _, q := range s.Questions {
		questionsByRound[q.RoundID] = append(questionsByRound[q.RoundID], DescribeQuestion(q, refs))
	}

	out := QuizResults{
		Quiz:          s.Quiz,
		Rounds:        make([]RoundResult, 0, len(s.Rounds)),
		Registrations: make([]RegistrationStanding, 0, len(s.Registrations)),
	}
	for _, round := range s.Rounds {
		questions := questionsByRound[round.ID]
		sort.Slice(questions, func(i, j int) bool {
			return questions[i].QuestionNumber < questions[j].QuestionNumber
		})
		standings := standingsByRound[round.ID]
		sortStandings(standings)
		out.Rounds = append(out.Rounds, RoundResult{
			Round:          round,
			Questions:      nonNil(questions),
			Participations: nonNil(standings),
		})
	}
	sort.Slice(out.Rounds, func(i, j int) bool {
		return out.Rounds[i].RoundNumber < out.Rounds[j].RoundNumber
	})

	for _, reg := range s.Registrations {
		rounds := standingsByRegistration[reg.ID]
		sort.Slice(rounds, func(i, j int) bool {
			return rounds[i].RoundNumber < rounds[j].RoundNumber
		})
		out.Registrations = append(out.Registrations, RegistrationStanding{
			QuizRegistration: reg,
			School:           schools[reg.SchoolID],
			Rounds:           nonNil(rounds),
		})
	}
	sort.Slice(out.Registrations, func(i, j int) bool {
		return positionLess(out.Registrations[i].Position, out.Registrations[j].Position,
			out.Registrations[i].ID, out.Registrations[j].ID)
	})
	return out
}

// DescribeQuestion resolves the participation references of q using refs.
func DescribeQuestion(q Question, refs map[string]SchoolRef) QuestionResult {
	res := QuestionResult{Question: q}
	if q.AnsweredByID != nil {
		if ref, ok := refs[*q.AnsweredByID]; ok {
			res.AnsweredBy = &ref
		}
	}
	if q.BonusToID != nil {
		if ref, ok := refs[*q.BonusToID]; ok {
			res.BonusTo = &ref
		}
	}
	return res
}

func sortStandings(standings []ParticipationStanding) {
	sort.Slice(standings, func(i, j int) bool {
		return positionLess(standings[i].Position, standings[j].Position,
			standings[i].ID, standings[j].ID)
	})
}

// positionLess orders ranked entries by position, then unranked (position 0)
// entries. Equal positions fall back to the ID.
func positionLess(pi, pj int, idi, idj string) bool {
	if pi != pj {
		if pi == 0 {
			return false
		}
		if pj == 0 {
			return true
		}
		return pi < pj
	}
	return idi < idj
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
