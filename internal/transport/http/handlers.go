package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"sigma-quiz-service/internal/app"
	"sigma-quiz-service/internal/domain"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	writeJSON(w, status, errorBody{Error: publicMessage(err, status)})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Invalidf("request body is empty")
		}
		return domain.Invalidf("malformed request body: %v", err)
	}
	return nil
}

func (h *Handler) listQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.services.Catalog.ListQuizzes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *Handler) createQuiz(w http.ResponseWriter, r *http.Request) {
	var in app.QuizInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	quiz, err := h.services.Catalog.CreateQuiz(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (h *Handler) getQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.services.Catalog.GetQuiz(r.Context(), r.PathValue("quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) updateQuizStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status domain.QuizStatus `json:"status"`
	}
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	quiz, err := h.services.Catalog.UpdateQuizStatus(r.Context(), r.PathValue("quizID"), in.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Catalog.DeleteQuiz(r.Context(), r.PathValue("quizID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) quizResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.services.Scoring.FetchResults(r.Context(), r.PathValue("quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) computeQuizScores(w http.ResponseWriter, r *http.Request) {
	results, err := h.services.Scoring.ComputeQuizScores(r.Context(), r.PathValue("quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) listRounds(w http.ResponseWriter, r *http.Request) {
	rounds, err := h.services.Rounds.ListRounds(r.Context(), r.PathValue("quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}

func (h *Handler) listRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.services.Registry.ListQuizRegistrations(r.Context(), r.PathValue("quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, regs)
}

func (h *Handler) registerSchool(w http.ResponseWriter, r *http.Request) {
	reg, err := h.services.Registry.RegisterSchoolForQuiz(r.Context(), r.PathValue("quizID"), r.PathValue("schoolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

func (h *Handler) unregisterSchool(w http.ResponseWriter, r *http.Request) {
	regs, err := h.services.Registry.UnregisterSchoolForQuiz(r.Context(), r.PathValue("quizID"), r.PathValue("schoolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, regs)
}

func (h *Handler) listSchools(w http.ResponseWriter, r *http.Request) {
	schools, err := h.services.Catalog.ListSchools(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schools)
}

func (h *Handler) createSchool(w http.ResponseWriter, r *http.Request) {
	var in app.SchoolInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	school, err := h.services.Catalog.CreateSchool(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, school)
}

func (h *Handler) getSchool(w http.ResponseWriter, r *http.Request) {
	school, err := h.services.Catalog.GetSchool(r.Context(), r.PathValue("schoolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, school)
}

func (h *Handler) createRound(w http.ResponseWriter, r *http.Request) {
	var in app.RoundInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	round, err := h.services.Rounds.CreateRound(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, round)
}

func (h *Handler) getRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.services.Rounds.GetRound(r.Context(), r.PathValue("roundID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

func (h *Handler) updateRound(w http.ResponseWriter, r *http.Request) {
	var patch app.RoundPatch
	if err := decode(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}
	round, err := h.services.Rounds.UpdateRound(r.Context(), r.PathValue("roundID"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

func (h *Handler) deleteRound(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Rounds.DeleteRound(r.Context(), r.PathValue("roundID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listRoundQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.services.Rounds.ListRoundQuestions(r.Context(), r.PathValue("roundID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) computeRoundScores(w http.ResponseWriter, r *http.Request) {
	results, err := h.services.RoundScoring.ComputeRoundScores(r.Context(), r.PathValue("roundID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) listParticipations(w http.ResponseWriter, r *http.Request) {
	parts, err := h.services.Registry.ListRoundParticipations(r.Context(), r.PathValue("roundID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, parts)
}

func (h *Handler) getParticipation(w http.ResponseWriter, r *http.Request) {
	p, err := h.services.Registry.FetchSchoolParticipationForQuizRound(r.Context(), r.PathValue("roundID"), r.PathValue("schoolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) addParticipation(w http.ResponseWriter, r *http.Request) {
	p, err := h.services.Registry.AddSchoolParticipationInRound(r.Context(), r.PathValue("roundID"), r.PathValue("schoolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) removeParticipation(w http.ResponseWriter, r *http.Request) {
	parts, err := h.services.Registry.RemoveSchoolFromQuizRound(r.Context(), r.PathValue("roundID"), r.PathValue("schoolID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, parts)
}

type markRequest struct {
	SchoolID          string `json:"schoolId"`
	AnsweredCorrectly *bool  `json:"answeredCorrectly"`
}

func (m markRequest) check() error {
	if m.SchoolID == "" {
		return domain.Invalidf("schoolId is required")
	}
	if m.AnsweredCorrectly == nil {
		return domain.Invalidf("answeredCorrectly is required")
	}
	return nil
}

func (h *Handler) markQuestion(w http.ResponseWriter, r *http.Request) {
	var in markRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	if err := in.check(); err != nil {
		writeError(w, err)
		return
	}
	q, err := h.services.Marking.MarkQuestion(r.Context(), r.PathValue("questionID"), in.SchoolID, *in.AnsweredCorrectly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type bonusRequest struct {
	SchoolID string `json:"schoolId"`
}

func (h *Handler) assignBonus(w http.ResponseWriter, r *http.Request) {
	var in bonusRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	if in.SchoolID == "" {
		writeError(w, domain.Invalidf("schoolId is required"))
		return
	}
	q, err := h.services.Marking.AssignBonusQuestion(r.Context(), r.PathValue("questionID"), in.SchoolID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}
