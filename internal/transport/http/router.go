package http

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"sigma-quiz-service/internal/app"
	"sigma-quiz-service/internal/auth"
	"sigma-quiz-service/internal/domain"
)

var (
	managers  = []domain.Role{domain.RoleSuperAdmin, domain.RoleQuizMaster}
	operators = []domain.Role{domain.RoleSuperAdmin, domain.RoleQuizMaster, domain.RoleAdhoc}
	admins    = []domain.Role{domain.RoleSuperAdmin}
)

// Handler exposes the quiz engine over JSON HTTP and the console websocket.
type Handler struct {
	services *app.Services
	issuer   *auth.Issuer
	upgrader websocket.Upgrader
}

func NewHandler(services *app.Services, issuer *auth.Issuer) *Handler {
	return &Handler{
		services: services,
		issuer:   issuer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Routes registers every endpoint. Reads are public, writes require a role.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /quizzes", h.listQuizzes)
	mux.HandleFunc("POST /quizzes", h.require(managers, h.createQuiz))
	mux.HandleFunc("GET /quizzes/{quizID}", h.getQuiz)
	mux.HandleFunc("PATCH /quizzes/{quizID}/status", h.require(managers, h.updateQuizStatus))
	mux.HandleFunc("DELETE /quizzes/{quizID}", h.require(managers, h.deleteQuiz))
	mux.HandleFunc("GET /quizzes/{quizID}/results", h.quizResults)
	mux.HandleFunc("POST /quizzes/{quizID}/compute-scores", h.require(managers, h.computeQuizScores))
	mux.HandleFunc("GET /quizzes/{quizID}/rounds", h.listRounds)
	mux.HandleFunc("GET /quizzes/{quizID}/schools", h.listRegistrations)
	mux.HandleFunc("POST /quizzes/{quizID}/schools/{schoolID}", h.require(operators, h.registerSchool))
	mux.HandleFunc("DELETE /quizzes/{quizID}/schools/{schoolID}", h.require(operators, h.unregisterSchool))

	mux.HandleFunc("GET /schools", h.listSchools)
	mux.HandleFunc("POST /schools", h.require(operators, h.createSchool))
	mux.HandleFunc("GET /schools/{schoolID}", h.getSchool)

	mux.HandleFunc("POST /rounds", h.require(operators, h.createRound))
	mux.HandleFunc("GET /rounds/{roundID}", h.getRound)
	mux.HandleFunc("PATCH /rounds/{roundID}", h.require(managers, h.updateRound))
	mux.HandleFunc("DELETE /rounds/{roundID}", h.require(admins, h.deleteRound))
	mux.HandleFunc("GET /rounds/{roundID}/questions", h.listRoundQuestions)
	mux.HandleFunc("POST /rounds/{roundID}/compute-scores", h.require(managers, h.computeRoundScores))
	mux.HandleFunc("GET /rounds/{roundID}/schools", h.listParticipations)
	mux.HandleFunc("GET /rounds/{roundID}/schools/{schoolID}", h.getParticipation)
	mux.HandleFunc("POST /rounds/{roundID}/schools/{schoolID}", h.require(operators, h.addParticipation))
	mux.HandleFunc("DELETE /rounds/{roundID}/schools/{schoolID}", h.require(operators, h.removeParticipation))

	mux.HandleFunc("PUT /questions/{questionID}/mark", h.require(managers, h.markQuestion))
	mux.HandleFunc("PUT /questions/{questionID}/bonus", h.require(managers, h.assignBonus))

	mux.HandleFunc("GET /ws/console", h.require(managers, h.ServeConsole))

	return logRequests(mux)
}

type claimsKey struct{}

// claimsFrom returns the verified claims of an authenticated request.
func claimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok
}

func (h *Handler) require(roles []domain.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := auth.FromRequest(r)
		if err != nil {
			writeError(w, err)
			return
		}
		claims, err := h.issuer.Verify(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		if !claims.Has(roles...) {
			writeError(w, auth.ErrForbidden)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	}
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrNoToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// publicMessage hides internal failures from callers.
func publicMessage(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}
