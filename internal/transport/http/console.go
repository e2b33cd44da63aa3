package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"sigma-quiz-service/internal/domain"
)

const consoleReadLimit = 64 << 10

type inboundMessage struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	Payload   T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type markPayload struct {
	QuestionID string `json:"questionId"`
	markRequest
}

type bonusPayload struct {
	QuestionID string `json:"questionId"`
	bonusRequest
}

type roundPayload struct {
	RoundID string `json:"roundId"`
}

type quizPayload struct {
	QuizID string `json:"quizId"`
}

// ServeConsole upgrades an authenticated quiz master to a websocket and
// answers each inbound command with exactly one reply.
func (h *Handler) ServeConsole(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(consoleReadLimit)
	// Server read/write timeouts still apply to the hijacked connection.
	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Time{})

	ctx := r.Context()
	operator := "unknown"
	if claims, ok := claimsFrom(ctx); ok {
		operator = claims.Subject
	}
	log.Printf("console opened by %s", operator)
	defer log.Printf("console closed for %s", operator)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("ws read error: %v", err)
			}
			return
		}
		typ, payload, err := h.dispatch(ctx, inbound)
		var reply any = outboundMessage[any]{Type: typ, RequestID: inbound.RequestID, Payload: payload}
		if err != nil {
			status := statusFor(err)
			if status == http.StatusInternalServerError {
				log.Printf("console %s by %s failed: %v", inbound.Type, operator, err)
			}
			reply = outboundMessage[errorPayload]{
				Type:      "error",
				RequestID: inbound.RequestID,
				Payload:   errorPayload{Message: publicMessage(err, status), Status: status},
			}
		}
		if err := conn.WriteJSON(reply); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}

// dispatch runs one console command and names the reply type.
func (h *Handler) dispatch(ctx context.Context, in inboundMessage) (string, any, error) {
	switch in.Type {
	case "mark":
		var p markPayload
		if err := unmarshalPayload(in, &p); err != nil {
			return "", nil, err
		}
		if err := p.check(); err != nil {
			return "", nil, err
		}
		q, err := h.services.Marking.MarkQuestion(ctx, p.QuestionID, p.SchoolID, *p.AnsweredCorrectly)
		return "marked", q, err
	case "bonus":
		var p bonusPayload
		if err := unmarshalPayload(in, &p); err != nil {
			return "", nil, err
		}
		if p.SchoolID == "" {
			return "", nil, domain.Invalidf("schoolId is required")
		}
		q, err := h.services.Marking.AssignBonusQuestion(ctx, p.QuestionID, p.SchoolID)
		return "bonusAssigned", q, err
	case "scoreRound":
		var p roundPayload
		if err := unmarshalPayload(in, &p); err != nil {
			return "", nil, err
		}
		res, err := h.services.RoundScoring.ComputeRoundScores(ctx, p.RoundID)
		return "results", res, err
	case "scoreQuiz":
		var p quizPayload
		if err := unmarshalPayload(in, &p); err != nil {
			return "", nil, err
		}
		res, err := h.services.Scoring.ComputeQuizScores(ctx, p.QuizID)
		return "results", res, err
	case "results":
		var p quizPayload
		if err := unmarshalPayload(in, &p); err != nil {
			return "", nil, err
		}
		res, err := h.services.Scoring.FetchResults(ctx, p.QuizID)
		return "results", res, err
	}
	return "", nil, unsupportedMessage(in.Type)
}

func unmarshalPayload(in inboundMessage, dst any) error {
	if len(in.Payload) == 0 {
		return domain.Invalidf("%s payload is required", in.Type)
	}
	if err := json.Unmarshal(in.Payload, dst); err != nil {
		return domain.Invalidf("invalid %s payload", in.Type)
	}
	return nil
}

func unsupportedMessage(typ string) error {
	return domain.Invalidf("unsupported message type %q", typ)
}
