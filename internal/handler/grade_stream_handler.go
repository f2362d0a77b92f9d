package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/service"
)

const gradeStreamPingInterval = 30 * time.Second

// GradeStreamHandler pushes a student's grade events over a websocket.
type GradeStreamHandler struct {
	events service.GradeEventService
	logger zerolog.Logger
}

// NewGradeStreamHandler constructs a grade stream handler.
func NewGradeStreamHandler(events service.GradeEventService, logger zerolog.Logger) *GradeStreamHandler {
	return &GradeStreamHandler{
		events: events,
		logger: logger.With().Str("component", "grade_stream_handler").Logger(),
	}
}

// Register binds the websocket upgrade under the provided router group.
func (h *GradeStreamHandler) Register(router fiber.Router) {
	router.Use("/grades", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/grades", websocket.New(h.stream))
}

func (h *GradeStreamHandler) stream(conn *websocket.Conn) {
	studentID, _ := conn.Locals("user_id").(uint)
	if studentID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session required"))
		_ = conn.Close()
		return
	}

	events, cancel := h.events.Subscribe(studentID)
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(gradeStreamPingInterval)
	defer ticker.Stop()

	h.logger.Info().Uint("student_id", studentID).Msg("grade stream connected")
	defer h.logger.Info().Uint("student_id", studentID).Msg("grade stream disconnected")

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
