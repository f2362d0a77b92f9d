package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/dto"
)

const gradeEventBufferSize = 16

// GradeEventService fans grade events out to websocket subscribers, in-process
// listeners and, when configured, other nodes over NATS.
type GradeEventService interface {
	Publish(ctx context.Context, event dto.GradeEvent)
	Subscribe(studentID uint) (<-chan dto.GradeEvent, func())
	AddListener(fn func(dto.GradeEvent))
	Start(ctx context.Context)
}

type gradeEventService struct {
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	broker      *gradeBroker
	nodeID      string

	listenersMu sync.RWMutex
	listeners   []func(dto.GradeEvent)
}

type gradeEnvelope struct {
	Source string         `json:"source"`
	Event  dto.GradeEvent `json:"event"`
	SentAt time.Time      `json:"sent_at"`
}

type gradeBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.GradeEvent]struct{}
}

// NewGradeEventService constructs the event fan-out. natsConn may be nil.
func NewGradeEventService(natsConn *nats.Conn, channelBase string, logger zerolog.Logger) GradeEventService {
	subject := ""
	if channelBase != "" {
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".grades"
	}

	return &gradeEventService{
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "grade_event_service").Logger(),
		broker: &gradeBroker{
			subscribers: make(map[uint]map[chan dto.GradeEvent]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *gradeEventService) Start(ctx context.Context) {
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *gradeEventService) Publish(ctx context.Context, event dto.GradeEvent) {
	if event.RecordedAt.IsZero() {
		event.RecordedAt = time.Now().UTC()
	}

	s.deliver(event)

	if s.nats == nil || s.natsSubject == "" {
		return
	}

	payload, err := json.Marshal(gradeEnvelope{Source: s.nodeID, Event: event, SentAt: time.Now().UTC()})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode grade event")
		return
	}
	if err := s.nats.Publish(s.natsSubject, payload); err != nil {
		s.logger.Warn().Err(err).Uint("assignment_id", event.AssignmentID).Msg("failed to publish grade event")
	}
}

func (s *gradeEventService) Subscribe(studentID uint) (<-chan dto.GradeEvent, func()) {
	channel := make(chan dto.GradeEvent, gradeEventBufferSize)
	s.broker.subscribe(studentID, channel)

	var once sync.Once
	cleanup := func() {
		once.Do(func() { s.broker.unsubscribe(studentID, channel) })
	}

	return channel, cleanup
}

func (s *gradeEventService) AddListener(fn func(dto.GradeEvent)) {
	if fn == nil {
		return
	}
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenersMu.Unlock()
}

func (s *gradeEventService) deliver(event dto.GradeEvent) {
	s.listenersMu.RLock()
	listeners := append([]func(dto.GradeEvent){}, s.listeners...)
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(event)
	}
	s.broker.broadcast(event.StudentID, event)
}

func (s *gradeEventService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to grade events subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain grade events subscription")
		}
	}()
}

func (s *gradeEventService) handleEvent(payload []byte) {
	var envelope gradeEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid grade event payload")
		return
	}

	if envelope.Source == s.nodeID {
		return
	}

	s.deliver(envelope.Event)
}

func (b *gradeBroker) subscribe(studentID uint, ch chan dto.GradeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[studentID]; !exists {
		b.subscribers[studentID] = make(map[chan dto.GradeEvent]struct{})
	}
	b.subscribers[studentID][ch] = struct{}{}
}

func (b *gradeBroker) unsubscribe(studentID uint, ch chan dto.GradeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[studentID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, studentID)
		}
	}
}

func (b *gradeBroker) broadcast(studentID uint, event dto.GradeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[studentID] {
		select {
		case ch <- event:
		default:
		}
	}
}
