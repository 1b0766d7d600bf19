package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhizhi/bobi/backend/internal/model/chat"
)

var ErrSessionNotFound = errors.New("session not found")

// Completer produces one assistant reply for an ordered transcript. The
// transcript always starts with the system message and ends with the user
// message being answered.
type Completer interface {
	Complete(ctx context.Context, transcript []chat.Message) (string, error)
}

// Store persists individual turns durably.
type Store interface {
	Append(ctx context.Context, msg chat.Message) error
	ReadAll(ctx context.Context) ([]chat.Message, error)
}

// Service is the conversation controller. It owns every active session's
// in-memory transcript and is the only component that talks to both the
// store and the completion provider.
type Service struct {
	store        Store
	completer    Completer
	systemPrompt string
	loc          *time.Location
	timeout      time.Duration
	now          func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

// session holds per-conversation state. Its mutex serializes turns: no two
// turns for the same session ever run concurrently.
type session struct {
	mu         sync.Mutex
	info       chat.Session
	transcript []chat.Message
	last       time.Time
}

// nextTimestamp issues a timestamp for the session. Timestamps are strictly
// increasing within a session even if the wall clock ties or steps backward.
func (s *session) nextTimestamp(now time.Time) time.Time {
	if !now.After(s.last) {
		now = s.last.Add(time.Nanosecond)
	}
	s.last = now
	return now
}

// NewService wires the controller to its collaborators. completer may be
// nil when no LLM credentials are configured; turns then fail with
// chat.ErrCompletionFailed after the user message is persisted.
func NewService(store Store, completer Completer, systemPrompt string, loc *time.Location, completionTimeout time.Duration) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:        store,
		completer:    completer,
		systemPrompt: systemPrompt,
		loc:          loc,
		timeout:      completionTimeout,
		now:          time.Now,
		sessions:     make(map[string]*session),
	}
}

// CreateSession mints a fresh session and seeds its transcript with the
// system message. The identifier is stable for the session's lifetime.
func (s *Service) CreateSession(_ context.Context) (chat.Session, error) {
	now := s.now().In(s.loc)
	info := chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
	}

	sess := &session{
		info: info,
		transcript: []chat.Message{{
			SessionID: info.ID,
			Timestamp: now,
			Sender:    chat.SenderSystem,
			Content:   s.systemPrompt,
		}},
		last: now,
	}

	s.mu.Lock()
	s.sessions[info.ID] = sess
	s.mu.Unlock()

	log.Printf("[chat] created session=%s", info.ID)
	return info, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	sess, ok := s.lookup(sessionID)
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return sess.info, nil
}

// Transcript returns a copy of the session's ordered message sequence,
// including the leading system message.
func (s *Service) Transcript(_ context.Context, sessionID string) ([]chat.Message, error) {
	sess, ok := s.lookup(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	copied := make([]chat.Message, len(sess.transcript))
	copy(copied, sess.transcript)
	return copied, nil
}

// Turn drives exactly one request/response exchange:
// persist the user message, ask the completion provider, persist the reply.
// Blank input is a silent no-op returning (nil, nil). The user message is
// persisted before the completion call, so a provider failure leaves an
// unanswered user turn on record, never the other way round.
func (s *Service) Turn(ctx context.Context, sessionID, input string) (*chat.Message, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}

	sess, ok := s.lookup(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	userMsg := chat.Message{
		SessionID: sessionID,
		Timestamp: sess.nextTimestamp(s.now().In(s.loc)),
		Sender:    chat.SenderUser,
		Content:   input,
	}
	if err := s.store.Append(ctx, userMsg); err != nil {
		return nil, err
	}
	sess.transcript = append(sess.transcript, userMsg)

	reply, err := s.complete(ctx, sess.transcript)
	if err != nil {
		log.Printf("[chat] completion failed for session=%s: %v", sessionID, err)
		return nil, err
	}

	// The reply timestamp is taken after the completion returns and is
	// strictly later than the user timestamp, even if the clock ties.
	assistantMsg := chat.Message{
		SessionID: sessionID,
		Timestamp: sess.nextTimestamp(s.now().In(s.loc)),
		Sender:    chat.SenderAssistant,
		Content:   reply,
	}
	if err := s.store.Append(ctx, assistantMsg); err != nil {
		return nil, err
	}
	sess.transcript = append(sess.transcript, assistantMsg)

	return &assistantMsg, nil
}

func (s *Service) complete(ctx context.Context, transcript []chat.Message) (string, error) {
	if s.completer == nil {
		return "", fmt.Errorf("%w: no completion provider configured", chat.ErrCompletionFailed)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	reply, err := s.completer.Complete(ctx, transcript)
	if err != nil {
		return "", fmt.Errorf("%w: %v", chat.ErrCompletionFailed, err)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: provider returned an empty reply", chat.ErrCompletionFailed)
	}
	return reply, nil
}

// History returns every persisted message across all sessions, sorted by
// timestamp for display. The store itself makes no ordering promise.
func (s *Service) History(ctx context.Context) ([]chat.Message, error) {
	messages, err := s.store.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
	return messages, nil
}

func (s *Service) lookup(sessionID string) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	return sess, ok
}
