package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Predicate decides whether an inbound message qualifies. Returning true
// acknowledges the message and ends the listen session; returning false
// rejects it and keeps listening.
type Predicate func(msg *models.Message) bool

// ListenOption configures a listen session.
type ListenOption func(*listenOptions)

type listenOptions struct {
	knownOnly bool
}

// KnownSendersOnly makes the session silently ignore messages from chats
// that are not in the client registry. Off by default so that registration
// can hear from new chats.
func KnownSendersOnly() ListenOption {
	return func(o *listenOptions) { o.knownOnly = true }
}

// Listen opens a transient polling session and feeds every inbound text
// message to accept. When accept returns true the sender gets an acceptance
// reply and the session ends; when false, a rejection reply is sent and the
// session keeps listening. There is no timeout: the session runs until a
// message is accepted or ctx is cancelled.
//
// It returns all message texts captured per chat during the session.
func (b *Bot) Listen(ctx context.Context, accept Predicate, opts ...ListenOption) (map[int64][]string, error) {
	options := &listenOptions{}
	for _, opt := range opts {
		opt(options)
	}

	b.mu.Lock()
	token := b.token
	b.mu.Unlock()

	if token == "" {
		return nil, ErrNoToken
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &session{
		accept:        accept,
		done:          cancel,
		acceptedReply: b.cfg.Telegram.AcceptedReply,
		rejectedReply: b.cfg.Telegram.RejectedReply,
		logger:        b.logger.With("component", "listen_session"),
		texts:         make(map[int64][]string),
	}
	if options.knownOnly {
		s.known = b.Clients()
	}

	api, err := b.newClient(token, s.handleUpdate)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}
	s.sender = api

	s.logger.InfoContext(ctx, "Listening for messages", "known_only", options.knownOnly)
	api.Start(sessionCtx)

	if !s.wasAccepted() {
		// The caller cancelled before any message qualified.
		return s.captured(), ctx.Err()
	}

	s.logger.InfoContext(ctx, "Listen session finished")
	return s.captured(), nil
}

// session tracks the state of one listen session. It lives from the first
// poll until a message is accepted.
type session struct {
	accept        Predicate
	done          context.CancelFunc
	sender        client
	known         map[int64]string
	acceptedReply string
	rejectedReply string
	logger        *slog.Logger

	mu       sync.Mutex
	texts    map[int64][]string
	accepted bool
}

// handleUpdate records the inbound message, applies the predicate, and
// replies. It returns true when the message was accepted and the session is
// over.
func (s *session) handleUpdate(ctx context.Context, update *models.Update) bool {
	if update.Message == nil || update.Message.Text == "" {
		return false
	}
	msg := update.Message

	if s.known != nil {
		if _, ok := s.known[msg.Chat.ID]; !ok {
			s.logger.DebugContext(ctx, "Ignoring message from unknown chat", "chat_id", msg.Chat.ID)
			return false
		}
	}

	s.mu.Lock()
	if s.accepted {
		// A qualifying message already ended the session; drop stragglers
		// still in the update queue.
		s.mu.Unlock()
		return false
	}
	s.texts[msg.Chat.ID] = append(s.texts[msg.Chat.ID], msg.Text)
	s.mu.Unlock()

	if !s.accept(msg) {
		s.reply(ctx, msg, s.rejectedReply)
		return false
	}

	s.mu.Lock()
	s.accepted = true
	s.mu.Unlock()

	s.reply(ctx, msg, s.acceptedReply)
	s.logger.InfoContext(ctx, "Message accepted", "chat_id", msg.Chat.ID)
	s.done()
	return true
}

func (s *session) reply(ctx context.Context, msg *models.Message, text string) {
	_, err := s.sender.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:          msg.Chat.ID,
		Text:            text,
		ReplyParameters: &models.ReplyParameters{MessageID: msg.ID},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to send reply", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (s *session) wasAccepted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

func (s *session) captured() map[int64][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	texts := make(map[int64][]string, len(s.texts))
	for chatID, msgs := range s.texts {
		texts[chatID] = append([]string(nil), msgs...)
	}
	return texts
}
