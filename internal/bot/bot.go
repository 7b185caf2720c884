// Package bot implements the facade over the Telegram Bot API: it keeps the
// bot credential and the recipient registry, broadcasts outbound messages,
// and waits for qualifying inbound messages during client registration.
//
// Before sending or receiving messages a token must be set with SetToken and
// at least one client added with AddClients or Register.
package bot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/telegram-utils/internal/config"
	"github.com/edgard/telegram-utils/internal/logger"
	"github.com/edgard/telegram-utils/internal/store"
)

// maxConcurrentSends bounds the broadcast fan-out so large registries do not
// trip Telegram's rate limits.
const maxConcurrentSends = 4

// client is the subset of the go-telegram/bot API the facade uses. The
// concrete implementation is *tgbot.Bot.
type client interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	Start(ctx context.Context)
}

// updateHandler receives inbound updates during a listen session and reports
// whether the update was accepted.
type updateHandler func(ctx context.Context, update *models.Update) bool

// Bot wraps the Telegram transport with a persisted credential and recipient
// registry. State is loaded from the store at construction and written
// through on every mutation. A Bot is not safe for use from multiple
// processes sharing one store file.
type Bot struct {
	cfg    *config.Config
	store  store.Store
	logger *slog.Logger
	input  io.Reader

	mu      sync.Mutex
	token   string
	clients map[int64]string

	newClient func(token string, onUpdate updateHandler) (client, error)
}

// Option configures a Bot.
type Option func(*Bot)

// WithInput sets the reader used to prompt for a token when SetToken is
// called without one. Defaults to os.Stdin.
func WithInput(r io.Reader) Option {
	return func(b *Bot) { b.input = r }
}

// New creates a Bot, loading the token and client registry from the store.
func New(ctx context.Context, cfg *config.Config, st store.Store, logger *slog.Logger, opts ...Option) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}

	token, err := st.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	clients, err := st.Clients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load clients: %w", err)
	}

	b := &Bot{
		cfg:     cfg,
		store:   st,
		logger:  logger.With("component", "bot"),
		input:   os.Stdin,
		token:   token,
		clients: clients,
	}
	b.newClient = b.defaultClient
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// defaultClient builds a real go-telegram/bot client. Send-only clients skip
// the initial getMe round trip; listening clients install the update handler
// and the update-logging middleware.
func (b *Bot) defaultClient(token string, onUpdate updateHandler) (client, error) {
	opts := []tgbot.Option{}
	if onUpdate == nil {
		opts = append(opts, tgbot.WithSkipGetMe())
	} else {
		opts = append(opts,
			tgbot.WithDefaultHandler(func(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
				onUpdate(ctx, update)
			}),
			tgbot.WithMiddlewares(logger.Middleware(b.logger)),
		)
	}
	return tgbot.New(token, opts...)
}

// SetToken stores the bot token issued by the BotFather. An empty token
// prompts for one on the configured input reader.
func (b *Bot) SetToken(ctx context.Context, token string) error {
	if token == "" {
		fmt.Fprint(os.Stderr, "Please enter your Telegram Bot token: ")
		scanner := bufio.NewScanner(b.input)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read token: %w", err)
			}
			return fmt.Errorf("failed to read token: no input")
		}
		token = strings.TrimSpace(scanner.Text())
	}

	if err := b.store.SetToken(ctx, token); err != nil {
		return err
	}

	b.mu.Lock()
	b.token = token
	b.mu.Unlock()

	b.logger.InfoContext(ctx, "Token stored")
	return nil
}

// AddClients merges the given chat id to display name pairs into the client
// registry and persists them. Calling it with an empty or nil map triggers
// the password registration flow instead.
func (b *Bot) AddClients(ctx context.Context, clients map[int64]string) error {
	if len(clients) == 0 {
		return b.Register(ctx)
	}

	if err := b.store.AddClients(ctx, clients); err != nil {
		return err
	}

	b.mu.Lock()
	for chatID, name := range clients {
		b.clients[chatID] = name
	}
	b.mu.Unlock()

	b.logger.InfoContext(ctx, "Clients added", "count", len(clients))
	return nil
}

// Clients returns a copy of the client registry.
func (b *Bot) Clients() map[int64]string {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients := make(map[int64]string, len(b.clients))
	for chatID, name := range b.clients {
		clients[chatID] = name
	}
	return clients
}

// SendOption configures a SendMessage call.
type SendOption func(*sendOptions)

type sendOptions struct {
	parseMode models.ParseMode
	clientIDs []int64
}

// WithParseMode sets the formatting mode for the outgoing message.
func WithParseMode(mode models.ParseMode) SendOption {
	return func(o *sendOptions) { o.parseMode = mode }
}

// WithClientIDs restricts the send to the given chat ids instead of the full
// registry.
func WithClientIDs(ids ...int64) SendOption {
	return func(o *sendOptions) { o.clientIDs = ids }
}

// SendMessage sends text to the given client ids, or to every registered
// client when none are specified. The broadcast is best effort: all
// recipients are attempted and per-recipient failures are joined into the
// returned error.
func (b *Bot) SendMessage(ctx context.Context, text string, opts ...SendOption) error {
	options := &sendOptions{}
	for _, opt := range opts {
		opt(options)
	}

	b.mu.Lock()
	token := b.token
	clientIDs := options.clientIDs
	if len(clientIDs) == 0 {
		for chatID := range b.clients {
			clientIDs = append(clientIDs, chatID)
		}
	}
	b.mu.Unlock()

	if token == "" {
		return ErrNoToken
	}
	if len(clientIDs) == 0 {
		return ErrNoClientIDs
	}

	api, err := b.newClient(token, nil)
	if err != nil {
		return fmt.Errorf("failed to create telegram client: %w", err)
	}

	var (
		errMu    sync.Mutex
		sendErrs []error
	)
	g := &errgroup.Group{}
	g.SetLimit(maxConcurrentSends)

	for _, chatID := range clientIDs {
		g.Go(func() error {
			_, err := api.SendMessage(ctx, &tgbot.SendMessageParams{
				ChatID:    chatID,
				Text:      text,
				ParseMode: options.parseMode,
			})
			if err != nil {
				b.logger.ErrorContext(ctx, "Failed to send message", "chat_id", chatID, "error", err)
				errMu.Lock()
				sendErrs = append(sendErrs, fmt.Errorf("chat %d: %w", chatID, err))
				errMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(sendErrs) > 0 {
		return fmt.Errorf("broadcast failed for %d of %d clients: %w",
			len(sendErrs), len(clientIDs), errors.Join(sendErrs...))
	}

	b.logger.DebugContext(ctx, "Message sent", "clients", len(clientIDs))
	return nil
}
