// Package main contains the entrypoint for the telegram-utils command line
// tool.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/telegram-utils/internal/bot"
	"github.com/edgard/telegram-utils/internal/config"
	"github.com/edgard/telegram-utils/internal/logger"
	"github.com/edgard/telegram-utils/internal/store"
)

const usage = `usage: telegram-utils [-config path] <command> [arguments]

commands:
  set-token [token]           store the bot token (prompts when omitted)
  add-client <id>=<name> ...  add clients to the registry
  register                    register a new client via password challenge
  clients                     list registered clients
  send [-mode markdown|html] [-to id,id,...] <text>
                              send a message to all (or the given) clients
  listen [-known] <text>      wait until a chat sends the given text and
                              print everything captured along the way
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires config, logger, store, and facade together, then dispatches the
// requested command. It returns the process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	db, err := store.NewDB(cfg.Store.Path)
	if err != nil {
		log.Error("Failed to open store", "path", cfg.Store.Path, "error", err)
		return 1
	}
	defer store.CloseDB(db)

	b, err := bot.New(ctx, cfg, store.New(db, log), log)
	if err != nil {
		log.Error("Failed to create bot", "error", err)
		return 1
	}

	command, args := flag.Arg(0), flag.Args()[1:]
	if err := dispatch(ctx, b, command, args); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("Interrupted")
			return 1
		}
		log.Error("Command failed", "command", command, "error", err)
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, b *bot.Bot, command string, args []string) error {
	switch command {
	case "set-token":
		token := ""
		if len(args) > 0 {
			token = args[0]
		}
		return b.SetToken(ctx, token)

	case "add-client":
		clients, err := parseClients(args)
		if err != nil {
			return err
		}
		return b.AddClients(ctx, clients)

	case "register":
		return b.Register(ctx)

	case "clients":
		for chatID, name := range b.Clients() {
			fmt.Printf("%d\t%s\n", chatID, name)
		}
		return nil

	case "send":
		return sendCommand(ctx, b, args)

	case "listen":
		return listenCommand(ctx, b, args)

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func sendCommand(ctx context.Context, b *bot.Bot, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	mode := fs.String("mode", "", "Formatting mode: markdown or html")
	to := fs.String("to", "", "Comma-separated chat ids (defaults to all clients)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("send requires a message text")
	}
	text := strings.Join(fs.Args(), " ")

	var opts []bot.SendOption
	switch *mode {
	case "":
	case "markdown":
		opts = append(opts, bot.WithParseMode(models.ParseModeMarkdown))
	case "html":
		opts = append(opts, bot.WithParseMode(models.ParseModeHTML))
	default:
		return fmt.Errorf("unknown formatting mode %q", *mode)
	}

	if *to != "" {
		var ids []int64
		for _, field := range strings.Split(*to, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chat id %q: %w", field, err)
			}
			ids = append(ids, id)
		}
		opts = append(opts, bot.WithClientIDs(ids...))
	}

	return b.SendMessage(ctx, text, opts...)
}

func listenCommand(ctx context.Context, b *bot.Bot, args []string) error {
	fs := flag.NewFlagSet("listen", flag.ContinueOnError)
	known := fs.Bool("known", false, "Only listen to registered clients")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("listen requires the expected message text")
	}
	expected := strings.Join(fs.Args(), " ")

	var opts []bot.ListenOption
	if *known {
		opts = append(opts, bot.KnownSendersOnly())
	}

	texts, err := b.Listen(ctx, func(msg *models.Message) bool {
		return msg.Text == expected
	}, opts...)
	if err != nil {
		return err
	}

	for chatID, msgs := range texts {
		for _, msg := range msgs {
			fmt.Printf("%d\t%s\n", chatID, msg)
		}
	}
	return nil
}

func parseClients(args []string) (map[int64]string, error) {
	clients := make(map[int64]string, len(args))
	for _, arg := range args {
		idPart, name, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid client %q, expected <id>=<name>", arg)
		}
		id, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q: %w", idPart, err)
		}
		clients[id] = name
	}
	return clients, nil
}
