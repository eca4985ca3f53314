package main

import (
	"bufio"
	"chat-link/auth"
	"chat-link/client"
	"chat-link/domain"
	"chat-link/domain/event"
	"chat-link/internal"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// DisplayConfig holds presentation-only knobs, separate from the core
// configuration so they can be toggled without touching the client.
type DisplayConfig struct {
	Colours bool `envconfig:"CHATCTL_COLOURS" default:"true"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatctl error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Load configuration from .env and environment variables.
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	var display DisplayConfig
	if err := envconfig.Process("", &display); err != nil {
		return exitConfig, fmt.Errorf("display config error: %w", err)
	}
	if !display.Colours {
		color.Disable()
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Assemble the client.
	c, err := client.New(client.Options{
		Config: internal.Config{
			ServerURL:        config.ServerURL,
			LogLevel:         config.LogLevel,
			OutboxPath:       config.OutboxPath,
			EventBuffer:      config.EventBuffer,
			SendBuffer:       config.SendBuffer,
			HandshakeTimeout: config.HandshakeTimeout,
			SnapshotTimeout:  config.SnapshotTimeout,
			TypingDebounce:   config.TypingDebounce,
			TypingExpiry:     config.TypingExpiry,
		},
		Logger:      log,
		Self:        domain.Participant{UserID: config.UserID, DisplayName: config.DisplayName},
		Credentials: auth.StaticProvider(config.Token),
	})
	if err != nil {
		return exitConfig, err
	}
	defer func() {
		log.Info("Closing client...")
		_ = c.Close()
	}()

	c.Subscribe(&printer{client: c})
	c.Start(ctx)

	if err := c.Connect(ctx); err != nil {
		return exitRuntime, fmt.Errorf("connect failed: %w", err)
	}

	if config.DefaultChannelID != "" {
		scope := domain.ChannelScope(config.DefaultChannelID)
		if err := c.OpenScope(ctx, scope); err != nil {
			log.Warn("Initial scope fetch failed, retry with /open", "error", err)
		}
	}

	// 4. Interactive loop: plain lines send to the active scope, slash
	// commands inspect local state.
	go readLoop(ctx, c, config)

	<-ctx.Done()
	log.Info("Stopping chatctl...")
	return exitOK, nil
}

func readLoop(ctx context.Context, c *client.Client, config Config) {
	scanner := bufio.NewScanner(os.Stdin)
	active := domain.ChannelScope(config.DefaultChannelID)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/channels":
			renderChannels(c)
		case line == "/who":
			renderRoster(c)
		case line == "/unread":
			color.Yellow.Printf("unread total: %d\n", c.TotalUnread())
		case strings.HasPrefix(line, "/open "):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/open "))
			active = domain.ChannelScope(id)
			if err := c.OpenScope(ctx, active); err != nil {
				color.Red.Printf("open %s failed: %v\n", id, err)
			}
		default:
			c.StartTyping(ctx, active)
			if _, err := c.SendMessage(ctx, active, line, ""); err != nil {
				color.Red.Printf("send failed: %v\n", err)
			}
			c.StopTyping(ctx, active)
		}
	}
}

func renderChannels(c *client.Client) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Name", "Visibility", "Members", "Unread"})
	for _, ch := range c.Channels() {
		table.Append([]string{
			ch.ID,
			ch.Name,
			string(ch.Visibility),
			fmt.Sprintf("%d", ch.MemberCount),
			fmt.Sprintf("%d", c.Unread(ch.Scope())),
		})
	}
	table.Render()
}

func renderRoster(c *client.Client) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"User", "Status"})
	for _, entry := range c.Roster() {
		table.Append([]string{entry.UserID, string(entry.Status)})
	}
	table.Render()
}

// printer renders dispatched events as they arrive.
type printer struct {
	client *client.Client
}

func (p *printer) Consume(_ context.Context, e event.Event) error {
	switch ev := e.(type) {
	case event.Connected:
		if ev.Resumed {
			color.Green.Println("reconnected")
		} else {
			color.Green.Println("connected")
			renderChannels(p.client)
		}
	case event.Reconnecting:
		color.Yellow.Printf("reconnecting (attempt %d)...\n", ev.Attempt)
	case event.Degraded:
		color.Red.Printf("degraded: %s\n", ev.Reason)
	case event.Disconnected:
		color.Red.Println("disconnected")
	case event.MessageReceived:
		ts := ev.Message.CreatedAt.Format(time.TimeOnly)
		color.Cyan.Printf("[%s] %s: %s\n", ts, ev.Message.SenderName, ev.Message.Body)
	case event.TypingStarted:
		color.Gray.Printf("%s is typing...\n", ev.DisplayName)
	case event.UserStatusChanged:
		color.Gray.Printf("%s is now %s\n", ev.UserID, ev.Status)
	}
	return nil
}
