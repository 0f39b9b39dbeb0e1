package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/okitsu/roomchat/internal/client"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const connectTimeout = 10 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "roomchat: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	cfg, err := loadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	serverURL := flag.String("server", cfg.ServerURL, "websocket server URL (e.g. ws://localhost:8080)")
	name := flag.String("name", cfg.Name, "display name")
	room := flag.String("room", cfg.Room, "room to join")
	flag.Parse()

	if strings.TrimSpace(*name) == "" || strings.TrimSpace(*room) == "" {
		return exitConfig, fmt.Errorf("name and room are required (flags or environment)")
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.slogLevel()}))

	c, err := client.New(*serverURL, client.Options{
		Logger:      log,
		CensorWords: cfg.censorList(),
	})
	if err != nil {
		return exitConfig, err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.Connect(ctx)
	if err := waitOpen(ctx, c); err != nil {
		return exitRuntime, err
	}
	if err := c.Join(*name, *room); err != nil {
		return exitRuntime, fmt.Errorf("failed to join %q: %w", *room, err)
	}
	color.Green.Printf("joined %s as %s (type messages, /quit to exit)\n", *room, *name)

	go renderLoop(ctx, c, *name)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" {
			break
		}
		if err := c.SendMessage(text); err != nil {
			log.Warn("message not sent", "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return exitRuntime, fmt.Errorf("failed to read input: %w", err)
	}
	return exitOK, nil
}

// waitOpen bounds connection establishment. The connection itself never
// retries or times out; that policy belongs here, in the caller.
func waitOpen(ctx context.Context, c *client.Client) error {
	deadline := time.After(connectTimeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		switch c.ConnectionState() {
		case client.StateOpen:
			return nil
		case client.StateFailed:
			return fmt.Errorf("connection failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("timed out connecting")
		case <-ticker.C:
		}
	}
}

// renderLoop prints timeline additions as they arrive. Vote-only changes are
// not re-rendered; a shrinking timeline means the session ended.
func renderLoop(ctx context.Context, c *client.Client, self string) {
	printed := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Updates():
		}

		msgs := c.Messages()
		if len(msgs) < printed {
			printed = 0
			color.Yellow.Println("*** session ended ***")
		}
		for ; printed < len(msgs); printed++ {
			m := msgs[printed]
			if m.Author == self {
				color.Cyan.Printf("[you] %s\n", m.Body)
			} else {
				color.Green.Printf("[%s] %s\n", m.Author, m.Body)
			}
		}
	}
}
