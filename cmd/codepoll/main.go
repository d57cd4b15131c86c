package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/LeventeLantos/sms-webhook/internal/client"
	"github.com/LeventeLantos/sms-webhook/internal/logging"
)

func main() {
	_ = godotenv.Load()

	server := flag.String("server", envOr("CODEPOLL_SERVER", "http://localhost:8000"), "webhook server base URL")
	phone := flag.String("phone", "", "phone number to watch, e.g. +15551234567")
	platform := flag.String("platform", "", "claim an unused code for this platform; empty waits for a new latest code")
	timeout := flag.Duration("timeout", 2*time.Minute, "give up after this long")
	interval := flag.Duration("interval", 2*time.Second, "poll interval")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	slog.SetDefault(logging.New(os.Stderr, level, "text"))

	if *phone == "" {
		fmt.Fprintln(os.Stderr, "codepoll: -phone is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	slog.Debug("polling for code", "server", *server, "phone", *phone, "platform", *platform, "interval", interval.String())

	code, err := client.NewCodeClient(*server).WaitForCode(ctx, *phone, *platform, *interval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			fmt.Fprintf(os.Stderr, "codepoll: no code for %s within %s\n", *phone, timeout.String())
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "codepoll: %v\n", err)
		os.Exit(1)
	}

	slog.Debug("code received", "platform", code.Platform, "timestamp", code.Timestamp)
	fmt.Println(code.Code)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
