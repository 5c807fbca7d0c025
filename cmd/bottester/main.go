// Command bottester replays a scripted conversation and a set of open
// questions against a running bot and prints the replies.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	baseURL := flag.String("url", "http://localhost:5000", "bot base URL (API server, or Rasa server with -target=rasa)")
	target := flag.String("target", targetAPI, "endpoint style: api or rasa")
	user := flag.String("user", "1", "user ID (api) or sender ID (rasa)")
	delay := flag.Duration("delay", time.Second, "pause between messages")
	timeout := flag.Duration("timeout", 35*time.Second, "per-request timeout")
	flag.Parse()

	if *target != targetAPI && *target != targetRasa {
		log.Fatalf("unknown target %q", *target)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tester := &botTester{
		baseURL: strings.TrimRight(*baseURL, "/"),
		target:  *target,
		userID:  *user,
		client:  &http.Client{Timeout: *timeout},
		out:     os.Stdout,
	}

	fmt.Println("\n⏳ Chạy test bot...")
	failures := tester.conversation(ctx, *delay)
	failures += tester.fallback(ctx, 2*(*delay))

	fmt.Println("\n" + strings.Repeat("=", 60))
	if failures > 0 {
		fmt.Printf("❌ %d tin nhắn không có phản hồi\n", failures)
		fmt.Println(strings.Repeat("=", 60))
		os.Exit(1)
	}
	fmt.Println("✅ TEST HOÀN THÀNH")
	fmt.Println(strings.Repeat("=", 60))
}
