package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Targets the tester can talk to.
const (
	targetAPI  = "api"
	targetRasa = "rasa"
)

type scenario struct {
	message string
	label   string
}

var conversationFlow = []scenario{
	{"xin chào", "Greeting"},
	{"Unigrow là gì", "Product Info"},
	{"tôi 20 tuổi", "Age Input"},
	{"chiều cao của tôi 160 cm", "Height Input"},
	{"muốn cao 175 cm", "Target Height"},
	{"giá bao nhiêu", "Price Query"},
	{"tôi muốn mua", "Purchase Intent"},
	{"tạm biệt", "Goodbye"},
}

var fallbackQuestions = []string{
	"Làm sao tôi có thể tăng chiều cao nhanh nhất?",
	"Unigrow có phù hợp cho người lớn tuổi không?",
	"Kết hợp Unigrow với những gì để hiệu quả tốt nhất?",
}

// botTester sends messages either to the server's /api/chat endpoint or to a
// Rasa REST channel and returns the bot's texts.
type botTester struct {
	baseURL string
	target  string
	userID  string
	client  *http.Client
	out     io.Writer
}

func (b *botTester) send(ctx context.Context, message string) ([]string, error) {
	var (
		url     string
		payload interface{}
	)
	switch b.target {
	case targetRasa:
		url = b.baseURL + "/webhooks/rest/webhook"
		payload = map[string]string{"sender": b.userID, "message": message}
	default:
		url = b.baseURL + "/api/chat"
		payload = map[string]string{"user_id": b.userID, "message": message}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if b.target == targetRasa {
		var msgs []struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		texts := make([]string, 0, len(msgs))
		for _, m := range msgs {
			texts = append(texts, m.Text)
		}
		return texts, nil
	}

	var out struct {
		BotResponse string `json:"bot_response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return []string{out.BotResponse}, nil
}

// conversation runs the scripted flow and returns the number of turns
// without any reply.
func (b *botTester) conversation(ctx context.Context, delay time.Duration) int {
	fmt.Fprintln(b.out, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(b.out, "🤖 BOT CONVERSATION TEST")
	fmt.Fprintln(b.out, strings.Repeat("=", 60)+"\n")

	failures := 0
	for _, sc := range conversationFlow {
		fmt.Fprintf(b.out, "📝 [%s] User: %s\n", sc.label, sc.message)
		if !b.exchange(ctx, sc.message, "🤖 Bot") {
			failures++
		}
		fmt.Fprintln(b.out, strings.Repeat("-", 60))
		sleep(ctx, delay)
	}
	return failures
}

// fallback sends open questions meant for the language model.
func (b *botTester) fallback(ctx context.Context, delay time.Duration) int {
	fmt.Fprintln(b.out, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(b.out, "🧠 LLM FALLBACK TEST")
	fmt.Fprintln(b.out, strings.Repeat("=", 60)+"\n")

	failures := 0
	for _, q := range fallbackQuestions {
		fmt.Fprintf(b.out, "❓ Question: %s\n", q)
		if !b.exchange(ctx, q, "🤖 Response") {
			failures++
		}
		fmt.Fprintln(b.out)
		sleep(ctx, delay)
	}
	return failures
}

func (b *botTester) exchange(ctx context.Context, message, prefix string) bool {
	texts, err := b.send(ctx, message)
	if err != nil {
		fmt.Fprintf(b.out, "❌ Error: %v\n", err)
		return false
	}
	if len(texts) == 0 {
		fmt.Fprintln(b.out, "❌ No response from bot")
		return false
	}
	for _, t := range texts {
		if t == "" {
			t = "N/A"
		}
		fmt.Fprintf(b.out, "%s: %s\n", prefix, t)
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
