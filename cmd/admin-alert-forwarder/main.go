package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"ecs/alerts"
	"ecs/config"
	"ecs/internal/logging"
)

// EBEvent is the EventBridge envelope our queues carry.
type EBEvent struct {
	DetailType string         `json:"detail-type"`
	Source     string         `json:"source"`
	Time       string         `json:"time"`
	Detail     map[string]any `json:"detail"`
}

func handler(ctx context.Context, sqsEvent events.SQSEvent) (any, error) {
	opts, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	sender := strings.TrimSpace(os.Getenv("ECS_ALERT_SENDER"))
	if sender == "" {
		sender = opts.AdminEmail
	}

	notifier, err := alerts.New(ctx, opts, sender, os.Getenv("ECS_STAGE"))
	if err != nil {
		return nil, err
	}

	sent := 0
	skipped := 0

	for _, rec := range sqsEvent.Records {
		var ev EBEvent
		if err := json.Unmarshal([]byte(rec.Body), &ev); err != nil {
			skipped++
			continue
		}
		if ev.DetailType == "" {
			skipped++
			continue
		}

		subject, message := buildMessage(ev)
		if err := notifier.Notify(ctx, subject, message); err != nil {
			log.Errorf("forwarder: notify failed for %s: %v", ev.DetailType, err)
			skipped++
			continue
		}
		sent++
	}

	return map[string]any{"ok": true, "sent": sent, "skipped": skipped}, nil
}

func buildMessage(ev EBEvent) (subject string, body string) {
	subject = fmt.Sprintf("ECS alert: %s", ev.DetailType)
	if ev.Source != "" {
		subject += fmt.Sprintf(" (%s)", ev.Source)
	}

	lines := []string{
		"ECS Event",
		"",
		fmt.Sprintf("Type: %s", ev.DetailType),
	}
	if ev.Source != "" {
		lines = append(lines, fmt.Sprintf("Source: %s", ev.Source))
	}
	if ev.Time != "" {
		lines = append(lines, fmt.Sprintf("At: %s", ev.Time))
	}
	if len(ev.Detail) > 0 {
		detail, err := json.MarshalIndent(ev.Detail, "", "  ")
		if err == nil {
			lines = append(lines, "", string(detail))
		}
	}
	lines = append(lines, "", fmt.Sprintf("ReceivedAt: %s", time.Now().UTC().Format(time.RFC3339)))

	body = strings.Join(lines, "\n")
	return subject, body
}

func main() {
	logging.Init()
	lambda.Start(handler)
}
