// Package alerts gets operational events in front of the admin from
// config.json. The normal path is an SNS topic the admin email subscribes
// to; when a publish fails, the notifier falls back to sending the email
// directly.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"ecs/config"
	"ecs/email"
)

// SNSAPI is the slice of *sns.Client the notifier uses.
type SNSAPI interface {
	CreateTopic(ctx context.Context, params *sns.CreateTopicInput, optFns ...func(*sns.Options)) (*sns.CreateTopicOutput, error)
	Subscribe(ctx context.Context, params *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error)
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Emailer is the fallback delivery path, satisfied by *email.Client.
type Emailer interface {
	Send(ctx context.Context, msg email.Message) (string, error)
}

// Notifier publishes admin alerts.
type Notifier struct {
	sns        SNSAPI
	email      Emailer
	adminEmail string
	topicName  string

	mu       sync.Mutex
	topicArn string
}

// New builds a Notifier from the shared config. stage separates topics per
// deployment; empty means "dev". The sender address doubles as the alert
// sender for the email fallback.
func New(ctx context.Context, opts *config.Options, sender, stage string) (*Notifier, error) {
	cfg, err := opts.AWSConfig(ctx)
	if err != nil {
		return nil, err
	}

	mailer, err := email.New(ctx, opts, sender)
	if err != nil {
		return nil, err
	}
	return NewWithClients(sns.NewFromConfig(cfg), mailer, opts.AdminEmail, stage), nil
}

// NewWithClients builds a Notifier around existing clients.
func NewWithClients(snsClient SNSAPI, mailer Emailer, adminEmail, stage string) *Notifier {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		stage = "dev"
	}
	return &Notifier{
		sns:        snsClient,
		email:      mailer,
		adminEmail: adminEmail,
		// SNS topic names must be simple (no slashes, etc.)
		topicName: fmt.Sprintf("ecs-admin-alerts-%s", stage),
	}
}

// EnsureAdminTopic creates the alert topic if needed and subscribes the
// admin email (the admin confirms the subscription once). CreateTopic is
// idempotent, so calling this on every cold start is fine. Returns the
// topic ARN.
func (n *Notifier) EnsureAdminTopic(ctx context.Context) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.topicArn != "" {
		return n.topicArn, nil
	}

	ct, err := n.sns.CreateTopic(ctx, &sns.CreateTopicInput{
		Name: aws.String(n.topicName),
	})
	if err != nil {
		return "", fmt.Errorf("create topic %s: %w", n.topicName, err)
	}
	arn := aws.ToString(ct.TopicArn)

	_, err = n.sns.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn: aws.String(arn),
		Protocol: aws.String("email"),
		Endpoint: aws.String(n.adminEmail),
	})
	if err != nil {
		return "", fmt.Errorf("subscribe %s to %s: %w", n.adminEmail, n.topicName, err)
	}

	n.topicArn = arn
	return arn, nil
}

// Notify publishes an alert to the admin topic. When the publish fails,
// the message goes out as a direct email instead; Notify only errors when
// both paths fail.
func (n *Notifier) Notify(ctx context.Context, subject, message string) error {
	arn, err := n.EnsureAdminTopic(ctx)
	if err != nil {
		log.Warnf("alerts: admin topic setup failed, falling back to email: %v", err)
	} else {
		_, err = n.sns.Publish(ctx, &sns.PublishInput{
			TopicArn: aws.String(arn),
			Subject:  aws.String(subject),
			Message:  aws.String(message),
		})
		if err == nil {
			return nil
		}
		log.Warnf("alerts: publish failed, falling back to email: %v", err)
	}

	if _, mailErr := n.email.Send(ctx, email.Message{
		Subject: subject,
		Body:    message,
		To:      n.adminEmail,
	}); mailErr != nil {
		return errors.Join(err, fmt.Errorf("email fallback: %w", mailErr))
	}
	return nil
}
