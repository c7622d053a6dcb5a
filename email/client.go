// Package email sends operator-facing mail through SES. Messages go out as
// multipart text+HTML with the team's robot footer, optionally carrying a
// file attachment staged under /tmp (the only writable path on Lambda).
package email

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"ecs/config"
)

// SESAPI is the slice of *sesv2.Client the email client uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// ObjectGetter is the slice of *s3.Client used to stage attachments.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Message is one outgoing email.
type Message struct {
	Subject string
	Body    string
	To      string

	// AttachmentPath, when set, names a local file to attach. Lambdas
	// write attachments to /tmp first, usually via StageAttachment.
	AttachmentPath string
}

// Client sends email from a fixed sender address.
type Client struct {
	ses        SESAPI
	objects    ObjectGetter
	sender     string
	adminEmail string
	charset    string

	// stageDir is /tmp in production, overridden in tests.
	stageDir string
}

// New builds a Client from the shared config. The admin email from
// config.json lands in the message footer.
func New(ctx context.Context, opts *config.Options, sender string) (*Client, error) {
	cfg, err := opts.AWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return NewWithClients(sesv2.NewFromConfig(cfg), s3.NewFromConfig(cfg), sender, opts.AdminEmail), nil
}

// NewWithClients builds a Client around existing AWS clients.
func NewWithClients(ses SESAPI, objects ObjectGetter, sender, adminEmail string) *Client {
	return &Client{
		ses:        ses,
		objects:    objects,
		sender:     sender,
		adminEmail: adminEmail,
		charset:    "UTF-8",
		stageDir:   "/tmp",
	}
}

// Send builds the MIME message and sends it as raw email. Returns the SES
// message id.
func (c *Client) Send(ctx context.Context, msg Message) (string, error) {
	if strings.TrimSpace(msg.To) == "" {
		return "", errors.New("email: empty destination address")
	}

	raw, err := c.buildMIME(msg)
	if err != nil {
		return "", err
	}

	out, err := c.ses.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(c.sender),
		Destination: &sestypes.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &sestypes.EmailContent{
			Raw: &sestypes.RawMessage{Data: raw},
		},
	})
	if err != nil {
		return "", fmt.Errorf("send email to %s: %w", msg.To, err)
	}
	return aws.ToString(out.MessageId), nil
}

// StageAttachment downloads an S3 object into the stage directory and
// returns the local path, ready for Message.AttachmentPath. The local file
// keeps the object's base name.
func (c *Client) StageAttachment(ctx context.Context, bucket, key string) (string, error) {
	out, err := c.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	local := filepath.Join(c.stageDir, filepath.Base(key))
	f, err := os.Create(local)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", local, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return "", fmt.Errorf("write %s: %w", local, err)
	}
	return local, nil
}
