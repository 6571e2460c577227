package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"carecheck/internal/verification/ports"
)

// EmailSender is the subset of the SES v2 client the notifier uses.
type EmailSender interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESNotifier emails candidates through Amazon SES.
type SESNotifier struct {
	client EmailSender
	from   string
}

func NewSESNotifier(client EmailSender, from string) *SESNotifier {
	return &SESNotifier{client: client, from: from}
}

func (n *SESNotifier) Send(ctx context.Context, msg ports.Notification) error {
	subject, body := render(msg)
	_, err := n.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.from),
		Destination:      &types.Destination{ToAddresses: []string{msg.Recipient}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send %s: %w", msg.Type, err)
	}
	return nil
}

// LogNotifier writes notifications to the log. Used when no mail transport is
// configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, msg ports.Notification) error {
	subject, _ := render(msg)
	n.logger.InfoContext(ctx, "notification",
		"verification_id", msg.VerificationID.String(),
		"type", string(msg.Type),
		"subject", subject,
		"issues", msg.Issues,
	)
	return nil
}

func render(msg ports.Notification) (subject, body string) {
	var b strings.Builder
	switch msg.Type {
	case ports.NotificationIdentityCheckFailed:
		subject = "Action needed: we could not verify your identity document"
		b.WriteString("We were unable to verify the identity document you uploaded.\n")
	case ports.NotificationWWCCCheckFailed:
		subject = "Action needed: we could not verify your Working With Children Check"
		b.WriteString("We were unable to verify your Working With Children Check.\n")
	default:
		subject = "Action needed on your verification"
	}
	if len(msg.Issues) > 0 {
		b.WriteString("\nWhat we found:\n")
		for _, issue := range msg.Issues {
			b.WriteString("  - " + issue + "\n")
		}
	}
	b.WriteString("\nPlease sign in and resubmit your details.\n")
	return subject, b.String()
}
