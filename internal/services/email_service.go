package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/soundbites/quizapi/pkg/logger"
)

// SecurityNotice is a change to an account that its owner should hear about
type SecurityNotice string

const (
	NoticePasswordChanged  SecurityNotice = "password_changed"
	NoticeAccountRecovered SecurityNotice = "account_recovered"
)

// Notifier delivers security notices to account owners
type Notifier interface {
	SendSecurityNotice(ctx context.Context, to string, notice SecurityNotice, at time.Time) error
}

// SESClient is the part of the SES API the notifier uses
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier sends notices using AWS SES
type SESNotifier struct {
	client      SESClient
	fromAddress string
	logger      *slog.Logger
}

// NewSESNotifier loads the default AWS credential chain for region
func NewSESNotifier(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESNotifierWithClient(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

func NewSESNotifierWithClient(client SESClient, fromAddress string, logger *slog.Logger) *SESNotifier {
	return &SESNotifier{client: client, fromAddress: fromAddress, logger: logger}
}

func noticeContent(notice SecurityNotice, at time.Time) (subject, text string) {
	when := at.UTC().Format("2006-01-02 15:04 MST")
	switch notice {
	case NoticeAccountRecovered:
		return "Your dashboard account was recovered",
			fmt.Sprintf(`Your quiz dashboard account was recovered with a recovery code on %s.
The sign-in name and password were replaced and a new recovery code was issued.

If this was not you, contact your administrator immediately.

This is an automated message. Please do not reply to this email.
`, when)
	default:
		return "Your dashboard password was changed",
			fmt.Sprintf(`The password for your quiz dashboard account was changed on %s.

If this was not you, recover the account with your recovery code and contact your administrator.

This is an automated message. Please do not reply to this email.
`, when)
	}
}

func (s *SESNotifier) SendSecurityNotice(ctx context.Context, to string, notice SecurityNotice, at time.Time) error {
	subject, textBody := noticeContent(notice, at)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.InfoContext(ctx, "security notice sent",
		slog.String("notice", string(notice)),
		slog.String("to", pkglogger.SanitizedEmail(to)),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}

// LogNotifier records notices in the log when email is disabled
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendSecurityNotice(ctx context.Context, to string, notice SecurityNotice, _ time.Time) error {
	n.logger.InfoContext(ctx, "security notice (email disabled)",
		slog.String("notice", string(notice)),
		slog.String("to", pkglogger.SanitizedIdentifier(to)))
	return nil
}
