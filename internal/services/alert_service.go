package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// AWSSESAlertService delivers lockout alerts over AWS SES. The alert
// body carries the salted username hash, never the username itself, so
// a forwarded alert leaks nothing.
type AWSSESAlertService struct {
	sesClient   *ses.Client
	fromAddress string
	recipient   string
	logger      *slog.Logger
}

// NewAWSSESAlertService creates a new AWS SES alert service.
func NewAWSSESAlertService(region, fromAddress, recipient string, logger *slog.Logger) (*AWSSESAlertService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESAlertService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		recipient:   recipient,
		logger:      logger,
	}, nil
}

// SendLockoutAlert emails the administrator that an account hit its
// failure threshold. Rate limiting happens upstream in the attempt
// tracker; this sends unconditionally.
func (s *AWSSESAlertService) SendLockoutAlert(ctx context.Context, ip, usernameHash string, failures int) error {
	now := time.Now().UTC().Format(time.RFC1123)
	subject := "Login lockout triggered"
	textBody := fmt.Sprintf(
		"A login lockout was triggered.\n\n"+
			"Time:        %s\n"+
			"Source IP:   %s\n"+
			"Account ref: %s\n"+
			"Failures:    %d\n\n"+
			"The account reference is a salted hash; match it against the security log in the admin dashboard. "+
			"No action is needed unless this pattern repeats.\n",
		now, ip, usernameHash, failures)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{s.recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(textBody),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send lockout alert: %w", err)
	}
	s.logger.Info("lockout alert sent", "ip", ip)
	return nil
}

// LogOnlyAlertService stands in when email is disabled: alerts land in
// the structured log instead of a mailbox.
type LogOnlyAlertService struct {
	logger *slog.Logger
}

func NewLogOnlyAlertService(logger *slog.Logger) *LogOnlyAlertService {
	return &LogOnlyAlertService{logger: logger}
}

func (s *LogOnlyAlertService) SendLockoutAlert(_ context.Context, ip, usernameHash string, failures int) error {
	s.logger.Warn("lockout alert",
		"ip", ip,
		"username_hash", usernameHash,
		"failures", failures,
	)
	return nil
}
