package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/echoboardhq/echoboard-segments/pkg/logger"
)

// SESNotifier emails a churn digest to an admin address using AWS SES.
type SESNotifier struct {
	sesClient   *ses.Client
	fromAddress string
	toAddress   string
	logger      *slog.Logger
}

func NewSESNotifier(region, fromAddress, toAddress string, logger *slog.Logger) (*SESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESNotifier{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		toAddress:   toAddress,
		logger:      logger,
	}, nil
}

func (n *SESNotifier) Notify(ctx context.Context, segmentName string, addedIDs, removedIDs []string) error {
	subject := fmt.Sprintf("Segment %q membership changed (+%d / -%d)", segmentName, len(addedIDs), len(removedIDs))

	var body strings.Builder
	fmt.Fprintf(&body, "Membership of segment %q was updated by the evaluator.\n\n", segmentName)
	fmt.Fprintf(&body, "Added (%d):\n", len(addedIDs))
	for _, id := range addedIDs {
		fmt.Fprintf(&body, "  %s\n", id)
	}
	fmt.Fprintf(&body, "\nRemoved (%d):\n", len(removedIDs))
	for _, id := range removedIDs {
		fmt.Fprintf(&body, "  %s\n", id)
	}
	body.WriteString("\nThis is an automated message. Please do not reply to this email.\n")

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{n.toAddress},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(body.String()),
				},
			},
		},
	}

	result, err := n.sesClient.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Info("segment digest email sent",
		slog.String("segment", segmentName),
		slog.String("to", pkglogger.SanitizedEmail(n.toAddress)),
		slog.String("message_id", *result.MessageId))

	return nil
}
