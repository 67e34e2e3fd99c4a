package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/domain"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/repository"
)

// EmailSink sends subscriber notifications through Amazon SES. Subscribers
// without an email address on file are skipped silently.
type EmailSink struct {
	client      *sesv2.Client
	subscribers repository.SubscriberRepository
	fromEmail   string
	fromName    string
}

func NewEmailSink(client *sesv2.Client, subscribers repository.SubscriberRepository, fromEmail, fromName string) *EmailSink {
	log.Printf("email sink enabled: from=%s", fromEmail)
	return &EmailSink{
		client:      client,
		subscribers: subscribers,
		fromEmail:   fromEmail,
		fromName:    fromName,
	}
}

func (s *EmailSink) Send(ctx context.Context, n domain.Notification) error {
	sub, err := s.subscribers.FindByCode(ctx, n.SubscriberCode)
	if err != nil {
		return fmt.Errorf("looking up subscriber %s: %w", n.SubscriberCode, err)
	}
	if !sub.Email.Valid || sub.Email.String == "" {
		return nil
	}

	subject, body := composeEmail(sub.Name, n)
	_, err = s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)),
		Destination: &types.Destination{
			ToAddresses: []string{sub.Email.String},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sending %s email to %s: %w", n.Kind, sub.Email.String, err)
	}
	return nil
}

func composeEmail(name string, n domain.Notification) (subject, body string) {
	switch n.Kind {
	case domain.EventLateSession:
		subject = "Your parking session is overdue"
		body = fmt.Sprintf("Hello %s,\n\nYour vehicle is still parked past its expected exit time (%v). "+
			"Please retrieve it or extend the session.\n", name, n.Payload["expected_exit_time"])
	case domain.EventSessionExtended:
		subject = "Parking session extended"
		body = fmt.Sprintf("Hello %s,\n\nYour parking session was extended. New expected exit: %v.\n",
			name, n.Payload["expected_exit_time"])
	case domain.EventReservationConfirmed:
		subject = "Parking reservation confirmed"
		body = fmt.Sprintf("Hello %s,\n\nYour reservation is confirmed. Confirmation code: %v, start: %v.\n",
			name, n.Payload["confirmation_code"], n.Payload["start_time"])
	case domain.EventReservationExpired:
		subject = "Parking reservation expired"
		body = fmt.Sprintf("Hello %s,\n\nYour reservation %v expired because it was not used in time.\n",
			name, n.Payload["confirmation_code"])
	default:
		subject = fmt.Sprintf("Parking notification: %s", n.Kind)
		body = fmt.Sprintf("Hello %s,\n\n%s: %v\n", name, n.Kind, n.Payload)
	}
	return subject, body
}
