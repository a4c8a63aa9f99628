package notifications

import (
	"fmt"
	"log"
	"strings"
	"time"

	config "github.com/anjiri1684/smartscore/configs"
	"github.com/go-resty/resty/v2"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const brevoBaseURL = "https://api.brevo.com/v3"

// Mailer delivers one transactional HTML email.
type Mailer interface {
	Send(toEmail, toName, subject, htmlContent string) error
}

// EmailClient is nil when no provider is configured; sends are skipped then.
var EmailClient Mailer

type BrevoService struct {
	SenderEmail string
	SenderName  string
	client      *resty.Client
}

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

func NewBrevoService(apiKey, baseURL, senderEmail, senderName string) *BrevoService {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetHeader("accept", "application/json").
		SetHeader("api-key", apiKey)
	return &BrevoService{SenderEmail: senderEmail, SenderName: senderName, client: client}
}

func recipientName(toEmail, toName string) string {
	if toName != "" {
		return toName
	}
	return toEmail[:strings.Index(toEmail, "@")]
}

func validRecipient(toEmail string) error {
	if toEmail == "" || !strings.Contains(toEmail, "@") {
		return fmt.Errorf("invalid recipient email: %s", toEmail)
	}
	return nil
}

func (s *BrevoService) Send(toEmail, toName, subject, htmlContent string) error {
	if err := validRecipient(toEmail); err != nil {
		return err
	}

	payload := brevoPayload{
		Sender:      map[string]string{"name": s.SenderName, "email": s.SenderEmail},
		To:          []map[string]string{{"email": toEmail, "name": recipientName(toEmail, toName)}},
		Subject:     subject,
		HTMLContent: htmlContent,
	}

	resp, err := s.client.R().
		SetBody(payload).
		Post("/smtp/email")
	if err != nil {
		return fmt.Errorf("failed to send request: %v", err)
	}
	if resp.StatusCode() != 201 {
		log.Printf("Brevo API error: Status %d, Body: %s", resp.StatusCode(), resp.String())
		return fmt.Errorf("failed to send email via Brevo: %s", resp.String())
	}
	return nil
}

type SendGridService struct {
	SenderEmail string
	SenderName  string
	client      *sendgrid.Client
}

func NewSendGridService(apiKey, senderEmail, senderName string) *SendGridService {
	return &SendGridService{
		SenderEmail: senderEmail,
		SenderName:  senderName,
		client:      sendgrid.NewSendClient(apiKey),
	}
}

func (s *SendGridService) Send(toEmail, toName, subject, htmlContent string) error {
	if err := validRecipient(toEmail); err != nil {
		return err
	}

	from := mail.NewEmail(s.SenderName, s.SenderEmail)
	to := mail.NewEmail(recipientName(toEmail, toName), toEmail)
	message := mail.NewSingleEmail(from, subject, to, "", htmlContent)

	resp, err := s.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send request: %v", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("failed to send email via SendGrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// InitEmailService picks the provider named by EMAIL_PROVIDER (brevo by
// default) and leaves EmailClient nil when it is not fully configured.
func InitEmailService() {
	senderEmail := config.Config("EMAIL_SENDER")
	senderName := config.ConfigDefault("EMAIL_SENDER_NAME", "SmartScore")
	provider := strings.ToLower(config.ConfigDefault("EMAIL_PROVIDER", "brevo"))

	EmailClient = nil
	if senderEmail == "" {
		log.Println("⚠️ Email service not configured. Missing EMAIL_SENDER.")
		return
	}

	switch provider {
	case "sendgrid":
		apiKey := config.Config("SENDGRID_API_KEY")
		if apiKey == "" {
			log.Println("⚠️ Email service not configured. Missing SENDGRID_API_KEY.")
			return
		}
		EmailClient = NewSendGridService(apiKey, senderEmail, senderName)
	case "brevo":
		apiKey := config.Config("BREVO_API_KEY")
		if apiKey == "" {
			log.Println("⚠️ Email service not configured. Missing BREVO_API_KEY.")
			return
		}
		EmailClient = NewBrevoService(apiKey, brevoBaseURL, senderEmail, senderName)
	default:
		log.Printf("⚠️ Unknown EMAIL_PROVIDER %q, email disabled.", provider)
		return
	}
	log.Printf("✅ Email service initialized with %s.", provider)
}

func SendEmail(toName, toEmail, subject, htmlContent string) {
	if EmailClient == nil {
		log.Println("Email client not initialized, skipping email send.")
		return
	}

	if err := EmailClient.Send(toEmail, toName, subject, htmlContent); err != nil {
		log.Printf("🔥 Failed to send email to %s: %v", toEmail, err)
		return
	}
	log.Printf("✅ Email sent successfully to %s", toEmail)
}
