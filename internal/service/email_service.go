package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"atamind/internal/models"
)

// sesAPI is the part of the SES client the email service uses
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService handles sending emails via Amazon SES
type EmailService struct {
	client     sesAPI
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	log        *zap.Logger
}

// NewEmailService creates a new email service. An empty fromEmail disables sending.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName, appBaseURL string, log *zap.Logger) (*EmailService, error) {
	log = log.Named("email")

	if fromEmail == "" {
		log.Info("email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false, log: log}, nil
	}

	// Load AWS configuration
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info("email service enabled", zap.String("from", fromEmail), zap.String("region", awsRegion))

	return &EmailService{
		client:     sesv2.NewFromConfig(cfg),
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
		enabled:    true,
		log:        log,
	}, nil
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

const emailStyle = `
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #c0392b; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #fdf8f2; padding: 30px; border-radius: 0 0 5px 5px; }
		.button { display: inline-block; padding: 12px 30px; background-color: #c0392b; color: white; text-decoration: none; border-radius: 5px; margin: 20px 0; }
		.stat { font-size: 20px; font-weight: bold; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }`

// SendWelcomeEmail greets a newly registered guardian
func (s *EmailService) SendWelcomeEmail(ctx context.Context, toEmail, toName string) error {
	if !s.enabled {
		s.log.Debug("skipping welcome email, service disabled", zap.String("to", toEmail))
		return nil
	}

	name := html.EscapeString(toName)
	subject := "AtaMind'a hoş geldiniz!"
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>%s
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>AtaMind'a hoş geldiniz!</h1>
		</div>
		<div class="content">
			<p>Merhaba %s,</p>
			<p>Çocuğunuz için değerlerimizi anlatan, kişiye özel Türk masalları hazırlamaya hazırız.</p>
			<ul>
				<li>Çocuğunuzun profilini oluşturun</li>
				<li>Ona vermek istediğiniz mesajı yazın ya da sesli kaydedin</li>
				<li>İki haftada bir gelişim raporunu inceleyin</li>
			</ul>
			<p style="text-align: center;">
				<a href="%s" class="button">Başlayın</a>
			</p>
		</div>
		<div class="footer">
			<p>Bu e-posta AtaMind tarafından otomatik gönderilmiştir. Lütfen yanıtlamayın.</p>
		</div>
	</div>
</body>
</html>
`, emailStyle, name, s.appBaseURL)

	textBody := fmt.Sprintf(`Merhaba %s,

Çocuğunuz için değerlerimizi anlatan, kişiye özel Türk masalları hazırlamaya hazırız.

- Çocuğunuzun profilini oluşturun
- Ona vermek istediğiniz mesajı yazın ya da sesli kaydedin
- İki haftada bir gelişim raporunu inceleyin

Başlayın: %s

---
Bu e-posta AtaMind tarafından otomatik gönderilmiştir. Lütfen yanıtlamayın.
`, toName, s.appBaseURL)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// SendReportEmail tells a guardian that a new biweekly report is ready
func (s *EmailService) SendReportEmail(ctx context.Context, guardian *models.Guardian, child *models.Child, report *models.BiweeklyReport) error {
	if !s.enabled {
		s.log.Debug("skipping report email, service disabled", zap.String("to", guardian.Email))
		return nil
	}

	reportLink := fmt.Sprintf("%s/children/%s/reports", s.appBaseURL, child.ID)
	period := fmt.Sprintf("%s - %s", report.PeriodStart.Format("02.01.2006"), report.PeriodEnd.Format("02.01.2006"))
	subject := fmt.Sprintf("%s için iki haftalık gelişim raporu", child.Name)

	var items, lines strings.Builder
	for _, rec := range report.RecommendedActivities {
		items.WriteString("<li>" + html.EscapeString(rec) + "</li>")
		lines.WriteString("- " + rec + "\n")
	}

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>%s
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>%s için yeni rapor</h1>
		</div>
		<div class="content">
			<p>Merhaba %s,</p>
			<p>%s dönemine ait rapor hazır.</p>
			<p>Toplam süre: <span class="stat">%.0f dk</span></p>
			<p>Tamamlanan etkinlik: <span class="stat">%d</span></p>
			<p>Katılım puanı: <span class="stat">%.1f / 100</span></p>
			<p>Önerilen etkinlikler:</p>
			<ul>%s</ul>
			<p style="text-align: center;">
				<a href="%s" class="button">Raporu görüntüle</a>
			</p>
		</div>
		<div class="footer">
			<p>Bu e-posta AtaMind tarafından otomatik gönderilmiştir. Lütfen yanıtlamayın.</p>
		</div>
	</div>
</body>
</html>
`, emailStyle, html.EscapeString(child.Name), html.EscapeString(guardian.Name), period,
		report.TotalTimeMinutes, report.TotalActivities, report.EngagementScore, items.String(), reportLink)

	textBody := fmt.Sprintf(`Merhaba %s,

%s için %s dönemine ait rapor hazır.

Toplam süre: %.0f dk
Tamamlanan etkinlik: %d
Katılım puanı: %.1f / 100

Önerilen etkinlikler:
%s
Raporu görüntüle: %s

---
Bu e-posta AtaMind tarafından otomatik gönderilmiştir. Lütfen yanıtlamayın.
`, guardian.Name, child.Name, period, report.TotalTimeMinutes, report.TotalActivities,
		report.EngagementScore, lines.String(), reportLink)

	return s.sendEmail(ctx, guardian.Email, subject, htmlBody, textBody)
}

// sendEmail sends an email using Amazon SES
func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	fields := []zap.Field{zap.String("to", toEmail), zap.String("subject", subject)}
	if result != nil && result.MessageId != nil {
		fields = append(fields, zap.String("message_id", *result.MessageId))
	}
	s.log.Info("email sent", fields...)
	return nil
}
