// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/spacevox/spacevox-backend/internal/config"
	"github.com/spacevox/spacevox-backend/internal/models"
)

type NotificationService struct {
	db     *gorm.DB
	config *config.Config
}

type EmailTemplate struct {
	Subject string
	Body    string
}

func NewNotificationService(db *gorm.DB, config *config.Config) *NotificationService {
	return &NotificationService{
		db:     db,
		config: config,
	}
}

// Authentication notifications
func (s *NotificationService) SendWelcomeEmail(user *models.User) error {
	template := s.getEmailTemplate("welcome")

	data := map[string]interface{}{
		"DisplayName":  user.DisplayName,
		"PlatformName": "SpaceVox",
		"LoginURL":     fmt.Sprintf("%s/login", s.config.Frontend.BaseURL),
	}

	subject := "Welcome to SpaceVox"
	body, err := s.renderTemplate(template.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(user.Email, subject, body)
}

// Queue notifications
func (s *NotificationService) SendQueueJoinedNotification(product *models.Product, interest *models.BuyerInterest) error {
	if interest.Email == "" {
		// Phone-only buyers get SMS via the opt-in flag; there is no SMS
		// provider wired yet, so record the intent and move on.
		if interest.SMSOptIn {
			logrus.WithFields(logrus.Fields{
				"interest_id": interest.ID,
				"phone":       interest.Phone,
			}).Info("SMS notification requested but no provider configured")
		}
		return nil
	}

	position := 0
	if interest.Position != nil {
		position = *interest.Position
	}

	data := map[string]interface{}{
		"BuyerName":    interest.BuyerName,
		"ProductTitle": product.Title,
		"Position":     position + 1, // human ordinal
		"PickupTime":   interest.PickupTime.Format("Mon Jan 2, 3:04 PM"),
	}

	subject := "You're in line - " + product.Title
	template := s.getEmailTemplate("queue_joined")
	body, err := s.renderTemplate(template.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(interest.Email, subject, body)
}

func (s *NotificationService) SendPickupApprovedNotification(interest *models.BuyerInterest) error {
	if interest.Email == "" {
		return nil
	}

	var product models.Product
	if err := s.db.First(&product, "id = ?", interest.ProductID).Error; err != nil {
		return fmt.Errorf("failed to load product for notification: %w", err)
	}

	data := map[string]interface{}{
		"BuyerName":    interest.BuyerName,
		"ProductTitle": product.Title,
		"PickupTime":   interest.PickupTime.Format("Mon Jan 2, 3:04 PM"),
	}

	subject := "Pickup confirmed - " + product.Title
	template := s.getEmailTemplate("pickup_approved")
	body, err := s.renderTemplate(template.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(interest.Email, subject, body)
}

func (s *NotificationService) SendPickupMissedNotification(product *models.Product, interest *models.BuyerInterest) error {
	if interest.Email == "" {
		return nil
	}

	data := map[string]interface{}{
		"BuyerName":    interest.BuyerName,
		"ProductTitle": product.Title,
	}

	subject := "Missed pickup - " + product.Title
	template := s.getEmailTemplate("pickup_missed")
	body, err := s.renderTemplate(template.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(interest.Email, subject, body)
}

// Admin notifications
func (s *NotificationService) SendUserStatusChangeNotification(user *models.User, oldStatus models.UserStatus, reason string) error {
	data := map[string]interface{}{
		"DisplayName": user.DisplayName,
		"NewStatus":   user.Status,
		"OldStatus":   oldStatus,
		"Reason":      reason,
	}

	subject := "Account Status Update"
	template := s.getEmailTemplate("user_status_change")
	body, err := s.renderTemplate(template.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(user.Email, subject, body)
}

// Helper methods
func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" {
		// Email not configured, just log
		logrus.WithFields(logrus.Fields{
			"to":      to,
			"subject": subject,
		}).Info("Email delivery skipped, SMTP not configured")
		return nil
	}

	// Setup authentication
	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	// Compose message
	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body))

	// Send email
	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}

func (s *NotificationService) renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *NotificationService) getEmailTemplate(templateType string) EmailTemplate {
	// In a real implementation, these would be loaded from files or database
	templates := map[string]EmailTemplate{
		"welcome": {
			Subject: "Welcome to SpaceVox",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Welcome {{.DisplayName}}!</h2>
	<p>Thank you for joining {{.PlatformName}}. You can now create listings and share them with buyers near you.</p>
	<a href="{{.LoginURL}}">Sign in</a>
	<p>Best regards,<br>{{.PlatformName}} Team</p>
</body>
</html>`,
		},
		"queue_joined": {
			Subject: "You're in line",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>You're in line!</h2>
	<p>Hi {{.BuyerName}},</p>
	<p>You are number {{.Position}} in line for "{{.ProductTitle}}".</p>
	<p>Proposed pickup: {{.PickupTime}}</p>
	<p>The seller will reach out to confirm.</p>
</body>
</html>`,
		},
		"pickup_approved": {
			Subject: "Pickup confirmed",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Pickup confirmed!</h2>
	<p>Hi {{.BuyerName}},</p>
	<p>The seller confirmed your pickup of "{{.ProductTitle}}" at {{.PickupTime}}.</p>
	<p>See you there!</p>
</body>
</html>`,
		},
		"pickup_missed": {
			Subject: "Missed pickup",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Hi {{.BuyerName}},</p>
	<p>Your pickup window for "{{.ProductTitle}}" has passed, so your spot in line was released. You can rejoin any time if you're still interested.</p>
</body>
</html>`,
		},
		// Add more templates as needed...
	}

	if template, exists := templates[templateType]; exists {
		return template
	}

	// Default template
	return EmailTemplate{
		Subject: "Notification",
		Body:    "<p>{{.Message}}</p>",
	}
}
