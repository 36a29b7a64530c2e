// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/sirupsen/logrus"

	"github.com/gotchaguardian/payment-server/internal/catalog"
	"github.com/gotchaguardian/payment-server/internal/config"
	"github.com/gotchaguardian/payment-server/internal/models"
)

// Notifier is what the payment flows publish lifecycle events through.
// Publishing never blocks and delivery failures never roll back the
// state transition that produced the event.
type Notifier interface {
	PublishOrderCompleted(order *models.Order, key *models.ActivationKey)
	PublishOrderFailed(order *models.Order, reason string)
	PublishOrderRefunded(order *models.Order)
}

type OrderCompletedEvent struct {
	Order models.Order
	Key   models.ActivationKey
}

type OrderFailedEvent struct {
	Order  models.Order
	Reason string
}

type OrderRefundedEvent struct {
	Order models.Order
}

type NotificationService struct {
	config  *config.Config
	catalog *catalog.Catalog
	events  chan interface{}
	done    chan struct{}
}

type EmailTemplate struct {
	Subject string
	Body    string
}

func NewNotificationService(cfg *config.Config, cat *catalog.Catalog) *NotificationService {
	return &NotificationService{
		config:  cfg,
		catalog: cat,
		events:  make(chan interface{}, 64),
		done:    make(chan struct{}),
	}
}

// Start runs the dispatcher goroutine. Stop closes the event channel and
// waits for the remaining events to drain.
func (s *NotificationService) Start() {
	go func() {
		defer close(s.done)
		for event := range s.events {
			s.dispatch(event)
		}
	}()
}

func (s *NotificationService) Stop() {
	close(s.events)
	<-s.done
}

func (s *NotificationService) PublishOrderCompleted(order *models.Order, key *models.ActivationKey) {
	s.publish(OrderCompletedEvent{Order: *order, Key: *key})
}

func (s *NotificationService) PublishOrderFailed(order *models.Order, reason string) {
	s.publish(OrderFailedEvent{Order: *order, Reason: reason})
}

func (s *NotificationService) PublishOrderRefunded(order *models.Order) {
	s.publish(OrderRefundedEvent{Order: *order})
}

// publish enqueues without blocking. A full queue drops the event with a
// log line; the order transition has already committed and must not wait
// on email delivery.
func (s *NotificationService) publish(event interface{}) {
	select {
	case s.events <- event:
	default:
		logrus.WithField("event", fmt.Sprintf("%T", event)).Error("Notification queue full, event dropped")
	}
}

func (s *NotificationService) dispatch(event interface{}) {
	switch e := event.(type) {
	case OrderCompletedEvent:
		if err := s.sendActivationEmail(&e.Order, &e.Key); err != nil {
			logrus.WithField("order_id", e.Order.ID).WithError(err).Error("Failed to send activation email")
		}
		if err := s.sendAdminSaleNotification(&e.Order); err != nil {
			logrus.WithField("order_id", e.Order.ID).WithError(err).Error("Failed to send sale notification")
		}
	case OrderFailedEvent:
		if err := s.sendFailureEmail(&e.Order, e.Reason); err != nil {
			logrus.WithField("order_id", e.Order.ID).WithError(err).Error("Failed to send failure email")
		}
	case OrderRefundedEvent:
		if err := s.sendRefundEmail(&e.Order); err != nil {
			logrus.WithField("order_id", e.Order.ID).WithError(err).Error("Failed to send refund email")
		}
	default:
		logrus.WithField("event", fmt.Sprintf("%T", event)).Warn("Unknown notification event")
	}
}

func (s *NotificationService) sendActivationEmail(order *models.Order, key *models.ActivationKey) error {
	productName := order.ProductID
	if product, ok := s.catalog.Get(order.ProductID); ok {
		productName = product.Name
	}

	data := map[string]interface{}{
		"CustomerName":  order.CustomerName,
		"ProductName":   productName,
		"ActivationKey": key.Key,
		"OrderID":       order.ID,
		"DownloadURL":   fmt.Sprintf("%s/downloads?order=%s", s.config.Frontend.BaseURL, order.ID),
	}

	subject := "Your Purchase - " + productName
	tmpl := s.getEmailTemplate("activation")
	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(order.CustomerEmail, subject, body)
}

func (s *NotificationService) sendFailureEmail(order *models.Order, reason string) error {
	data := map[string]interface{}{
		"CustomerName": order.CustomerName,
		"OrderID":      order.ID,
		"Reason":       reason,
	}

	subject := "Payment Failed"
	tmpl := s.getEmailTemplate("payment_failed")
	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(order.CustomerEmail, subject, body)
}

func (s *NotificationService) sendRefundEmail(order *models.Order) error {
	data := map[string]interface{}{
		"CustomerName": order.CustomerName,
		"OrderID":      order.ID,
		"Amount":       fmt.Sprintf("%.2f %s", order.Amount, order.Currency),
	}

	subject := "Refund Processed"
	tmpl := s.getEmailTemplate("refund")
	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(order.CustomerEmail, subject, body)
}

func (s *NotificationService) sendAdminSaleNotification(order *models.Order) error {
	if s.config.Email.AdminEmail == "" {
		return nil
	}

	data := map[string]interface{}{
		"OrderID":   order.ID,
		"ProductID": order.ProductID,
		"Amount":    fmt.Sprintf("%.2f %s", order.Amount, order.Currency),
		"Email":     order.MaskedEmail(),
	}

	subject := "New Sale - " + order.ProductID
	tmpl := s.getEmailTemplate("admin_sale")
	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(s.config.Email.AdminEmail, subject, body)
}

// SendContactEmail forwards a storefront contact form submission to the
// admin inbox. Synchronous; the handler reports delivery failure.
func (s *NotificationService) SendContactEmail(name, email, message string) error {
	to := s.config.Email.AdminEmail
	if to == "" {
		to = s.config.Email.FromEmail
	}

	data := map[string]interface{}{
		"Name":    name,
		"Email":   email,
		"Message": message,
	}

	subject := "Contact Form - " + name
	tmpl := s.getEmailTemplate("contact")
	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(to, subject, body)
}

// Helper methods
func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" {
		// Email not configured, just log
		logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("Email delivery skipped (SMTP not configured)")
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body))

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
	templates := map[string]EmailTemplate{
		"activation": {
			Subject: "Your Purchase",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Thank you for your purchase, {{.CustomerName}}!</h2>
	<p>Your copy of <strong>{{.ProductName}}</strong> is ready.</p>
	<p>Activation key:</p>
	<pre style="font-size:1.2em">{{.ActivationKey}}</pre>
	<p><a href="{{.DownloadURL}}">Download your product</a></p>
	<p>Order reference: {{.OrderID}}</p>
</body>
</html>`,
		},
		"payment_failed": {
			Subject: "Payment Failed",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Payment failed</h2>
	<p>Hello {{.CustomerName}},</p>
	<p>We could not complete your payment: {{.Reason}}</p>
	<p>No charge was made. You can start a new order at any time.</p>
	<p>Order reference: {{.OrderID}}</p>
</body>
</html>`,
		},
		"refund": {
			Subject: "Refund Processed",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Refund processed</h2>
	<p>Hello {{.CustomerName}},</p>
	<p>Your refund of {{.Amount}} has been processed. The activation key
	for this order is no longer valid.</p>
	<p>Order reference: {{.OrderID}}</p>
</body>
</html>`,
		},
		"admin_sale": {
			Subject: "New Sale",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>New sale</h2>
	<p>Product: {{.ProductID}}</p>
	<p>Amount: {{.Amount}}</p>
	<p>Customer: {{.Email}}</p>
	<p>Order: {{.OrderID}}</p>
</body>
</html>`,
		},
		"contact": {
			Subject: "Contact Form",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Contact form submission</h2>
	<p>From: {{.Name}} ({{.Email}})</p>
	<p>{{.Message}}</p>
</body>
</html>`,
		},
	}

	if tmpl, exists := templates[templateType]; exists {
		return tmpl
	}

	return EmailTemplate{
		Subject: "Notification",
		Body:    "<p>{{.Message}}</p>",
	}
}
