// Package notify delivers price-alert notifications over SMTP.
//
// Scraped product fields pass through a strict sanitizer before they are
// interpolated into HTML mail, since titles and snippets come from
// third-party markup.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ErrSendFailed reports a notification dispatch failure. Callers use it to
// decide that a subscription must stay armed for the next cycle.
type ErrSendFailed struct {
	Address string
	Cause   error
}

func (e *ErrSendFailed) Error() string {
	return fmt.Sprintf("notify: send to %s failed: %v", e.Address, e.Cause)
}

func (e *ErrSendFailed) Unwrap() error { return e.Cause }

// Alert carries everything the alert email shows.
type Alert struct {
	ProductName  string
	ProductURL   string
	Image        string
	Currency     string
	CurrentPrice float64
	TargetPrice  float64
}

var strict = bluemonday.StrictPolicy()

var alertTmpl = template.Must(template.New("alert").Parse(`<html>
<body>
  <h2>Price Drop Alert!</h2>
  <p>The product you're tracking has reached your target price.</p>
  <div style="border: 1px solid #ddd; padding: 15px; margin: 10px 0;">
    {{if .Image}}<img src="{{.Image}}" alt="{{.ProductName}}" width="200">{{end}}
    <h3>{{.ProductName}}</h3>
    <p><strong>Current Price:</strong> {{.Currency}}{{printf "%.2f" .CurrentPrice}}</p>
    <p><strong>Your Target Price:</strong> {{.Currency}}{{printf "%.2f" .TargetPrice}}</p>
    <p><a href="{{.ProductURL}}">Buy Now</a></p>
  </div>
  <p><small>This is an automated message. Please do not reply directly to this email.</small></p>
</body>
</html>`))

// RenderAlert builds the subject and HTML body for an alert email.
func RenderAlert(a Alert) (subject, body string, err error) {
	a.ProductName = strict.Sanitize(a.ProductName)
	if a.ProductName == "" {
		a.ProductName = "Your tracked product"
	}
	a.Image = safeURL(a.Image)
	a.ProductURL = safeURL(a.ProductURL)
	if a.Currency == "" {
		a.Currency = "₹"
	}

	var buf bytes.Buffer
	if err := alertTmpl.Execute(&buf, a); err != nil {
		return "", "", fmt.Errorf("notify: render alert: %w", err)
	}
	return "Price Alert: " + a.ProductName, buf.String(), nil
}

// safeURL allows only http(s) URLs into mail markup.
func safeURL(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return ""
}

// Config holds SMTP delivery settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer sends HTML mail over SMTP with STARTTLS.
type Mailer struct {
	cfg Config
	// send is swappable for tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer creates a Mailer from SMTP settings.
func NewMailer(cfg Config) *Mailer {
	return &Mailer{cfg: cfg, send: smtp.SendMail}
}

// Send delivers one HTML message. A nil return means the provider accepted
// the message; any failure is wrapped in ErrSendFailed.
func (m *Mailer) Send(ctx context.Context, address, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return &ErrSendFailed{Address: address, Cause: err}
	}
	if m.cfg.Host == "" {
		return &ErrSendFailed{Address: address, Cause: fmt.Errorf("smtp host not configured")}
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", address)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := m.send(addr, auth, m.cfg.From, []string{address}, msg.Bytes()); err != nil {
		return &ErrSendFailed{Address: address, Cause: err}
	}
	return nil
}
