package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	Timeout  time.Duration
	AppName  string
	OTPTTL   time.Duration
}

type ContactForm struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// SMTPMailer delivers plain text mail, upgrading with STARTTLS when the server
// offers it.
type SMTPMailer struct {
	cfg Config
}

func NewSMTPMailer(cfg Config) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	if cfg.AppName == "" {
		cfg.AppName = "EduManage"
	}
	return &SMTPMailer{cfg: cfg}
}

// SendOTP mails a reset code, greeting the recipient by name when known.
func (m *SMTPMailer) SendOTP(ctx context.Context, to, name, code string) error {
	minutes := int(m.cfg.OTPTTL.Minutes())
	if minutes <= 0 {
		minutes = 5
	}
	greeting := "Hello,"
	if name = strings.TrimSpace(name); name != "" {
		greeting = fmt.Sprintf("Hello %s,", name)
	}
	subject := fmt.Sprintf("%s - Password Reset Code", m.cfg.AppName)
	body := fmt.Sprintf(
		"%s\n\n"+
			"We received a request to reset the password for your %s account.\n\n"+
			"Your verification code is: %s\n\n"+
			"This code will expire in %d minutes. If you did not request a reset, you can ignore this email.\n\n"+
			"The %s Team\n",
		greeting, m.cfg.AppName, code, minutes, m.cfg.AppName)
	return m.send(ctx, to, "", subject, body)
}

func (m *SMTPMailer) SendContact(ctx context.Context, to string, form ContactForm) error {
	if to == "" {
		return errors.New("contact inbox not configured")
	}
	subject := fmt.Sprintf("Contact Form: %s", form.Subject)
	body := fmt.Sprintf(
		"New Contact Form Submission\n\n"+
			"Name: %s\nEmail: %s\nSubject: %s\n\n"+
			"Message:\n%s\n\n"+
			"Reply to: %s\n",
		form.Name, form.Email, form.Subject, form.Message, form.Email)
	return m.send(ctx, to, form.Email, subject, body)
}

func (m *SMTPMailer) send(ctx context.Context, to, replyTo, subject, body string) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if m.cfg.User != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildMessage(m.cfg.From, to, replyTo, subject, body)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return client.Quit()
}

func buildMessage(from, to, replyTo, subject, body string) []byte {
	headers := []string{
		"From: " + headerValue(from),
		"To: " + headerValue(to),
	}
	if replyTo != "" {
		headers = append(headers, "Reply-To: "+headerValue(replyTo))
	}
	headers = append(headers,
		"Subject: "+headerValue(subject),
		"Date: "+time.Now().UTC().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"),
	)
	return []byte(strings.Join(headers, "\r\n"))
}

// headerValue strips line breaks so user input cannot inject headers.
func headerValue(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}
