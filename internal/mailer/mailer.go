// Package mailer sends the verification and OTP emails of the auth flow.
package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages. Delivery failures must be returned, never
// swallowed; the caller decides whether they abort the request.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender sends mail through a plain-auth SMTP relay.
type SMTPSender struct {
	addr     string // host:port
	username string
	password string
	from     string
}

// NewSMTPSender returns a Sender using the given relay and credentials.
func NewSMTPSender(addr, username, password, from string) (*SMTPSender, error) {
	if addr == "" || username == "" || password == "" {
		return nil, fmt.Errorf("mailer: SMTP address and credentials are required")
	}
	if from == "" {
		from = username
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, fmt.Errorf("mailer: invalid SMTP address %q (expected host:port): %w", addr, err)
	}
	return &SMTPSender{addr: addr, username: username, password: password, from: from}, nil
}

// Send delivers the message. net/smtp does not honor context cancellation;
// ctx is accepted for interface symmetry and future transports.
func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	host, _, _ := net.SplitHostPort(s.addr)
	auth := smtp.PlainAuth("", s.username, s.password, host)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", uuid.NewString(), host)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")

	if err := smtp.SendMail(s.addr, auth, s.from, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("sending mail via %s: %w", s.addr, err)
	}
	return nil
}

// VerificationEmail builds the post-sign-up message carrying the verify link.
func VerificationEmail(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Verify your email address",
		Body:    fmt.Sprintf("Please click on the link below to verify your email address:\n%s\n", link),
	}
}

// OTPEmail builds the forgot-password message carrying the one-time code.
func OTPEmail(to, code string) Message {
	return Message{
		To:      to,
		Subject: "Password Reset OTP",
		Body:    fmt.Sprintf("Your OTP for password reset is: %s\nThis OTP is valid for 15 minutes.\nIf you didn't request this, please ignore this email.\n", code),
	}
}
