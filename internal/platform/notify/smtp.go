// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// defaultSMTPTimeout bounds a whole relay exchange when the config leaves it unset.
const defaultSMTPTimeout = 10 * time.Second

// SMTPConfig describes the relay used by [SMTPNotifier].
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// Timeout caps dial plus the full SMTP exchange. A sooner ctx deadline wins.
	Timeout time.Duration
}

// dialFunc matches [net.Dialer.DialContext].
type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// SMTPNotifier sends plain-text mail.
type SMTPNotifier struct {
	config SMTPConfig
	logger *slog.Logger
	dial   dialFunc
}

// NewSMTPNotifier returns an [SMTPNotifier].
func NewSMTPNotifier(config SMTPConfig, logger *slog.Logger) *SMTPNotifier {
	if config.Timeout <= 0 {
		config.Timeout = defaultSMTPTimeout
	}
	dialer := &net.Dialer{}
	return &SMTPNotifier{config: config, logger: logger, dial: dialer.DialContext}
}

// Send implements [Notifier]. Relay failures are logged and reported as
// undelivered.
func (notifier *SMTPNotifier) Send(ctx context.Context, template, recipient string, data map[string]any) (bool, string) {
	if err := ctx.Err(); err != nil {
		return false, "cancelled"
	}

	message := compose(notifier.config.From, recipient, Render(template, data))

	if err := notifier.deliver(ctx, recipient, message); err != nil {
		notifier.logger.WarnContext(ctx, "notification_send_failed",
			slog.String("template", template),
			slog.String("recipient", recipient),
			slog.Any("error", err),
		)
		if ctx.Err() != nil {
			return false, "cancelled"
		}
		return false, "smtp relay rejected the message"
	}

	return true, "sent"
}

/*
deliver runs one SMTP transaction.

Description: Every read and write shares a single connection deadline, the
sooner of the configured timeout and the ctx deadline. Cancelling ctx moves
the deadline to now, which unblocks whatever call is in flight.
*/
func (notifier *SMTPNotifier) deliver(ctx context.Context, recipient string, message []byte) error {
	ctx, cancel := context.WithTimeout(ctx, notifier.config.Timeout)
	defer cancel()

	address := net.JoinHostPort(notifier.config.Host, strconv.Itoa(notifier.config.Port))
	conn, err := notifier.dial(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("smtp_dial_failed: %w", err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("smtp_deadline_failed: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	client, err := smtp.NewClient(conn, notifier.config.Host)
	if err != nil {
		return fmt.Errorf("smtp_greeting_failed: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: notifier.config.Host}); err != nil {
			return fmt.Errorf("smtp_starttls_failed: %w", err)
		}
	}

	if notifier.config.Username != "" {
		auth := smtp.PlainAuth("", notifier.config.Username, notifier.config.Password, notifier.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp_auth_failed: %w", err)
		}
	}

	if err := client.Mail(notifier.config.From); err != nil {
		return fmt.Errorf("smtp_mail_failed: %w", err)
	}
	if err := client.Rcpt(recipient); err != nil {
		return fmt.Errorf("smtp_rcpt_failed: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp_data_failed: %w", err)
	}
	if _, err := writer.Write(message); err != nil {
		return fmt.Errorf("smtp_write_failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("smtp_data_failed: %w", err)
	}

	return client.Quit()
}

// compose builds an RFC 5322 message. Header values are stripped of CR/LF.
func compose(from, to string, message Message) []byte {
	clean := strings.NewReplacer("\r", "", "\n", "")

	var builder strings.Builder
	fmt.Fprintf(&builder, "From: %s\r\n", clean.Replace(from))
	fmt.Fprintf(&builder, "To: %s\r\n", clean.Replace(to))
	fmt.Fprintf(&builder, "Subject: %s\r\n", clean.Replace(message.Subject))
	builder.WriteString("MIME-Version: 1.0\r\n")
	builder.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	builder.WriteString(strings.ReplaceAll(message.Body, "\n", "\r\n"))
	return []byte(builder.String())
}
