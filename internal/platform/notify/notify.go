// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package notify delivers account notifications (verification links, reset links,
new-device alerts) to a recipient.

Delivery is best-effort by contract: [Notifier.Send] never returns an error.
It reports whether the message was handed off and a short detail string that
callers may log or surface in debug responses.

Backends:

  - [LogNotifier]: Writes the rendered message to the structured log (development).
  - [SMTPNotifier]: Sends plain-text mail through an SMTP relay.
*/
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Template names understood by every backend.
const (
	TemplateEmailVerification = "email_verification"
	TemplatePasswordReset     = "password_reset"
	TemplateNewDeviceLogin    = "new_device_login"
)

// Notifier sends one templated message to one recipient.
type Notifier interface {
	Send(ctx context.Context, template, recipient string, data map[string]any) (bool, string)
}

// Message is a rendered notification.
type Message struct {
	Subject string
	Body    string
}

var subjects = map[string]string{
	TemplateEmailVerification: "Verify your email address",
	TemplatePasswordReset:     "Reset your password",
	TemplateNewDeviceLogin:    "New sign-in to your account",
}

// Render turns template data into a plain-text [Message].
//
// Unknown templates render as a generic message listing the data keys.
func Render(template string, data map[string]any) Message {
	subject, ok := subjects[template]
	if !ok {
		subject = "Account notification"
	}

	var body strings.Builder
	if handle, ok := data["handle"]; ok {
		fmt.Fprintf(&body, "Hi %v,\n\n", handle)
	}

	switch template {
	case TemplateEmailVerification:
		fmt.Fprintf(&body, "Confirm your email address by opening this link:\n\n%v\n\n", data["verification_link"])
		if hours, ok := data["expires_in_hours"]; ok {
			fmt.Fprintf(&body, "The link expires in %v hours.\n", hours)
		}
	case TemplatePasswordReset:
		fmt.Fprintf(&body, "Someone asked to reset your password. If it was you, open:\n\n%v\n\n", data["reset_link"])
		body.WriteString("If you did not ask for this, you can ignore this message.\n")
	case TemplateNewDeviceLogin:
		fmt.Fprintf(&body, "Your account was used from a new device: %v on %v (%v).\n", data["browser"], data["os_type"], data["device_type"])
		fmt.Fprintf(&body, "IP address: %v\n", data["ip_address"])
	default:
		keys := make([]string, 0, len(data))
		for key := range data {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&body, "%s: %v\n", key, data[key])
		}
	}

	return Message{Subject: subject, Body: body.String()}
}
