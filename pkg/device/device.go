// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package device derives a coarse device fingerprint from a User-Agent string.
//
// The fingerprint is deliberately low resolution (type, OS family, browser
// family) so that a browser update does not register as a new device.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Device types.
const (
	TypeDesktop = "desktop"
	TypeMobile  = "mobile"
	TypeTablet  = "tablet"
	TypeBot     = "bot"
	TypeUnknown = "unknown"
)

// Unknown is used for an OS or browser that could not be identified.
const Unknown = "Unknown"

// Fingerprint identifies a device class for one account.
type Fingerprint struct {
	DeviceType string `json:"device_type"`
	OSType     string `json:"os_type"`
	Browser    string `json:"browser"`
}

// Parse builds a [Fingerprint] from a raw User-Agent header.
func Parse(userAgent string) Fingerprint {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return Fingerprint{DeviceType: TypeUnknown, OSType: Unknown, Browser: Unknown}
	}

	ua := useragent.New(userAgent)

	browser, _ := ua.Browser()
	if browser == "" {
		browser = Unknown
	}

	osName := ua.OSInfo().Name
	if osName == "" {
		osName = Unknown
	}

	return Fingerprint{
		DeviceType: deviceType(ua, userAgent),
		OSType:     osName,
		Browser:    browser,
	}
}

func deviceType(ua *useragent.UserAgent, raw string) string {
	switch {
	case ua.Bot():
		return TypeBot
	case strings.Contains(raw, "iPad"), strings.Contains(raw, "Tablet"):
		return TypeTablet
	case strings.Contains(raw, "Android") && !strings.Contains(raw, "Mobile"):
		return TypeTablet
	case ua.Mobile():
		return TypeMobile
	default:
		return TypeDesktop
	}
}
