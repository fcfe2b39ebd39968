// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	chromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	safariIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
	safariIPad    = "Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
	androidTablet = "Mozilla/5.0 (Linux; Android 13; SM-X700) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

func TestParse(t *testing.T) {
	t.Run("desktop chrome", func(t *testing.T) {
		fp := Parse(chromeWindows)
		assert.Equal(t, TypeDesktop, fp.DeviceType)
		assert.Equal(t, "Chrome", fp.Browser)
		assert.Contains(t, fp.OSType, "Windows")
	})

	t.Run("iphone is mobile", func(t *testing.T) {
		fp := Parse(safariIPhone)
		assert.Equal(t, TypeMobile, fp.DeviceType)
		assert.Equal(t, "Safari", fp.Browser)
	})

	t.Run("ipad is tablet", func(t *testing.T) {
		assert.Equal(t, TypeTablet, Parse(safariIPad).DeviceType)
	})

	t.Run("android without mobile token is tablet", func(t *testing.T) {
		assert.Equal(t, TypeTablet, Parse(androidTablet).DeviceType)
	})

	t.Run("empty header", func(t *testing.T) {
		assert.Equal(t, Fingerprint{DeviceType: TypeUnknown, OSType: Unknown, Browser: Unknown}, Parse("  "))
	})

	t.Run("browser minor update keeps fingerprint", func(t *testing.T) {
		updated := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.6422.60 Safari/537.36"
		assert.Equal(t, Parse(chromeWindows), Parse(updated))
	})
}
