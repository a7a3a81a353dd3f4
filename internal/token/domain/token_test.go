package domain

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateDeviceInfoShortUnchanged(t *testing.T) {
	ua := "Mozilla/5.0 (X11; Linux x86_64)"
	if got := TruncateDeviceInfo(ua); got != ua {
		t.Errorf("TruncateDeviceInfo(%q) = %q, want unchanged", ua, got)
	}
}

func TestTruncateDeviceInfoLongASCII(t *testing.T) {
	ua := strings.Repeat("a", DeviceInfoMaxLength+50)
	got := TruncateDeviceInfo(ua)
	if len(got) != DeviceInfoMaxLength {
		t.Errorf("len = %d, want %d", len(got), DeviceInfoMaxLength)
	}
}

func TestTruncateDeviceInfoKeepsValidUTF8(t *testing.T) {
	// Place a 3-byte rune so the byte limit falls inside it.
	ua := strings.Repeat("a", DeviceInfoMaxLength-1) + "日本語"
	got := TruncateDeviceInfo(ua)
	if !utf8.ValidString(got) {
		t.Fatalf("result is not valid UTF-8: %q", got[len(got)-4:])
	}
	if len(got) > DeviceInfoMaxLength {
		t.Errorf("len = %d, want <= %d", len(got), DeviceInfoMaxLength)
	}
	if got != strings.Repeat("a", DeviceInfoMaxLength-1) {
		t.Errorf("expected the straddling rune to be dropped entirely")
	}
}
