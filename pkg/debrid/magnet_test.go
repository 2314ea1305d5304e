package debrid

import (
	"strings"
	"testing"
)

func TestBuildMagnet(t *testing.T) {
	magnet := BuildMagnet("deadbeef1234", "Some Movie 2024 1080p")

	if !strings.HasPrefix(magnet, "magnet:?xt=urn:btih:deadbeef1234") {
		t.Errorf("magnet = %q, want urn:btih prefix with hash", magnet)
	}
	if !strings.Contains(magnet, "&dn=Some%2BMovie%2B2024%2B1080p") {
		t.Errorf("magnet = %q, want display name with '+' separators", magnet)
	}
	if got := strings.Count(magnet, "&tr="); got != len(trackers) {
		t.Errorf("magnet has %d trackers, want %d", got, len(trackers))
	}
}

func TestBuildMagnet_NoDisplayName(t *testing.T) {
	magnet := BuildMagnet("cafebabe", "")

	if strings.Contains(magnet, "&dn=") {
		t.Errorf("magnet = %q, should omit dn when name is empty", magnet)
	}
	if !strings.Contains(magnet, "urn:btih:cafebabe") {
		t.Errorf("magnet = %q, missing hash", magnet)
	}
}
