package debrid

import (
	"net/url"
	"strings"
)

// trackers appended to every generated magnet link.
var trackers = []string{
	"udp://open.demonii.com:1337/announce",
	"udp://tracker.openbittorrent.com:80",
	"udp://tracker.coppersurfer.tk:6969",
	"udp://glotorrents.pw:6969/announce",
	"udp://tracker.opentrackr.org:1337/announce",
	"udp://torrent.gresille.org:80/announce",
	"udp://p4p.arenabg.com:1337",
	"udp://tracker.leechers-paradise.org:6969",
}

// BuildMagnet creates a magnet link for a torrent hash. The display name
// is optional; spaces are replaced with '+' to keep the link readable.
func BuildMagnet(hash, displayName string) string {
	var b strings.Builder
	b.WriteString("magnet:?xt=urn:btih:")
	b.WriteString(hash)

	if displayName != "" {
		b.WriteString("&dn=")
		b.WriteString(url.QueryEscape(strings.ReplaceAll(displayName, " ", "+")))
	}

	for _, tr := range trackers {
		b.WriteString("&tr=")
		b.WriteString(tr)
	}
	return b.String()
}
