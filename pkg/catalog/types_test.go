package catalog

import (
	"reflect"
	"testing"
)

func TestPreferredTorrents(t *testing.T) {
	tests := []struct {
		name     string
		torrents []Torrent
		expected []string // hashes in emit order
	}{
		{
			name: "uhd_present_drops_720p",
			torrents: []Torrent{
				{Quality: "2160p", Hash: "HASH1"},
				{Quality: "1080p", Hash: "HASH2"},
				{Quality: "720p", Hash: "HASH3"},
			},
			expected: []string{"HASH1", "HASH2"},
		},
		{
			name: "no_uhd_emits_fhd_only",
			torrents: []Torrent{
				{Quality: "1080p", Hash: "HASH2"},
				{Quality: "720p", Hash: "HASH3"},
			},
			expected: []string{"HASH2"},
		},
		{
			name: "uhd_only",
			torrents: []Torrent{
				{Quality: "2160p", Hash: "HASH1"},
			},
			expected: []string{"HASH1"},
		},
		{
			name: "only_720p_emits_nothing",
			torrents: []Torrent{
				{Quality: "720p", Hash: "HASH3"},
			},
			expected: nil,
		},
		{
			name:     "no_torrents",
			torrents: nil,
			expected: nil,
		},
		{
			name: "empty_hash_ignored",
			torrents: []Torrent{
				{Quality: "2160p", Hash: ""},
				{Quality: "1080p", Hash: "HASH2"},
			},
			expected: []string{"HASH2"},
		},
		{
			name: "duplicate_quality_takes_first",
			torrents: []Torrent{
				{Quality: "1080p", Hash: "FIRST"},
				{Quality: "1080p", Hash: "SECOND"},
			},
			expected: []string{"FIRST"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PreferredTorrents(Movie{Title: "Test", Torrents: tt.torrents})

			var hashes []string
			for _, tor := range got {
				hashes = append(hashes, tor.Hash)
			}
			if !reflect.DeepEqual(hashes, tt.expected) {
				t.Errorf("PreferredTorrents() hashes = %v, want %v", hashes, tt.expected)
			}
		})
	}
}
