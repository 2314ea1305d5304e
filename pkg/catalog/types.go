package catalog

// Quality tags used by the YTS listing. Only the top two tiers are ever
// submitted; 720p and below are dropped to bound per-movie fan-out.
const (
	QualityUHD = "2160p"
	QualityFHD = "1080p"
)

// Movie is one entry of the YTS listing response.
type Movie struct {
	ID       int       `json:"id"`
	Title    string    `json:"title"`
	Year     int       `json:"year"`
	Rating   float64   `json:"rating"`
	Language string    `json:"language"`
	Torrents []Torrent `json:"torrents"`
}

// Torrent is one quality variant of a movie.
type Torrent struct {
	Quality string `json:"quality"`
	Hash    string `json:"hash"`
	Size    string `json:"size"`
	Seeds   int    `json:"seeds"`
}

// listResponse is the YTS list_movies envelope.
type listResponse struct {
	Status        string   `json:"status"`
	StatusMessage string   `json:"status_message"`
	Data          listData `json:"data"`
}

type listData struct {
	MovieCount int     `json:"movie_count"`
	Limit      int     `json:"limit"`
	PageNumber int     `json:"page_number"`
	Movies     []Movie `json:"movies"`
}

// PreferredTorrents selects at most the two highest-quality variants of a
// movie. If a 2160p variant exists it is emitted together with the 1080p
// variant when present; without a 2160p variant only the 1080p variant is
// emitted; with neither, nothing is emitted.
func PreferredTorrents(m Movie) []Torrent {
	var uhd, fhd *Torrent
	for i := range m.Torrents {
		t := &m.Torrents[i]
		if t.Hash == "" {
			continue
		}
		switch t.Quality {
		case QualityUHD:
			if uhd == nil {
				uhd = t
			}
		case QualityFHD:
			if fhd == nil {
				fhd = t
			}
		}
	}

	var out []Torrent
	if uhd != nil {
		out = append(out, *uhd)
		if fhd != nil {
			out = append(out, *fhd)
		}
		return out
	}
	if fhd != nil {
		out = append(out, *fhd)
	}
	return out
}
