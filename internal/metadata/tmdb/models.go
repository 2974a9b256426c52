package tmdb

// MediaType selects the TMDB endpoint family.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// MovieDetails is the subset of /movie/{id} the resolver needs.
type MovieDetails struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	OriginalTitle string `json:"original_title"`
	ReleaseDate   string `json:"release_date"`
	ImdbID        string `json:"imdb_id"`
}

// TVDetails is the subset of /tv/{id} the resolver needs.
type TVDetails struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	FirstAirDate string `json:"first_air_date"`
}

// AlternativeTitle is one entry of an alternative_titles response.
type AlternativeTitle struct {
	Country string `json:"iso_3166_1"`
	Title   string `json:"title"`
	Type    string `json:"type"`
}

// AlternativeTitlesResponse covers both shapes: movies use "titles", series use "results".
type AlternativeTitlesResponse struct {
	ID      int                `json:"id"`
	Titles  []AlternativeTitle `json:"titles"`
	Results []AlternativeTitle `json:"results"`
}

// ErrorResponse is an error from the TMDB API.
type ErrorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Success       bool   `json:"success"`
}

// Details is the normalized title record for a movie or series.
type Details struct {
	ID            int       `json:"id"`
	Type          MediaType `json:"type"`
	Title         string    `json:"title"`
	OriginalTitle string    `json:"originalTitle,omitempty"`
	Year          string    `json:"year,omitempty"`
	ImdbID        string    `json:"imdbId,omitempty"`
}
