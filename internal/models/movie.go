package models

// Movie is a single listing entry, narrowed from the TMDB result object
type Movie struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"releaseDate"`
	PosterPath  string `json:"posterPath"`
	Overview    string `json:"overview"`
}

// MoviePage is one page of a paged listing
type MoviePage struct {
	Page       int     `json:"page"`
	TotalPages int     `json:"totalPages"`
	Results    []Movie `json:"results"`
}

// MovieDetail represents the detail view of a single movie
type MovieDetail struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	PosterPath  string `json:"posterPath"`
	ReleaseDate string `json:"releaseDate"`
	Runtime     int    `json:"runtime"`
	Overview    string `json:"overview"`
}

// PageCursor tracks pagination progress for the active query
type PageCursor struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	HasMore     bool `json:"hasMore"`
}
