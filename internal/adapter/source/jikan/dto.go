package jikan

// Envelope is the wrapper around every Jikan v4 response
type Envelope[T any] struct {
	Data       T           `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination is the continuation block of listing responses
type Pagination struct {
	LastVisiblePage int  `json:"last_visible_page"`
	HasNextPage     bool `json:"has_next_page"`
	CurrentPage     int  `json:"current_page"`
	Items           struct {
		Count   int `json:"count"`
		Total   int `json:"total"`
		PerPage int `json:"per_page"`
	} `json:"items"`
}

// ImageSet is one format's URLs
type ImageSet struct {
	ImageURL      *string `json:"image_url"`
	SmallImageURL *string `json:"small_image_url"`
	LargeImageURL *string `json:"large_image_url"`
}

// ImageFormats groups JPG and WebP variants
type ImageFormats struct {
	JPG  ImageSet `json:"jpg"`
	WebP ImageSet `json:"webp"`
}

// Trailer is the embedded YouTube trailer of an entry
type Trailer struct {
	YouTubeID *string `json:"youtube_id"`
	URL       *string `json:"url"`
	EmbedURL  *string `json:"embed_url"`
}

// Aired is the airing date range
type Aired struct {
	From   *string `json:"from"`
	To     *string `json:"to"`
	String string  `json:"string"`
}

// Resource is a named reference ({mal_id, type, name, url})
type Resource struct {
	MalID int    `json:"mal_id"`
	Type  string `json:"type"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Count int    `json:"count,omitempty"`
}

// Anime is the full anime resource
type Anime struct {
	MalID         int          `json:"mal_id"`
	URL           string       `json:"url"`
	Images        ImageFormats `json:"images"`
	Trailer       Trailer      `json:"trailer"`
	Title         string       `json:"title"`
	TitleEnglish  *string      `json:"title_english"`
	TitleJapanese *string      `json:"title_japanese"`
	Type          *string      `json:"type"`
	Source        string       `json:"source"`
	Episodes      *int         `json:"episodes"`
	Status        string       `json:"status"`
	Airing        bool         `json:"airing"`
	Aired         Aired        `json:"aired"`
	Duration      string       `json:"duration"`
	Rating        *string      `json:"rating"`
	Score         *float64     `json:"score"`
	ScoredBy      *int         `json:"scored_by"`
	Rank          *int         `json:"rank"`
	Popularity    int          `json:"popularity"`
	Members       int          `json:"members"`
	Favorites     int          `json:"favorites"`
	Synopsis      *string      `json:"synopsis"`
	Background    *string      `json:"background"`
	Season        *string      `json:"season"`
	Year          *int         `json:"year"`
	Genres        []Resource   `json:"genres"`
	Themes        []Resource   `json:"themes"`
	Demographics  []Resource   `json:"demographics"`
}

// RelationGroup is one entry of /anime/{id}/relations
type RelationGroup struct {
	Relation string     `json:"relation"`
	Entry    []Resource `json:"entry"`
}

// CharacterRole is one entry of /anime/{id}/characters
type CharacterRole struct {
	Character struct {
		MalID  int          `json:"mal_id"`
		URL    string       `json:"url"`
		Images ImageFormats `json:"images"`
		Name   string       `json:"name"`
	} `json:"character"`
	Role        string `json:"role"`
	VoiceActors []struct {
		Person struct {
			MalID  int          `json:"mal_id"`
			URL    string       `json:"url"`
			Images ImageFormats `json:"images"`
			Name   string       `json:"name"`
		} `json:"person"`
		Language string `json:"language"`
	} `json:"voice_actors"`
}

// VideoImages are the thumbnails of a YouTube video
type VideoImages struct {
	ImageURL        *string `json:"image_url"`
	SmallImageURL   *string `json:"small_image_url"`
	MediumImageURL  *string `json:"medium_image_url"`
	LargeImageURL   *string `json:"large_image_url"`
	MaximumImageURL *string `json:"maximum_image_url"`
}

// YouTubeVideo is the embedded video of a promo or music video
type YouTubeVideo struct {
	YouTubeID *string     `json:"youtube_id"`
	URL       *string     `json:"url"`
	EmbedURL  *string     `json:"embed_url"`
	Images    VideoImages `json:"images"`
}

// VideoListing is /anime/{id}/videos
type VideoListing struct {
	Promo []struct {
		Title   string       `json:"title"`
		Trailer YouTubeVideo `json:"trailer"`
	} `json:"promo"`
	Episodes []struct {
		MalID   int    `json:"mal_id"`
		URL     string `json:"url"`
		Title   string `json:"title"`
		Episode string `json:"episode"`
		Images  struct {
			JPG struct {
				ImageURL *string `json:"image_url"`
			} `json:"jpg"`
		} `json:"images"`
	} `json:"episodes"`
	MusicVideos []struct {
		Title string       `json:"title"`
		Video YouTubeVideo `json:"video"`
	} `json:"music_videos"`
}

// StatisticsBlock is /anime/{id}/statistics
type StatisticsBlock struct {
	Watching    int `json:"watching"`
	Completed   int `json:"completed"`
	OnHold      int `json:"on_hold"`
	Dropped     int `json:"dropped"`
	PlanToWatch int `json:"plan_to_watch"`
	Total       int `json:"total"`
	Scores      []struct {
		Score      int     `json:"score"`
		Votes      int     `json:"votes"`
		Percentage float64 `json:"percentage"`
	} `json:"scores"`
}
