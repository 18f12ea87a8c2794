package session

import "fmt"

// MainGenre is the structural genre of the story.
type MainGenre string

const (
	GenreMystery   MainGenre = "mystery"
	GenreAdventure MainGenre = "adventure"
	GenreAction    MainGenre = "action"
)

// SubGenre is the setting flavor layered onto the main genre.
type SubGenre string

const (
	SubGenreFantasy SubGenre = "fantasy"
	SubGenreHorror  SubGenre = "horror"
	SubGenreSciFi   SubGenre = "scifi"
	SubGenreModern  SubGenre = "modern"
	SubGenreCosmic  SubGenre = "cosmic"
)

// MainGenres lists the selectable main genres in menu order.
func MainGenres() []MainGenre {
	return []MainGenre{GenreMystery, GenreAdventure, GenreAction}
}

// SubGenres lists the selectable subgenres in menu order.
func SubGenres() []SubGenre {
	return []SubGenre{SubGenreFantasy, SubGenreHorror, SubGenreSciFi, SubGenreModern, SubGenreCosmic}
}

// GenreSelection pins the story's genre pair. It is immutable for the
// lifetime of a session once chosen.
type GenreSelection struct {
	Main MainGenre `json:"main"`
	Sub  SubGenre  `json:"sub"`
}

func (g GenreSelection) Validate() error {
	switch g.Main {
	case GenreMystery, GenreAdventure, GenreAction:
	default:
		return fmt.Errorf("unknown main genre %q", g.Main)
	}
	switch g.Sub {
	case SubGenreFantasy, SubGenreHorror, SubGenreSciFi, SubGenreModern, SubGenreCosmic:
	default:
		return fmt.Errorf("unknown subgenre %q", g.Sub)
	}
	return nil
}

func (g GenreSelection) String() string {
	return string(g.Sub) + " " + string(g.Main)
}
