package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/storycli/storycli/pkg/session"
)

func TestGenreDirective_CoversAllPairs(t *testing.T) {
	for _, main := range session.MainGenres() {
		for _, sub := range session.SubGenres() {
			g := session.GenreSelection{Main: main, Sub: sub}
			d := GenreDirective(g)
			assert.NotEmpty(t, d, "directive for %s", g)
			assert.Contains(t, d, "\n", "directive carries both genre and setting lines")
		}
	}
}

func TestGenreDirective_PairsCompose(t *testing.T) {
	mystery := session.GenreSelection{Main: session.GenreMystery, Sub: session.SubGenreHorror}
	action := session.GenreSelection{Main: session.GenreAction, Sub: session.SubGenreHorror}

	md := GenreDirective(mystery)
	ad := GenreDirective(action)

	assert.Contains(t, md, "mystery")
	assert.Contains(t, ad, "action")
	// Same setting line regardless of main genre.
	assert.Contains(t, md, "The setting is horror")
	assert.Contains(t, ad, "The setting is horror")
}

func TestOpeningScene_CoversAllSettings(t *testing.T) {
	seen := make(map[string]bool)
	for _, sub := range session.SubGenres() {
		g := session.GenreSelection{Main: session.GenreAdventure, Sub: sub}
		scene := OpeningScene(g)
		assert.NotEmpty(t, scene, "opening for %s", sub)
		assert.False(t, seen[scene], "openings must be distinct")
		seen[scene] = true
	}
}

func TestSystemPrompt_TeachesDirectiveGrammar(t *testing.T) {
	assert.Contains(t, SystemPrompt, "[STAT")
	assert.Contains(t, SystemPrompt, "[ITEM")
	assert.Contains(t, SystemPrompt, "[FLAG")
}

func TestDescribe(t *testing.T) {
	g := session.GenreSelection{Main: session.GenreMystery, Sub: session.SubGenreSciFi}
	assert.Equal(t, "Scifi Mystery", Describe(g))
}
