// Package prompts holds the genre directive templates and the
// narrator system prompt. Templates are selected once per session
// from the genre pair and never change mid-story.
package prompts

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/storycli/storycli/pkg/session"
)

// SystemPrompt frames the model as the narrator and teaches it the
// bracket grammar the directive parser understands.
const SystemPrompt = `You are the narrator of an interactive text adventure. You describe the story in second person as it unfolds. You never discuss anything outside of the game, and you never break the fourth wall.

Writing rules:
- Respond with 1 to 3 short paragraphs. Each paragraph has at most 3 sentences.
- End on a moment that invites the player's next action. Never act for the player.
- Stay consistent with the story so far, the character sheet, and the inventory.

When the story changes the player's state, emit a bracket directive on the same line as the narration that causes it:
- [STAT health -10] to lower a stat, [STAT strength +1] to raise one, [STAT health =100] to set one.
- [ITEM +rusty key] when the player gains an item, [ITEM -torch] when one is lost or used up.
- [FLAG met_the_baron] to mark a plot development.
Emit a directive only for real state changes. Never invent other bracket notations.`

// mainDirectives set the structural register of the story.
var mainDirectives = map[session.MainGenre]string{
	session.GenreMystery:   "This is a mystery. Seed clues, red herrings, and questions that want answers. Reveal the truth only in fragments, and let the player's deductions matter.",
	session.GenreAdventure: "This is an adventure. Favor exploration, wonder, and discovery. The world is larger than the player can see, and every path hides something worth finding.",
	session.GenreAction:    "This is an action story. Keep the pace hot: danger is immediate, choices are physical, and hesitation has a cost. Quiet moments exist only to set up the next surge.",
}

// subFlavors layer the setting onto the main genre.
var subFlavors = map[session.SubGenre]string{
	session.SubGenreFantasy: "The setting is high fantasy: old magic, older ruins, and creatures out of legend.",
	session.SubGenreHorror:  "The setting is horror: dread builds slowly, the ordinary turns wrong, and safety is never certain.",
	session.SubGenreSciFi:   "The setting is science fiction: starships, strange technology, and worlds indifferent to human scale.",
	session.SubGenreModern:  "The setting is the modern day: phones, traffic, bureaucracy, and the strangeness hiding inside the mundane.",
	session.SubGenreCosmic:  "The setting is cosmic: vast intelligences, impossible geometry, and knowledge that costs the knower.",
}

// openings give each setting its first scene, shown before the first
// player action.
var openings = map[session.SubGenre]string{
	session.SubGenreFantasy: "You find yourself in a low-beamed tavern at the edge of the old forest. The air is thick with woodsmoke, and a hooded figure by the fire has been watching you since you walked in.",
	session.SubGenreHorror:  "You stand in the hallway of a house that should be empty. The floorboards creak overhead, one slow step at a time, though you came here alone.",
	session.SubGenreSciFi:   "You wake in a cryopod aboard a ship you do not remember boarding. The cabin lights pulse amber, and a calm synthetic voice is repeating your name.",
	session.SubGenreModern:  "You are on a crowded downtown street when your phone buzzes with a message from an unknown number. It is a photograph of you, taken seconds ago, from somewhere above.",
	session.SubGenreCosmic:  "You are in the reading room of a coastal archive, holding a chart of a sea that appears on no map. Outside, the tide has gone out much too far.",
}

// GenreDirective assembles the per-session directive text placed at
// the top of every context payload.
func GenreDirective(g session.GenreSelection) string {
	var sb strings.Builder
	sb.WriteString(mainDirectives[g.Main])
	sb.WriteString("\n")
	sb.WriteString(subFlavors[g.Sub])
	return sb.String()
}

// OpeningScene returns the first narration for the genre pair.
func OpeningScene(g session.GenreSelection) string {
	return openings[g.Sub]
}

var labelCaser = cases.Title(language.English)

// Describe returns a short human-readable label for menus.
func Describe(g session.GenreSelection) string {
	return labelCaser.String(string(g.Sub)) + " " + labelCaser.String(string(g.Main))
}
