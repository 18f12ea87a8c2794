// Package directive extracts state-affecting directives from raw
// model output.
//
// A directive is recognized only inside square brackets, one per
// bracket pair:
//
//	[STAT <name> +N]  [STAT <name> -N]  [STAT <name> =N]
//	[ITEM +<item name>]  [ITEM -<item name>]
//	[FLAG <flag_name>]
//
// Everything else, bracketed or not, is narrative text. Recognized
// directives are stripped from the displayed text; malformed ones are
// left in place and ignored. Parsing never fails.
package directive

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Directive is a parsed state change. The concrete types are
// StatChange, ItemGained, ItemLost, FlagSet, and NoOp.
type Directive interface {
	isDirective()
}

// StatChange adjusts a stat by Delta, or assigns Value when Absolute.
type StatChange struct {
	Stat     string
	Delta    int
	Absolute bool
	Value    int
}

// ItemGained adds an item to the inventory.
type ItemGained struct {
	Item string
}

// ItemLost removes one matching item from the inventory.
type ItemLost struct {
	Item string
}

// FlagSet records a plot flag.
type FlagSet struct {
	Flag string
}

// NoOp is returned for bracketed text that looks like a directive but
// does not parse. It exists so callers can count soft failures.
type NoOp struct {
	Raw string
}

func (StatChange) isDirective() {}
func (ItemGained) isDirective() {}
func (ItemLost) isDirective()   {}
func (FlagSet) isDirective()    {}
func (NoOp) isDirective()       {}

var bracketRe = regexp.MustCompile(`\[\s*(?i:(STAT|ITEM|FLAG))\s+([^\]]+)\]`)

var itemCaser = cases.Title(language.English)

// Parse scans model output for directives. It returns the text with
// recognized directives removed, and the directives in order of
// appearance. Malformed candidates yield a NoOp and stay in the text.
func Parse(text string) (string, []Directive) {
	var directives []Directive

	clean := bracketRe.ReplaceAllStringFunc(text, func(match string) string {
		groups := bracketRe.FindStringSubmatch(match)
		d := parseOne(strings.ToUpper(groups[1]), strings.TrimSpace(groups[2]))
		directives = append(directives, d)
		if _, soft := d.(NoOp); soft {
			return match
		}
		return ""
	})

	return tidyWhitespace(clean), directives
}

func parseOne(kind, body string) Directive {
	switch kind {
	case "STAT":
		return parseStat(body)
	case "ITEM":
		return parseItem(body)
	case "FLAG":
		return parseFlag(body)
	}
	return NoOp{Raw: body}
}

func parseStat(body string) Directive {
	fields := strings.Fields(body)
	if len(fields) < 2 {
		return NoOp{Raw: body}
	}
	// Stat name may contain spaces; the last field is the operation.
	op := fields[len(fields)-1]
	name := normalizeKey(strings.Join(fields[:len(fields)-1], " "))
	if name == "" || len(op) < 2 {
		return NoOp{Raw: body}
	}

	n, err := strconv.Atoi(op[1:])
	if err != nil {
		return NoOp{Raw: body}
	}
	switch op[0] {
	case '+':
		return StatChange{Stat: name, Delta: n}
	case '-':
		return StatChange{Stat: name, Delta: -n}
	case '=':
		return StatChange{Stat: name, Absolute: true, Value: n}
	}
	return NoOp{Raw: body}
}

func parseItem(body string) Directive {
	if len(body) < 2 {
		return NoOp{Raw: body}
	}
	name := strings.TrimSpace(body[1:])
	if name == "" {
		return NoOp{Raw: body}
	}
	item := itemCaser.String(strings.ToLower(name))
	switch body[0] {
	case '+':
		return ItemGained{Item: item}
	case '-':
		return ItemLost{Item: item}
	}
	return NoOp{Raw: body}
}

func parseFlag(body string) Directive {
	flag := normalizeKey(body)
	if flag == "" {
		return NoOp{Raw: body}
	}
	return FlagSet{Flag: flag}
}

// normalizeKey lowercases and snake_cases a stat or flag name.
func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "_")
}

var (
	multiSpaceRe = regexp.MustCompile(`[ \t]{2,}`)
	multiBlankRe = regexp.MustCompile(`\n{3,}`)
)

// tidyWhitespace collapses gaps left behind by stripped directives.
func tidyWhitespace(s string) string {
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = multiBlankRe.ReplaceAllString(s, "\n\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
