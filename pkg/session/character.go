package session

import (
	"fmt"
	"sort"
	"strings"
)

// StatBounds is the inclusive clamping range for one stat.
type StatBounds struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Default character sheet. Health runs 0-100, everything else 0-20.
const (
	StatHealth       = "health"
	StatStrength     = "strength"
	StatIntelligence = "intelligence"
	StatCharisma     = "charisma"
)

// CharacterState tracks the player character: clamped integer stats,
// an acquisition-ordered inventory (duplicates allowed), and plot
// flags. It is mutated only by the turn loop, never concurrently.
type CharacterState struct {
	Name      string                `json:"name"`
	Stats     map[string]int        `json:"stats"`
	Bounds    map[string]StatBounds `json:"bounds"`
	Inventory []string              `json:"inventory"`
	Flags     map[string]bool       `json:"flags,omitempty"`
}

// NewCharacter creates a character with the default stat block.
func NewCharacter(name string) *CharacterState {
	return &CharacterState{
		Name: name,
		Stats: map[string]int{
			StatHealth:       100,
			StatStrength:     10,
			StatIntelligence: 10,
			StatCharisma:     10,
		},
		Bounds: map[string]StatBounds{
			StatHealth:       {Min: 0, Max: 100},
			StatStrength:     {Min: 0, Max: 20},
			StatIntelligence: {Min: 0, Max: 20},
			StatCharisma:     {Min: 0, Max: 20},
		},
		Inventory: make([]string, 0),
		Flags:     make(map[string]bool),
	}
}

// AdjustStat shifts a stat by delta, clamped to its bounds, and
// returns the resulting value. Unknown stats are created with the
// default [0,20] bounds.
func (c *CharacterState) AdjustStat(name string, delta int) int {
	return c.SetStat(name, c.Stats[name]+delta)
}

// SetStat assigns a stat, clamped to its bounds, and returns the
// resulting value.
func (c *CharacterState) SetStat(name string, value int) int {
	bounds, ok := c.Bounds[name]
	if !ok {
		bounds = StatBounds{Min: 0, Max: 20}
		if c.Bounds == nil {
			c.Bounds = make(map[string]StatBounds)
		}
		c.Bounds[name] = bounds
	}
	if value < bounds.Min {
		value = bounds.Min
	}
	if value > bounds.Max {
		value = bounds.Max
	}
	if c.Stats == nil {
		c.Stats = make(map[string]int)
	}
	c.Stats[name] = value
	return value
}

// AddItem appends an item; insertion order is acquisition order.
func (c *CharacterState) AddItem(item string) {
	c.Inventory = append(c.Inventory, item)
}

// RemoveItem drops the first matching item and reports whether one
// was removed.
func (c *CharacterState) RemoveItem(item string) bool {
	for i, have := range c.Inventory {
		if have == item {
			c.Inventory = append(c.Inventory[:i], c.Inventory[i+1:]...)
			return true
		}
	}
	return false
}

// SetFlag records a plot-branch tag. Flags are set-only.
func (c *CharacterState) SetFlag(flag string) {
	if c.Flags == nil {
		c.Flags = make(map[string]bool)
	}
	c.Flags[flag] = true
}

// PromptSheet renders the character as structured hints for the
// context payload.
func (c *CharacterState) PromptSheet() string {
	var sb strings.Builder
	sb.WriteString("[Character] ")
	sb.WriteString(c.Name)

	names := make([]string, 0, len(c.Stats))
	for name := range c.Stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&sb, " | %s %d", name, c.Stats[name])
	}

	if len(c.Inventory) > 0 {
		sb.WriteString("\n[Inventory] ")
		sb.WriteString(strings.Join(c.Inventory, ", "))
	}

	if len(c.Flags) > 0 {
		flags := make([]string, 0, len(c.Flags))
		for flag := range c.Flags {
			flags = append(flags, flag)
		}
		sort.Strings(flags)
		sb.WriteString("\n[Story flags] ")
		sb.WriteString(strings.Join(flags, ", "))
	}

	return sb.String()
}
