// Package engine drives the turn loop: it owns the session, builds
// context payloads, calls the model, applies parsed directives, and
// coordinates save/load. Exactly one narrative turn is in flight at a
// time; meta-commands never touch the model.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/storycli/storycli/internal/config"
	"github.com/storycli/storycli/internal/services"
	"github.com/storycli/storycli/internal/storage"
	"github.com/storycli/storycli/pkg/directive"
	"github.com/storycli/storycli/pkg/prompts"
	"github.com/storycli/storycli/pkg/session"
	"github.com/storycli/storycli/pkg/story"
)

// State is the engine's position in the game lifecycle.
type State int

const (
	StateAwaitingGenre State = iota
	StateAwaitingName
	StatePlaying
	StateSaving
	StateLoading
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateAwaitingGenre:
		return "awaiting-genre"
	case StateAwaitingName:
		return "awaiting-name"
	case StatePlaying:
		return "playing"
	case StateSaving:
		return "saving"
	case StateLoading:
		return "loading"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

// ErrTurnInFlight is returned when a narrative action arrives while a
// model call is still outstanding.
var ErrTurnInFlight = errors.New("a turn is already being processed")

// DefaultSlot is used by bare save/load commands.
const DefaultSlot = "quicksave"

// ResultKind distinguishes what a processed input produced.
type ResultKind int

const (
	// ResultMeta is locally handled output; no turn was consumed.
	ResultMeta ResultKind = iota
	// ResultNarration is a completed narrative turn.
	ResultNarration
	// ResultQuit signals the player ended the session.
	ResultQuit
)

// TurnResult is the outcome of one processed input.
type TurnResult struct {
	Kind       ResultKind
	Text       string
	Directives []directive.Directive
	Record     *story.TurnRecord
}

// Engine orchestrates one game session.
type Engine struct {
	cfg    *config.Config
	llm    services.LLMService
	store  storage.SaveStore
	logger *slog.Logger

	// mu serializes access to session state. It is deliberately not
	// held across the model call, so meta-commands stay responsive
	// while a turn is outstanding; inFlight blocks a second narrative
	// action in the meantime.
	mu         sync.Mutex
	state      State
	genre      session.GenreSelection
	sess       *session.Session
	buf        *story.Buffer
	summarizer story.Summarizer
	inFlight   bool
}

func New(cfg *config.Config, llm services.LLMService, store storage.SaveStore, logger *slog.Logger) *Engine {
	e := &Engine{
		cfg:    cfg,
		llm:    llm,
		store:  store,
		logger: logger,
		state:  StateAwaitingGenre,
	}
	if cfg.SummaryInterval > 0 {
		e.summarizer = story.NewLLMSummarizer(func(ctx context.Context, system, prompt string) (string, error) {
			return llm.Generate(ctx, services.Request{
				SystemPrompt: system,
				Context:      prompt,
				Params: services.GenerationParams{
					Temperature: 0.3,
					MaxTokens:   cfg.MaxTokens,
				},
			})
		})
	}
	return e
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Session exposes the aggregate for tests. Nil before the story
// begins.
func (e *Engine) Session() *session.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess
}

// Overview is a copied, display-ready view of the session for the
// side panel. Safe to hold while a turn is outstanding.
type Overview struct {
	SessionID  string
	Genre      session.GenreSelection
	Name       string
	Stats      map[string]int
	Inventory  []string
	Flags      []string
	Turns      int
	HasSummary bool
}

func (e *Engine) Overview() *Overview {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return nil
	}
	c := e.sess.Character
	stats := make(map[string]int, len(c.Stats))
	for k, v := range c.Stats {
		stats[k] = v
	}
	inventory := make([]string, len(c.Inventory))
	copy(inventory, c.Inventory)
	flags := make([]string, 0, len(c.Flags))
	for flag := range c.Flags {
		flags = append(flags, flag)
	}
	sort.Strings(flags)
	return &Overview{
		SessionID:  e.sess.ID.String(),
		Genre:      e.sess.Genre,
		Name:       c.Name,
		Stats:      stats,
		Inventory:  inventory,
		Flags:      flags,
		Turns:      e.sess.Turns(),
		HasSummary: e.buf.Summary() != "",
	}
}

// ChooseGenre pins the genre pair for the session.
func (e *Engine) ChooseGenre(g session.GenreSelection) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateAwaitingGenre {
		return fmt.Errorf("genre already chosen (state %s)", e.state)
	}
	if err := g.Validate(); err != nil {
		return err
	}
	e.genre = g
	e.state = StateAwaitingName
	return nil
}

// BeginStory creates the session for the named character and returns
// the opening scene.
func (e *Engine) BeginStory(name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateAwaitingName {
		return "", fmt.Errorf("cannot begin story in state %s", e.state)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("character name cannot be empty")
	}

	sess := session.New(e.genre, name)
	buf, err := e.newBufferFor(sess)
	if err != nil {
		return "", err
	}

	e.sess = sess
	e.buf = buf
	e.state = StatePlaying
	e.logger.Info("Story started", "session_id", sess.ID, "genre", sess.Genre.String(), "character", name)
	return prompts.OpeningScene(e.genre), nil
}

// HandleInput processes one line of player input while Playing.
// Meta-commands are resolved locally; anything else is a narrative
// action and consumes a turn.
func (e *Engine) HandleInput(ctx context.Context, input string) (*TurnResult, error) {
	trimmed := strings.TrimSpace(input)
	fields := strings.Fields(strings.ToLower(trimmed))

	if len(fields) > 0 && IsMetaCommand(fields[0]) {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.state != StatePlaying {
			return nil, fmt.Errorf("not playing (state %s)", e.state)
		}
		return e.handleMeta(ctx, fields)
	}

	return e.act(ctx, trimmed)
}

// IsMetaCommand reports whether word is a reserved meta-command.
func IsMetaCommand(word string) bool {
	switch word {
	case "help", "quit", "stats", "inventory", "summary", "save", "load":
		return true
	}
	return false
}

// handleMeta dispatches a reserved command. Meta-commands are handled
// locally, never invoke the model, and do not consume a turn. Caller
// holds e.mu.
func (e *Engine) handleMeta(ctx context.Context, fields []string) (*TurnResult, error) {
	switch fields[0] {
	case "help":
		return &TurnResult{Kind: ResultMeta, Text: helpText}, nil
	case "quit":
		e.state = StateEnded
		e.logger.Info("Session ended by player")
		return &TurnResult{Kind: ResultQuit, Text: "Goodbye!"}, nil
	case "stats":
		return &TurnResult{Kind: ResultMeta, Text: statsText(e.sess.Character)}, nil
	case "inventory":
		return &TurnResult{Kind: ResultMeta, Text: inventoryText(e.sess.Character)}, nil
	case "summary":
		return &TurnResult{Kind: ResultMeta, Text: e.summaryText()}, nil
	case "save":
		slot := DefaultSlot
		if len(fields) > 1 {
			slot = fields[1]
		}
		if err := e.saveLocked(ctx, slot); err != nil {
			return nil, err
		}
		return &TurnResult{Kind: ResultMeta, Text: fmt.Sprintf("Game saved to slot %q.", slot)}, nil
	case "load":
		slot := DefaultSlot
		if len(fields) > 1 {
			slot = fields[1]
		}
		if err := e.loadLocked(ctx, slot); err != nil {
			return nil, err
		}
		return &TurnResult{Kind: ResultMeta, Text: fmt.Sprintf("Game loaded from slot %q.", slot)}, nil
	}
	return nil, fmt.Errorf("unrecognized meta-command %q", fields[0])
}

// act runs one narrative turn. Session state is mutated only after
// the model call fully succeeds, so a failed or abandoned call leaves
// everything untouched and the same action can be retried. The lock
// is released around the model call.
func (e *Engine) act(ctx context.Context, action string) (*TurnResult, error) {
	e.mu.Lock()
	if e.state != StatePlaying {
		e.mu.Unlock()
		return nil, fmt.Errorf("not playing (state %s)", e.state)
	}
	if e.inFlight {
		e.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	payload, err := e.buf.BuildContext(action)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.inFlight = true
	e.mu.Unlock()

	raw, err := e.llm.Generate(ctx, services.Request{
		SystemPrompt: prompts.SystemPrompt,
		Context:      payload,
		Params: services.GenerationParams{
			Temperature: e.cfg.Temperature,
			MaxTokens:   e.cfg.MaxTokens,
		},
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight = false
	if err != nil {
		e.logger.Error("Model call failed", "error", err)
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	if e.state != StatePlaying {
		// The player quit while the call was outstanding. Discard the
		// result without recording anything.
		return nil, fmt.Errorf("session ended during turn")
	}

	clean, directives := directive.Parse(raw)
	if clean == "" {
		// A response that was nothing but directives still needs to
		// show the player something.
		clean = "Time passes."
	}
	applyDirectives(e.sess.Character, directives)
	rec := e.buf.RecordTurn(action, clean)

	e.maybeResummarize(ctx)

	e.logger.Debug("Turn recorded", "index", rec.Index, "directives", len(directives))
	return &TurnResult{
		Kind:       ResultNarration,
		Text:       clean,
		Directives: directives,
		Record:     &rec,
	}, nil
}

// maybeResummarize periodically rewrites the extractive summary with
// a model-written one. Failures keep the extractive fallback.
func (e *Engine) maybeResummarize(ctx context.Context) {
	if e.summarizer == nil || e.cfg.SummaryInterval <= 0 {
		return
	}
	if e.buf.FoldedThrough() == 0 || e.sess.Turns()%e.cfg.SummaryInterval != 0 {
		return
	}
	if err := e.buf.Resummarize(ctx, e.summarizer); err != nil {
		e.logger.Warn("Summary regeneration failed, keeping extractive summary", "error", err)
	}
}

// Save snapshots the session to a slot. No turn processing proceeds
// while a save is in flight.
func (e *Engine) Save(ctx context.Context, slot string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saveLocked(ctx, slot)
}

func (e *Engine) saveLocked(ctx context.Context, slot string) error {
	if e.state != StatePlaying {
		return fmt.Errorf("cannot save in state %s", e.state)
	}
	if e.inFlight {
		return ErrTurnInFlight
	}
	e.state = StateSaving
	defer func() { e.state = StatePlaying }()

	if err := e.store.Save(ctx, slot, e.sess.Snapshot(e.buf)); err != nil {
		return fmt.Errorf("save failed: %w", err)
	}
	return nil
}

// Load replaces the current session with a saved one. A failed load
// leaves the in-memory session untouched.
func (e *Engine) Load(ctx context.Context, slot string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadLocked(ctx, slot)
}

func (e *Engine) loadLocked(ctx context.Context, slot string) error {
	if e.state != StatePlaying && e.state != StateAwaitingGenre {
		return fmt.Errorf("cannot load in state %s", e.state)
	}
	if e.inFlight {
		return ErrTurnInFlight
	}
	prev := e.state
	e.state = StateLoading
	restored := false
	defer func() {
		if restored {
			e.state = StatePlaying
		} else {
			e.state = prev
		}
	}()

	snap, err := e.store.Load(ctx, slot)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}

	sess, err := snap.Restore()
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}

	buf, err := e.newBufferFor(sess)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	if err := buf.RestoreFold(snap.Folded, snap.Summary); err != nil {
		return fmt.Errorf("load failed: %w: %v", session.ErrCorruptSave, err)
	}

	e.genre = sess.Genre
	e.sess = sess
	e.buf = buf
	restored = true
	e.logger.Info("Session restored", "session_id", sess.ID, "turns", sess.Turns())
	return nil
}

// SummaryText returns the carry-forward, for display.
func (e *Engine) SummaryText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.buf == nil {
		return ""
	}
	return e.buf.Summary()
}

func (e *Engine) newBufferFor(sess *session.Session) (*story.Buffer, error) {
	return story.NewBuffer(sess.Log, story.BufferConfig{
		MaxWindow:   e.cfg.WindowSize,
		TokenBudget: e.cfg.ContextTokenBudget,
		Directive:   prompts.GenreDirective(sess.Genre),
		Sheet:       sess.Character,
		Logger:      e.logger,
	})
}

func (e *Engine) summaryText() string {
	if s := e.buf.Summary(); s != "" {
		return "The story so far: " + s
	}
	if e.sess.Turns() == 0 {
		return "No story has been told yet."
	}
	return "The whole story is still fresh; nothing has been summarized away."
}

func applyDirectives(c *session.CharacterState, directives []directive.Directive) {
	for _, d := range directives {
		switch d := d.(type) {
		case directive.StatChange:
			if d.Absolute {
				c.SetStat(d.Stat, d.Value)
			} else {
				c.AdjustStat(d.Stat, d.Delta)
			}
		case directive.ItemGained:
			c.AddItem(d.Item)
		case directive.ItemLost:
			c.RemoveItem(d.Item)
		case directive.FlagSet:
			c.SetFlag(d.Flag)
		}
	}
}

const helpText = `Type any action to play (e.g. "go north", "search the desk").

Meta-commands:
  help         show this message
  stats        view your character stats
  inventory    check your inventory
  summary      recap the story so far
  save [slot]  save the game (default slot "quicksave")
  load [slot]  load a saved game
  quit         exit the game`

func statsText(c *session.CharacterState) string {
	var sb strings.Builder
	sb.WriteString("Your stats:\n")

	names := make([]string, 0, len(c.Stats))
	for name := range c.Stats {
		if name != session.StatHealth {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := c.Stats[session.StatHealth]; ok {
		names = append([]string{session.StatHealth}, names...)
	}

	for _, name := range names {
		fmt.Fprintf(&sb, "%s%s: %d\n", strings.ToUpper(name[:1]), name[1:], c.Stats[name])
	}
	return strings.TrimRight(sb.String(), "\n")
}

func inventoryText(c *session.CharacterState) string {
	if len(c.Inventory) == 0 {
		return "Your inventory is empty."
	}
	var sb strings.Builder
	sb.WriteString("Your inventory:\n")
	for _, item := range c.Inventory {
		sb.WriteString("- " + item + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
