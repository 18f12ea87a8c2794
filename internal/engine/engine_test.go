package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storycli/storycli/internal/config"
	"github.com/storycli/storycli/internal/services"
	"github.com/storycli/storycli/internal/storage"
	"github.com/storycli/storycli/pkg/session"
)

func testConfig() *config.Config {
	return &config.Config{
		Provider:           config.ProviderMock,
		Temperature:        0.8,
		MaxTokens:          512,
		ContextTokenBudget: 1 << 20,
		WindowSize:         10,
		SummaryInterval:    0,
		LinesPerChunk:      3,
	}
}

func testEngineLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEngine(t *testing.T, cfg *config.Config, mock *services.MockLLMService) *Engine {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir(), testEngineLogger())
	require.NoError(t, err)
	return New(cfg, mock, store, testEngineLogger())
}

func startPlaying(t *testing.T, e *Engine) string {
	t.Helper()
	require.NoError(t, e.ChooseGenre(session.GenreSelection{
		Main: session.GenreMystery,
		Sub:  session.SubGenreFantasy,
	}))
	opening, err := e.BeginStory("Rae")
	require.NoError(t, err)
	return opening
}

func TestEngine_Lifecycle(t *testing.T) {
	mock := services.NewMockLLMService()
	e := newTestEngine(t, testConfig(), mock)

	assert.Equal(t, StateAwaitingGenre, e.State())

	// Genre must be valid, and can only be chosen once.
	assert.Error(t, e.ChooseGenre(session.GenreSelection{Main: "romance", Sub: session.SubGenreFantasy}))
	require.NoError(t, e.ChooseGenre(session.GenreSelection{Main: session.GenreMystery, Sub: session.SubGenreFantasy}))
	assert.Equal(t, StateAwaitingName, e.State())
	assert.Error(t, e.ChooseGenre(session.GenreSelection{Main: session.GenreAction, Sub: session.SubGenreModern}))

	// Name is required.
	_, err := e.BeginStory("   ")
	assert.Error(t, err)

	opening, err := e.BeginStory("Rae")
	require.NoError(t, err)
	assert.NotEmpty(t, opening)
	assert.Equal(t, StatePlaying, e.State())

	// The opening scene is shown, not recorded: turn zero belongs to
	// the first player action.
	assert.Equal(t, 0, e.Session().Turns())
}

func TestEngine_NarrativeTurn(t *testing.T) {
	mock := services.NewMockLLMService()
	mock.GenerateFunc = func(ctx context.Context, req services.Request) (string, error) {
		assert.Contains(t, req.Context, "> light the lantern")
		assert.Contains(t, req.SystemPrompt, "narrator")
		return "The lantern sputters to life. [ITEM +lantern] Shadows retreat to the corners.", nil
	}
	e := newTestEngine(t, testConfig(), mock)
	startPlaying(t, e)

	res, err := e.HandleInput(context.Background(), "light the lantern")
	require.NoError(t, err)

	assert.Equal(t, ResultNarration, res.Kind)
	assert.Equal(t, "The lantern sputters to life. Shadows retreat to the corners.", res.Text)
	require.Len(t, res.Directives, 1)
	require.NotNil(t, res.Record)
	assert.Equal(t, 0, res.Record.Index)

	sess := e.Session()
	assert.Equal(t, 1, sess.Turns())
	assert.Equal(t, []string{"Lantern"}, sess.Character.Inventory)
}

func TestEngine_DirectivesMutateCharacter(t *testing.T) {
	mock := services.NewMockLLMService()
	mock.GenerateFunc = func(ctx context.Context, req services.Request) (string, error) {
		return "The blow lands hard. [STAT health -30] You stagger back. [FLAG wounded]", nil
	}
	e := newTestEngine(t, testConfig(), mock)
	startPlaying(t, e)

	_, err := e.HandleInput(context.Background(), "charge the troll")
	require.NoError(t, err)

	c := e.Session().Character
	assert.Equal(t, 70, c.Stats[session.StatHealth])
	assert.True(t, c.Flags["wounded"])
}

func TestEngine_DirectiveOnlyResponse(t *testing.T) {
	mock := services.NewMockLLMService()
	mock.GenerateFunc = func(ctx context.Context, req services.Request) (string, error) {
		return "[STAT health +5]", nil
	}
	e := newTestEngine(t, testConfig(), mock)
	startPlaying(t, e)

	res, err := e.HandleInput(context.Background(), "rest by the fire")
	require.NoError(t, err)
	assert.Equal(t, "Time passes.", res.Text)
}

func TestEngine_FailedTurnLeavesStateUntouched(t *testing.T) {
	mock := services.NewMockLLMService()
	mock.GenerateFunc = func(ctx context.Context, req services.Request) (string, error) {
		return "", &services.LLMError{Kind: services.ErrTimeout, Err: context.DeadlineExceeded}
	}
	e := newTestEngine(t, testConfig(), mock)
	startPlaying(t, e)

	_, err := e.HandleInput(context.Background(), "open the door")
	require.Error(t, err)

	var llmErr *services.LLMError
	assert.ErrorAs(t, err, &llmErr)

	// Nothing was recorded and the player can retry the same action.
	assert.Equal(t, StatePlaying, e.State())
	assert.Equal(t, 0, e.Session().Turns())
	assert.Equal(t, 100, e.Session().Character.Stats[session.StatHealth])

	mock.GenerateFunc = nil
	res, err := e.HandleInput(context.Background(), "open the door")
	require.NoError(t, err)
	assert.Equal(t, ResultNarration, res.Kind)
	assert.Equal(t, 1, e.Session().Turns())
}

func TestEngine_EmptyAction(t *testing.T) {
	mock := services.NewMockLLMService()
	e := newTestEngine(t, testConfig(), mock)
	startPlaying(t, e)

	_, err := e.HandleInput(context.Background(), "   ")
	assert.Error(t, err)
	assert.Equal(t, 0, mock.CallCount())
}

func TestEngine_MetaCommandsSkipModel(t *testing.T) {
	mock := services.NewMockLLMService()
	e := newTestEngine(t, testConfig(), mock)
	startPlaying(t, e)

	for _, input := range []string{"help", "stats", "inventory", "summary"} {
		res, err := e.HandleInput(context.Background(), input)
		require.NoError(t, err, input)
		assert.Equal(t, ResultMeta, res.Kind, input)
		assert.NotEmpty(t, res.Text, input)
	}

	assert.Equal(t, 0, mock.CallCount(), "meta-commands never invoke the model")
	assert.Equal(t, 0, e.Session().Turns(), "meta-commands never consume a turn")
}

func TestEngine_MetaCommandOutputs(t *testing.T) {
	mock := services.NewMockLLMService()
	e := newTestEngine(t, testConfig(), mock)
	startPlaying(t, e)

	res, err := e.HandleInput(context.Background(), "stats")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Health: 100")
	assert.Contains(t, res.Text, "Strength: 10")

	res, err = e.HandleInput(context.Background(), "inventory")
	require.NoError(t, err)
	assert.Equal(t, "Your inventory is empty.", res.Text)

	res, err = e.HandleInput(context.Background(), "summary")
	require.NoError(t, err)
	assert.Equal(t, "No story has been told yet.", res.Text)
}

func TestEngine_Quit(t *testing.T) {
	mock := services.NewMockLLMService()
	e := newTestEngine(t, testConfig(), mock)
	startPlaying(t, e)

	res, err := e.HandleInput(context.Background(), "quit")
	require.NoError(t, err)
	assert.Equal(t, ResultQuit, res.Kind)
	assert.Equal(t, StateEnded, e.State())

	// Nothing works after the session ends.
	_, err = e.HandleInput(context.Background(), "look around")
	assert.Error(t, err)
	_, err = e.HandleInput(context.Background(), "stats")
	assert.Error(t, err)
}

func TestEngine_SaveAndLoadRoundTrip(t *testing.T) {
	mock := services.NewMockLLMService()
	mock.GenerateFunc = func(ctx context.Context, req services.Request) (string, error) {
		return "You advance. [ITEM +torch]", nil
	}
	e := newTestEngine(t, testConfig(), mock)
	startPlaying(t, e)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := e.HandleInput(ctx, fmt.Sprintf("step %d", i))
		require.NoError(t, err)
	}
	savedID := e.Session().ID

	res, err := e.HandleInput(ctx, "save slot1")
	require.NoError(t, err)
	assert.Equal(t, ResultMeta, res.Kind)
	assert.Contains(t, res.Text, "slot1")

	// Keep playing past the save point.
	_, err = e.HandleInput(ctx, "step past the save")
	require.NoError(t, err)
	require.Equal(t, 4, e.Session().Turns())

	res, err = e.HandleInput(ctx, "load slot1")
	require.NoError(t, err)
	assert.Equal(t, ResultMeta, res.Kind)

	sess := e.Session()
	assert.Equal(t, savedID, sess.ID)
	assert.Equal(t, 3, sess.Turns())
	assert.Equal(t, []string{"Torch", "Torch", "Torch"}, sess.Character.Inventory)
	assert.Equal(t, StatePlaying, e.State())
}

func TestEngine_LoadMissingSlotKeepsSession(t *testing.T) {
	mock := services.NewMockLLMService()
	e := newTestEngine(t, testConfig(), mock)
	startPlaying(t, e)

	ctx := context.Background()
	_, err := e.HandleInput(ctx, "look around")
	require.NoError(t, err)

	_, err = e.HandleInput(ctx, "load missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrSlotNotFound)

	// The in-memory session survives the failed load.
	assert.Equal(t, StatePlaying, e.State())
	assert.Equal(t, 1, e.Session().Turns())
}

func TestEngine_SaveDefaultSlot(t *testing.T) {
	mock := services.NewMockLLMService()
	e := newTestEngine(t, testConfig(), mock)
	startPlaying(t, e)

	res, err := e.HandleInput(context.Background(), "save")
	require.NoError(t, err)
	assert.Contains(t, res.Text, DefaultSlot)

	require.NoError(t, e.Load(context.Background(), DefaultSlot))
}

func TestEngine_WindowBoundOverLongSession(t *testing.T) {
	cfg := testConfig()
	cfg.WindowSize = 10
	mock := services.NewMockLLMService()
	e := newTestEngine(t, cfg, mock)
	startPlaying(t, e)

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		_, err := e.HandleInput(ctx, fmt.Sprintf("step %d", i))
		require.NoError(t, err)
	}

	assert.Equal(t, 50, e.Session().Turns(), "full history is retained")
	assert.NotEmpty(t, e.SummaryText(), "older turns live on in the summary")

	res, err := e.HandleInput(ctx, "summary")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "The story so far:")
}

func TestEngine_PeriodicResummarize(t *testing.T) {
	cfg := testConfig()
	cfg.WindowSize = 2
	cfg.SummaryInterval = 5
	mock := services.NewMockLLMService()
	summaryCalls := 0
	mock.GenerateFunc = func(ctx context.Context, req services.Request) (string, error) {
		if req.SystemPrompt != "" && req.Context != "" && req.Params.Temperature == 0.3 {
			summaryCalls++
			return "A model-written recap.", nil
		}
		return "The story moves on. Something new appears ahead of you.", nil
	}
	e := newTestEngine(t, cfg, mock)
	startPlaying(t, e)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := e.HandleInput(ctx, fmt.Sprintf("step %d", i))
		require.NoError(t, err)
	}

	assert.Equal(t, 1, summaryCalls)
	assert.Equal(t, "The story so far: A model-written recap.", e.summaryText())
}

func TestEngine_OverviewIsACopy(t *testing.T) {
	mock := services.NewMockLLMService()
	e := newTestEngine(t, testConfig(), mock)

	assert.Nil(t, e.Overview(), "no overview before the story begins")

	startPlaying(t, e)
	ov := e.Overview()
	require.NotNil(t, ov)
	assert.Equal(t, "Rae", ov.Name)
	assert.Equal(t, 100, ov.Stats[session.StatHealth])

	ov.Stats[session.StatHealth] = 1
	ov.Inventory = append(ov.Inventory, "Forged Item")
	assert.Equal(t, 100, e.Session().Character.Stats[session.StatHealth])
	assert.Empty(t, e.Session().Character.Inventory)
}

func TestEngine_FirstTurnContext(t *testing.T) {
	var captured services.Request
	mock := services.NewMockLLMService()
	mock.GenerateFunc = func(ctx context.Context, req services.Request) (string, error) {
		captured = req
		return "The horizon shimmers with distant ships.", nil
	}
	e := newTestEngine(t, testConfig(), mock)
	require.NoError(t, e.ChooseGenre(session.GenreSelection{
		Main: session.GenreAction,
		Sub:  session.SubGenreSciFi,
	}))
	_, err := e.BeginStory("Rae")
	require.NoError(t, err)

	_, err = e.HandleInput(context.Background(), "scan the horizon")
	require.NoError(t, err)

	assert.Contains(t, captured.Context, "action story")
	assert.Contains(t, captured.Context, "science fiction")
	assert.Contains(t, captured.Context, "Rae")
	assert.Contains(t, captured.Context, "> scan the horizon")
	assert.NotContains(t, captured.Context, "The story so far",
		"no summary exists before the first turn")
}

func TestEngine_MetaCommandsDuringPendingCall(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	mock := services.NewMockLLMService()
	mock.GenerateFunc = func(ctx context.Context, req services.Request) (string, error) {
		close(started)
		<-release
		return "The door finally gives way.", nil
	}
	e := newTestEngine(t, testConfig(), mock)
	startPlaying(t, e)

	ctx := context.Background()
	done := make(chan error, 1)
	go func() {
		_, err := e.HandleInput(ctx, "force the door")
		done <- err
	}()
	<-started

	// Local meta-commands still work while the call is outstanding.
	res, err := e.HandleInput(ctx, "stats")
	require.NoError(t, err)
	assert.Equal(t, ResultMeta, res.Kind)

	// A second narrative action, or a save, does not.
	_, err = e.HandleInput(ctx, "try the window")
	assert.ErrorIs(t, err, ErrTurnInFlight)
	_, err = e.HandleInput(ctx, "save")
	assert.ErrorIs(t, err, ErrTurnInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, e.Session().Turns())
}

func TestIsMetaCommand(t *testing.T) {
	for _, word := range []string{"help", "quit", "stats", "inventory", "summary", "save", "load"} {
		assert.True(t, IsMetaCommand(word), word)
	}
	for _, word := range []string{"look", "go", "attack", ""} {
		assert.False(t, IsMetaCommand(word), word)
	}
}
