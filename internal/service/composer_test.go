package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cardnews/internal/model"
)

func slideTypes(deck model.Deck) []model.SlideType {
	out := make([]model.SlideType, len(deck.Slides))
	for i, s := range deck.Slides {
		out[i] = s.Type
	}
	return out
}

func TestCompose_EmptyInputReturnsApologyDeck(t *testing.T) {
	llm := new(mockLLM)
	logDir := t.TempDir()

	out := NewComposer(llm, logDir, zap.NewNop()).Compose(t.Context(), nil, model.Daily)

	assert.True(t, out.Degraded)
	assert.Equal(t, CauseEmptyInput, out.Cause)
	require.Len(t, out.Value.Slides, 2)
	assert.Equal(t, model.SlideCover, out.Value.Slides[0].Type)
	assert.Equal(t, model.SlideSummary, out.Value.Slides[1].Type)
	assert.Contains(t, out.Value.Slides[1].Content, "Sorry")
	assert.NoError(t, out.Value.Validate())
	llm.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything, mock.Anything)

	dumps, err := filepath.Glob(filepath.Join(logDir, "cardnews-content-*.json"))
	require.NoError(t, err)
	assert.Len(t, dumps, 1)
}

func TestCompose_ModelFailureBuildsDeterministicDeck(t *testing.T) {
	llm := new(mockLLM)
	llm.On("Available").Return(true)
	llm.On("Chat", mock.Anything, "prompt:"+model.SettingPromptCompose, mock.Anything).Return("", errors.New("rate limited"))

	analyzed := []model.AnalyzedNews{
		analyzedNews("a", 9, model.CategoryAI),
		analyzedNews("b", 8, model.CategoryCloud),
		analyzedNews("c", 7, model.CategoryAI),
	}

	out := NewComposer(llm, t.TempDir(), zap.NewNop()).Compose(t.Context(), analyzed, model.Daily)

	assert.True(t, out.Degraded)
	assert.Equal(t, CauseUpstream, out.Cause)
	assert.Equal(t, []model.SlideType{
		model.SlideCover, model.SlideNews, model.SlideNews, model.SlideNews, model.SlideSummary,
	}, slideTypes(out.Value))

	first := out.Value.Slides[1]
	assert.Equal(t, "Story a", first.Title)
	assert.Equal(t, "Summary of a", first.Content)
	assert.Equal(t, "a", first.SourceURL)
	assert.Len(t, first.Tags, 3)
	assert.Contains(t, out.Value.Slides[4].Content, "AI (2)")
	assert.NoError(t, out.Value.Validate())
}

func TestCompose_UsesValidModelDeck(t *testing.T) {
	llm := new(mockLLM)
	llm.On("Available").Return(true)
	llm.On("Chat", mock.Anything, mock.Anything, mock.Anything).Return(`{"slides":[
		{"type":"cover","title":"AI week","subtitle":"agents everywhere"},
		{"type":"news","title":"Agents","content":"c","tags":["AI"],"sourceUrl":"a","imagePrompt":"robot"},
		{"type":"summary","title":"Wrap","content":"w"}
	]}`, nil)

	out := NewComposer(llm, "", zap.NewNop()).Compose(t.Context(), []model.AnalyzedNews{analyzedNews("a", 9, "AI")}, model.Monthly)

	require.False(t, out.Degraded)
	require.Len(t, out.Value.Slides, 3)
	assert.Equal(t, "AI week", out.Value.Slides[0].Title)
	assert.Equal(t, "robot", out.Value.Slides[1].ImagePrompt)
}

func TestCompose_InvalidModelDeckFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "no slides", reply: `{"slides":[]}`},
		{name: "unknown type", reply: `{"slides":[{"type":"chart","title":"x"}]}`},
		{name: "missing title", reply: `{"slides":[{"type":"cover"}]}`},
		{name: "not json", reply: `here is your deck`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := new(mockLLM)
			llm.On("Available").Return(true)
			llm.On("Chat", mock.Anything, mock.Anything, mock.Anything).Return(tt.reply, nil)

			analyzed := []model.AnalyzedNews{analyzedNews("a", 9, "AI")}
			out := NewComposer(llm, "", zap.NewNop()).Compose(t.Context(), analyzed, model.Daily)

			assert.True(t, out.Degraded)
			assert.Equal(t, CauseMalformed, out.Cause)
			assert.Len(t, out.Value.Slides, 3)
		})
	}
}

func TestCompose_DumpFailureIsNotFatal(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	llm := new(mockLLM)
	llm.On("Available").Return(false)

	out := NewComposer(llm, filepath.Join(blocker, "logs"), zap.NewNop()).
		Compose(t.Context(), []model.AnalyzedNews{analyzedNews("a", 9, "AI")}, model.Daily)

	assert.Len(t, out.Value.Slides, 3)
	assert.Equal(t, CauseMissingCredential, out.Cause)
}
