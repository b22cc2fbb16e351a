package service

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardnews/internal/model"
)

func sampleDeck() model.Deck {
	return model.Deck{Slides: []model.Slide{
		{Type: model.SlideCover, Title: "Today's IT News", Subtitle: "October 16, 2026"},
		{Type: model.SlideNews, Title: "AI chips", Content: "Demand keeps rising.", Tags: []string{"AI", "IT"}, SourceURL: "https://example.com/a"},
		{Type: model.SlideNews, Title: "클라우드 보안", Content: "요약 내용", ImagePrompt: "lock on a cloud"},
		{Type: model.SlideSummary, Title: "Key Trends", Content: "2 stories covered."},
	}}
}

func TestTranscript_RoundTrip(t *testing.T) {
	deck := sampleDeck()

	var buf bytes.Buffer
	require.NoError(t, WriteTranscript(&buf, deck))
	assert.True(t, strings.HasPrefix(buf.String(), transcriptHeader+"\n"))

	parsed, err := ParseTranscript(&buf)
	require.NoError(t, err)
	assert.Equal(t, deck, parsed)
}

func TestWriteTranscript_CollapsesNewlinesAndSkipsEmpty(t *testing.T) {
	deck := model.Deck{Slides: []model.Slide{
		{Type: model.SlideNews, Title: "", Content: "line one\nline two\n\n[summary]"},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteTranscript(&buf, deck))
	out := buf.String()

	assert.Contains(t, out, "title: (untitled)\n")
	assert.Contains(t, out, "content: line one line two [summary]\n")
	assert.NotContains(t, out, "subtitle:")
	assert.NotContains(t, out, "tags:")

	parsed, err := ParseTranscript(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, parsed.Slides, 1)
	assert.Equal(t, model.SlideNews, parsed.Slides[0].Type)
}

func TestParseTranscript_MarkerRequiresBlankLine(t *testing.T) {
	raw := strings.Join([]string{
		transcriptHeader,
		"",
		"[cover]",
		"title: Cover",
		"[news]",
		"",
		"[summary]",
		"title: End",
	}, "\n")

	deck, err := ParseTranscript(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, []model.SlideType{model.SlideCover, model.SlideSummary}, slideTypes(deck))
}

func TestParseTranscript_NoSlides(t *testing.T) {
	_, err := ParseTranscript(strings.NewReader(transcriptHeader + "\n"))
	assert.ErrorContains(t, err, "no slides")
}

func TestTranscript_TagsWithCommasStayIntact(t *testing.T) {
	deck := model.Deck{Slides: []model.Slide{
		{Type: model.SlideNews, Title: "Chips", Content: "More demand.", Tags: []string{"a, b", "c", " , "}},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteTranscript(&buf, deck))
	got, err := ParseTranscript(&buf)

	require.NoError(t, err)
	require.Len(t, got.Slides, 1)
	assert.Equal(t, []string{"a b", "c"}, got.Slides[0].Tags)
}
