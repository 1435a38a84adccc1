package service

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djec2006-hash/News-Flow-sub001/internal/models"
)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare", "bloomberg.com", "bloomberg.com"},
		{"mixed case", "Reuters.com", "reuters.com"},
		{"www prefix", "www.reuters.com", "reuters.com"},
		{"full url", "https://www.ft.com/content/abc", "ft.com"},
		{"host with path", "reuters.com/world", "reuters.com"},
		{"whitespace", "  Example.com ", "example.com"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDomain(tt.raw))
		})
	}
}

func TestAssembleDeduplicatesSources(t *testing.T) {
	intro := models.FlowSection{Title: "Introduction", Content: "intro"}
	outro := models.FlowSection{Title: "Beyond Your Topics", Content: "outro"}
	topicSections := []models.FlowSection{
		{Title: "Markets", Content: "a", SourceDomains: []string{"Reuters.com", "www.reuters.com"}},
		{Title: "Tech", Content: "b", SourceDomains: []string{"bloomberg.com", "reuters.com"}},
	}

	assembled := Assemble(intro, topicSections, outro, nil, time.Now())

	assert.Equal(t, []string{"reuters.com", "bloomberg.com"}, assembled.Sources)
}

func TestAssembleOrdersSectionsAndRendersBody(t *testing.T) {
	intro := models.FlowSection{Title: "Introduction", Content: "welcome"}
	outro := models.FlowSection{Title: "Outro", Content: "goodbye"}
	topicSections := []models.FlowSection{
		{Title: "First", Content: "one"},
		{Title: "Second", Content: "two"},
	}
	topics := []models.Topic{
		{Title: "First"},
		{Title: "Second"},
		{Title: "Skipped By Budget"},
	}

	assembled := Assemble(intro, topicSections, outro, topics, time.Now())

	require.Len(t, assembled.Sections, 4)
	assert.Equal(t, "Introduction", assembled.Sections[0].Title)
	assert.Equal(t, "First", assembled.Sections[1].Title)
	assert.Equal(t, "Second", assembled.Sections[2].Title)
	assert.Equal(t, "Outro", assembled.Sections[3].Title)

	// Every loaded topic is listed, including the one never processed.
	assert.Equal(t, "First, Second, Skipped By Budget", assembled.TopicsCovered)

	assert.Equal(t, "welcome", assembled.Summary)

	blocks := strings.Split(assembled.Body, "\n\n---\n\n")
	require.Len(t, blocks, 4)
	assert.Equal(t, "## Introduction\n\nwelcome", blocks[0])
	assert.Equal(t, "## Outro\n\ngoodbye", blocks[3])
}

func TestAssembledDocumentRoundTrip(t *testing.T) {
	intro := models.FlowSection{Title: "Introduction", Content: "welcome", Sentiment: models.SentimentNeutral}
	outro := models.FlowSection{Title: "Outro", Content: "goodbye", Sentiment: models.SentimentPositive}
	topicSections := []models.FlowSection{
		{Title: "Markets", Content: "stocks up", Sentiment: models.SentimentPositive, KeyFigures: []string{"S&P +1%"}, SourceDomains: []string{"reuters.com"}},
	}
	topics := []models.Topic{{Title: "Markets"}}

	assembled := Assemble(intro, topicSections, outro, topics, time.Date(2026, 8, 31, 7, 0, 0, 0, time.UTC))

	data, err := json.Marshal(assembled.Document())
	require.NoError(t, err)

	var restored models.FlowDocument
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, assembled.Sections, restored.Sections)
	assert.Equal(t, assembled.Sources, restored.Sources)
	assert.Equal(t, assembled.TopicsCovered, restored.TopicsCovered)

	// The restored sections regenerate the same body.
	rebuilt := make([]string, 0, len(restored.Sections))
	for _, section := range restored.Sections {
		rebuilt = append(rebuilt, "## "+section.Title+"\n\n"+section.Content)
	}
	assert.Equal(t, assembled.Body, strings.Join(rebuilt, "\n\n---\n\n"))
}
