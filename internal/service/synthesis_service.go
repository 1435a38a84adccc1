package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/djec2006-hash/News-Flow-sub001/internal/config"
	"github.com/djec2006-hash/News-Flow-sub001/internal/llm"
	"github.com/djec2006-hash/News-Flow-sub001/internal/models"
	"github.com/djec2006-hash/News-Flow-sub001/internal/tavily"
)

type searchClient interface {
	Search(ctx context.Context, query string, opts tavily.SearchOptions) ([]models.Article, error)
}

type completionClient interface {
	Complete(ctx context.Context, req llm.Request) (*llm.SectionResult, error)
}

const sectionSystemPrompt = `You are the editor of a personalized news digest. ` +
	`Write in clear, engaging prose grounded strictly in the provided context. ` +
	`Respond with a JSON object: {"title": string, "content": string, ` +
	`"sentiment": "positive"|"neutral"|"negative", "key_figures": [string]}.`

// SynthesisService produces one FlowSection per call: search, context
// building, generation, strict parsing. It never retries; failures propagate
// to the orchestrator.
type SynthesisService struct {
	cfg    config.Config
	log    *slog.Logger
	search searchClient
	llm    completionClient
}

func NewSynthesisService(cfg config.Config, log *slog.Logger, search searchClient, llmClient completionClient) *SynthesisService {
	return &SynthesisService{
		cfg:    cfg,
		log:    log,
		search: search,
		llm:    llmClient,
	}
}

// SynthesizeTopic turns one configured topic into a section.
func (s *SynthesisService) SynthesizeTopic(ctx context.Context, topic models.Topic, extraInstructions string) (*models.FlowSection, error) {
	query := strings.TrimSpace(strings.Join([]string{topic.Title, topic.Description, topic.Domain}, " "))

	articles, err := s.search.Search(ctx, query, tavily.SearchOptions{
		Days:       s.cfg.SearchDays,
		MaxResults: s.cfg.SearchMaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", topic.Title, err)
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("no recent articles found for %q", topic.Title)
	}

	domains := collectDomains(articles)

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Write the %q section of today's digest (%s).\n", topic.Title, lengthHint(topic.LengthLevel))
	if extraInstructions != "" {
		fmt.Fprintf(&prompt, "Reader instructions: %s\n", extraInstructions)
	}
	prompt.WriteString("\nContext articles:\n")
	prompt.WriteString(buildContextBlock(articles))

	result, err := s.llm.Complete(ctx, llm.Request{System: sectionSystemPrompt, Prompt: prompt.String()})
	if err != nil {
		return nil, fmt.Errorf("generate %q: %w", topic.Title, err)
	}

	return sectionFromResult(result, domains), nil
}

// SynthesizeIntro writes the opening section from the already-produced topic
// sections.
func (s *SynthesisService) SynthesizeIntro(ctx context.Context, sections []models.FlowSection, extraInstructions string) (*models.FlowSection, error) {
	var prompt strings.Builder
	prompt.WriteString("Write a short introduction titled \"Introduction\" that previews today's digest.\n")
	if extraInstructions != "" {
		fmt.Fprintf(&prompt, "Reader instructions: %s\n", extraInstructions)
	}
	prompt.WriteString("\nThe digest covers:\n")
	for _, section := range sections {
		fmt.Fprintf(&prompt, "- %s: %s\n", section.Title, section.Content)
	}

	result, err := s.llm.Complete(ctx, llm.Request{System: sectionSystemPrompt, Prompt: prompt.String()})
	if err != nil {
		return nil, fmt.Errorf("generate introduction: %w", err)
	}

	return sectionFromResult(result, nil), nil
}

// SynthesizeOutro writes the closing section from the general-news article
// set. An empty article set is allowed; the fetch is failure-tolerant.
func (s *SynthesisService) SynthesizeOutro(ctx context.Context, articles []models.Article, extraInstructions string) (*models.FlowSection, error) {
	var prompt strings.Builder
	prompt.WriteString("Write a brief closing section rounding up general news beyond the reader's topics.\n")
	if extraInstructions != "" {
		fmt.Fprintf(&prompt, "Reader instructions: %s\n", extraInstructions)
	}
	if len(articles) > 0 {
		prompt.WriteString("\nContext articles:\n")
		prompt.WriteString(buildContextBlock(articles))
	} else {
		prompt.WriteString("\nNo general news context is available; close the digest gracefully.\n")
	}

	result, err := s.llm.Complete(ctx, llm.Request{System: sectionSystemPrompt, Prompt: prompt.String()})
	if err != nil {
		return nil, fmt.Errorf("generate outro: %w", err)
	}

	return sectionFromResult(result, collectDomains(articles)), nil
}

// FetchGeneralNews loads the outro's article set. Failures degrade to an
// empty list so the outro can still be written.
func (s *SynthesisService) FetchGeneralNews(ctx context.Context) []models.Article {
	articles, err := s.search.Search(ctx, s.cfg.GeneralNewsQuery, tavily.SearchOptions{
		Days:       s.cfg.SearchDays,
		MaxResults: s.cfg.SearchMaxResults,
	})
	if err != nil {
		s.log.Error("general news fetch failed", "err", err)
		return nil
	}
	return articles
}

// buildContextBlock renders articles as an explicitly indexed context list.
func buildContextBlock(articles []models.Article) string {
	var b strings.Builder
	for i, article := range articles {
		fmt.Fprintf(&b, "[%d] %s - %s", i+1, article.Title, article.Source)
		if article.PublishedDate != "" {
			fmt.Fprintf(&b, " (%s)", article.PublishedDate)
		}
		b.WriteString("\n")
		if article.Excerpt != "" {
			b.WriteString(article.Excerpt)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func collectDomains(articles []models.Article) []string {
	var domains []string
	seen := map[string]struct{}{}
	for _, article := range articles {
		domain := NormalizeDomain(article.Source)
		if domain == "" {
			domain = NormalizeDomain(article.URL)
		}
		if domain == "" {
			continue
		}
		if _, ok := seen[domain]; ok {
			continue
		}
		seen[domain] = struct{}{}
		domains = append(domains, domain)
	}
	return domains
}

func lengthHint(level string) string {
	switch strings.ToLower(level) {
	case "short":
		return "one tight paragraph"
	case "long":
		return "three to four paragraphs"
	default:
		return "about two paragraphs"
	}
}

func sectionFromResult(result *llm.SectionResult, domains []string) *models.FlowSection {
	return &models.FlowSection{
		Title:         result.Title,
		Content:       result.Content,
		Sentiment:     models.Sentiment(result.Sentiment),
		KeyFigures:    result.KeyFigures,
		SourceDomains: domains,
	}
}
