package service

import (
	"net/url"
	"strings"
	"time"

	"github.com/djec2006-hash/News-Flow-sub001/internal/models"
)

const sectionRule = "\n\n---\n\n"

// AssembledFlow is the fully ordered document before persistence.
type AssembledFlow struct {
	Summary       string
	Body          string
	TopicsCovered string
	Sections      []models.FlowSection
	Sources       []string
	GeneratedAt   time.Time
}

// Document returns the structured representation stored with the flow.
func (a AssembledFlow) Document() models.FlowDocument {
	return models.FlowDocument{
		Sections:      a.Sections,
		Sources:       a.Sources,
		TopicsCovered: a.TopicsCovered,
		GeneratedAt:   a.GeneratedAt,
	}
}

// Assemble orders the sections (intro, topics in original order, outro),
// renders the body and unions the source domains. topicsCovered lists every
// originally loaded topic regardless of which sections succeeded.
func Assemble(intro models.FlowSection, topicSections []models.FlowSection, outro models.FlowSection, topics []models.Topic, generatedAt time.Time) AssembledFlow {
	sections := make([]models.FlowSection, 0, len(topicSections)+2)
	sections = append(sections, intro)
	sections = append(sections, topicSections...)
	sections = append(sections, outro)

	blocks := make([]string, 0, len(sections))
	for _, section := range sections {
		blocks = append(blocks, "## "+section.Title+"\n\n"+section.Content)
	}

	titles := make([]string, 0, len(topics))
	for _, topic := range topics {
		titles = append(titles, topic.Title)
	}

	return AssembledFlow{
		Summary:       intro.Content,
		Body:          strings.Join(blocks, sectionRule),
		TopicsCovered: strings.Join(titles, ", "),
		Sections:      sections,
		Sources:       unionDomains(sections),
		GeneratedAt:   generatedAt,
	}
}

func unionDomains(sections []models.FlowSection) []string {
	var sources []string
	seen := map[string]struct{}{}
	for _, section := range sections {
		for _, raw := range section.SourceDomains {
			domain := NormalizeDomain(raw)
			if domain == "" {
				continue
			}
			if _, ok := seen[domain]; ok {
				continue
			}
			seen[domain] = struct{}{}
			sources = append(sources, domain)
		}
	}
	return sources
}

// NormalizeDomain lowercases a source reference, reduces URLs to their host
// and strips any leading "www.".
func NormalizeDomain(raw string) string {
	domain := strings.ToLower(strings.TrimSpace(raw))
	if domain == "" {
		return ""
	}
	if strings.Contains(domain, "://") {
		if parsed, err := url.Parse(domain); err == nil && parsed.Host != "" {
			domain = parsed.Host
		}
	}
	if host, _, ok := strings.Cut(domain, "/"); ok {
		domain = host
	}
	return strings.TrimPrefix(domain, "www.")
}
