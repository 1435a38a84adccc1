package models

import "time"

type PlanTier string

const (
	PlanFree  PlanTier = "free"
	PlanBasic PlanTier = "basic"
	PlanPro   PlanTier = "pro"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

type UserAccount struct {
	ID            int64
	Email         string
	PlanTier      PlanTier
	CreditBalance int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Topic struct {
	ID          int64
	OwnerID     int64
	Title       string
	Description string
	Domain      string
	LengthLevel string
	Position    int
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FlowSection is ephemeral: it exists only between synthesis and persistence.
type FlowSection struct {
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Sentiment     Sentiment `json:"sentiment"`
	KeyFigures    []string  `json:"key_figures"`
	SourceDomains []string  `json:"source_domains"`
}

// FlowDocument is the structured document stored alongside the rendered body
// and consumed by export collaborators.
type FlowDocument struct {
	Sections      []FlowSection `json:"sections"`
	Sources       []string      `json:"sources"`
	TopicsCovered string        `json:"topics_covered"`
	GeneratedAt   time.Time     `json:"generated_at"`
}

type Flow struct {
	ID            int64
	OwnerID       int64
	Summary       string
	Body          string
	TopicsCovered string
	Document      FlowDocument
	Delivered     bool
	CreatedAt     time.Time
}

// Article is one search hit from the external search collaborator.
type Article struct {
	Title         string
	URL           string
	Source        string
	PublishedDate string
	Excerpt       string
}
