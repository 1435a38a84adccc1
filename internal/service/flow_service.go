package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/djec2006-hash/News-Flow-sub001/internal/config"
	"github.com/djec2006-hash/News-Flow-sub001/internal/models"
)

// softBudgetRatio is the share of the hard deadline after which no new topic
// is started. A topic already in flight is allowed to finish.
const softBudgetRatio = 0.83

type quotaGate interface {
	CheckAndReserve(ctx context.Context, user *models.UserAccount) error
}

type topicLoader interface {
	ListActive(ctx context.Context, userID int64) ([]models.Topic, error)
}

type synthesizer interface {
	SynthesizeTopic(ctx context.Context, topic models.Topic, extraInstructions string) (*models.FlowSection, error)
	SynthesizeIntro(ctx context.Context, sections []models.FlowSection, extraInstructions string) (*models.FlowSection, error)
	SynthesizeOutro(ctx context.Context, articles []models.Article, extraInstructions string) (*models.FlowSection, error)
	FetchGeneralNews(ctx context.Context) []models.Article
}

type persister interface {
	Persist(ctx context.Context, userID int64, assembled AssembledFlow) PersistResult
}

// GenerateResult is the pipeline's success output. Saved=false carries the
// ephemeral degradation: full content plus a warning, still a success.
type GenerateResult struct {
	ID            int64
	Summary       string
	Body          string
	TopicsCovered string
	Sections      []models.FlowSection
	Sources       []string
	Saved         bool
	Warning       string
	Elapsed       time.Duration
}

// FlowService drives one pipeline run: quota gate, topic loop under the soft
// time budget, assembly and persistence.
type FlowService struct {
	cfg     config.Config
	log     *slog.Logger
	quota   quotaGate
	topics  topicLoader
	synth   synthesizer
	gateway persister
	now     func() time.Time
}

func NewFlowService(cfg config.Config, log *slog.Logger, quota quotaGate, topics topicLoader, synth synthesizer, gateway persister) *FlowService {
	return &FlowService{
		cfg:     cfg,
		log:     log,
		quota:   quota,
		topics:  topics,
		synth:   synth,
		gateway: gateway,
		now:     time.Now,
	}
}

func (s *FlowService) Generate(ctx context.Context, user *models.UserAccount, extraInstructions string) (*GenerateResult, error) {
	start := s.now()

	if err := s.quota.CheckAndReserve(ctx, user); err != nil {
		return nil, err
	}

	topics, err := s.topics.ListActive(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}
	if len(topics) == 0 {
		return nil, &FlowError{Code: CodeNoActiveTopics, Message: "no active topics configured"}
	}

	// Start the general-news fetch now and await it only after the topic
	// loop, overlapping its latency with the sequential processing.
	newsCh := make(chan []models.Article, 1)
	go func() {
		newsCh <- s.synth.FetchGeneralNews(ctx)
	}()

	softBudget := time.Duration(float64(s.cfg.FlowDeadline) * softBudgetRatio)

	var sections []models.FlowSection
	for _, topic := range topics {
		if elapsed := s.now().Sub(start); elapsed > softBudget {
			s.log.Warn("time budget reached, skipping remaining topics",
				"elapsed", elapsed, "budget", softBudget,
				"processed", len(sections), "total", len(topics))
			break
		}
		section, synthErr := s.synth.SynthesizeTopic(ctx, topic, extraInstructions)
		if synthErr != nil {
			s.log.Error("topic synthesis failed", "topic", topic.Title, "err", synthErr)
			continue
		}
		sections = append(sections, *section)
	}

	if len(sections) == 0 {
		return nil, &FlowError{Code: CodeNoSectionsGenerated, Message: "no sections could be generated"}
	}

	intro, err := s.synth.SynthesizeIntro(ctx, sections, extraInstructions)
	if err != nil {
		return nil, fmt.Errorf("synthesize introduction: %w", err)
	}

	news := <-newsCh
	outro, err := s.synth.SynthesizeOutro(ctx, news, extraInstructions)
	if err != nil {
		return nil, fmt.Errorf("synthesize outro: %w", err)
	}

	assembled := Assemble(*intro, sections, *outro, topics, s.now())
	persisted := s.gateway.Persist(ctx, user.ID, assembled)

	return &GenerateResult{
		ID:            persisted.Flow.ID,
		Summary:       persisted.Flow.Summary,
		Body:          persisted.Flow.Body,
		TopicsCovered: persisted.Flow.TopicsCovered,
		Sections:      assembled.Sections,
		Sources:       assembled.Sources,
		Saved:         persisted.Saved,
		Warning:       persisted.Warning,
		Elapsed:       s.now().Sub(start),
	}, nil
}
