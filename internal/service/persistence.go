package service

import (
	"context"
	"log/slog"

	"github.com/djec2006-hash/News-Flow-sub001/internal/models"
)

type flowInserter interface {
	Insert(ctx context.Context, flow *models.Flow) (*models.Flow, error)
}

type documentArchiver interface {
	Archive(ctx context.Context, flowID int64, document models.FlowDocument) (string, error)
}

// PersistResult carries either the durable record or the ephemeral fallback.
type PersistResult struct {
	Flow    *models.Flow
	Saved   bool
	Warning string
}

// PersistenceGateway attempts one durable insert and degrades to an in-memory
// flow when the store is unavailable. Persistence failure is never surfaced
// as a user-facing error.
type PersistenceGateway struct {
	log     *slog.Logger
	flows   flowInserter
	archive documentArchiver // nil when the archive is not configured
}

func NewPersistenceGateway(log *slog.Logger, flows flowInserter, archive documentArchiver) *PersistenceGateway {
	return &PersistenceGateway{
		log:     log,
		flows:   flows,
		archive: archive,
	}
}

func (g *PersistenceGateway) Persist(ctx context.Context, userID int64, assembled AssembledFlow) PersistResult {
	flow := &models.Flow{
		OwnerID:       userID,
		Summary:       assembled.Summary,
		Body:          assembled.Body,
		TopicsCovered: assembled.TopicsCovered,
		Document:      assembled.Document(),
		CreatedAt:     assembled.GeneratedAt,
	}

	saved, err := g.flows.Insert(ctx, flow)
	if err != nil {
		// The already-consumed credit is not refunded on a failed save.
		g.log.Error("flow insert failed, returning ephemeral result", "user", userID, "err", err)
		return PersistResult{
			Flow:    flow,
			Saved:   false,
			Warning: "Your flow was generated but could not be saved. It will not appear in your history.",
		}
	}

	if g.archive != nil {
		if key, archiveErr := g.archive.Archive(ctx, saved.ID, saved.Document); archiveErr != nil {
			g.log.Error("flow archive failed", "flow", saved.ID, "err", archiveErr)
		} else {
			g.log.Info("flow archived", "flow", saved.ID, "key", key)
		}
	}

	return PersistResult{Flow: saved, Saved: true}
}
