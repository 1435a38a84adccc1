package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djec2006-hash/News-Flow-sub001/internal/models"
)

type fakeInserter struct {
	err      error
	inserted *models.Flow
}

func (f *fakeInserter) Insert(_ context.Context, flow *models.Flow) (*models.Flow, error) {
	if f.err != nil {
		return nil, f.err
	}
	saved := *flow
	saved.ID = 42
	saved.CreatedAt = time.Date(2026, 8, 31, 7, 0, 0, 0, time.UTC)
	f.inserted = &saved
	return &saved, nil
}

type fakeArchiver struct {
	err    error
	flowID int64
	calls  int
}

func (f *fakeArchiver) Archive(_ context.Context, flowID int64, _ models.FlowDocument) (string, error) {
	f.calls++
	f.flowID = flowID
	if f.err != nil {
		return "", f.err
	}
	return "flows/2026/08/31/test.json", nil
}

func sampleAssembled() AssembledFlow {
	return AssembledFlow{
		Summary:       "digest",
		Body:          "## Introduction\n\n...",
		TopicsCovered: "Markets",
		Sections:      []models.FlowSection{{Title: "Introduction", Content: "...", Sentiment: models.SentimentNeutral}},
		Sources:       []string{"reuters.com"},
		GeneratedAt:   time.Date(2026, 8, 31, 7, 0, 0, 0, time.UTC),
	}
}

func TestPersistSuccess(t *testing.T) {
	flows := &fakeInserter{}
	archive := &fakeArchiver{}
	gateway := NewPersistenceGateway(testLogger(), flows, archive)

	result := gateway.Persist(context.Background(), 7, sampleAssembled())

	require.True(t, result.Saved)
	assert.Empty(t, result.Warning)
	assert.Equal(t, int64(42), result.Flow.ID)
	assert.Equal(t, int64(7), result.Flow.OwnerID)
	assert.Equal(t, 1, archive.calls)
	assert.Equal(t, int64(42), archive.flowID)
}

func TestPersistDegradesOnInsertFailure(t *testing.T) {
	flows := &fakeInserter{err: errors.New("store down")}
	archive := &fakeArchiver{}
	gateway := NewPersistenceGateway(testLogger(), flows, archive)

	result := gateway.Persist(context.Background(), 7, sampleAssembled())

	require.False(t, result.Saved)
	assert.NotEmpty(t, result.Warning)
	// Full content still comes back, just unsaved.
	assert.Equal(t, "digest", result.Flow.Summary)
	assert.Equal(t, []string{"reuters.com"}, result.Flow.Document.Sources)
	assert.Zero(t, result.Flow.ID)
	assert.Zero(t, archive.calls, "nothing to archive without a durable record")
}

func TestPersistArchiveFailureIsBestEffort(t *testing.T) {
	flows := &fakeInserter{}
	archive := &fakeArchiver{err: errors.New("bucket gone")}
	gateway := NewPersistenceGateway(testLogger(), flows, archive)

	result := gateway.Persist(context.Background(), 7, sampleAssembled())

	require.True(t, result.Saved, "archive trouble never fails the save")
	assert.Empty(t, result.Warning)
}

func TestPersistWithoutArchiver(t *testing.T) {
	flows := &fakeInserter{}
	gateway := NewPersistenceGateway(testLogger(), flows, nil)

	result := gateway.Persist(context.Background(), 7, sampleAssembled())
	require.True(t, result.Saved)
}
