package memory

import (
	"context"
	"testing"
	"time"

	"github.com/aescanero/dagflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelines(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStorage()

	saved := &domain.SavedPipeline{
		ID:   "p1",
		Name: "first",
		Document: domain.GraphDocument{
			Nodes: []domain.Node{{ID: "text-1", Type: domain.NodeTypeText, Data: map[string]interface{}{"text": "hi"}}},
			Edges: []domain.Edge{},
		},
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.SavePipeline(ctx, saved))
	require.NoError(t, s.SavePipeline(ctx, &domain.SavedPipeline{ID: "p0"}))

	got, err := s.GetPipeline(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	// Returned values do not alias stored ones
	got.Document.Nodes[0].Data["text"] = "changed"
	again, err := s.GetPipeline(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Document.Nodes[0].Data["text"])

	ids, err := s.ListPipelines(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p0", "p1"}, ids)

	require.NoError(t, s.DeletePipeline(ctx, "p1"))
	_, err = s.GetPipeline(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrPipelineNotFound)
	assert.ErrorIs(t, s.DeletePipeline(ctx, "p1"), domain.ErrPipelineNotFound)
}

func TestJobs(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStorage()

	job := &domain.ValidationJob{
		ID:       "j1",
		Status:   domain.JobStatusPending,
		Pipeline: &domain.Pipeline{Nodes: []domain.PipelineNode{{ID: "a"}}},
	}
	require.NoError(t, s.SaveJob(ctx, job))

	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, got.Status)
	assert.Equal(t, "a", got.Pipeline.Nodes[0].ID)

	_, err = s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}
