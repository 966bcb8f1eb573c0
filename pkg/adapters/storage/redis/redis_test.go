package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aescanero/dagflow/pkg/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestStorage connects to DAGFLOW_TEST_REDIS_ADDR or skips. Keys under
// the storage prefixes are removed before and after each test.
func newTestStorage(t *testing.T, jobTTL time.Duration) (*Storage, *redis.Client) {
	t.Helper()

	addr := os.Getenv("DAGFLOW_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DAGFLOW_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	purge := func() {
		for _, pattern := range []string{pipelinePrefix + "*", jobPrefix + "*"} {
			keys, err := client.Keys(ctx, pattern).Result()
			require.NoError(t, err)
			if len(keys) > 0 {
				require.NoError(t, client.Del(ctx, keys...).Err())
			}
		}
	}
	purge()
	t.Cleanup(func() {
		purge()
		_ = client.Close()
	})

	return NewStorage(client, jobTTL, zap.NewNop()), client
}

func TestIDsFromKeys(t *testing.T) {
	keys := []string{
		"dagflow:pipeline:b",
		"dagflow:pipeline:a",
		"dagflow:pipeline:",
		"other:key",
	}

	assert.Equal(t, []string{"a", "b"}, idsFromKeys(keys, pipelinePrefix))
	assert.Empty(t, idsFromKeys(nil, pipelinePrefix))
}

func TestStorage_Pipelines(t *testing.T) {
	s, client := newTestStorage(t, time.Hour)
	ctx := context.Background()

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

	got, err := s.GetPipeline(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	// Saved pipelines never expire
	ttl, err := client.TTL(ctx, pipelinePrefix+"p1").Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl)

	require.NoError(t, s.DeletePipeline(ctx, "p1"))
	_, err = s.GetPipeline(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrPipelineNotFound)
	assert.ErrorIs(t, s.DeletePipeline(ctx, "p1"), domain.ErrPipelineNotFound)
}

func TestStorage_ListPipelinesScansAllKeys(t *testing.T) {
	s, client := newTestStorage(t, time.Hour)
	ctx := context.Background()

	// More keys than one SCAN page
	want := make([]string, 0, 250)
	for i := 0; i < 250; i++ {
		id := fmt.Sprintf("p%03d", i)
		want = append(want, id)
		require.NoError(t, s.SavePipeline(ctx, &domain.SavedPipeline{ID: id}))
	}
	require.NoError(t, s.SaveJob(ctx, &domain.ValidationJob{ID: "not-a-pipeline", Status: domain.JobStatusPending}))
	require.NoError(t, client.Set(ctx, "unrelated:key", "x", time.Minute).Err())
	t.Cleanup(func() { client.Del(context.Background(), "unrelated:key") })

	ids, err := s.ListPipelines(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, ids)
}

func TestStorage_JobsExpire(t *testing.T) {
	s, client := newTestStorage(t, time.Minute)
	ctx := context.Background()

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

	ttl, err := client.TTL(ctx, jobPrefix+"j1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	short, _ := newTestStorage(t, 200*time.Millisecond)
	require.NoError(t, short.SaveJob(ctx, &domain.ValidationJob{ID: "j2", Status: domain.JobStatusPending}))
	require.Eventually(t, func() bool {
		_, err := short.GetJob(ctx, "j2")
		return err != nil
	}, 3*time.Second, 50*time.Millisecond)

	_, err = short.GetJob(ctx, "j2")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}
