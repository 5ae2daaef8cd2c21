package worker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maristella28/Bms-111725-sub004/internal/domain"
	"github.com/Maristella28/Bms-111725-sub004/internal/service/survey"
)

func newSweeperFixture(t *testing.T, spec string) (*ExpirySweeper, *fakeSurveyRepo) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	repo := newFakeSurveyRepo()
	svc := survey.NewService(repo, 14*24*time.Hour)

	sweeper := NewExpirySweeper(svc, nil, spec)
	sweeper.SetRedisClient(client)
	return sweeper, repo
}

func TestRunSweep(t *testing.T) {
	sweeper, repo := newSweeperFixture(t, "")

	now, _ := time.Parse(time.RFC3339, "2024-03-25T00:30:00Z")
	stale := &domain.SurveyInstance{
		ID:          uuid.New(),
		HouseholdID: uuid.New(),
		AccessToken: "stale-token",
		Status:      domain.SurveySent,
		ExpiresAt:   now.Add(-time.Hour),
	}
	fresh := &domain.SurveyInstance{
		ID:          uuid.New(),
		HouseholdID: uuid.New(),
		AccessToken: "fresh-token",
		Status:      domain.SurveySent,
		ExpiresAt:   now.Add(24 * time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), stale))
	require.NoError(t, repo.Create(context.Background(), fresh))

	n, err := sweeper.RunSweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	counts := repo.statusCounts()
	assert.Equal(t, 1, counts[domain.SurveyExpired])
	assert.Equal(t, 1, counts[domain.SurveySent])

	// Nothing left to sweep on the second pass.
	n, err = sweeper.RunSweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSweeper_InvalidSpec(t *testing.T) {
	sweeper, _ := newSweeperFixture(t, "not a cron spec")
	assert.Error(t, sweeper.Start())
}

func TestSweeper_StartStop(t *testing.T) {
	sweeper, _ := newSweeperFixture(t, "")
	require.NoError(t, sweeper.Start())
	sweeper.Stop()

	// Stop without a started cron is a no-op.
	idle, _ := newSweeperFixture(t, "")
	idle.Stop()
}
