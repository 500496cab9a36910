package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valuelens/screener/pkg/logger"
)

type noopJob struct {
	name     string
	schedule string
}

func (j *noopJob) Name() string                  { return j.name }
func (j *noopJob) Schedule() string              { return j.schedule }
func (j *noopJob) Run(ctx context.Context) error { return nil }

func TestAddJobRejectsDuplicate(t *testing.T) {
	s := New(logger.Nop())

	job := &noopJob{name: "refresh", schedule: "0 0 * * * *"}
	require.NoError(t, s.AddJob(job))

	err := s.AddJob(&noopJob{name: "refresh", schedule: "0 30 * * * *"})
	assert.Error(t, err)
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(logger.Nop())

	err := s.AddJob(&noopJob{name: "broken", schedule: "not a cron spec"})
	assert.Error(t, err)
}

func TestRunJobUnknown(t *testing.T) {
	s := New(logger.Nop())

	err := s.RunJob("missing")
	assert.Error(t, err)
}

func TestJobsLists(t *testing.T) {
	s := New(logger.Nop())

	require.NoError(t, s.AddJob(&noopJob{name: "a", schedule: "@hourly"}))
	require.NoError(t, s.AddJob(&noopJob{name: "b", schedule: "@daily"}))

	assert.ElementsMatch(t, []string{"a", "b"}, s.Jobs())
}
