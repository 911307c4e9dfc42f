package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveJobsSequentialUnaffected(t *testing.T) {
	jobs, err := resolveJobs(jobsRequest{recursing: false, requestedJobs: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, jobs)
}

func TestResolveJobsRecursingNoUnsupportedOptionsKeepsRequestedJobs(t *testing.T) {
	jobs, err := resolveJobs(jobsRequest{recursing: true, requestedJobs: 8})
	require.NoError(t, err)
	assert.Equal(t, 8, jobs)
}

func TestResolveJobsImplicitRecursionDemotesSilently(t *testing.T) {
	jobs, err := resolveJobs(jobsRequest{
		recursing:     true,
		explicitJobs:  false,
		requestedJobs: 8,
		wholeWord:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, jobs)
}

func TestResolveJobsImplicitRecursionDemotesForContext(t *testing.T) {
	jobs, err := resolveJobs(jobsRequest{
		recursing:     true,
		explicitJobs:  false,
		requestedJobs: 8,
		before:        2,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, jobs)
}

func TestResolveJobsExplicitParallelWithWholeWordIsFatal(t *testing.T) {
	_, err := resolveJobs(jobsRequest{
		recursing:     true,
		explicitJobs:  true,
		requestedJobs: 8,
		wholeWord:     true,
	})
	require.Error(t, err)
}

func TestResolveJobsExplicitParallelWithContextIsFatal(t *testing.T) {
	_, err := resolveJobs(jobsRequest{
		recursing:     true,
		explicitJobs:  true,
		requestedJobs: 8,
		after:         3,
	})
	require.Error(t, err)
}
