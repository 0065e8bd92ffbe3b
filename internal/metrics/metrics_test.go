package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordFetch(t *testing.T) {
	before := testutil.ToFloat64(FetchedEntriesTotal.WithLabelValues("metrics-test"))
	RecordFetch("metrics-test", 4, nil)
	assert.Equal(t, before+4, testutil.ToFloat64(FetchedEntriesTotal.WithLabelValues("metrics-test")))

	errsBefore := testutil.ToFloat64(FetchErrorsTotal.WithLabelValues("metrics-test"))
	RecordFetch("metrics-test", 0, errors.New("boom"))
	assert.Equal(t, errsBefore+1, testutil.ToFloat64(FetchErrorsTotal.WithLabelValues("metrics-test")))
}

func TestRecordJobSkipsDurationForSkipped(t *testing.T) {
	RecordJob("metrics-test-job", "skipped", 0)
	assert.Equal(t, float64(1), testutil.ToFloat64(JobRunsTotal.WithLabelValues("metrics-test-job", "skipped")))
	assert.Equal(t, 0, testutil.CollectAndCount(JobDuration, "newsagent_job_duration_seconds"))
}
