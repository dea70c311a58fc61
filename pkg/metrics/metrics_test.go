package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIncrementHabitTracked(t *testing.T) {
	before := testutil.ToFloat64(HabitTrackedCount.WithLabelValues("created"))

	IncrementHabitTracked("created")
	IncrementHabitTracked("created")

	assert.Equal(t, before+2, testutil.ToFloat64(HabitTrackedCount.WithLabelValues("created")))
}

func TestRecordStreakComputation(t *testing.T) {
	RecordStreakComputation("progress", 3*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(StreakComputationDuration))
}
