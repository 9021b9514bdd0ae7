package metrics

import (
	"errors"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestRecordJoinOutcome(t *testing.T) {
	JoinOutcomes.Reset()

	RecordJoinOutcome("redirect")
	RecordJoinOutcome("redirect")
	RecordJoinOutcome("not_running")

	assert.Equal(t, 2.0, counterValue(t, JoinOutcomes.WithLabelValues("redirect")))
	assert.Equal(t, 1.0, counterValue(t, JoinOutcomes.WithLabelValues("not_running")))
}

func TestRecordRemoteCall(t *testing.T) {
	RemoteCalls.Reset()

	RecordRemoteCall("bigbluebutton", "create", nil)
	RecordRemoteCall("bigbluebutton", "create", errors.New("boom"))
	RecordRemoteCall("bigbluebutton", "create", errors.New("boom"))

	assert.Equal(t, 1.0, counterValue(t, RemoteCalls.WithLabelValues("bigbluebutton", "create", "success")))
	assert.Equal(t, 2.0, counterValue(t, RemoteCalls.WithLabelValues("bigbluebutton", "create", "error")))
}

func TestRecordTaskAndUpdate(t *testing.T) {
	TasksEnqueued.Reset()
	MeetingUpdates.Reset()

	RecordTaskEnqueued("MeetingStatusUpdater", "queued")
	RecordMeetingUpdate("running")

	assert.Equal(t, 1.0, counterValue(t, TasksEnqueued.WithLabelValues("MeetingStatusUpdater", "queued")))
	assert.Equal(t, 1.0, counterValue(t, MeetingUpdates.WithLabelValues("running")))
}
