package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

// promauto 注册到默认 Registry，整个测试二进制只创建一个 Collector。
var testCollector = NewCollector("coordflow_test", zap.NewNop())

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v) failed: %v", labels, err)
	}
	return testutil.ToFloat64(m)
}

func TestCollector_RunLifecycle(t *testing.T) {
	before := testutil.ToFloat64(testCollector.activeRuns)

	testCollector.RecordRunStarted()
	if got := testutil.ToFloat64(testCollector.activeRuns); got != before+1 {
		t.Errorf("active_runs after start = %v, want %v", got, before+1)
	}

	testCollector.RecordRunFinished("complete", 2*time.Second)
	if got := testutil.ToFloat64(testCollector.activeRuns); got != before {
		t.Errorf("active_runs after finish = %v, want %v", got, before)
	}
	if got := counterValue(t, testCollector.runsFinished, "complete"); got < 1 {
		t.Errorf("runs_finished{complete} = %v, want >= 1", got)
	}
}

func TestCollector_StageMetrics(t *testing.T) {
	testCollector.RecordStageExecution("planning", "ok", 150*time.Millisecond)
	testCollector.RecordStageExecution("planning", "error", 20*time.Millisecond)
	testCollector.RecordStageRetry("planning")

	if got := counterValue(t, testCollector.stageExecutionsTotal, "planning", "ok"); got != 1 {
		t.Errorf("stage_executions{planning,ok} = %v, want 1", got)
	}
	if got := counterValue(t, testCollector.stageExecutionsTotal, "planning", "error"); got != 1 {
		t.Errorf("stage_executions{planning,error} = %v, want 1", got)
	}
	if got := counterValue(t, testCollector.stageRetriesTotal, "planning"); got != 1 {
		t.Errorf("stage_retries{planning} = %v, want 1", got)
	}
}

func TestCollector_CommandAndSnapshotMetrics(t *testing.T) {
	testCollector.RecordCommand("handoff", "completed")
	testCollector.RecordCommand("handoff", "completed")
	testCollector.RecordSnapshotOp("save", nil)
	testCollector.RecordSnapshotOp("save", errors.New("redis down"))

	if got := counterValue(t, testCollector.commandsTotal, "handoff", "completed"); got != 2 {
		t.Errorf("commands{handoff,completed} = %v, want 2", got)
	}
	if got := counterValue(t, testCollector.snapshotOpsTotal, "save", "ok"); got != 1 {
		t.Errorf("snapshot_ops{save,ok} = %v, want 1", got)
	}
	if got := counterValue(t, testCollector.snapshotOpsTotal, "save", "error"); got != 1 {
		t.Errorf("snapshot_ops{save,error} = %v, want 1", got)
	}
}
