package state

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	s := New()

	if s.Stage != StageIntake {
		t.Errorf("fresh state should start at intake, got %s", s.Stage)
	}
	if !s.Stage.Valid() {
		t.Error("fresh stage should be valid")
	}
	if s.HasErrors() {
		t.Error("fresh state should have no errors")
	}
	if len(s.ActiveTasks)+len(s.CompletedTasks)+len(s.FailedTasks) != 0 {
		t.Error("fresh state should have no tasks")
	}
}

func TestState_AddMessage(t *testing.T) {
	s := New()
	before := s.LastActivityAt

	time.Sleep(time.Millisecond)
	s.AddMessage(RolePlanning, Message{Content: "hello", SourceRole: RoleIntake})
	s.AddMessage(RolePlanning, Message{Content: "world", SourceRole: RoleIntake})

	msgs := s.MessagesByRole[RolePlanning]
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "hello" || msgs[1].Content != "world" {
		t.Error("messages should observe append order")
	}
	if msgs[0].Timestamp.IsZero() {
		t.Error("message timestamp should be filled in")
	}
	if !s.LastActivityAt.After(before) {
		t.Error("AddMessage should update last activity")
	}
}

func TestState_SetResultAndErrors(t *testing.T) {
	s := New()

	s.SetResult(RoleIntake, map[string]any{"validation_passed": true})
	if got := s.Result(RoleIntake)["validation_passed"]; got != true {
		t.Errorf("expected stored result, got %v", got)
	}

	if s.HasErrors() {
		t.Error("no errors recorded yet")
	}
	s.AddError(RolePlanning, "budget service unreachable")
	if !s.HasErrors() {
		t.Error("HasErrors should be true once any role has an error")
	}
	if !s.Summary().HasErrors {
		t.Error("summary should surface HasErrors")
	}
}

func TestState_TransitionStage(t *testing.T) {
	s := New()

	s.TransitionStage(StagePlanning, RolePlanning)
	if s.Stage != StagePlanning || s.NextRole != RolePlanning {
		t.Errorf("unexpected stage/next role: %s/%s", s.Stage, s.NextRole)
	}

	role, ok := s.ConsumeNextRole()
	if !ok || role != RolePlanning {
		t.Errorf("expected to consume planning, got %s/%v", role, ok)
	}
	if _, ok := s.ConsumeNextRole(); ok {
		t.Error("next role should be cleared on consumption")
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Stage
		want     bool
	}{
		{StageIntake, StagePlanning, true},
		{StageIntake, StageSupervision, true},
		{StageIntake, StageInsight, false},
		{StagePlanning, StageInsight, true},
		{StageInsight, StageSupervision, true},
		{StageInsight, StagePlanning, false},
		{StageSupervision, StageIntake, true},
		{StageSupervision, StagePlanning, true},
		{StageSupervision, StageInsight, true},
		{StageSupervision, StageComplete, true},
		{StageComplete, StageIntake, false},
		{StageError, StageIntake, false},
		{StagePlanning, StageError, true},
	}

	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestState_TaskLifecycle(t *testing.T) {
	s := New()

	task := NewTask("task-1", RolePlanning, "allocate budget")
	s.AddTask(task)

	if len(s.ActiveTasks) != 1 {
		t.Fatalf("expected 1 active task, got %d", len(s.ActiveTasks))
	}

	s.CompleteTask("task-1", map[string]any{"ok": true})
	if len(s.ActiveTasks) != 0 || len(s.CompletedTasks) != 1 {
		t.Fatalf("task should move active -> completed")
	}

	done := s.CompletedTasks[0]
	if done.Status != TaskStatusCompleted {
		t.Errorf("expected completed status, got %s", done.Status)
	}
	if done.CompletedAt == nil {
		t.Error("CompletedAt must be set for terminal status")
	}
}

func TestState_FailTask(t *testing.T) {
	s := New()
	s.AddTask(NewTask("task-2", RoleInsight, "generate insights"))

	s.FailTask("task-2", "worker crashed")
	if len(s.FailedTasks) != 1 {
		t.Fatalf("expected 1 failed task, got %d", len(s.FailedTasks))
	}
	failed := s.FailedTasks[0]
	if failed.Status != TaskStatusFailed || failed.Error != "worker crashed" {
		t.Errorf("unexpected failed task: %+v", failed)
	}
	if failed.CompletedAt == nil {
		t.Error("CompletedAt must be set for failed tasks")
	}
}

// Documents the permissive no-op contract for unknown task ids.
func TestState_UnknownTaskIDIsNoOp(t *testing.T) {
	s := New()
	s.AddTask(NewTask("known", RoleIntake, "parse sheet"))

	s.CompleteTask("unknown", nil)
	s.FailTask("also-unknown", "nope")

	if len(s.ActiveTasks) != 1 || len(s.CompletedTasks) != 0 || len(s.FailedTasks) != 0 {
		t.Error("unknown ids must not move any task")
	}
}

func TestState_Summary(t *testing.T) {
	s := New()
	s.AddTask(NewTask("a", RoleIntake, "x"))
	s.AddTask(NewTask("b", RoleIntake, "y"))
	s.CompleteTask("a", nil)
	s.TransitionStage(StageSupervision, RoleSupervision)

	sum := s.Summary()
	if sum.Stage != StageSupervision || sum.NextRole != RoleSupervision {
		t.Errorf("unexpected summary stage/role: %+v", sum)
	}
	if sum.ActiveTasks != 1 || sum.CompletedTasks != 1 || sum.FailedTasks != 0 {
		t.Errorf("unexpected task counts: %+v", sum)
	}
	if sum.Duration < 0 {
		t.Error("duration should be non-negative")
	}
}

func TestState_Clone(t *testing.T) {
	s := New()
	s.AddMessage(RoleIntake, Message{Content: "m1", Metadata: map[string]any{"k": "v"}})
	s.SetResult(RoleIntake, map[string]any{"nested": map[string]any{"deep": 1}})
	s.AddTask(NewTask("t1", RoleIntake, "d"))
	s.ExecutionContext["paused"] = false

	cp := s.Clone()

	// Mutating the clone must not leak into the original.
	cp.AddMessage(RoleIntake, Message{Content: "m2"})
	cp.Result(RoleIntake)["nested"].(map[string]any)["deep"] = 2
	cp.CompleteTask("t1", nil)
	cp.ExecutionContext["paused"] = true
	cp.TransitionStage(StageSupervision)

	if len(s.MessagesByRole[RoleIntake]) != 1 {
		t.Error("clone message append leaked into original")
	}
	if s.Result(RoleIntake)["nested"].(map[string]any)["deep"] != 1 {
		t.Error("clone result mutation leaked into original")
	}
	if len(s.ActiveTasks) != 1 {
		t.Error("clone task completion leaked into original")
	}
	if s.Paused() {
		t.Error("clone context mutation leaked into original")
	}
	if s.Stage != StageIntake {
		t.Error("clone transition leaked into original")
	}
}

func TestState_MarshalRoundTrip(t *testing.T) {
	s := New()
	s.TransitionStage(StagePlanning, RolePlanning)
	s.AddMessage(RolePlanning, Message{Content: "handoff", SourceRole: RoleIntake})
	s.SetResult(RoleIntake, map[string]any{"validation_passed": true})
	s.AddError(RoleInsight, "late data")
	s.AddTask(NewTask("t1", RolePlanning, "allocate"))

	data, err := s.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	restored, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if restored.Stage != StagePlanning || restored.NextRole != RolePlanning {
		t.Errorf("stage/next role lost: %s/%s", restored.Stage, restored.NextRole)
	}
	if len(restored.MessagesByRole[RolePlanning]) != 1 {
		t.Error("messages lost in round trip")
	}
	if restored.Result(RoleIntake)["validation_passed"] != true {
		t.Error("results lost in round trip")
	}
	if !restored.HasErrors() {
		t.Error("errors lost in round trip")
	}
	if len(restored.ActiveTasks) != 1 {
		t.Error("tasks lost in round trip")
	}
}

func TestUnmarshal_EmptyMapsInitialized(t *testing.T) {
	restored, err := Unmarshal([]byte(`{"stage":"intake"}`))
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	// Maps must be usable immediately after restore.
	restored.AddMessage(RoleIntake, Message{Content: "ok"})
	restored.SetResult(RoleIntake, map[string]any{"k": "v"})
	restored.AddError(RoleIntake, "e")
	restored.ExecutionContext["paused"] = true
}
