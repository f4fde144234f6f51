package command

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/coordflow/state"
	"github.com/BaSui01/coordflow/types"
)

func TestBuild_AllKinds(t *testing.T) {
	specs := []Spec{
		{Kind: KindHandoff, Source: state.RoleIntake, Target: state.RolePlanning, Message: "proceed"},
		{Kind: KindDataRequest, Source: state.RolePlanning, Target: state.RoleIntake, Request: "budget breakdown"},
		{Kind: KindTaskAssignment, Target: state.RoleInsight, Description: "analyze traffic"},
		{Kind: KindResultDelivery, Source: state.RoleInsight, Target: state.RoleSupervision, Data: map[string]any{"ok": true}},
		{Kind: KindWorkflowControl, Action: ActionPause},
	}
	for _, spec := range specs {
		cmd, err := Build(spec)
		require.NoError(t, err, "kind %s", spec.Kind)
		assert.Equal(t, spec.Kind, cmd.Kind())
		assert.Equal(t, StatusPending, cmd.Status())
		assert.NotEmpty(t, cmd.ID())
	}
}

func TestBuild_UnknownKindRejected(t *testing.T) {
	_, err := Build(Spec{Kind: "teleport"})
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidCommand, types.GetErrorCode(err))
}

func TestBuild_InvalidRoleRejected(t *testing.T) {
	_, err := Build(Spec{Kind: KindHandoff, Source: state.RoleIntake, Target: "janitor"})
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidCommand, types.GetErrorCode(err))
}

func TestBuild_AppliesOptions(t *testing.T) {
	cmd, err := Build(Spec{
		Kind:     KindDataRequest,
		Source:   state.RoleIntake,
		Target:   state.RolePlanning,
		Request:  "channel list",
		Priority: PriorityHigh,
		Timeout:  30 * time.Second,
		Metadata: map[string]any{"origin": "test"},
	})
	require.NoError(t, err)

	info := cmd.Info()
	assert.Equal(t, PriorityHigh, info.Priority)
	assert.Equal(t, "test", info.Metadata["origin"])
}

func TestHandoff_ExecuteAndUndo(t *testing.T) {
	st := state.New()

	cmd, err := NewHandoff(state.RoleIntake, state.RolePlanning, "data validated", map[string]any{"score": 0.95})
	require.NoError(t, err)

	res, err := cmd.Execute(st)
	require.NoError(t, err)

	assert.Equal(t, "planning", res["target_role"])
	assert.Equal(t, true, res["handoff_successful"])
	assert.NotEmpty(t, res["handoff_time"])

	// Exactly one message, directed at the target role.
	require.Len(t, st.MessagesByRole[state.RolePlanning], 1)
	msg := st.MessagesByRole[state.RolePlanning][0]
	assert.Equal(t, "Handoff from intake: data validated", msg.Content)
	assert.Equal(t, state.RoleIntake, msg.SourceRole)
	assert.Equal(t, cmd.ID(), msg.CommandID)

	assert.Equal(t, state.StagePlanning, st.Stage)
	assert.Equal(t, state.RolePlanning, st.NextRole)
	assert.Equal(t, StatusCompleted, cmd.Status())

	// Undo restores control to the source but leaves the message log alone.
	undoRes, err := cmd.Undo(st)
	require.NoError(t, err)
	assert.Equal(t, true, undoRes["handoff_undone"])
	assert.Equal(t, "intake", undoRes["returned_to"])
	assert.Equal(t, state.RoleIntake, st.NextRole)
	assert.Len(t, st.MessagesByRole[state.RolePlanning], 1)
}

func TestHandoff_IllegalTransitionFailsLoudly(t *testing.T) {
	st := state.New()
	st.TransitionStage(state.StageComplete)

	cmd, err := NewHandoff(state.RoleSupervision, state.RoleIntake, "reopen", nil)
	require.NoError(t, err)

	_, err = cmd.Execute(st)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidTransition, types.GetErrorCode(err))
	assert.Equal(t, StatusFailed, cmd.Status())
	assert.Equal(t, state.StageComplete, st.Stage)
}

func TestExecute_ReplayRejected(t *testing.T) {
	st := state.New()

	cmd, err := NewHandoff(state.RoleIntake, state.RolePlanning, "go", nil)
	require.NoError(t, err)

	_, err = cmd.Execute(st)
	require.NoError(t, err)

	_, err = cmd.Execute(st)
	require.Error(t, err)
	assert.Equal(t, types.ErrCommandReplayed, types.GetErrorCode(err))

	// The state mutated exactly once.
	assert.Len(t, st.MessagesByRole[state.RolePlanning], 1)
}

func TestDataRequest_Execute(t *testing.T) {
	st := state.New()

	cmd, err := NewDataRequest(state.RolePlanning, state.RoleIntake, "raw campaign data", map[string]any{"format": "csv"})
	require.NoError(t, err)

	res, err := cmd.Execute(st)
	require.NoError(t, err)

	assert.Equal(t, true, res["request_sent"])
	assert.Equal(t, "intake", res["target_role"])
	assert.Equal(t, cmd.ID(), res["request_id"])

	// No stage transition on a data request.
	assert.Equal(t, state.StageIntake, st.Stage)
	require.Len(t, st.MessagesByRole[state.RoleIntake], 1)

	_, err = cmd.Undo(st)
	require.NoError(t, err)
}

func TestDataRequest_EmptyRequestRejected(t *testing.T) {
	_, err := NewDataRequest(state.RolePlanning, state.RoleIntake, "", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidCommand, types.GetErrorCode(err))
}

func TestTaskAssignment_ExecuteAndUndo(t *testing.T) {
	st := state.New()

	cmd, err := NewTaskAssignment(state.RoleInsight, "segment performance review",
		map[string]any{"window": "30d"}, []string{"dep-1"})
	require.NoError(t, err)

	res, err := cmd.Execute(st)
	require.NoError(t, err)

	assert.Equal(t, true, res["task_assigned"])
	assert.Equal(t, cmd.TaskID(), res["task_id"])

	require.Len(t, st.ActiveTasks, 1)
	task := st.ActiveTasks[0]
	assert.Equal(t, cmd.TaskID(), task.ID)
	assert.Equal(t, state.RoleInsight, task.Role)
	assert.Equal(t, []string{"dep-1"}, task.Dependencies)

	_, err = cmd.Undo(st)
	require.NoError(t, err)
	assert.Empty(t, st.ActiveTasks)
}

func TestResultDelivery_Execute(t *testing.T) {
	st := state.New()

	payload := map[string]any{"validation_passed": true, "data_quality_score": 0.95}
	cmd, err := NewResultDelivery(state.RoleIntake, state.RoleSupervision, payload, "intake done")
	require.NoError(t, err)

	res, err := cmd.Execute(st)
	require.NoError(t, err)

	assert.Equal(t, true, res["result_delivered"])
	assert.Equal(t, "supervision", res["target_role"])
	assert.Equal(t, "intake", res["source_role"])

	stored := st.Result(state.RoleIntake)
	require.NotNil(t, stored)
	assert.Equal(t, true, stored["validation_passed"])
	require.Len(t, st.MessagesByRole[state.RoleSupervision], 1)

	// Undo is not supported for deliveries; state must be untouched.
	undoRes, err := cmd.Undo(st)
	require.NoError(t, err)
	assert.Equal(t, "not_supported", undoRes["result_delivery_undo"])
	assert.Equal(t, true, st.Result(state.RoleIntake)["validation_passed"])
}

func TestResultDelivery_NilDataRejected(t *testing.T) {
	_, err := NewResultDelivery(state.RoleIntake, state.RoleSupervision, nil, "")
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidCommand, types.GetErrorCode(err))
}

func TestWorkflowControl_PauseResume(t *testing.T) {
	st := state.New()

	pause, err := NewWorkflowControl(ActionPause, nil)
	require.NoError(t, err)
	res, err := pause.Execute(st)
	require.NoError(t, err)
	assert.Equal(t, "pause", res["control_action"])
	assert.True(t, st.Paused())
	assert.NotEmpty(t, st.ExecutionContext[state.CtxKeyPauseTime])

	resume, err := NewWorkflowControl(ActionResume, nil)
	require.NoError(t, err)
	_, err = resume.Execute(st)
	require.NoError(t, err)
	assert.False(t, st.Paused())
	assert.NotEmpty(t, st.ExecutionContext[state.CtxKeyResumeTime])

	// Undo of a resume pauses again.
	undoRes, err := resume.Undo(st)
	require.NoError(t, err)
	assert.Equal(t, "paused", undoRes["workflow_control_undo"])
	assert.True(t, st.Paused())
}

func TestWorkflowControl_Reset(t *testing.T) {
	st := state.New()
	st.TransitionStage(state.StagePlanning, state.RolePlanning)
	st.AddTask(state.NewTask("t-1", state.RolePlanning, "allocate"))
	st.AddTask(state.NewTask("t-2", state.RolePlanning, "forecast"))
	st.FailTask("t-2", "model unavailable")

	reset, err := NewWorkflowControl(ActionReset, nil)
	require.NoError(t, err)
	_, err = reset.Execute(st)
	require.NoError(t, err)

	assert.Equal(t, state.StageIntake, st.Stage)
	assert.Equal(t, state.RoleIntake, st.NextRole)
	assert.Empty(t, st.ActiveTasks)
	assert.Empty(t, st.FailedTasks)
}

func TestWorkflowControl_UnknownActionRejected(t *testing.T) {
	_, err := NewWorkflowControl("rewind", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidCommand, types.GetErrorCode(err))
}

func TestHistory_AppendAndEvict(t *testing.T) {
	h := NewHistory(3)

	var ids []string
	for i := 0; i < 5; i++ {
		st := state.New()
		cmd, err := NewDataRequest(state.RoleIntake, state.RolePlanning, fmt.Sprintf("req-%d", i), nil)
		require.NoError(t, err)
		_, err = cmd.Execute(st)
		require.NoError(t, err)
		h.Append(cmd, nil)
		ids = append(ids, cmd.ID())
	}

	require.Equal(t, 3, h.Len())
	recs := h.Records()
	// Oldest two records were evicted.
	assert.Equal(t, ids[2], recs[0].CommandID)
	assert.Equal(t, ids[4], recs[2].CommandID)
	for _, rec := range recs {
		assert.Equal(t, KindDataRequest, rec.Kind)
		assert.Equal(t, StatusCompleted, rec.Status)
		assert.False(t, rec.ExecutedAt.IsZero())
	}
}

func TestHistory_RecordsFailure(t *testing.T) {
	h := NewHistory(0)
	st := state.New()
	st.TransitionStage(state.StageComplete)

	cmd, err := NewHandoff(state.RoleSupervision, state.RolePlanning, "late replan", nil)
	require.NoError(t, err)
	_, execErr := cmd.Execute(st)
	require.Error(t, execErr)
	h.Append(cmd, execErr)

	recs := h.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, StatusFailed, recs[0].Status)
	assert.Contains(t, recs[0].Error, "INVALID_TRANSITION")
}
