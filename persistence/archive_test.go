package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/BaSui01/coordflow/command"
	"github.com/BaSui01/coordflow/state"
)

func setupArchiver(t *testing.T) *Archiver {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	a := NewArchiver(db, nil)
	require.NoError(t, a.AutoMigrate())
	return a
}

func terminalState(t *testing.T) *state.State {
	st := state.New()
	st.SetResult(state.RoleIntake, map[string]any{"validation_passed": true})
	st.TransitionStage(state.StageSupervision)
	st.TransitionStage(state.StageComplete)
	return st
}

func TestArchiver_ArchiveAndLoad(t *testing.T) {
	a := setupArchiver(t)
	ctx := context.Background()
	st := terminalState(t)

	history := []command.Record{
		{CommandID: "c-1", Kind: command.KindHandoff, Status: command.StatusCompleted, ExecutedAt: time.Now().Add(-time.Minute)},
		{CommandID: "c-2", Kind: command.KindResultDelivery, Status: command.StatusCompleted, ExecutedAt: time.Now()},
	}

	require.NoError(t, a.ArchiveRun(ctx, "run-1", st, history))

	rec, err := a.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "complete", rec.Stage)
	assert.False(t, rec.HasErrors)
	assert.NotEmpty(t, rec.StateJSON)

	cmds, err := a.LoadCommands(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, "c-1", cmds[0].CommandID)
	assert.Equal(t, "c-2", cmds[1].CommandID)
}

func TestArchiver_RearchiveIsUpsert(t *testing.T) {
	a := setupArchiver(t)
	ctx := context.Background()

	require.NoError(t, a.ArchiveRun(ctx, "run-1", terminalState(t), nil))
	require.NoError(t, a.ArchiveRun(ctx, "run-1", terminalState(t), nil))

	var count int64
	require.NoError(t, a.DB().Model(&RunRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestArchiver_RejectsNonTerminalRun(t *testing.T) {
	a := setupArchiver(t)
	st := state.New() // still at intake

	err := a.ArchiveRun(context.Background(), "run-1", st, nil)
	assert.Error(t, err)
}

func TestArchiver_LoadMissing(t *testing.T) {
	a := setupArchiver(t)

	_, err := a.LoadRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenDialector(t *testing.T) {
	for _, driver := range []string{"postgres", "mysql", "sqlite"} {
		d, err := OpenDialector(driver, "dsn")
		require.NoError(t, err, driver)
		assert.NotNil(t, d)
	}
	_, err := OpenDialector("oracle", "dsn")
	assert.Error(t, err)
}
