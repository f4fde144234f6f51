package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/BaSui01/coordflow/command"
	"github.com/BaSui01/coordflow/state"
)

// ArchiveConfig selects the relational backend for the run archive.
type ArchiveConfig struct {
	// Enabled turns archiving on. Disabled by default.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Driver is postgres, mysql or sqlite.
	Driver string `json:"driver" yaml:"driver"`

	// DSN is the driver-specific connection string.
	DSN string `json:"dsn" yaml:"dsn"`
}

// RunRecord is one archived terminal run.
type RunRecord struct {
	RunID          string    `gorm:"primaryKey;size:64"`
	Stage          string    `gorm:"size:32;index"`
	HasErrors      bool      `gorm:""`
	CompletedTasks int       `gorm:""`
	FailedTasks    int       `gorm:""`
	StateJSON      []byte    `gorm:"type:bytes"`
	StartedAt      time.Time `gorm:""`
	ArchivedAt     time.Time `gorm:"index"`
}

// TableName maps RunRecord onto the runs table.
func (RunRecord) TableName() string { return "runs" }

// CommandRecord is one archived command execution belonging to a run.
type CommandRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	RunID      string    `gorm:"size:64;index"`
	CommandID  string    `gorm:"size:64;index"`
	Kind       string    `gorm:"size:32"`
	Status     string    `gorm:"size:16"`
	Error      string    `gorm:"type:text"`
	ExecutedAt time.Time `gorm:""`
}

// TableName maps CommandRecord onto the run_commands table.
func (CommandRecord) TableName() string { return "run_commands" }

// OpenDialector 根据驱动名选择 GORM 方言
func OpenDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported archive driver: %s (supported: postgres, mysql, sqlite)", driver)
	}
}

// Archiver writes terminal runs into the relational archive. It is best
// effort: callers log archive failures and move on, a broken archive never
// blocks run completion.
type Archiver struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewArchiver wraps an open GORM handle.
func NewArchiver(db *gorm.DB, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		db:     db,
		logger: logger.With(zap.String("component", "run_archiver")),
	}
}

// OpenArchiver opens the configured backend and wraps it.
func OpenArchiver(cfg ArchiveConfig, logger *zap.Logger) (*Archiver, error) {
	dialector, err := OpenDialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}
	return NewArchiver(db, logger), nil
}

// ArchiveRun stores a terminal run and its command history in one
// transaction. Non-terminal runs are rejected.
func (a *Archiver) ArchiveRun(ctx context.Context, runID string, st *state.State, history []command.Record) error {
	if runID == "" || st == nil {
		return ErrInvalidInput
	}
	if !st.Stage.IsTerminal() {
		return fmt.Errorf("archive run %s: stage %s is not terminal", runID, st.Stage)
	}

	stateJSON, err := st.Marshal()
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}

	run := RunRecord{
		RunID:          runID,
		Stage:          string(st.Stage),
		HasErrors:      st.HasErrors(),
		CompletedTasks: len(st.CompletedTasks),
		FailedTasks:    len(st.FailedTasks),
		StateJSON:      stateJSON,
		StartedAt:      st.StartedAt,
		ArchivedAt:     time.Now(),
	}
	cmds := make([]CommandRecord, 0, len(history))
	for _, rec := range history {
		cmds = append(cmds, CommandRecord{
			RunID:      runID,
			CommandID:  rec.CommandID,
			Kind:       string(rec.Kind),
			Status:     string(rec.Status),
			Error:      rec.Error,
			ExecutedAt: rec.ExecutedAt,
		})
	}

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&run).Error; err != nil {
			return fmt.Errorf("archive run record: %w", err)
		}
		if len(cmds) > 0 {
			if err := tx.Create(&cmds).Error; err != nil {
				return fmt.Errorf("archive command records: %w", err)
			}
		}
		return nil
	})
}

// LoadRun returns an archived run record.
func (a *Archiver) LoadRun(ctx context.Context, runID string) (*RunRecord, error) {
	var rec RunRecord
	err := a.db.WithContext(ctx).First(&rec, "run_id = ?", runID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load archived run: %w", err)
	}
	return &rec, nil
}

// LoadCommands returns the archived command history for a run, oldest first.
func (a *Archiver) LoadCommands(ctx context.Context, runID string) ([]CommandRecord, error) {
	var recs []CommandRecord
	err := a.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("executed_at asc, id asc").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load archived commands: %w", err)
	}
	return recs, nil
}

// AutoMigrate creates the archive tables. Production deployments run the
// versioned migrations instead; this covers sqlite and tests.
func (a *Archiver) AutoMigrate() error {
	return a.db.AutoMigrate(&RunRecord{}, &CommandRecord{})
}

// DB exposes the underlying handle for pool management.
func (a *Archiver) DB() *gorm.DB { return a.db }
