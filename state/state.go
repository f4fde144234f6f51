package state

import (
	"encoding/json"
	"fmt"
	"time"
)

// Context keys interpreted by the engine. Everything else in ExecutionContext
// is opaque control data owned by callers.
const (
	CtxKeyPaused     = "paused"
	CtxKeyPauseTime  = "pause_time"
	CtxKeyResumeTime = "resume_time"
)

// Message is one entry in a role's append-only message log.
type Message struct {
	Content    string         `json:"content"`
	SourceRole Role           `json:"source_role,omitempty"`
	CommandID  string         `json:"command_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// State is the coordination state for one workflow run. It is the single
// mutable record threaded through the whole workflow; all cross-node effects
// are expressed as mutations of this value.
type State struct {
	// Workflow coordination
	Stage    Stage `json:"stage"`
	NextRole Role  `json:"next_role,omitempty"`

	// Task lifecycle. A task id appears in exactly one of the three lists.
	ActiveTasks    []*Task `json:"active_tasks"`
	CompletedTasks []*Task `json:"completed_tasks"`
	FailedTasks    []*Task `json:"failed_tasks"`

	// Role communication
	MessagesByRole map[Role][]Message      `json:"messages_by_role"`
	ResultsByRole  map[Role]map[string]any `json:"results_by_role"`
	ErrorsByRole   map[Role][]string       `json:"errors_by_role"`

	// Free-form control flags (e.g. paused); not interpreted by the engine
	// beyond the pause flag.
	ExecutionContext map[string]any `json:"execution_context"`

	// Timestamps. LastActivityAt updates on every mutating operation.
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// New creates a fresh coordination state positioned at the intake stage.
func New() *State {
	now := time.Now()
	return &State{
		Stage:            StageIntake,
		ActiveTasks:      make([]*Task, 0),
		CompletedTasks:   make([]*Task, 0),
		FailedTasks:      make([]*Task, 0),
		MessagesByRole:   make(map[Role][]Message),
		ResultsByRole:    make(map[Role]map[string]any),
		ErrorsByRole:     make(map[Role][]string),
		ExecutionContext: make(map[string]any),
		StartedAt:        now,
		LastActivityAt:   now,
	}
}

func (s *State) touch() {
	s.LastActivityAt = time.Now()
}

// AddMessage appends a message to a role's log. Logs are append-only and
// observe program order within a run.
func (s *State) AddMessage(role Role, msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.MessagesByRole[role] = append(s.MessagesByRole[role], msg)
	s.touch()
}

// SetResult stores the latest result payload for a role, replacing any prior
// payload.
func (s *State) SetResult(role Role, payload map[string]any) {
	s.ResultsByRole[role] = payload
	s.touch()
}

// Result returns the latest result payload for a role, or nil.
func (s *State) Result(role Role) map[string]any {
	return s.ResultsByRole[role]
}

// AddError appends an error string to a role's accumulated error log.
func (s *State) AddError(role Role, text string) {
	s.ErrorsByRole[role] = append(s.ErrorsByRole[role], text)
	s.touch()
}

// TransitionStage moves the run to a new stage and optionally designates the
// next role. The transition is applied unconditionally; legality checking
// lives in CanTransition and is enforced by the handoff command and the
// engine, which fail loudly on violations.
func (s *State) TransitionStage(stage Stage, nextRole ...Role) {
	s.Stage = stage
	if len(nextRole) > 0 {
		s.NextRole = nextRole[0]
	}
	s.touch()
}

// ConsumeNextRole returns the pending next-role designation and clears it.
func (s *State) ConsumeNextRole() (Role, bool) {
	if s.NextRole == "" {
		return "", false
	}
	role := s.NextRole
	s.NextRole = ""
	s.touch()
	return role, true
}

// AddTask appends a task to the active list.
func (s *State) AddTask(task *Task) {
	s.ActiveTasks = append(s.ActiveTasks, task)
	s.touch()
}

// RemoveActiveTask removes a task from the active list without recording an
// outcome. Used by task-assignment undo. Unknown ids are a no-op.
func (s *State) RemoveActiveTask(id string) {
	for i, task := range s.ActiveTasks {
		if task.ID == id {
			s.ActiveTasks = append(s.ActiveTasks[:i], s.ActiveTasks[i+1:]...)
			s.touch()
			return
		}
	}
}

// CompleteTask marks an active task completed and moves it to the completed
// list. An unknown id is a silent no-op, matching the permissive contract of
// the task lifecycle helpers.
func (s *State) CompleteTask(id string, result map[string]any) {
	for i, task := range s.ActiveTasks {
		if task.ID == id {
			now := time.Now()
			task.Status = TaskStatusCompleted
			task.CompletedAt = &now
			task.Result = result
			s.ActiveTasks = append(s.ActiveTasks[:i], s.ActiveTasks[i+1:]...)
			s.CompletedTasks = append(s.CompletedTasks, task)
			s.touch()
			return
		}
	}
}

// FailTask marks an active task failed and moves it to the failed list.
// An unknown id is a silent no-op.
func (s *State) FailTask(id string, errText string) {
	for i, task := range s.ActiveTasks {
		if task.ID == id {
			now := time.Now()
			task.Status = TaskStatusFailed
			task.Error = errText
			task.CompletedAt = &now
			s.ActiveTasks = append(s.ActiveTasks[:i], s.ActiveTasks[i+1:]...)
			s.FailedTasks = append(s.FailedTasks, task)
			s.touch()
			return
		}
	}
}

// Paused reports whether the cooperative pause flag is set.
func (s *State) Paused() bool {
	paused, _ := s.ExecutionContext[CtxKeyPaused].(bool)
	return paused
}

// HasErrors reports whether any role has a non-empty error log.
func (s *State) HasErrors() bool {
	for _, errs := range s.ErrorsByRole {
		if len(errs) > 0 {
			return true
		}
	}
	return false
}

// Summary is a read-only snapshot of the run — the only allowed external
// observation surface besides full serialization.
type Summary struct {
	Stage          Stage         `json:"stage"`
	NextRole       Role          `json:"next_role,omitempty"`
	ActiveTasks    int           `json:"active_tasks"`
	CompletedTasks int           `json:"completed_tasks"`
	FailedTasks    int           `json:"failed_tasks"`
	Duration       time.Duration `json:"duration"`
	LastActivity   time.Time     `json:"last_activity"`
	HasErrors      bool          `json:"has_errors"`
}

// Summary returns a snapshot of the current run state.
func (s *State) Summary() Summary {
	return Summary{
		Stage:          s.Stage,
		NextRole:       s.NextRole,
		ActiveTasks:    len(s.ActiveTasks),
		CompletedTasks: len(s.CompletedTasks),
		FailedTasks:    len(s.FailedTasks),
		Duration:       time.Since(s.StartedAt),
		LastActivity:   s.LastActivityAt,
		HasErrors:      s.HasErrors(),
	}
}

// Clone deep-copies the state. The durable wrapper hands each execution
// attempt a fresh clone so a failed attempt's partial mutations are discarded
// with it; the run controller publishes summaries from clones.
func (s *State) Clone() *State {
	cp := &State{
		Stage:            s.Stage,
		NextRole:         s.NextRole,
		ActiveTasks:      cloneTasks(s.ActiveTasks),
		CompletedTasks:   cloneTasks(s.CompletedTasks),
		FailedTasks:      cloneTasks(s.FailedTasks),
		MessagesByRole:   make(map[Role][]Message, len(s.MessagesByRole)),
		ResultsByRole:    make(map[Role]map[string]any, len(s.ResultsByRole)),
		ErrorsByRole:     make(map[Role][]string, len(s.ErrorsByRole)),
		ExecutionContext: deepCopyMap(s.ExecutionContext),
		StartedAt:        s.StartedAt,
		LastActivityAt:   s.LastActivityAt,
	}
	for role, msgs := range s.MessagesByRole {
		copied := make([]Message, len(msgs))
		for i, m := range msgs {
			copied[i] = m
			copied[i].Metadata = deepCopyMap(m.Metadata)
		}
		cp.MessagesByRole[role] = copied
	}
	for role, result := range s.ResultsByRole {
		cp.ResultsByRole[role] = deepCopyMap(result)
	}
	for role, errs := range s.ErrorsByRole {
		cp.ErrorsByRole[role] = append([]string(nil), errs...)
	}
	return cp
}

func cloneTasks(tasks []*Task) []*Task {
	out := make([]*Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.clone()
	}
	return out
}

// deepCopyMap copies a payload map recursively. Nested map[string]any and
// []any values are copied; other values are assigned as-is (payloads are
// expected to hold JSON-shaped data).
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

// Marshal serializes the state for the persistence hook.
func (s *State) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return data, nil
}

// Unmarshal restores a state from its serialized form.
func Unmarshal(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	if s.MessagesByRole == nil {
		s.MessagesByRole = make(map[Role][]Message)
	}
	if s.ResultsByRole == nil {
		s.ResultsByRole = make(map[Role]map[string]any)
	}
	if s.ErrorsByRole == nil {
		s.ErrorsByRole = make(map[Role][]string)
	}
	if s.ExecutionContext == nil {
		s.ExecutionContext = make(map[string]any)
	}
	return &s, nil
}
