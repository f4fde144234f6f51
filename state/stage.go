package state

import "fmt"

// Stage 定义工作流阶段
type Stage string

const (
	StageIntake      Stage = "intake"      // Intake / workspace analysis
	StagePlanning    Stage = "planning"    // Plan and budget allocation
	StageInsight     Stage = "insight"     // Insight generation
	StageSupervision Stage = "supervision" // Supervisor review
	StageComplete    Stage = "complete"    // Terminal: run finished
	StageError       Stage = "error"       // Terminal: unrecoverable fault
)

// Role 定义参与工作流的工作者角色
type Role string

const (
	RoleIntake      Role = "intake"
	RolePlanning    Role = "planning"
	RoleInsight     Role = "insight"
	RoleSupervision Role = "supervision"
)

// Roles lists all worker roles in pipeline order.
func Roles() []Role {
	return []Role{RoleIntake, RolePlanning, RoleInsight, RoleSupervision}
}

// StageForRole 返回角色对应的处理阶段
func StageForRole(role Role) (Stage, bool) {
	switch role {
	case RoleIntake:
		return StageIntake, true
	case RolePlanning:
		return StagePlanning, true
	case RoleInsight:
		return StageInsight, true
	case RoleSupervision:
		return StageSupervision, true
	default:
		return "", false
	}
}

// validTransitions 定义合法的阶段转换
// Supervision may send the run backward to any prior stage (supervisor-ordered
// retries); every non-terminal stage may fall into error.
var validTransitions = map[Stage][]Stage{
	StageIntake:      {StagePlanning, StageSupervision, StageError},
	StagePlanning:    {StageInsight, StageSupervision, StageError},
	StageInsight:     {StageSupervision, StageError},
	StageSupervision: {StageIntake, StagePlanning, StageInsight, StageComplete, StageError},
	StageComplete:    {},
	StageError:       {},
}

// CanTransition 检查阶段转换是否合法
func CanTransition(from, to Stage) bool {
	if from == to {
		return true
	}
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the stage ends the run.
func (s Stage) IsTerminal() bool {
	return s == StageComplete || s == StageError
}

// Valid reports whether the stage is one of the six known values.
func (s Stage) Valid() bool {
	switch s {
	case StageIntake, StagePlanning, StageInsight, StageSupervision, StageComplete, StageError:
		return true
	}
	return false
}

// ErrInvalidTransition 非法阶段转换错误
type ErrInvalidTransition struct {
	From Stage
	To   Stage
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid stage transition: %s -> %s", e.From, e.To)
}
