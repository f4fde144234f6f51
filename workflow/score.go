package workflow

import "github.com/BaSui01/coordflow/state"

// Supervisor next actions stored in ResultsByRole[supervision]["next_action"].
const (
	ActionComplete      = "complete"
	ActionRetryIntake   = "retry_intake"
	ActionRetryPlanning = "retry_planning"
	ActionRetryInsight  = "retry_insight"
)

// ScorePolicy 监督者完成度评分策略。权重与阈值来自配置而非常量，
// 默认值复刻监督者的原始行为。
type ScorePolicy struct {
	WeightIntake   float64 `yaml:"weight_intake" json:"weight_intake"`
	WeightPlanning float64 `yaml:"weight_planning" json:"weight_planning"`
	WeightInsight  float64 `yaml:"weight_insight" json:"weight_insight"`

	// 阈值按降序解释：>= ThresholdComplete 完成，
	// >= ThresholdInsight 优先补洞见，>= ThresholdPlanning 优先补计划，
	// 否则从摄取阶段重来。
	ThresholdComplete float64 `yaml:"threshold_complete" json:"threshold_complete"`
	ThresholdInsight  float64 `yaml:"threshold_insight" json:"threshold_insight"`
	ThresholdPlanning float64 `yaml:"threshold_planning" json:"threshold_planning"`
}

// DefaultScorePolicy returns the stock weights (0.3/0.4/0.3) and thresholds
// (0.9/0.7/0.5).
func DefaultScorePolicy() ScorePolicy {
	return ScorePolicy{
		WeightIntake:      0.3,
		WeightPlanning:    0.4,
		WeightInsight:     0.3,
		ThresholdComplete: 0.9,
		ThresholdInsight:  0.7,
		ThresholdPlanning: 0.5,
	}
}

func (p ScorePolicy) normalize() ScorePolicy {
	d := DefaultScorePolicy()
	if p.WeightIntake <= 0 && p.WeightPlanning <= 0 && p.WeightInsight <= 0 {
		p.WeightIntake, p.WeightPlanning, p.WeightInsight = d.WeightIntake, d.WeightPlanning, d.WeightInsight
	}
	if p.ThresholdComplete <= 0 {
		p.ThresholdComplete = d.ThresholdComplete
	}
	if p.ThresholdInsight <= 0 {
		p.ThresholdInsight = d.ThresholdInsight
	}
	if p.ThresholdPlanning <= 0 {
		p.ThresholdPlanning = d.ThresholdPlanning
	}
	return p
}

// Score computes weighted result coverage, normalized by the sum of evaluated
// weights. All three weights are always evaluated, so with stock weights the
// reachable scores are 0.0, 0.3, 0.4, 0.6, 0.7 and 1.0. Presence means a
// non-empty result payload for the role.
func (p ScorePolicy) Score(st *state.State) float64 {
	p = p.normalize()

	var achieved, total float64
	total = p.WeightIntake + p.WeightPlanning + p.WeightInsight
	if total <= 0 {
		return 0
	}
	if len(st.Result(state.RoleIntake)) > 0 {
		achieved += p.WeightIntake
	}
	if len(st.Result(state.RolePlanning)) > 0 {
		achieved += p.WeightPlanning
	}
	if len(st.Result(state.RoleInsight)) > 0 {
		achieved += p.WeightInsight
	}
	return achieved / total
}

// NextAction maps the completion score to the supervisor's decision. The
// retry priority is asymmetric on purpose: upstream defects are fixed before
// downstream ones, so a mid-band score with a missing plan retries planning
// even when insight is missing too.
func (p ScorePolicy) NextAction(st *state.State) (string, float64) {
	p = p.normalize()
	score := p.Score(st)

	switch {
	case score >= p.ThresholdComplete:
		return ActionComplete, score
	case score >= p.ThresholdInsight:
		if len(st.Result(state.RoleInsight)) == 0 {
			return ActionRetryInsight, score
		}
		return ActionComplete, score
	case score >= p.ThresholdPlanning:
		if len(st.Result(state.RolePlanning)) == 0 {
			return ActionRetryPlanning, score
		}
		return ActionRetryInsight, score
	default:
		return ActionRetryIntake, score
	}
}
