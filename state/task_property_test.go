package state

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Feature: workflow-coordination, Property: Task ID exclusivity
// A task id appears in exactly one of {active, completed, failed} at all
// times, under arbitrary interleavings of add/complete/fail operations.
func TestProperty_TaskIDExclusivity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	type op struct {
		kind   int // 0=add, 1=complete, 2=fail
		taskID int
	}

	genOp := gopter.CombineGens(
		gen.IntRange(0, 2),
		gen.IntRange(0, 9),
	).Map(func(vals []any) op {
		return op{kind: vals[0].(int), taskID: vals[1].(int)}
	})

	properties.Property("each task id lives in exactly one list", prop.ForAll(
		func(ops []op) bool {
			s := New()
			added := make(map[string]bool)

			for _, o := range ops {
				id := fmt.Sprintf("task-%d", o.taskID)
				switch o.kind {
				case 0:
					// Only add ids that are not already tracked; duplicate ids
					// are the caller's bug, not the invariant under test.
					if !added[id] {
						s.AddTask(NewTask(id, RoleIntake, "generated"))
						added[id] = true
					}
				case 1:
					s.CompleteTask(id, nil)
				case 2:
					s.FailTask(id, "generated failure")
				}

				if !taskListsExclusive(s) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genOp),
	))

	properties.Property("every observed stage stays within the enum", prop.ForAll(
		func(transitions []int) bool {
			s := New()
			stages := []Stage{StageIntake, StagePlanning, StageInsight, StageSupervision, StageComplete, StageError}
			for _, i := range transitions {
				s.TransitionStage(stages[i%len(stages)])
				if !s.Stage.Valid() {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 5)),
	))

	properties.TestingRun(t)
}

func taskListsExclusive(s *State) bool {
	seen := make(map[string]int)
	for _, task := range s.ActiveTasks {
		seen[task.ID]++
	}
	for _, task := range s.CompletedTasks {
		seen[task.ID]++
	}
	for _, task := range s.FailedTasks {
		seen[task.ID]++
	}
	for _, count := range seen {
		if count != 1 {
			return false
		}
	}
	return true
}
