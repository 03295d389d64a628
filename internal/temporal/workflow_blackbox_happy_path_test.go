package temporal

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/testsuite"

	"property-workflow/internal/approval"
)

type activityTrace struct {
	mu sync.Mutex

	startedOrder   []string
	completedOrder []string
	repairInputs   []RepairPropertyInput
	repairOutputs  []RepairPropertyOutput
}

func (t *activityTrace) recordStarted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startedOrder = append(t.startedOrder, name)
}

func (t *activityTrace) recordCompleted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completedOrder = append(t.completedOrder, name)
}

var _ = Describe("RepairSweepWorkflow blackbox happy path", func() {
	It("lists every property, repairs each once in order and reports the repaired count", func() {
		var suite testsuite.WorkflowTestSuite
		env := suite.NewTestWorkflowEnvironment()

		repairer := &fakeRepairer{changed: map[int64]bool{10: true, 30: true}}
		acts := &Activities{Store: newFakeStore(30, 10, 20), Engine: repairer}
		trace := &activityTrace{}

		env.SetOnActivityStartedListener(func(info *activity.Info, _ context.Context, args converter.EncodedValues) {
			trace.recordStarted(info.ActivityType.Name)
			if info.ActivityType.Name == "RepairPropertyActivity" {
				var in RepairPropertyInput
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.repairInputs = append(trace.repairInputs, in)
				trace.mu.Unlock()
			}
		})
		env.SetOnActivityCompletedListener(func(info *activity.Info, result converter.EncodedValue, _ error) {
			trace.recordCompleted(info.ActivityType.Name)
			if info.ActivityType.Name == "RepairPropertyActivity" {
				var out RepairPropertyOutput
				_ = result.Get(&out)
				trace.mu.Lock()
				trace.repairOutputs = append(trace.repairOutputs, out)
				trace.mu.Unlock()
			}
		})

		env.RegisterWorkflow(RepairSweepWorkflow)
		env.RegisterActivity(acts.ListPropertyIDsActivity)
		env.RegisterActivity(acts.RepairPropertyActivity)

		By("triggering the sweep")
		env.ExecuteWorkflow(RepairSweepWorkflow, RepairSweepInput{RequestedBy: "admin"})

		By("validating the sweep completes successfully")
		Expect(env.IsWorkflowCompleted()).To(BeTrue())
		Expect(env.GetWorkflowError()).ToNot(HaveOccurred())

		var summary approval.RepairSummary
		Expect(env.GetWorkflowResult(&summary)).To(Succeed())
		Expect(summary.RepairedCount).To(Equal(2))
		Expect(summary.Errors).To(BeEmpty())

		By("validating the activities ran strictly one after another")
		expected := []string{
			"ListPropertyIDsActivity",
			"RepairPropertyActivity",
			"RepairPropertyActivity",
			"RepairPropertyActivity",
		}
		Expect(trace.startedOrder).To(Equal(expected))
		Expect(trace.completedOrder).To(Equal(expected))
		Expect(trace.repairInputs).To(Equal([]RepairPropertyInput{{PropertyID: 10}, {PropertyID: 20}, {PropertyID: 30}}))
		Expect(trace.repairOutputs).To(HaveLen(3))
		Expect(trace.repairOutputs[1].Changed).To(BeFalse())
	})
})
