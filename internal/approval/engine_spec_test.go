package approval

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"property-workflow/internal/domain"
)

var _ = Describe("Engine", func() {
	var (
		ctx    context.Context
		store  *fakeStore
		engine *Engine
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = newFakeStore()
		store.put(1, domain.NewApprovalState())
		engine = NewEngine(store, nil)
	})

	Context("walking a property through every team", func() {
		It("reaches Completed with every invariant intact", func() {
			for _, team := range domain.Teams() {
				res, err := engine.Approve(ctx, 1, team)
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Status).To(Equal(team.Unlocks()))
				Expect(store.get(1).Validate()).To(Succeed())
			}
			Expect(store.get(1).Status).To(Equal(domain.StageCompleted))
		})
	})

	Context("when the Purchase Team rejects", func() {
		BeforeEach(func() {
			for _, team := range []domain.Team{domain.TeamProperty, domain.TeamLegal} {
				_, err := engine.Approve(ctx, 1, team)
				Expect(err).NotTo(HaveOccurred())
			}
			purchase := domain.TeamPurchase
			_, err := engine.Reject(ctx, 1, &purchase)
			Expect(err).NotTo(HaveOccurred())
		})

		It("refuses further approvals", func() {
			_, err := engine.Approve(ctx, 1, domain.TeamPurchase)
			Expect(err).To(MatchError(domain.ErrForbidden))
		})

		It("leaves a rejected property alone on repair", func() {
			res, err := engine.Repair(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Changed).To(BeFalse())
			Expect(res.Rejected).To(BeTrue())
		})

		It("undoes back to Legally Cleared", func() {
			res, err := engine.UndoRejection(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(domain.StageLegallyCleared))
			for _, team := range domain.Teams()[domain.TeamPurchase:] {
				Expect(res.Approvals.Get(team)).To(Equal(domain.ApprovalPending))
			}
		})

		It("is cleared by an admin advance", func() {
			res, err := engine.Advance(ctx, 1, domain.DirectionNext)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Rejected).To(BeFalse())
			Expect(res.RejectedBy).To(BeEmpty())
			Expect(store.get(1).Validate()).To(Succeed())
		})
	})

	Context("advancing past the ends", func() {
		It("clamps at Pending Verification", func() {
			res, err := engine.Advance(ctx, 1, domain.DirectionPrev)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(domain.StagePendingVerification))
			Expect(res.Changed).To(BeFalse())
			Expect(store.writeCount()).To(BeZero())
		})
	})
})
