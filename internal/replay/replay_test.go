package replay

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	operrors "github.com/betepahos/incubator-aurora/internal/errors"
	"github.com/betepahos/incubator-aurora/internal/updater"
)

func mustParams(batchSize, restartThreshold, watchSecs, maxPerInstance, maxTotal int) updater.UpdateParameters {
	params, err := updater.NewUpdateParameters(batchSize, restartThreshold, watchSecs, maxPerInstance, maxTotal)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return params
}

var _ = Describe("Run", func() {
	ctx := context.Background()
	logger := logr.Discard()

	Context("with one tolerated failure per instance and in total", func() {
		var params updater.UpdateParameters

		BeforeEach(func() {
			params = mustParams(3, 10, 30, 1, 1)
		})

		It("fails the update once a second instance goes over its limit", func() {
			batches := []Batch{
				{Failed: []updater.InstanceID{2, 5}},
				{Failed: []updater.InstanceID{2}},
				{Failed: []updater.InstanceID{5}},
				{Failed: []updater.InstanceID{0}},
			}

			result, err := Run(ctx, logger, params, batches, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Failed()).To(BeTrue())
			Expect(result.FailedAtBatch).To(Equal(2))
			Expect(result.Batches).To(HaveLen(3))
			Expect(result.Batches[0].OverLimit).To(BeEmpty())
			Expect(result.Batches[1].OverLimit).To(Equal([]updater.InstanceID{2}))
			Expect(result.Batches[2].OverLimit).To(Equal([]updater.InstanceID{2, 5}))
			Expect(result.Report.Exceeded).To(Equal(2))
			Expect(result.Report.Limit).To(Equal(1))
		})

		It("succeeds when only one instance goes over its limit", func() {
			batches := []Batch{
				{Failed: []updater.InstanceID{1}},
				{},
				{Failed: []updater.InstanceID{1, 1}},
			}

			result, err := Run(ctx, logger, params, batches, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Failed()).To(BeFalse())
			Expect(result.FailedAtBatch).To(Equal(-1))
			Expect(result.Batches).To(HaveLen(3))
			Expect(result.Report.Instances).To(ConsistOf(updater.InstanceFailure{Instance: 1, Failures: 3, Limit: 1}))
		})

		It("rejects a batch with more failed instances than the batch size", func() {
			batches := []Batch{{Failed: []updater.InstanceID{0, 1, 2, 3}}}

			_, err := Run(ctx, logger, params, batches, nil)
			Expect(err).To(HaveOccurred())
			Expect(operrors.IsPermanent(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("batch 0"))
		})
	})

	It("classifies recorded observations", func() {
		params := mustParams(2, 10, 30, 0, 0)

		input, err := ParseInput([]byte(`
batches:
  - evaluatedAt: "2024-03-01T12:01:00Z"
    observations:
      - instance: 0
        restartedAt: "2024-03-01T12:00:00Z"
        healthyAt: "2024-03-01T12:00:05Z"
      - instance: 1
        restartedAt: "2024-03-01T12:00:00Z"
`))
		Expect(err).NotTo(HaveOccurred())

		result, err := Run(ctx, logger, params, input.Batches, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Batches[0].Failed).To(Equal([]updater.InstanceID{1}))
		Expect(result.FailedAtBatch).To(Equal(0))
	})

	Context("with observations and an explicit failed list", func() {
		var (
			params      updater.UpdateParameters
			restartedAt time.Time
			evaluatedAt time.Time
		)

		BeforeEach(func() {
			params = mustParams(2, 10, 30, 1, 1)
			restartedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
			evaluatedAt = restartedAt.Add(60 * time.Second)
		})

		It("counts an instance in both sources once", func() {
			batches := []Batch{{
				Failed:       []updater.InstanceID{1},
				Observations: []Observation{{Instance: 1, RestartedAt: restartedAt}},
				EvaluatedAt:  &evaluatedAt,
			}}

			result, err := Run(ctx, logger, params, batches, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Batches[0].Failed).To(Equal([]updater.InstanceID{1}))
			Expect(result.Batches[0].OverLimit).To(BeEmpty())
			Expect(result.Failed()).To(BeFalse())
		})

		It("counts an instance observed twice once", func() {
			batches := []Batch{{
				Observations: []Observation{
					{Instance: 1, RestartedAt: restartedAt},
					{Instance: 1, RestartedAt: restartedAt},
				},
				EvaluatedAt: &evaluatedAt,
			}}

			result, err := Run(ctx, logger, params, batches, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Batches[0].Failed).To(Equal([]updater.InstanceID{1}))
		})

		It("still counts duplicates in the failed list individually", func() {
			batches := []Batch{{
				Failed:       []updater.InstanceID{1, 1},
				Observations: []Observation{{Instance: 1, RestartedAt: restartedAt}},
				EvaluatedAt:  &evaluatedAt,
			}}

			result, err := Run(ctx, logger, params, batches, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Batches[0].Failed).To(Equal([]updater.InstanceID{1, 1}))
			Expect(result.Batches[0].OverLimit).To(Equal([]updater.InstanceID{1}))
		})

		It("rejects an instance that is not done at evaluatedAt", func() {
			healthyAt := restartedAt.Add(5 * time.Second)
			early := restartedAt.Add(20 * time.Second)
			batches := []Batch{{
				Observations: []Observation{{Instance: 0, RestartedAt: restartedAt, HealthyAt: &healthyAt}},
				EvaluatedAt:  &early,
			}}

			_, err := Run(ctx, logger, params, batches, nil)
			Expect(err).To(HaveOccurred())
			Expect(operrors.IsPermanent(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("instance 0 is still HealthyPendingWatch"))
		})

		It("rejects an instance still waiting to become healthy", func() {
			early := restartedAt.Add(5 * time.Second)
			batches := []Batch{{
				Observations: []Observation{{Instance: 3, RestartedAt: restartedAt}},
				EvaluatedAt:  &early,
			}}

			_, err := Run(ctx, logger, params, batches, nil)
			Expect(err).To(MatchError(ContainSubstring("instance 3 is still AwaitingHealthy")))
		})
	})

	It("requires evaluatedAt with observations", func() {
		params := mustParams(2, 10, 30, 0, 0)
		batches := []Batch{{Observations: []Observation{{Instance: 1}}}}

		_, err := Run(ctx, logger, params, batches, nil)
		Expect(err).To(MatchError(ContainSubstring("observations require evaluatedAt")))
	})

	It("stops when the context is cancelled", func() {
		params := mustParams(3, 10, 30, 0, 0)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := Run(cancelled, logger, params, []Batch{{}}, nil)
		Expect(err).To(MatchError(context.Canceled))
	})
})

var _ = Describe("ParseInput", func() {
	It("decodes failed instance lists", func() {
		input, err := ParseInput([]byte("batches:\n  - failed: [2, 5]\n  - failed: [2]\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(input.Batches).To(HaveLen(2))
		Expect(input.Batches[0].Failed).To(Equal([]updater.InstanceID{2, 5}))
	})

	It("rejects unknown fields", func() {
		_, err := ParseInput([]byte("batches:\n  - failures: [2]\n"))
		Expect(err).To(HaveOccurred())
		Expect(operrors.IsPermanent(err)).To(BeTrue())
	})

	It("loads documents from disk", func() {
		path := filepath.Join(GinkgoT().TempDir(), "batches.yaml")
		Expect(os.WriteFile(path, []byte("batches:\n  - failed: [1]\n"), 0o600)).To(Succeed())

		input, err := LoadInput(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(input.Batches).To(HaveLen(1))

		_, err = LoadInput(filepath.Join(filepath.Dir(path), "missing.yaml"))
		Expect(err).To(HaveOccurred())
	})
})
