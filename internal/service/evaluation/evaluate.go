package evaluation

import (
	"golang.org/x/sync/errgroup"

	"github.com/ashwinyue/next-eval/internal/model"
)

// Evaluate 在黄金集、测试集和全集上并发计算指标报告及其汇总
func Evaluate(labeled, predicted []model.Record, split *model.EvaluationSplit) (model.IterationMetrics, model.IterationSummary) {
	var (
		metrics model.IterationMetrics
		g       errgroup.Group
	)

	g.Go(func() error {
		metrics.GoldenSet = CalculateMetrics(labeled, predicted, split.GoldenIDs)
		return nil
	})
	g.Go(func() error {
		metrics.TestSet = CalculateMetrics(labeled, predicted, split.TestIDs)
		return nil
	})
	g.Go(func() error {
		metrics.Total = CalculateMetrics(labeled, predicted, split.AllIDs())
		return nil
	})
	_ = g.Wait()

	return metrics, SummarizeIteration(metrics)
}

// SummarizeIteration 三个子集各自的汇总
func SummarizeIteration(m model.IterationMetrics) model.IterationSummary {
	return model.IterationSummary{
		GoldenSet: Summarize(m.GoldenSet),
		TestSet:   Summarize(m.TestSet),
		Total:     Summarize(m.Total),
	}
}
