// Package eval scores the ranking pipeline against held-out relevance
// judgments: per-query NDCG and recall, plus batch runs with aggregate
// statistics.
package eval

import "math"

// NDCG computes the normalized discounted cumulative gain of a
// predicted ranking against an ordered ground-truth list. The synthetic
// relevance of a predicted item is len(groundTruth) minus its position
// in the ground truth, so earlier ground-truth items weigh more; items
// outside the ground truth contribute nothing. k > 0 truncates the
// predictions to the top k first.
//
// Returns 0.0 when either list is empty or when no predicted item
// appears in the ground truth.
func NDCG(predicted, groundTruth []string, k int) float64 {
	if len(groundTruth) == 0 || len(predicted) == 0 {
		return 0.0
	}
	if k > 0 && len(predicted) > k {
		predicted = predicted[:k]
	}

	gtPos := make(map[string]int, len(groundTruth))
	for i, id := range groundTruth {
		if _, seen := gtPos[id]; !seen {
			gtPos[id] = i
		}
	}

	var dcg float64
	hit := false
	for i, id := range predicted {
		pos, ok := gtPos[id]
		if !ok {
			continue
		}
		hit = true
		rel := float64(len(groundTruth) - pos)
		dcg += rel / math.Log2(float64(i)+2)
	}
	if !hit {
		return 0.0
	}

	// Ideal ranking: the ground truth itself, relevances len(gt)..1.
	var idcg float64
	for i := range groundTruth {
		rel := float64(len(groundTruth) - i)
		idcg += rel / math.Log2(float64(i)+2)
	}

	return dcg / idcg
}

// Recall is the fraction of ground-truth items present anywhere in the
// predictions. 0.0 when the ground truth is empty.
func Recall(predicted, groundTruth []string) float64 {
	if len(groundTruth) == 0 {
		return 0.0
	}

	predSet := make(map[string]struct{}, len(predicted))
	for _, id := range predicted {
		predSet[id] = struct{}{}
	}

	found := 0
	for _, id := range groundTruth {
		if _, ok := predSet[id]; ok {
			found++
		}
	}
	return float64(found) / float64(len(groundTruth))
}
