package mldetect

import "testing"

func TestAveragePathLength_SmallN(t *testing.T) {
	if got := averagePathLength(0); got != 0 {
		t.Errorf("averagePathLength(0) = %v, want 0", got)
	}
	if got := averagePathLength(1); got != 0 {
		t.Errorf("averagePathLength(1) = %v, want 0", got)
	}
}

func TestAveragePathLength_Monotonic(t *testing.T) {
	a := averagePathLength(10)
	b := averagePathLength(1000)
	if !(b > a) {
		t.Errorf("expected c(n) to grow with n: c(10)=%v c(1000)=%v", a, b)
	}
}

func TestForest_DecisionFunction_EmptyEnsembleIsZero(t *testing.T) {
	f := Forest{}
	if got := f.DecisionFunction([9]float64{}); got != 0 {
		t.Errorf("expected 0 for an empty forest, got %v", got)
	}
}

func TestForest_DecisionFunction_ShorterPathIsMoreAnomalous(t *testing.T) {
	// A tree whose root is already a leaf (path length 0) should score as
	// more anomalous (lower decision function) than a tree with one split.
	shortTree := IsolationTree{Nodes: []TreeNode{
		{IsLeaf: true, LeafSize: 1},
	}}
	deepTree := IsolationTree{Nodes: []TreeNode{
		{Feature: 0, Threshold: 0, Left: 1, Right: 2},
		{IsLeaf: true, LeafSize: 1},
		{IsLeaf: true, LeafSize: 1},
	}}

	short := Forest{SampleSize: 256, Trees: []IsolationTree{shortTree}}
	deep := Forest{SampleSize: 256, Trees: []IsolationTree{deepTree}}

	shortScore := short.DecisionFunction([9]float64{-1})
	deepScore := deep.DecisionFunction([9]float64{-1})

	if !(shortScore < deepScore) {
		t.Errorf("expected shorter path to score lower (more anomalous): short=%v deep=%v", shortScore, deepScore)
	}
}
