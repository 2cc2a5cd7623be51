// Package forest implements a random forest classifier over categorical
// integer features. Splits test a single feature for equality with one
// category, so feature values carry no order.
//
// A fitted Forest is immutable and safe for concurrent Predict calls.
package forest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

var (
	ErrNoSamples     = errors.New("forest: no training samples")
	ErrShapeMismatch = errors.New("forest: inconsistent sample shape")
	ErrBadLabel      = errors.New("forest: label out of range")
	ErrNotFitted     = errors.New("forest: model not fitted")
)

// Config controls training. Zero values pick the defaults noted per field.
type Config struct {
	Trees    int   // 100
	MaxDepth int   // 20
	MinLeaf  int   // 1
	MTry     int   // floor(sqrt(features)), at least 1
	Seed     int64 // fixed seed makes training deterministic
}

func (c Config) withDefaults(features int) Config {
	if c.Trees <= 0 {
		c.Trees = 100
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 20
	}
	if c.MinLeaf <= 0 {
		c.MinLeaf = 1
	}
	if c.MTry <= 0 {
		c.MTry = int(math.Floor(math.Sqrt(float64(features))))
	}
	if c.MTry < 1 {
		c.MTry = 1
	}
	if c.MTry > features {
		c.MTry = features
	}
	return c
}

type node struct {
	leaf    bool
	class   int
	feature int
	value   int
	eq      *node // samples where x[feature] == value
	ne      *node
}

func (n *node) classify(x []int) int {
	for !n.leaf {
		if x[n.feature] == n.value {
			n = n.eq
		} else {
			n = n.ne
		}
	}
	return n.class
}

// Forest is a fitted ensemble
type Forest struct {
	trees    []*node
	classes  int
	features int
}

// Fit trains a forest on rows x with labels y in [0, classes)
func Fit(x [][]int, y []int, classes int, cfg Config) (*Forest, error) {
	if len(x) == 0 {
		return nil, ErrNoSamples
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrShapeMismatch, len(x), len(y))
	}
	features := len(x[0])
	if features == 0 {
		return nil, fmt.Errorf("%w: rows have no features", ErrShapeMismatch)
	}
	for i, row := range x {
		if len(row) != features {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrShapeMismatch, i, len(row), features)
		}
		if y[i] < 0 || y[i] >= classes {
			return nil, fmt.Errorf("%w: row %d label %d", ErrBadLabel, i, y[i])
		}
	}

	cfg = cfg.withDefaults(features)
	rng := rand.New(rand.NewSource(cfg.Seed))
	b := &builder{x: x, y: y, classes: classes, features: features, cfg: cfg, rng: rng}

	f := &Forest{
		trees:    make([]*node, cfg.Trees),
		classes:  classes,
		features: features,
	}
	for t := range f.trees {
		sample := make([]int, len(x))
		for i := range sample {
			sample[i] = rng.Intn(len(x))
		}
		f.trees[t] = b.grow(sample, 0)
	}
	return f, nil
}

// Votes returns the number of trees voting for each class
func (f *Forest) Votes(x []int) ([]int, error) {
	if f == nil || len(f.trees) == 0 {
		return nil, ErrNotFitted
	}
	if len(x) != f.features {
		return nil, fmt.Errorf("%w: got %d features, want %d", ErrShapeMismatch, len(x), f.features)
	}
	votes := make([]int, f.classes)
	for _, tree := range f.trees {
		votes[tree.classify(x)]++
	}
	return votes, nil
}

// Predict returns the majority class; ties go to the lowest class index
func (f *Forest) Predict(x []int) (int, error) {
	votes, err := f.Votes(x)
	if err != nil {
		return 0, err
	}
	return argmax(votes), nil
}

// Size returns the number of trees
func (f *Forest) Size() int {
	return len(f.trees)
}

type builder struct {
	x        [][]int
	y        []int
	classes  int
	features int
	cfg      Config
	rng      *rand.Rand
}

func (b *builder) grow(idx []int, depth int) *node {
	counts := b.count(idx)
	majority := argmax(counts)
	if counts[majority] == len(idx) || len(idx) <= b.cfg.MinLeaf || depth >= b.cfg.MaxDepth {
		return &node{leaf: true, class: majority}
	}

	feature, value, ok := b.bestSplit(idx, counts)
	if !ok {
		return &node{leaf: true, class: majority}
	}

	var eq, ne []int
	for _, i := range idx {
		if b.x[i][feature] == value {
			eq = append(eq, i)
		} else {
			ne = append(ne, i)
		}
	}
	return &node{
		feature: feature,
		value:   value,
		eq:      b.grow(eq, depth+1),
		ne:      b.grow(ne, depth+1),
	}
}

// bestSplit draws features in random order and keeps drawing until MTry
// features offering at least one valid split have been examined.
func (b *builder) bestSplit(idx []int, counts []int) (int, int, bool) {
	parent := gini(counts, len(idx))
	bestGain := 0.0
	bestFeature, bestValue := -1, 0
	examined := 0

	for _, feature := range b.rng.Perm(b.features) {
		if examined >= b.cfg.MTry {
			break
		}
		values := b.distinct(idx, feature)
		if len(values) < 2 {
			continue
		}
		examined++

		for _, value := range values {
			eqCounts := make([]int, b.classes)
			eqN := 0
			for _, i := range idx {
				if b.x[i][feature] == value {
					eqCounts[b.y[i]]++
					eqN++
				}
			}
			neCounts := make([]int, b.classes)
			for c := range counts {
				neCounts[c] = counts[c] - eqCounts[c]
			}
			neN := len(idx) - eqN

			weighted := (float64(eqN)*gini(eqCounts, eqN) + float64(neN)*gini(neCounts, neN)) / float64(len(idx))
			if gain := parent - weighted; gain > bestGain {
				bestGain = gain
				bestFeature = feature
				bestValue = value
			}
		}
	}
	return bestFeature, bestValue, bestFeature >= 0
}

func (b *builder) count(idx []int) []int {
	counts := make([]int, b.classes)
	for _, i := range idx {
		counts[b.y[i]]++
	}
	return counts
}

func (b *builder) distinct(idx []int, feature int) []int {
	seen := make(map[int]struct{})
	for _, i := range idx {
		seen[b.x[i][feature]] = struct{}{}
	}
	values := make([]int, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Ints(values)
	return values
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		impurity -= p * p
	}
	return impurity
}

func argmax(values []int) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
