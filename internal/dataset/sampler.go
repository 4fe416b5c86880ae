package dataset

import (
	"errors"
	"fmt"
	"math/rand"

	"zapbench-train/internal/model"
)

// WindowRef locates one window: a recording index and the first context frame.
type WindowRef struct {
	Recording int
	Start     int
}

// SamplerOptions configures the training window sampler.
type SamplerOptions struct {
	// Groups holds the candidate windows of each recording, in recording order.
	Groups     [][]WindowRef
	Seed       int64
	ShardIndex int
	ShardCount int
}

// Sampler yields training windows epoch by epoch. Each epoch shuffles every
// recording's windows and interleaves recordings round-robin, then keeps
// every ShardCount-th window starting at ShardIndex.
type Sampler struct {
	groups     [][]WindowRef
	rng        *rand.Rand
	shardIndex int
	shardCount int
	order      []WindowRef
	pos        int
	epoch      int
}

// NewSampler validates opts and prepares the first epoch.
func NewSampler(opts SamplerOptions) (*Sampler, error) {
	total := 0
	for _, g := range opts.Groups {
		total += len(g)
	}
	if total == 0 {
		return nil, errors.New("sampler: no windows available")
	}
	if opts.ShardCount <= 0 {
		opts.ShardCount = 1
	}
	if opts.ShardIndex < 0 || opts.ShardIndex >= opts.ShardCount {
		return nil, fmt.Errorf("sampler: shard index %d out of range [0, %d)", opts.ShardIndex, opts.ShardCount)
	}
	if total <= opts.ShardIndex {
		return nil, fmt.Errorf("sampler: %d windows cannot feed shard %d", total, opts.ShardIndex)
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	s := &Sampler{
		groups:     opts.Groups,
		rng:        rand.New(rand.NewSource(opts.Seed)),
		shardIndex: opts.ShardIndex,
		shardCount: opts.ShardCount,
	}
	s.nextEpoch()
	return s, nil
}

// Epoch reports how many epochs have been started, counting from 1.
func (s *Sampler) Epoch() int {
	return s.epoch
}

// Next returns the next n windows, rolling into a new epoch as needed.
func (s *Sampler) Next(n int) []WindowRef {
	out := make([]WindowRef, 0, n)
	for len(out) < n {
		if s.pos >= len(s.order) {
			s.nextEpoch()
		}
		out = append(out, s.order[s.pos])
		s.pos++
	}
	return out
}

func (s *Sampler) nextEpoch() {
	order := buildRoundRobinOrder(s.groups, s.rng)
	sharded := order[:0]
	for i, ref := range order {
		if i%s.shardCount == s.shardIndex {
			sharded = append(sharded, ref)
		}
	}
	s.order = sharded
	s.pos = 0
	s.epoch++
}

func buildRoundRobinOrder(groups [][]WindowRef, rng *rand.Rand) []WindowRef {
	copied := make([][]WindowRef, len(groups))
	for i, g := range groups {
		copied[i] = append([]WindowRef(nil), g...)
		if rng != nil {
			rng.Shuffle(len(copied[i]), func(a, b int) {
				copied[i][a], copied[i][b] = copied[i][b], copied[i][a]
			})
		}
	}
	var order []WindowRef
	for {
		advanced := false
		for i := range copied {
			if len(copied[i]) == 0 {
				continue
			}
			order = append(order, copied[i][0])
			copied[i] = copied[i][1:]
			advanced = true
		}
		if !advanced {
			break
		}
	}
	return order
}

// RangeRefs lists every window of each recording that lies inside the range
// chosen by pick.
func RangeRefs(recs []*Recording, pick func(Splits) Range, trainFraction, valFraction float64, context, horizon int) [][]WindowRef {
	groups := make([][]WindowRef, len(recs))
	for i, rec := range recs {
		splits := Split(len(rec.Frames), trainFraction, valFraction)
		for _, start := range Windows(pick(splits), context, horizon) {
			groups[i] = append(groups[i], WindowRef{Recording: i, Start: start})
		}
	}
	return groups
}

// Batch assembles the windows in refs into a model batch. Frame slices are
// shared with the recordings and must not be modified.
func Batch(recs []*Recording, refs []WindowRef, context, horizon int) model.Batch {
	batch := model.Batch{
		Inputs:  make([][][]float64, 0, len(refs)),
		Targets: make([][][]float64, 0, len(refs)),
	}
	for _, ref := range refs {
		frames := recs[ref.Recording].Frames
		batch.Inputs = append(batch.Inputs, frames[ref.Start:ref.Start+context])
		batch.Targets = append(batch.Targets, frames[ref.Start+context:ref.Start+context+horizon])
	}
	return batch
}
