package authentication

import (
	"hash/fnv"
	"math"
)

// subjectFilter is a bloom filter over external ids. A miss means the subject
// has no local user. Callers hold Service.filterMu.
type subjectFilter struct {
	words  []uint64
	size   uint64
	rounds uint64
}

func newSubjectFilter(capacity uint, falsePositiveRate float64) *subjectFilter {
	n := float64(max(capacity, 1))

	size := uint64(math.Ceil(-n * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2)))
	size = max(size, 64)

	rounds := uint64(math.Round(float64(size) / n * math.Ln2))
	rounds = max(rounds, 1)

	return &subjectFilter{
		words:  make([]uint64, (size+63)/64),
		size:   size,
		rounds: rounds,
	}
}

// positions derives every bit index from the two halves of one 64-bit FNV-1a
// sum. The step is forced odd so it never collapses to a single index.
func (f *subjectFilter) positions(externalID string, fn func(bit uint64) bool) bool {
	h := fnv.New64a()
	_, _ = h.Write([]byte(externalID))
	sum := h.Sum64()

	base := sum >> 32
	step := sum&math.MaxUint32 | 1

	for i := range f.rounds {
		if !fn((base + i*step) % f.size) {
			return false
		}
	}

	return true
}

func (f *subjectFilter) add(externalID string) {
	f.positions(externalID, func(bit uint64) bool {
		f.words[bit/64] |= 1 << (bit % 64)

		return true
	})
}

func (f *subjectFilter) mayContain(externalID string) bool {
	return f.positions(externalID, func(bit uint64) bool {
		return f.words[bit/64]&(1<<(bit%64)) != 0
	})
}
