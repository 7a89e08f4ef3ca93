package analysis

// RandomSource is the randomness k-means seeding draws from.
type RandomSource interface {
	Float64() float64
	Intn(n int) int
}

// defaultSeed replaces a zero seed, which would make xorshift emit zeros forever.
const defaultSeed uint64 = 0x9E3779B97F4A7C15

// XorShift is a xorshift64* generator. Identical seeds yield identical sequences.
// It is not safe for concurrent use.
type XorShift struct {
	state uint64
}

// NewXorShift creates a generator from seed.
func NewXorShift(seed uint64) *XorShift {
	if seed == 0 {
		seed = defaultSeed
	}
	return &XorShift{state: seed}
}

// Uint64 returns the next 64 pseudo-random bits.
func (x *XorShift) Uint64() uint64 {
	x.state ^= x.state >> 12
	x.state ^= x.state << 25
	x.state ^= x.state >> 27
	return x.state * 2685821657736338717
}

// Float64 returns a value in [0, 1).
func (x *XorShift) Float64() float64 {
	return float64(x.Uint64()>>11) / (1 << 53)
}

// Intn returns a value in [0, n). n must be positive.
func (x *XorShift) Intn(n int) int {
	return int(x.Uint64() % uint64(n))
}
