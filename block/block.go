// Package block partitions an ordered sample range into contiguous blocks
// that are loaded and processed one at a time.
package block

import "fmt"

// Block is the half-open position range [Lo, Hi) of a sorted sample slice.
type Block struct {
	Lo, Hi int
}

// Len returns the number of samples in the block.
func (b Block) Len() int { return b.Hi - b.Lo }

func (b Block) String() string { return fmt.Sprintf("[%d,%d)", b.Lo, b.Hi) }

// Policy decides how many blocks a range is split into. Exactly one of
// Count or MaxBytes should be set; Count wins when both are.
type Policy struct {
	// Count is the requested number of blocks.
	Count int
	// MaxBytes bounds the decoded size of one block.
	MaxBytes int64
	// BytesPerSample is the decoded size of one sample, used with MaxBytes.
	BytesPerSample int64
}

// ByCount requests n blocks.
func ByCount(n int) Policy { return Policy{Count: n} }

// ByBudget sizes blocks so that each holds at most maxBytes of decoded payload.
func ByBudget(maxBytes, bytesPerSample int64) Policy {
	return Policy{MaxBytes: maxBytes, BytesPerSample: bytesPerSample}
}

// Validate rejects policies that cannot produce a split.
func (p Policy) Validate() error {
	if p.Count < 0 {
		return fmt.Errorf("block: negative block count %d", p.Count)
	}
	if p.Count == 0 && p.MaxBytes <= 0 {
		return fmt.Errorf("block: policy needs a block count or a byte budget")
	}
	return nil
}

// NumBlocks returns the number of blocks for n samples.
func (p Policy) NumBlocks(n int) int {
	if n <= 0 {
		return 0
	}
	m := p.Count
	if m <= 0 {
		perBlock := int64(1)
		if p.BytesPerSample > 0 {
			perBlock = p.MaxBytes / p.BytesPerSample
		}
		if perBlock < 1 {
			perBlock = 1
		}
		m = int((int64(n) + perBlock - 1) / perBlock)
	}
	if m > n {
		m = n
	}
	if m < 1 {
		m = 1
	}
	return m
}

// Split divides n samples into balanced contiguous blocks. With m blocks the
// first n mod m blocks hold one extra sample, so 10 samples in 3 blocks are
// sized 4, 3, 3. Asking for more blocks than samples yields single-sample
// blocks.
func Split(n int, p Policy) []Block {
	m := p.NumBlocks(n)
	if m == 0 {
		return nil
	}
	base, extra := n/m, n%m
	blocks := make([]Block, 0, m)
	lo := 0
	for i := 0; i < m; i++ {
		size := base
		if i < extra {
			size++
		}
		blocks = append(blocks, Block{Lo: lo, Hi: lo + size})
		lo += size
	}
	return blocks
}

// Pairs enumerates the upper-triangular block pairs (p, q) with p <= q in
// row-major order.
func Pairs(m int) [][2]int {
	pairs := make([][2]int, 0, m*(m+1)/2)
	for p := 0; p < m; p++ {
		for q := p; q < m; q++ {
			pairs = append(pairs, [2]int{p, q})
		}
	}
	return pairs
}
