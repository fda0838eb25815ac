package cache

import (
	"math"
	"sync"
)

// SizeHistogram tracks the distribution of entry sizes in exponential buckets
// from 256 bytes to 1 GiB. Estimates are bucket midpoints.
//
// Thread-safe: all methods are safe for concurrent use
type SizeHistogram struct {
	mutex   sync.RWMutex
	buckets [len(sizeBoundaries) + 1]int64
	count   int64
	sum     int64
}

var sizeBoundaries = [...]int64{
	256, 1 << 10, 4 << 10, 16 << 10, 64 << 10, 256 << 10, // up to 256KiB
	1 << 20, 4 << 20, 16 << 20, 64 << 20, 256 << 20, 1 << 30, // up to 1GiB
}

// Add records one entry size.
func (h *SizeHistogram) Add(size int64) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	i := len(sizeBoundaries)
	for j, boundary := range sizeBoundaries {
		if size <= boundary {
			i = j
			break
		}
	}
	h.buckets[i]++
	h.count++
	h.sum += size
}

// Count returns the number of recorded sizes.
func (h *SizeHistogram) Count() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.count
}

// Total returns the sum of all recorded sizes.
func (h *SizeHistogram) Total() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.sum
}

// Mean returns the average size.
func (h *SizeHistogram) Mean() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if h.count == 0 {
		return 0
	}
	return h.sum / h.count
}

// Percentile estimates the given percentile (0-100).
func (h *SizeHistogram) Percentile(p int) int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 || p < 0 || p > 100 {
		return 0
	}
	target := int64(math.Ceil(float64(h.count) * float64(p) / 100.0))
	var cumulative int64
	for i, n := range h.buckets {
		cumulative += n
		if cumulative >= target && n > 0 {
			switch {
			case i == 0:
				return sizeBoundaries[0] / 2
			case i < len(sizeBoundaries):
				return (sizeBoundaries[i-1] + sizeBoundaries[i]) / 2
			default:
				return sizeBoundaries[len(sizeBoundaries)-1] * 2
			}
		}
	}
	return h.sum / h.count
}

// Reset clears all recorded sizes.
func (h *SizeHistogram) Reset() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.buckets = [len(sizeBoundaries) + 1]int64{}
	h.count, h.sum = 0, 0
}
