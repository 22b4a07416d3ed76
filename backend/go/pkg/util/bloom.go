package util

import (
	"encoding/gob"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// BloomFilter is a fixed-size bloom filter. It answers "definitely not seen"
// or "possibly seen" for byte keys such as document content hashes.
type BloomFilter struct {
	M         uint           // bit array size
	K         uint           // number of hash functions
	Bits      *bitset.BitSet // bit array
	ItemCount uint           // number of added items
	Capacity  uint           // sizing capacity
}

// NewBloomFilter creates a filter sized for the given capacity and
// false-positive rate (0.01 means 1%).
func NewBloomFilter(capacity uint, errorRate float64) *BloomFilter {
	m := calculateM(capacity, errorRate)
	k := calculateK(capacity, m)
	return &BloomFilter{
		M:         m,
		K:         k,
		Bits:      bitset.New(m),
		Capacity:  capacity,
		ItemCount: 0,
	}
}

// Add records an item in the filter.
func (bf *BloomFilter) Add(data []byte) {
	hashes := bf.hashKernels(data)
	for i := uint(0); i < bf.K; i++ {
		bf.Bits.Set(uint(hashes[i] % uint64(bf.M)))
	}
	bf.ItemCount++
}

// Test reports whether an item may have been added. A false return is
// definitive; a true return may be a false positive.
func (bf *BloomFilter) Test(data []byte) bool {
	hashes := bf.hashKernels(data)
	for i := uint(0); i < bf.K; i++ {
		if !bf.Bits.Test(uint(hashes[i] % uint64(bf.M))) {
			return false
		}
	}
	return true
}

// isFull reports whether the filter has reached its sizing capacity.
func (bf *BloomFilter) isFull() bool {
	return bf.ItemCount >= bf.Capacity
}

// hashKernels derives k hash values from two independent FNV hashes
// using the Kirsch-Mitzenmacher construction.
func (bf *BloomFilter) hashKernels(data []byte) []uint64 {
	h1 := fnv.New64a()
	h1.Write(data)
	hash1 := h1.Sum64()

	h2 := fnv.New64()
	h2.Write(data)
	hash2 := h2.Sum64()

	hashes := make([]uint64, bf.K)
	for i := uint(0); i < bf.K; i++ {
		hashes[i] = hash1 + uint64(i)*hash2
	}
	return hashes
}

// m = - (n * log(p)) / (log(2)^2)
func calculateM(n uint, p float64) uint {
	return uint(math.Ceil(-(float64(n) * math.Log(p)) / (math.Pow(math.Log(2), 2))))
}

// k = (m / n) * log(2)
func calculateK(n uint, m uint) uint {
	k := uint(math.Ceil((float64(m) / float64(n)) * math.Log(2)))
	if k < 1 {
		return 1
	}
	return k
}

// SBFConfig configures a ScalableBloomFilter. Fields are exported so the
// filter can be persisted with gob.
type SBFConfig struct {
	InitialCapacity      uint
	ErrorRate            float64
	GrowthFactor         float64
	ErrorTighteningRatio float64
}

// sbfData is the gob encoding of a ScalableBloomFilter.
type sbfData struct {
	Config  SBFConfig
	Filters []*BloomFilter
}

// ScalableBloomFilter grows by chaining fixed filters once the newest one
// fills up, keeping the compound false-positive rate near the configured
// target. It is safe for concurrent use and can be saved to disk.
type ScalableBloomFilter struct {
	config  SBFConfig
	filters []*BloomFilter
	lock    sync.RWMutex
}

// NewScalableBloomFilter creates a scalable filter from the given config.
func NewScalableBloomFilter(config SBFConfig) (*ScalableBloomFilter, error) {
	if config.InitialCapacity == 0 || config.ErrorRate <= 0 || config.GrowthFactor < 1 || config.ErrorTighteningRatio <= 0 || config.ErrorTighteningRatio >= 1 {
		return nil, fmt.Errorf("invalid scalable bloom filter config")
	}

	// The first sub-filter is tightened so the compound rate across all
	// future sub-filters converges to ErrorRate.
	firstErrorRate := config.ErrorRate * (1 - config.ErrorTighteningRatio)
	firstFilter := NewBloomFilter(config.InitialCapacity, firstErrorRate)

	return &ScalableBloomFilter{
		config:  config,
		filters: []*BloomFilter{firstFilter},
	}, nil
}

// Add records an item, growing the filter chain when the newest
// sub-filter is full.
func (sbf *ScalableBloomFilter) Add(data []byte) {
	sbf.lock.Lock()
	defer sbf.lock.Unlock()

	lastFilter := sbf.filters[len(sbf.filters)-1]

	if lastFilter.isFull() {
		newCapacity := uint(float64(lastFilter.Capacity) * sbf.config.GrowthFactor)

		// Estimate the current sub-filter's actual false-positive rate
		// from its fill level and tighten the next one from there.
		currentP := math.Pow(1-math.Exp(-float64(lastFilter.K*lastFilter.ItemCount)/float64(lastFilter.M)), float64(lastFilter.K))
		newErrorRate := currentP * sbf.config.ErrorTighteningRatio

		newFilter := NewBloomFilter(newCapacity, newErrorRate)
		sbf.filters = append(sbf.filters, newFilter)
		lastFilter = newFilter
	}

	lastFilter.Add(data)
}

// Test reports whether an item may have been added to any sub-filter.
func (sbf *ScalableBloomFilter) Test(data []byte) bool {
	sbf.lock.RLock()
	defer sbf.lock.RUnlock()

	// Newest first: recent items always live in the newest sub-filter.
	for i := len(sbf.filters) - 1; i >= 0; i-- {
		if sbf.filters[i].Test(data) {
			return true
		}
	}

	return false
}

// Len returns the number of chained sub-filters.
func (sbf *ScalableBloomFilter) Len() int {
	sbf.lock.RLock()
	defer sbf.lock.RUnlock()
	return len(sbf.filters)
}

// WriteToFile persists the filter state with gob.
func (sbf *ScalableBloomFilter) WriteToFile(filePath string) error {
	sbf.lock.RLock()
	defer sbf.lock.RUnlock()

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("create filter file: %w", err)
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)

	dataToSave := sbfData{
		Config:  sbf.config,
		Filters: sbf.filters,
	}

	if err := encoder.Encode(dataToSave); err != nil {
		return fmt.Errorf("encode filter: %w", err)
	}

	return nil
}

// NewScalableBloomFilterFromFile restores a filter persisted by WriteToFile.
func NewScalableBloomFilterFromFile(filePath string) (*ScalableBloomFilter, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open filter file: %w", err)
	}
	defer file.Close()

	decoder := gob.NewDecoder(file)

	var loadedData sbfData
	if err := decoder.Decode(&loadedData); err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}

	sbf := &ScalableBloomFilter{
		config:  loadedData.Config,
		filters: loadedData.Filters,
	}

	return sbf, nil
}
