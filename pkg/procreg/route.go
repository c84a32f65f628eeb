package procreg

import (
	"fmt"
	"hash/fnv"
	"math"
)

// Route maps a key to a partition index in [0, n). It is pure and
// deterministic: the same key and partition count always produce the same
// index, for the lifetime of the program and across registries.
//
// Integer keys route by absolute value modulo n, so numerically adjacent
// keys land on distinct partitions. Every other key type routes through an
// FNV-1a hash of its type and formatted value.
func Route(key any, n int) int {
	if n <= 1 {
		return 0
	}
	switch k := key.(type) {
	case int:
		return int(absInt(int64(k)) % uint64(n))
	case int8:
		return int(absInt(int64(k)) % uint64(n))
	case int16:
		return int(absInt(int64(k)) % uint64(n))
	case int32:
		return int(absInt(int64(k)) % uint64(n))
	case int64:
		return int(absInt(k) % uint64(n))
	case uint:
		return int(uint64(k) % uint64(n))
	case uint8:
		return int(uint64(k) % uint64(n))
	case uint16:
		return int(uint64(k) % uint64(n))
	case uint32:
		return int(uint64(k) % uint64(n))
	case uint64:
		return int(k % uint64(n))
	}

	h := fnv.New64a()
	fmt.Fprintf(h, "%T:%v", key, key)
	return int(h.Sum64() % uint64(n))
}

// absInt returns |v| as uint64. math.MinInt64 has no int64 absolute value;
// its magnitude still fits uint64.
func absInt(v int64) uint64 {
	if v == math.MinInt64 {
		return uint64(math.MaxInt64) + 1
	}
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}
