package aggregate

import (
	"math/big"
	"time"
)

func addUint(target *big.Int, value uint64) {
	if target == nil || value == 0 {
		return
	}
	target.Add(target, new(big.Int).SetUint64(value))
}

func unixTime(ts uint64) time.Time {
	return time.Unix(int64(ts), 0).UTC()
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
