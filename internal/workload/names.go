package workload

import (
	"math/rand"
	"strconv"
)

// ContainerName returns the name of container n, e.g. "benchc3".
func ContainerName(prefix string, n int) string {
	return prefix + "c" + strconv.Itoa(n)
}

// ObjectName returns the name of object n, e.g. "bencho42".
func ObjectName(prefix string, n int) string {
	return prefix + "o" + strconv.Itoa(n)
}

// Range is an inclusive integer interval.
type Range struct {
	Min int
	Max int
}

// Len is the number of integers in r.
func (r Range) Len() int {
	if r.Max < r.Min {
		return 0
	}
	return r.Max - r.Min + 1
}

// Draw picks a value uniformly from r.
func (r Range) Draw(rnd *rand.Rand) int {
	if r.Len() <= 1 {
		return r.Min
	}
	return r.Min + rnd.Intn(r.Len())
}

// At returns the i-th value of r, 0-based.
func (r Range) At(i int) int {
	return r.Min + i
}
