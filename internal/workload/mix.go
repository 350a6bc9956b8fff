package workload

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
)

// Operation types. The main stage mixes the first five; the rest are stage
// operations that walk the object space once.
const (
	OpRead    = "read"
	OpWrite   = "write"
	OpDelete  = "delete"
	OpHead    = "head"
	OpUpdate  = "update"
	OpInit    = "init"
	OpPrepare = "prepare"
	OpCleanup = "cleanup"
	OpDispose = "dispose"
)

// MixOps lists the operations that may appear in a Mix.
var MixOps = []string{OpRead, OpWrite, OpDelete, OpHead, OpUpdate}

type weightedOp struct {
	op     string
	weight int
}

// Mix selects operations with probability proportional to their weight.
// A Mix is immutable; callers supply their own *rand.Rand.
type Mix struct {
	ops         []weightedOp
	totalWeight int
}

// NewMix builds a Mix from operation weights. Zero weights are ignored.
func NewMix(weights map[string]int) (*Mix, error) {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	m := &Mix{}
	for _, name := range names {
		op := strings.ToLower(strings.TrimSpace(name))
		w := weights[name]
		if !isMixOp(op) {
			return nil, fmt.Errorf("mix: unsupported operation %q", name)
		}
		if w < 0 {
			return nil, fmt.Errorf("mix: weight for %s must be >= 0", op)
		}
		if w == 0 {
			continue
		}
		m.ops = append(m.ops, weightedOp{op: op, weight: w})
		m.totalWeight += w
	}
	if m.totalWeight <= 0 {
		return nil, fmt.Errorf("mix: weights must sum to > 0")
	}
	return m, nil
}

// Pick draws one operation.
func (m *Mix) Pick(rnd *rand.Rand) string {
	if len(m.ops) == 1 {
		return m.ops[0].op
	}
	n := rnd.Intn(m.totalWeight)
	cumulative := 0
	for _, wo := range m.ops {
		cumulative += wo.weight
		if n < cumulative {
			return wo.op
		}
	}
	return m.ops[len(m.ops)-1].op
}

// Ops lists the operations of the mix in selection order.
func (m *Mix) Ops() []string {
	ops := make([]string, len(m.ops))
	for i, wo := range m.ops {
		ops[i] = wo.op
	}
	return ops
}

// Weight returns the configured weight of op.
func (m *Mix) Weight(op string) int {
	for _, wo := range m.ops {
		if wo.op == op {
			return wo.weight
		}
	}
	return 0
}

// String renders the mix in the form accepted by ParseMix.
func (m *Mix) String() string {
	parts := make([]string, 0, len(m.ops))
	for _, wo := range m.ops {
		parts = append(parts, wo.op+"="+strconv.Itoa(wo.weight))
	}
	return strings.Join(parts, ",")
}

// ParseMix parses "read=80,write=15,delete=5".
func ParseMix(s string) (map[string]int, error) {
	out := map[string]int{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("mix: expected op=weight, got %q", part)
		}
		w, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("mix: weight for %s: %w", strings.TrimSpace(name), err)
		}
		out[strings.ToLower(strings.TrimSpace(name))] = w
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("mix: no operations given")
	}
	return out, nil
}

func isMixOp(op string) bool {
	for _, candidate := range MixOps {
		if op == candidate {
			return true
		}
	}
	return false
}
