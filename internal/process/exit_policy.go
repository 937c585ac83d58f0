package process

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ExitPolicy is the set of exit codes that count as success.
// A nil *ExitPolicy performs no verification: every code is valid.
type ExitPolicy struct {
	codes []int
}

// NewExitPolicy returns a policy accepting codes. Duplicates are dropped and
// the first-seen order is kept. At least one code is required.
func NewExitPolicy(codes ...int) (*ExitPolicy, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: exit policy needs at least one valid code", ErrInvalidConfig)
	}
	p := &ExitPolicy{codes: make([]int, 0, len(codes))}
	for _, c := range codes {
		if !slices.Contains(p.codes, c) {
			p.codes = append(p.codes, c)
		}
	}
	return p, nil
}

// DefaultExitPolicy accepts only 0.
func DefaultExitPolicy() *ExitPolicy {
	return &ExitPolicy{codes: []int{0}}
}

// Valid reports whether code satisfies the policy.
func (p *ExitPolicy) Valid(code int) bool {
	if p == nil {
		return true
	}
	return slices.Contains(p.codes, code)
}

// Codes returns a copy of the accepted codes, or nil when unverified.
func (p *ExitPolicy) Codes() []int {
	if p == nil {
		return nil
	}
	return slices.Clone(p.codes)
}

func (p *ExitPolicy) String() string {
	if p == nil {
		return "any"
	}
	parts := make([]string, len(p.codes))
	for i, c := range p.codes {
		parts[i] = strconv.Itoa(c)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
