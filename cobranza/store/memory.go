// Package store provides in-memory implementations of the cobranza stores.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ealc/cobranza/cobranza"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements cobranza.PolicyRepository, cobranza.LedgerStore and
// cobranza.RunRecorder.
type Memory struct {
	mu       sync.RWMutex
	policies map[cobranza.PolicyID]cobranza.Policy
	receipts []cobranza.Receipt
	runs     []cobranza.Run
}

func NewMemory() *Memory {
	return &Memory{policies: make(map[cobranza.PolicyID]cobranza.Policy)}
}

var (
	_ cobranza.PolicyRepository = (*Memory)(nil)
	_ cobranza.LedgerStore      = (*Memory)(nil)
	_ cobranza.RunRecorder      = (*Memory)(nil)
)

// =============================================================================
// POLICIES
// =============================================================================

func (m *Memory) ListActive(_ context.Context) ([]cobranza.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []cobranza.Policy
	for _, p := range m.policies {
		if p.State == cobranza.PolicyActive {
			result = append(result, p)
		}
	}
	sortPolicies(result)
	return result, nil
}

// ListPolicies returns every policy regardless of state.
func (m *Memory) ListPolicies(_ context.Context) ([]cobranza.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]cobranza.Policy, 0, len(m.policies))
	for _, p := range m.policies {
		result = append(result, p)
	}
	sortPolicies(result)
	return result, nil
}

func (m *Memory) GetPolicy(_ context.Context, id cobranza.PolicyID) (*cobranza.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.policies[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// SavePolicy inserts or replaces the policy with the same ID.
func (m *Memory) SavePolicy(_ context.Context, p cobranza.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[p.ID] = p
	return nil
}

// =============================================================================
// LEDGER
// =============================================================================

func (m *Memory) LoadAll(_ context.Context) ([]cobranza.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]cobranza.Receipt, len(m.receipts))
	copy(result, m.receipts)
	return result, nil
}

// SaveAll replaces the stored receipts with a copy of receipts.
func (m *Memory) SaveAll(_ context.Context, receipts []cobranza.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.receipts = make([]cobranza.Receipt, len(receipts))
	copy(m.receipts, receipts)
	return nil
}

// =============================================================================
// RUN LOG
// =============================================================================

func (m *Memory) SaveRun(_ context.Context, run cobranza.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

// Runs returns the recorded runs, oldest first.
func (m *Memory) Runs() []cobranza.Run {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]cobranza.Run, len(m.runs))
	copy(result, m.runs)
	return result
}

// Reset drops all data.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies = make(map[cobranza.PolicyID]cobranza.Policy)
	m.receipts = nil
	m.runs = nil
}

func sortPolicies(ps []cobranza.Policy) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
}
