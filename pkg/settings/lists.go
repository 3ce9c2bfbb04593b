package settings

import (
	"sync"

	"github.com/gm-agent-org/gm-settings/pkg/types"
)

// RuleList is an ordered list of permission rules with session-local IDs.
type RuleList struct {
	mu    sync.RWMutex
	rules []types.PermissionRule
}

func NewRuleList() *RuleList {
	return &RuleList{}
}

// Reset replaces the contents with values, assigning fresh IDs by position.
func (l *RuleList) Reset(values []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rules = make([]types.PermissionRule, 0, len(values))
	for _, v := range values {
		l.rules = append(l.rules, types.PermissionRule{ID: types.GenerateRuleID(), Value: v})
	}
}

// Add appends an empty rule and returns its ID.
func (l *RuleList) Add() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := types.GenerateRuleID()
	l.rules = append(l.rules, types.PermissionRule{ID: id})
	return id
}

// Update sets the value of rule id. Unknown IDs are ignored.
func (l *RuleList) Update(id, value string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.rules {
		if l.rules[i].ID == id {
			l.rules[i].Value = value
			return true
		}
	}
	return false
}

func (l *RuleList) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.rules {
		if l.rules[i].ID == id {
			l.rules = append(l.rules[:i], l.rules[i+1:]...)
			return true
		}
	}
	return false
}

func (l *RuleList) Entries() []types.PermissionRule {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]types.PermissionRule{}, l.rules...)
}

// Values returns the non-empty rule values in list order.
func (l *RuleList) Values() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	values := make([]string, 0, len(l.rules))
	for _, r := range l.rules {
		if r.Value != "" {
			values = append(values, r.Value)
		}
	}
	return values
}

// EnvMap is the ordered list of environment variables. Keys are not
// required to be unique while editing; the persisted form collapses them.
type EnvMap struct {
	mu   sync.RWMutex
	vars []types.EnvironmentVariable
}

func NewEnvMap() *EnvMap {
	return &EnvMap{}
}

// EnvPair is a key/value in document order.
type EnvPair struct {
	Key   string
	Value string
}

func (m *EnvMap) Reset(pairs []EnvPair) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vars = make([]types.EnvironmentVariable, 0, len(pairs))
	for _, p := range pairs {
		m.vars = append(m.vars, types.EnvironmentVariable{
			ID:    types.GenerateEnvVarID(),
			Key:   p.Key,
			Value: p.Value,
		})
	}
}

// Add appends an empty variable and returns its ID.
func (m *EnvMap) Add() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := types.GenerateEnvVarID()
	m.vars = append(m.vars, types.EnvironmentVariable{ID: id})
	return id
}

// Update replaces key and value of variable id. Unknown IDs are ignored.
func (m *EnvMap) Update(id, key, value string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.vars {
		if m.vars[i].ID == id {
			m.vars[i].Key = key
			m.vars[i].Value = value
			return true
		}
	}
	return false
}

func (m *EnvMap) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.vars {
		if m.vars[i].ID == id {
			m.vars = append(m.vars[:i], m.vars[i+1:]...)
			return true
		}
	}
	return false
}

func (m *EnvMap) Entries() []types.EnvironmentVariable {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.EnvironmentVariable{}, m.vars...)
}

// SetKey makes key hold value. The first entry named key keeps its position
// and later duplicates are dropped; a new entry is appended if none exists.
func (m *EnvMap) SetKey(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	kept := m.vars[:0]
	for _, v := range m.vars {
		if v.Key == key {
			if found {
				continue
			}
			found = true
			v.Value = value
		}
		kept = append(kept, v)
	}
	m.vars = kept
	if found {
		return
	}
	m.vars = append(m.vars, types.EnvironmentVariable{
		ID:    types.GenerateEnvVarID(),
		Key:   key,
		Value: value,
	})
}

// DeleteKey removes every entry named key.
func (m *EnvMap) DeleteKey(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.vars[:0]
	for _, v := range m.vars {
		if v.Key != key {
			kept = append(kept, v)
		}
	}
	m.vars = kept
}

// Pairs returns the persisted form: entries with an empty key or value are
// dropped, and a repeated key keeps its first position with its last value.
func (m *EnvMap) Pairs() []EnvPair {
	m.mu.RLock()
	defer m.mu.RUnlock()
	index := make(map[string]int, len(m.vars))
	pairs := make([]EnvPair, 0, len(m.vars))
	for _, v := range m.vars {
		if v.Key == "" || v.Value == "" {
			continue
		}
		if i, ok := index[v.Key]; ok {
			pairs[i].Value = v.Value
			continue
		}
		index[v.Key] = len(pairs)
		pairs = append(pairs, EnvPair{Key: v.Key, Value: v.Value})
	}
	return pairs
}
