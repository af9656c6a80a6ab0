// Package featureflags evaluates rollout flags such as the activity strategy switch.
package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// IndexedActivity switches the activity aggregator from the per-post
// fan-out to the single collection group query.
const IndexedActivity = "indexed_activity"

// rule is one parsed flag value.
type rule struct {
	raw     string
	on      bool
	percent int                 // 1..99 when a partial rollout
	users   map[string]struct{} // explicit allowlist
}

func parseRule(value string) (rule, bool) {
	r := rule{raw: value}
	switch {
	case value == "on" || value == "true" || value == "1":
		r.on = true
	case value == "off" || value == "false" || value == "0":
	case strings.HasSuffix(value, "%"):
		pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
		if err != nil {
			return r, true
		}
		switch {
		case pct >= 100:
			r.on = true
		case pct > 0:
			r.percent = pct
		}
	case strings.HasPrefix(value, "users:"):
		r.users = map[string]struct{}{}
		for _, uid := range strings.Split(strings.TrimPrefix(value, "users:"), "|") {
			if uid = strings.TrimSpace(uid); uid != "" {
				r.users[uid] = struct{}{}
			}
		}
	default:
		return r, false
	}
	return r, true
}

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "indexed_activity=25%" or "indexed_activity=users:uid1|uid2"
type Manager struct {
	rules map[string]rule
}

// NewManager creates a feature-flag manager from a comma-separated config
// string. Malformed pairs are skipped.
func NewManager(raw string) *Manager {
	m := &Manager{rules: make(map[string]rule)}
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = normalize(key)
		value = strings.TrimSpace(value)
		if !strings.HasPrefix(strings.ToLower(value), "users:") {
			value = normalize(value)
		} else {
			value = "users:" + value[len("users:"):]
		}
		if key == "" || value == "" {
			continue
		}
		if r, ok := parseRule(value); ok {
			m.rules[key] = r
		}
	}
	return m
}

// Enabled returns whether a flag is enabled for a given user. Percentage
// rollouts bucket users deterministically and never include an empty id.
func (m *Manager) Enabled(name, userID string) bool {
	if m == nil {
		return false
	}
	r, ok := m.rules[normalize(name)]
	if !ok {
		return false
	}
	userID = strings.TrimSpace(userID)
	switch {
	case r.on:
		return true
	case r.users != nil:
		_, listed := r.users[userID]
		return listed
	case r.percent > 0 && userID != "":
		return rolloutBucket(name, userID) < r.percent
	}
	return false
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	if m == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(m.rules))
	for k, r := range m.rules {
		out[k] = r.raw
	}
	return out
}

// Snapshot returns evaluated flag status for one user.
func (m *Manager) Snapshot(userID string) map[string]bool {
	if m == nil {
		return map[string]bool{}
	}
	out := make(map[string]bool, len(m.rules))
	for name := range m.rules {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name, userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + userID))
	return int(h.Sum32() % 100)
}
