package lob

import "github.com/rzpsarthak13/dbarchive/internal/pathstrategy"

// SegmentPolicy bounds a segment by file count and total bytes. Zero means
// unbounded.
type SegmentPolicy struct {
	MaxFiles int
	MaxBytes int64
}

// DefaultSegmentPolicy keeps segments below 1000 files.
var DefaultSegmentPolicy = SegmentPolicy{MaxFiles: 1000}

type segmentUsage struct {
	files int
	bytes int64
}

// Tracker counts what was written to each column's current segment and
// rolls the strategy over when the policy is exceeded.
type Tracker struct {
	strategy *Strategy
	policy   SegmentPolicy
	usage    map[pathstrategy.LOBKey]segmentUsage
}

// NewTracker returns a tracker driving strategy with policy.
func NewTracker(strategy *Strategy, policy SegmentPolicy) *Tracker {
	return &Tracker{strategy: strategy, policy: policy, usage: make(map[pathstrategy.LOBKey]segmentUsage)}
}

// Place returns the container path for the next LOB of key, which is size
// bytes long.
func (t *Tracker) Place(key pathstrategy.LOBKey, size int64) string {
	u, seen := t.usage[key]
	if !seen {
		t.usage[key] = segmentUsage{files: 1, bytes: size}
		return t.strategy.CurrentContainerPath(key)
	}
	full := (t.policy.MaxFiles > 0 && u.files >= t.policy.MaxFiles) ||
		(t.policy.MaxBytes > 0 && u.bytes+size > t.policy.MaxBytes && u.files > 0)
	if full {
		t.usage[key] = segmentUsage{files: 1, bytes: size}
		return t.strategy.NextContainerPath(key)
	}
	u.files++
	u.bytes += size
	t.usage[key] = u
	return t.strategy.CurrentContainerPath(key)
}
