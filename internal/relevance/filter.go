// Package relevance decides whether an observed order is still worth
// alerting on. It is the guard that keeps stale snapshots, replayed after
// a reconnect or server hiccup, from resurrecting old orders as "new".
package relevance

import (
	"time"

	"github.com/restohub/orderwatch/internal/model"
)

// Windows holds the per-channel freshness windows. Push events are
// expected near-instant so their window is short; the poll fallback runs
// on a slower cadence and tolerates more age.
type Windows struct {
	Push time.Duration
	Poll time.Duration
}

func DefaultWindows() Windows {
	return Windows{
		Push: 2 * time.Minute,
		Poll: 10 * time.Minute,
	}
}

type Filter struct {
	windows Windows
}

func NewFilter(windows Windows) *Filter {
	if windows.Push <= 0 {
		windows.Push = DefaultWindows().Push
	}
	if windows.Poll <= 0 {
		windows.Poll = DefaultWindows().Poll
	}
	return &Filter{windows: windows}
}

// IsRelevant applies the qualification rules in priority order: the
// session-epoch gate, the actionable-new status set, then the per-channel
// freshness window. An order failing any rule is never relevant, even if
// it has not been seen before.
func (f *Filter) IsRelevant(snap model.OrderSnapshot, now time.Time, source model.Source, epochComplete bool) bool {
	if !epochComplete {
		return false
	}
	if !snap.Status.ActionableNew() {
		return false
	}
	return now.Sub(snap.CreatedAt) <= f.Window(source)
}

// Window returns the freshness window for a channel.
func (f *Filter) Window(source model.Source) time.Duration {
	if source == model.SourcePush {
		return f.windows.Push
	}
	return f.windows.Poll
}
