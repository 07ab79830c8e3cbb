package continuity

import (
	"sort"

	"github.com/entrhq/browserbase-mcp/pkg/execution"
)

// Merge returns stored with incoming merged in. Session and meta are
// overwritten by incoming when present. Resources merge by name, incoming
// winning. Snapshots merge by session id, the later capture winning; on equal
// capture times incoming wins. Neither argument is modified.
func Merge(stored, incoming *Projection) *Projection {
	if stored == nil {
		stored = &Projection{}
	}
	if incoming == nil {
		incoming = &Projection{}
	}

	out := &Projection{
		Session: stored.Session,
		Meta:    stored.Meta,
	}
	if incoming.Session != nil {
		out.Session = incoming.Session
	}
	if incoming.Meta != nil {
		out.Meta = incoming.Meta
	}

	if stored.Resources != nil || incoming.Resources != nil {
		out.Resources = make(map[string]execution.Resource, len(stored.Resources)+len(incoming.Resources))
		for name, r := range stored.Resources {
			out.Resources[name] = r
		}
		for name, r := range incoming.Resources {
			out.Resources[name] = r
		}
	}

	if stored.Snapshots != nil || incoming.Snapshots != nil {
		bySession := make(map[string]SnapshotEntry, len(stored.Snapshots)+len(incoming.Snapshots))
		for _, e := range stored.Snapshots {
			bySession[e.SessionID] = e
		}
		for _, e := range incoming.Snapshots {
			if current, ok := bySession[e.SessionID]; ok && current.CapturedAt.After(e.CapturedAt) {
				continue
			}
			bySession[e.SessionID] = e
		}
		out.Snapshots = make([]SnapshotEntry, 0, len(bySession))
		for _, e := range bySession {
			out.Snapshots = append(out.Snapshots, e)
		}
		sortEntries(out.Snapshots)
	}

	return out
}

func sortEntries(entries []SnapshotEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].SessionID < entries[j].SessionID })
}
