package continuity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/entrhq/browserbase-mcp/pkg/execution"
	"github.com/entrhq/browserbase-mcp/pkg/logging"
	"github.com/entrhq/browserbase-mcp/pkg/snapshot"
)

// Hash fields of a cached projection.
const (
	FieldSession   = "session"
	FieldResources = "resources"
	FieldSnapshots = "snapshots"
	FieldMeta      = "meta"
)

// SessionState is the session part of a projection.
type SessionState struct {
	CurrentSessionID string `json:"currentSessionId"`
}

// SnapshotEntry is the cached snapshot of one session.
type SnapshotEntry struct {
	SessionID  string    `json:"sessionId"`
	Snapshot   string    `json:"snapshot"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Meta records bookkeeping about the cached projection.
type Meta struct {
	UpdatedAt time.Time `json:"updatedAt"`
}

// Projection is the serializable subset of an execution.Context.
//
// A nil field is absent: when saving, absent fields leave the stored value
// untouched.
type Projection struct {
	Session   *SessionState
	Resources map[string]execution.Resource
	Snapshots []SnapshotEntry
	Meta      *Meta
}

// Capture projects the state of c.
func Capture(c *execution.Context) *Projection {
	p := &Projection{
		Session:   &SessionState{CurrentSessionID: c.CurrentSessionID()},
		Resources: make(map[string]execution.Resource),
	}
	for _, r := range c.ListResources() {
		p.Resources[r.Name] = r
	}
	for id, snap := range c.Snapshots() {
		capturedAt := snap.CapturedAt()
		if capturedAt.IsZero() {
			capturedAt = time.Now()
		}
		p.Snapshots = append(p.Snapshots, SnapshotEntry{
			SessionID:  id,
			Snapshot:   snap.Serialize(),
			CapturedAt: capturedAt,
		})
	}
	sortEntries(p.Snapshots)
	return p
}

// Restore copies p into c. Snapshot entries that fail to deserialize are
// skipped. Restored snapshots are disconnected until reconnected.
func (p *Projection) Restore(c *execution.Context, logger *logging.Logger) {
	if p.Session != nil && p.Session.CurrentSessionID != "" {
		c.SetCurrentSessionID(p.Session.CurrentSessionID)
	}
	for name, r := range p.Resources {
		r.Name = name
		c.RestoreResource(r)
	}
	for _, e := range p.Snapshots {
		snap := snapshot.Deserialize(e.Snapshot)
		if snap == nil {
			logger.Warnf("discarding cached snapshot for session %s: malformed", e.SessionID)
			continue
		}
		snap.SetCapturedAt(e.CapturedAt)
		c.SetSnapshot(e.SessionID, snap)
	}
}

// encode returns the hash fields of every present field.
func (p *Projection) encode() (map[string]any, error) {
	fields := make(map[string]any)
	put := func(name string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		fields[name] = string(data)
		return nil
	}

	if p.Session != nil {
		if err := put(FieldSession, p.Session); err != nil {
			return nil, err
		}
	}
	if p.Resources != nil {
		if err := put(FieldResources, p.Resources); err != nil {
			return nil, err
		}
	}
	if p.Snapshots != nil {
		if err := put(FieldSnapshots, p.Snapshots); err != nil {
			return nil, err
		}
	}
	if p.Meta != nil {
		if err := put(FieldMeta, p.Meta); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

// decode parses hash fields. Each field is parsed and validated on its own;
// an invalid field or entry is discarded with a warning.
func decode(fields map[string]string, logger *logging.Logger) *Projection {
	p := &Projection{}

	if raw, ok := fields[FieldSession]; ok {
		var s SessionState
		if err := json.Unmarshal([]byte(raw), &s); err != nil || s.CurrentSessionID == "" {
			logger.Warnf("discarding cached %s field: %v", FieldSession, invalid(err))
		} else {
			p.Session = &s
		}
	}

	if raw, ok := fields[FieldResources]; ok {
		var resources map[string]execution.Resource
		if err := json.Unmarshal([]byte(raw), &resources); err != nil {
			logger.Warnf("discarding cached %s field: %v", FieldResources, err)
		} else {
			p.Resources = make(map[string]execution.Resource, len(resources))
			for name, r := range resources {
				if name == "" || r.Format == "" || r.URI == "" {
					logger.Warnf("discarding cached resource %q: missing format or uri", name)
					continue
				}
				r.Name = name
				p.Resources[name] = r
			}
		}
	}

	if raw, ok := fields[FieldSnapshots]; ok {
		var entries []SnapshotEntry
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			logger.Warnf("discarding cached %s field: %v", FieldSnapshots, err)
		} else {
			p.Snapshots = make([]SnapshotEntry, 0, len(entries))
			for _, e := range entries {
				if e.SessionID == "" || snapshot.Deserialize(e.Snapshot) == nil {
					logger.Warnf("discarding cached snapshot entry for session %q: invalid", e.SessionID)
					continue
				}
				p.Snapshots = append(p.Snapshots, e)
			}
		}
	}

	if raw, ok := fields[FieldMeta]; ok {
		var m Meta
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			logger.Warnf("discarding cached %s field: %v", FieldMeta, err)
		} else {
			p.Meta = &m
		}
	}

	return p
}

func invalid(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("missing currentSessionId")
}

// Empty reports whether p carries no fields.
func (p *Projection) Empty() bool {
	return p == nil || (p.Session == nil && p.Resources == nil && p.Snapshots == nil && p.Meta == nil)
}
