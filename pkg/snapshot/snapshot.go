// Package snapshot captures a page's accessibility tree as text annotated
// with element references, and resolves those references back to elements.
//
// # References
//
// Every targetable node in the text carries a reference of the form
// f<N><localRef>. N is the index of the frame the element lives in, in the
// snapshot's ordered frame list; index 0 is always the root page and its
// prefix is omitted, so "e3" and "f0e3" name the same element. localRef is
// the driver-native reference inside that frame.
//
// # Lifecycle
//
// A Snapshot is connected when built by Capture: it holds live handles for
// the root page and every embedded frame it descended into. Serialize keeps
// the text only. Deserialize yields a disconnected Snapshot whose references
// cannot be resolved until Reconnect attaches a live page. Reconnect restores
// the root frame only, so references into nested frames captured by another
// process fail with ErrFrameNotRestored; take a new snapshot to resolve them.
package snapshot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/entrhq/browserbase-mcp/pkg/driver"
)

// Snapshot is one accessibility-tree capture of a page.
type Snapshot struct {
	text         string
	frames       []driver.Frame
	disconnected bool
	restored     bool
	capturedAt   time.Time
}

// Capture builds a snapshot of page, descending into embedded frames.
//
// A frame that cannot be captured is replaced by an error node so one broken
// iframe does not abort the rest of the snapshot. Capture fails only when the
// root page itself cannot be queried.
func Capture(page driver.Frame) (*Snapshot, error) {
	tree, err := page.AccessibilitySnapshot()
	if err != nil {
		return nil, fmt.Errorf("capture root frame: %w", err)
	}

	c := &capturer{frames: []driver.Frame{page}}
	c.renderNode(page, tree, "", 0)

	return &Snapshot{
		text:       strings.TrimRight(c.b.String(), "\n"),
		frames:     c.frames,
		capturedAt: time.Now(),
	}, nil
}

// Text returns the annotated tree.
func (s *Snapshot) Text() string {
	return s.text
}

// Disconnected reports whether the snapshot was deserialized and has not been
// reconnected to a live page.
func (s *Snapshot) Disconnected() bool {
	return s.disconnected
}

// Restored reports whether the snapshot was reconnected after deserialization,
// in which case only root-frame references resolve.
func (s *Snapshot) Restored() bool {
	return s.restored
}

// FrameCount returns the number of live frame handles.
func (s *Snapshot) FrameCount() int {
	return len(s.frames)
}

// CapturedAt returns when the snapshot was captured. Zero for deserialized
// snapshots unless set with SetCapturedAt.
func (s *Snapshot) CapturedAt() time.Time {
	return s.capturedAt
}

// SetCapturedAt records the capture time of a deserialized snapshot.
func (s *Snapshot) SetCapturedAt(t time.Time) {
	s.capturedAt = t
}

type storedSnapshot struct {
	Text *string `json:"text"`
}

// Serialize returns the storage form of the snapshot. Frame handles are not
// serializable and are dropped.
func (s *Snapshot) Serialize() string {
	text := s.text
	data, _ := json.Marshal(storedSnapshot{Text: &text})
	return string(data)
}

// Deserialize parses the storage form produced by Serialize. It returns nil
// for malformed input. The result is disconnected.
func Deserialize(data string) *Snapshot {
	var stored storedSnapshot
	if err := json.Unmarshal([]byte(data), &stored); err != nil || stored.Text == nil {
		return nil
	}
	return &Snapshot{
		text:         *stored.Text,
		disconnected: true,
	}
}

// Reconnect attaches page as the root frame and clears the disconnected flag.
func (s *Snapshot) Reconnect(page driver.Frame) {
	s.frames = []driver.Frame{page}
	if s.disconnected {
		s.restored = true
	}
	s.disconnected = false
}

// ResolveReference resolves ref to an element in the frame it names.
func (s *Snapshot) ResolveReference(ref string) (driver.Element, error) {
	index, local, err := ParseReference(ref)
	if err != nil {
		return nil, err
	}
	if s.disconnected {
		return nil, &ReferenceError{Ref: ref, Err: ErrDisconnected}
	}
	if len(s.frames) == 0 {
		return nil, &ReferenceError{Ref: ref, Err: ErrNoFrames}
	}
	if index >= len(s.frames) {
		if s.restored && index > 0 {
			return nil, &ReferenceError{Ref: ref, Err: ErrFrameNotRestored}
		}
		return nil, &ReferenceError{
			Ref: ref,
			Err: fmt.Errorf("%w: frame %d requested, snapshot has %d", ErrFrameOutOfRange, index, len(s.frames)),
		}
	}

	el, err := s.frames[index].ElementByRef(local)
	if err != nil {
		return nil, &ReferenceError{Ref: ref, Err: err}
	}
	return el, nil
}

// ParseReference splits ref into its frame index and frame-local reference.
func ParseReference(ref string) (int, string, error) {
	if ref == "" {
		return 0, "", &ReferenceError{Ref: ref, Err: ErrInvalidReference}
	}
	if len(ref) < 2 || ref[0] != 'f' || ref[1] < '0' || ref[1] > '9' {
		return 0, ref, nil
	}

	end := 1
	for end < len(ref) && ref[end] >= '0' && ref[end] <= '9' {
		end++
	}
	if end == len(ref) {
		return 0, "", &ReferenceError{Ref: ref, Err: ErrInvalidReference}
	}
	index, err := strconv.Atoi(ref[1:end])
	if err != nil {
		return 0, "", &ReferenceError{Ref: ref, Err: ErrInvalidReference}
	}
	return index, ref[end:], nil
}
