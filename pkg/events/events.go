// Package events carries scene change notifications from the drag
// controller to hosts (desktop UI, script runner) over an engo message
// bus.
package events

import (
	"github.com/EngoEngine/engo"
	"github.com/chazu/furnish/pkg/geom"
	"github.com/chazu/furnish/pkg/scene"
)

// ObjectPlaced is sent when a drop commits a new object, or when undo and
// redo put one back.
type ObjectPlaced struct {
	Handle      scene.Handle `json:"handle"`
	Prototype   string       `json:"prototype"`
	Position    geom.Vec     `json:"position"`
	Yaw         geom.Yaw     `json:"yaw"`
	StackParent scene.Handle `json:"stack_parent,omitempty"`
}

func (ObjectPlaced) Type() string { return "ObjectPlaced" }

// ObjectsRemoved is sent when objects leave the scene.
type ObjectsRemoved struct {
	Handles []scene.Handle `json:"handles"`
	Reason  string         `json:"reason"` // "delete", "undo", "asset-failure"
}

func (ObjectsRemoved) Type() string { return "ObjectsRemoved" }

// PlacementRejected is sent when a drop would interpenetrate placed
// objects.
type PlacementRejected struct {
	Prototype  string         `json:"prototype"`
	Position   geom.Vec       `json:"position"`
	Collisions []scene.Handle `json:"collisions"`
}

func (PlacementRejected) Type() string { return "PlacementRejected" }

// ObjectRotated is sent when a placed object turns.
type ObjectRotated struct {
	Handle scene.Handle `json:"handle"`
	Yaw    geom.Yaw     `json:"yaw"`
}

func (ObjectRotated) Type() string { return "ObjectRotated" }

// SelectionChanged is sent when the selection changes. Handle is zero
// when the selection was cleared.
type SelectionChanged struct {
	Handle scene.Handle `json:"handle"`
}

func (SelectionChanged) Type() string { return "SelectionChanged" }

// SceneReset is sent after every object has been removed.
type SceneReset struct {
	Removed int `json:"removed"`
}

func (SceneReset) Type() string { return "SceneReset" }

// Types lists every message type this package defines.
var Types = []string{
	ObjectPlaced{}.Type(),
	ObjectsRemoved{}.Type(),
	PlacementRejected{}.Type(),
	ObjectRotated{}.Type(),
	SelectionChanged{}.Type(),
	SceneReset{}.Type(),
}

// Bus delivers messages synchronously to listeners.
type Bus struct {
	mm *engo.MessageManager
}

// NewBus returns a bus with no listeners.
func NewBus() *Bus {
	return &Bus{mm: &engo.MessageManager{}}
}

// Publish delivers m to every listener of its type. A nil bus drops m.
func (b *Bus) Publish(m engo.Message) {
	if b == nil {
		return
	}
	b.mm.Dispatch(m)
}

// Subscribe registers fn for messages of type msgType.
func (b *Bus) Subscribe(msgType string, fn func(engo.Message)) {
	b.mm.Listen(msgType, fn)
}

// SubscribeAll registers fn for every type in Types.
func (b *Bus) SubscribeAll(fn func(engo.Message)) {
	for _, t := range Types {
		b.Subscribe(t, fn)
	}
}

// Recorder collects every message published on a bus, in order.
type Recorder struct {
	Messages []engo.Message
}

// Record subscribes a new recorder to all message types on b.
func Record(b *Bus) *Recorder {
	r := &Recorder{}
	b.SubscribeAll(func(m engo.Message) {
		r.Messages = append(r.Messages, m)
	})
	return r
}

// Count returns how many recorded messages have type msgType.
func (r *Recorder) Count(msgType string) int {
	n := 0
	for _, m := range r.Messages {
		if m.Type() == msgType {
			n++
		}
	}
	return n
}

// Last returns the most recent message of type msgType, or nil.
func (r *Recorder) Last(msgType string) engo.Message {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Type() == msgType {
			return r.Messages[i]
		}
	}
	return nil
}

// Reset forgets recorded messages.
func (r *Recorder) Reset() {
	r.Messages = nil
}
