package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind classifies a Task. Modules ignore kinds they do not handle.
type Kind int

const (
	KindLoadResource Kind = iota
	KindRenderFrame
	KindProcessInput
	KindCompute
	KindMemory
)

var kindNames = map[Kind]string{
	KindLoadResource: "load_resource",
	KindRenderFrame:  "render_frame",
	KindProcessInput: "process_input",
	KindCompute:      "compute",
	KindMemory:       "memory",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind accepts the String form of a kind; dashes and case are ignored.
func ParseKind(s string) (Kind, error) {
	want := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for k, n := range kindNames {
		if n == want {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown task kind %q", s)
}

// Task is an immutable unit of work handed to Module.ProcessTask. The
// payload belongs to the receiving module; the core never interprets or
// stores it.
type Task struct {
	id      uuid.UUID
	kind    Kind
	payload []byte
}

// NewTask copies payload so later changes by the caller are not observed.
func NewTask(kind Kind, payload []byte) Task {
	return Task{
		id:      uuid.New(),
		kind:    kind,
		payload: append([]byte(nil), payload...),
	}
}

func (t Task) ID() uuid.UUID { return t.id }
func (t Task) Kind() Kind    { return t.kind }

// Payload returns the task data. Callers must not modify the slice.
func (t Task) Payload() []byte { return t.payload }

// Text returns the payload as a string.
func (t Task) Text() string { return string(t.payload) }
