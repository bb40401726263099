package lifecycle

import (
	"errors"
	"fmt"
	"sync"
)

var ErrInvalidTransition = errors.New("invalid state transition")

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Running
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Running:
		return "running"
	case Disconnecting:
		return "disconnecting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Event string

func (e Event) String() string {
	return string(e)
}

const (
	EventConnect        Event = "connect"
	EventConnectOK      Event = "connect_ok"
	EventConnectFailed  Event = "connect_failed"
	EventSettled        Event = "settled"
	EventCancel         Event = "cancel"
	EventConnectionLost Event = "connection_lost"
	EventClosed         Event = "closed"
)

var transitions = map[State]map[Event]State{
	Disconnected: {
		EventConnect: Connecting,
	},
	Connecting: {
		EventConnectOK:     Connected,
		EventConnectFailed: Disconnected,
		EventCancel:        Disconnecting,
	},
	Connected: {
		EventSettled: Running,
		EventCancel:  Disconnecting,
	},
	Running: {
		EventCancel:         Disconnecting,
		EventConnectionLost: Disconnecting,
	},
	Disconnecting: {
		EventClosed: Disconnected,
	},
}

type Transition struct {
	From  State
	To    State
	Event Event
}

// Machine is the connection state machine. Events are applied synchronously;
// observers run on the caller's goroutine in registration order.
type Machine struct {
	mu        sync.Mutex
	state     State
	observers []func(Transition)
}

func NewMachine(observers ...func(Transition)) *Machine {
	return &Machine{
		state:     Disconnected,
		observers: observers,
	}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Fire(event Event) (State, error) {
	m.mu.Lock()
	from := m.state
	to, ok := transitions[from][event]
	if !ok {
		m.mu.Unlock()
		return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, from, event)
	}
	m.state = to
	observers := m.observers
	m.mu.Unlock()

	tr := Transition{From: from, To: to, Event: event}
	for _, o := range observers {
		o(tr)
	}
	return to, nil
}
