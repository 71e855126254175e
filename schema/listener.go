package schema

import "context"

// Listener is notified about schema changes after they are applied.
type Listener interface {
	OnCreateClass(ctx context.Context, class string)
	OnDropClass(ctx context.Context, class string)
	OnCreateProperty(ctx context.Context, class, property string)
	OnDropProperty(ctx context.Context, class, property string)
}

// ListenerFuncs is a Listener built from optional functions.
type ListenerFuncs struct {
	CreateClass    func(ctx context.Context, class string)
	DropClass      func(ctx context.Context, class string)
	CreateProperty func(ctx context.Context, class, property string)
	DropProperty   func(ctx context.Context, class, property string)
}

func (l ListenerFuncs) OnCreateClass(ctx context.Context, class string) {
	if l.CreateClass != nil {
		l.CreateClass(ctx, class)
	}
}

func (l ListenerFuncs) OnDropClass(ctx context.Context, class string) {
	if l.DropClass != nil {
		l.DropClass(ctx, class)
	}
}

func (l ListenerFuncs) OnCreateProperty(ctx context.Context, class, property string) {
	if l.CreateProperty != nil {
		l.CreateProperty(ctx, class, property)
	}
}

func (l ListenerFuncs) OnDropProperty(ctx context.Context, class, property string) {
	if l.DropProperty != nil {
		l.DropProperty(ctx, class, property)
	}
}

type eventKind int

const (
	classCreated eventKind = iota
	classDropped
	propertyCreated
	propertyDropped
)

type event struct {
	kind     eventKind
	class    string
	property string
}

func (e event) deliver(ctx context.Context, l Listener) {
	switch e.kind {
	case classCreated:
		l.OnCreateClass(ctx, e.class)
	case classDropped:
		l.OnDropClass(ctx, e.class)
	case propertyCreated:
		l.OnCreateProperty(ctx, e.class, e.property)
	case propertyDropped:
		l.OnDropProperty(ctx, e.class, e.property)
	}
}

type listenerEntry struct {
	l Listener
}

// AddListener registers l and returns a function removing it.
func (c *Catalog) AddListener(l Listener) func() {
	e := &listenerEntry{l: l}
	c.lmu.Lock()
	c.listeners = append(c.listeners, e)
	c.lmu.Unlock()
	return func() {
		c.lmu.Lock()
		defer c.lmu.Unlock()
		for i, x := range c.listeners {
			if x == e {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

func (c *Catalog) fire(ctx context.Context, events []event) {
	if len(events) == 0 {
		return
	}
	c.lmu.Lock()
	list := append([]*listenerEntry(nil), c.listeners...)
	c.lmu.Unlock()
	for _, ev := range events {
		for _, e := range list {
			ev.deliver(ctx, e.l)
		}
	}
}
