package kwd

import (
	"reflect"
	"sync"
)

// canMatch reports whether a registered observer can be compared against a
// removal candidate. Func adapters have uncomparable dynamic types; comparing
// them directly would panic, so they are skipped and stay registered.
func canMatch(cur, o interface{}) bool {
	t := reflect.TypeOf(cur)
	return t == reflect.TypeOf(o) && t.Comparable()
}

// KeywordNotifier fans a detection out to a set of observers.
// Observers may be added and removed while the detector is running.
type KeywordNotifier struct {
	mu        sync.RWMutex
	observers []KeywordObserver
}

func NewKeywordNotifier(observers ...KeywordObserver) *KeywordNotifier {
	n := &KeywordNotifier{}
	for _, o := range observers {
		n.AddObserver(o)
	}
	return n
}

func (n *KeywordNotifier) AddObserver(o KeywordObserver) {
	if o == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observers = append(n.observers, o)
}

// RemoveObserver drops a previously added observer. Removal works on
// comparable observer values; func adapters cannot be removed and are
// left in place.
func (n *KeywordNotifier) RemoveObserver(o KeywordObserver) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, cur := range n.observers {
		if canMatch(cur, o) && cur == o {
			n.observers = append(n.observers[:i], n.observers[i+1:]...)
			return
		}
	}
}

// Notify delivers d to every observer, synchronously, in registration order.
func (n *KeywordNotifier) Notify(d Detection) {
	n.mu.RLock()
	observers := make([]KeywordObserver, len(n.observers))
	copy(observers, n.observers)
	n.mu.RUnlock()
	for _, o := range observers {
		o.OnKeywordDetected(d)
	}
}

// StateNotifier fans detector state transitions out to a set of observers.
type StateNotifier struct {
	mu        sync.RWMutex
	observers []StateObserver
}

func NewStateNotifier(observers ...StateObserver) *StateNotifier {
	n := &StateNotifier{}
	for _, o := range observers {
		n.AddObserver(o)
	}
	return n
}

func (n *StateNotifier) AddObserver(o StateObserver) {
	if o == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observers = append(n.observers, o)
}

// RemoveObserver drops a previously added observer. Removal works on
// comparable observer values; func adapters cannot be removed and are
// left in place.
func (n *StateNotifier) RemoveObserver(o StateObserver) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, cur := range n.observers {
		if canMatch(cur, o) && cur == o {
			n.observers = append(n.observers[:i], n.observers[i+1:]...)
			return
		}
	}
}

func (n *StateNotifier) Notify(s State) {
	n.mu.RLock()
	observers := make([]StateObserver, len(n.observers))
	copy(observers, n.observers)
	n.mu.RUnlock()
	for _, o := range observers {
		o.OnStateChanged(s)
	}
}
