// Package signals turns OS signals into typed Events on a channel the
// single event loop selects on, instead of running the reaction to a
// signal inside the signal-delivery goroutine itself - spec.md §9's
// "install a handler that only writes a byte to a self-pipe; the loop
// turns reads of that pipe into typed events; no business logic runs
// in signal context", adapted from gone/signals' reflect.Select
// dispatcher over a map of os.Signal to callback.
package signals

import (
	"os"
	"os/signal"
	"reflect"
)

// Kind names the event produced for a received signal, so
// internal/loop doesn't need to switch on os.Signal values itself.
type Kind int

const (
	Reload       Kind = iota // SIGHUP
	Halt                     // SIGUSR1
	Poweroff                 // SIGUSR2
	Reboot                   // SIGINT
	ChildExited              // SIGCHLD
	Terminate                // SIGTERM
	CtrlAltDelete            // keyboard signal, mapped by the caller
)

// Event is sent on the channel returned by Watch for every signal
// received for a registered Kind.
type Event struct {
	Kind Kind
	Sig  os.Signal
}

// Mappings assigns a Kind to each OS signal this process should react
// to. The same Kind may be used for more than one signal.
type Mappings map[os.Signal]Kind

// Watcher owns the registered signal channels and can be stopped,
// which gone/signals' package-level RunSignalHandler could not - the
// event loop needs to tear this down cleanly in tests.
type Watcher struct {
	events chan Event
	stop   chan struct{}
}

// Watch starts dispatching signals per m and returns a Watcher whose
// Events() channel carries them and whose Stop ends dispatch. The
// dispatch goroutine blocks sending while the 1-buffered events
// channel is full: callers must keep draining Events() or signals will
// queue up invisibly behind a slow consumer, matching the 1-buffered-per-signal behaviour
// gone/signals documents ("a signal will only be lost if there's
// another similar signal pending").
func Watch(m Mappings) *Watcher {
	w := &Watcher{
		events: make(chan Event, 1),
		stop:   make(chan struct{}),
	}

	cases := make([]reflect.SelectCase, 0, len(m)+1)
	kinds := make([]Kind, 0, len(m)+1)

	for sig, kind := range m {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, sig)
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ch)})
		kinds = append(kinds, kind)
	}
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(w.stop)})

	go func() {
		for {
			chosen, recv, _ := reflect.Select(cases)
			if chosen == len(kinds) {
				close(w.events)
				return
			}
			sig, _ := recv.Interface().(os.Signal)
			w.events <- Event{Kind: kinds[chosen], Sig: sig}
		}
	}()

	return w
}

// Events returns the channel the loop should select on.
func (w *Watcher) Events() <-chan Event { return w.events }

// Stop ends signal dispatch. Safe to call once.
func (w *Watcher) Stop() { close(w.stop) }
