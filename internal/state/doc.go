// Package state holds the latest solve progress for the UI.
//
// # Overview
//
// Store is the meeting point between the monitor goroutine, which emits
// events as the solve moves along, and the Bubble Tea program, which renders
// on its own tick. Store implements monitor.Observer, so it can be passed
// straight into monitor.Options.
//
//	Producer (Monitor):            Consumer (UI):
//	┌──────────────────┐          ┌──────────────────┐
//	│ Process()        │          │                  │
//	│   ↓              │          │                  │
//	│ store.Observe()  │─────────→│ store.Snapshot() │
//	│   ↓              │ (mutex)  │   ↓              │
//	│ next transition  │          │ render           │
//	└──────────────────┘          └──────────────────┘
//
// # Update Semantics
//
//   - An event for a new path, or a non-terminal event after a terminal one,
//     starts a fresh Snapshot.
//   - History records state changes only; repeated Polling events update the
//     poll count in place.
//   - A Polling event with an error bumps PollFailures and keeps the error.
//     The next clean poll resets both.
//   - Errors on Failed and Killed events are kept as LastError.
//
// IsStalled reports two or more consecutive failed polls, which the UI shows
// as "nova unreachable".
//
// # Copying
//
// Snapshot returns a copy: History is cloned and LastError is rewrapped so
// callers never share memory with the store.
//
// # Usage
//
//	store := &state.Store{}
//	mon, _ := monitor.New(monitor.Options{Transport: client, Observer: store})
//	go mon.Process(ctx, path)
//
//	snap := store.Snapshot()
//	fmt.Println(snap.State, snap.Polls)
//
// The zero Store is ready to use.
package state
