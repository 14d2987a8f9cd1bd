// Package collection provides small concurrency-safe containers used by the
// hub: an atomic Counter, an ordered List, a keyed Registry and a bounded
// Window.
//
// # Counter
//
// Counter tracks how many members of a registration batch have finished:
//
//	var done collection.Counter
//	if done.Increment() == int64(batchSize) {
//	    hub.Start()
//	}
//
// # List
//
// List backs extension event queues and listener tables. Range and Snapshot
// work on copies, so a listener may cancel itself while the table is being
// walked:
//
//	listeners := collection.NewList[*Subscription]()
//	listeners.Append(sub)
//	listeners.RemoveFunc(func(s *Subscription) bool { return s == sub })
//
// TakeAll drains the list atomically, which lets a single worker pull every
// queued item in arrival order.
//
// # Registry
//
// Registry is an RWMutex-guarded map for read-heavy lookups such as shared
// state stores by extension name.
//
// # Window
//
// Window remembers the last N keys written, evicting in write order. The hub
// uses it to map recently dispatched event IDs to their sequence numbers.
package collection
