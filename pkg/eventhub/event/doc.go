// Package event defines the immutable Event value carried by the hub.
//
// # Creating Events
//
//	evt := event.New("Identity Request",
//	    event.TypeGenericIdentity, event.SourceRequestContent,
//	    map[string]any{"key": "v"})
//
// The hub stamps each dispatched event with a strictly increasing sequence
// number. Stamping produces a copy; the publisher's value is never changed.
//
// # Responses
//
// A response names its trigger through ParentID:
//
//	resp := event.NewResponse(trigger, "Identity Response",
//	    event.TypeGenericIdentity, event.SourceResponseContent,
//	    map[string]any{"id": "abc"})
//
// The hub uses ParentID to complete callbacks installed with
// DispatchWithResponse.
//
// # Matching
//
// Listeners match on exact type and source. Wildcard ("*") matches anything
// on that side of the pair.
package event
