// Package core is the convenience layer over an eventhub.Hub.
//
// Core only builds requests and forwards them to the hub. It adds batch
// registration with a completion callback, a default response timeout and
// a JSON view of the extension roster.
//
//	h := eventhub.New()
//	c := core.New(h)
//	c.RegisterExtensions(ctx, []eventhub.Factory{newIdentity, newConfig}, func(err error) {
//	    if err != nil {
//	        log.Printf("registration: %v", err)
//	    }
//	})
//	c.Dispatch(event.New("ping", "com.example.type", "com.example.source", nil))
package core
