// Package sessions tracks the long-lived connections of the legacy SSE
// transport. A session pairs an engine with the outbound event stream of the
// GET request that opened it; POSTed messages find their session here by id.
//
// Characteristics
//
//	Durability        : none (RAM only)
//	Horizontal scale  : no (process local)
//	Duplicate ids     : last registration wins
//	Concurrency       : safe (RWMutex)
//
// Example:
//
//	reg := sessions.NewRegistry()
//	release := reg.Register(&sessions.Session{ID: sessions.NewID(), Engine: eng, Sink: sink})
//	defer release()
package sessions
