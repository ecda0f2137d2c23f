package log

import "time"

// Event is a single log record: a level, a message, a flat list of
// key/value context, and the name of the logger ("" for root) that
// produced it.
type Event struct {
	Time  time.Time
	Level Priority
	Name  string
	Msg   string
	KV    []interface{}
}

// normalize makes sure a kv list has an even number of elements,
// dropping a final dangling key rather than panicking on it - a
// logging call must never be able to crash the supervisor.
func normalize(kv []interface{}) []interface{} {
	if len(kv)%2 == 1 {
		kv = kv[:len(kv)-1]
	}
	return kv
}
