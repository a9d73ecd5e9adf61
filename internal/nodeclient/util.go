package nodeclient

import (
	"encoding/json"
	"sync/atomic"
)

// atomicString mirrors the original's AtomicPtr<String> rest_server field:
// the base URL can be swapped at runtime without synchronizing callers.
type atomicString struct {
	v atomic.Value
}

func (a *atomicString) store(s string) { a.v.Store(s) }

func (a *atomicString) load() string {
	v := a.v.Load()
	if v == nil {
		return ""
	}
	return v.(string)
}

func jsonUnmarshal(body []byte, out interface{}) error {
	return json.Unmarshal(body, out)
}
