package resultcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"passgate/internal/engine/core"
)

// Key derives a stable cache key for one validate call, salted so two
// deployments never collide on the same backend. Determinism depends on
// json.Marshal's sorted-map-key behavior, so the same logical request
// always hashes to the same key regardless of map iteration order.
func Key(salt string, request *core.Request, injections map[string]any) string {
	payload := struct {
		Collection string         `json:"collection"`
		Action     string         `json:"action"`
		Query      map[string]any `json:"query,omitempty"`
		Data       any            `json:"data,omitempty"`
		Multi      bool           `json:"multi,omitempty"`
		Upsert     bool           `json:"upsert,omitempty"`
		Merge      bool           `json:"merge,omitempty"`
		Injections map[string]any `json:"injections,omitempty"`
	}{
		Collection: request.Collection,
		Action:     request.Action,
		Query:      request.Query,
		Data:       request.Data,
		Multi:      request.Multi,
		Upsert:     request.Upsert,
		Merge:      request.Merge,
		Injections: injections,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		// Unmarshalable request data (e.g. a channel smuggled into Data)
		// can never be cached usefully; fall back to a key scoped to the
		// sorted injection names only, which still avoids a collision
		// across distinct collections/actions.
		body = []byte(request.Collection + "/" + request.Action + "/" + joinSorted(injections))
	}

	h := sha256.New()
	h.Write([]byte(salt))
	h.Write([]byte{0})
	h.Write(body)
	return "rc:" + hex.EncodeToString(h.Sum(nil))
}

func joinSorted(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for _, k := range keys {
		out += k + ","
	}
	return out
}
