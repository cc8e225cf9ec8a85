package pool

import "encoding/json"

// marshalRaw captures a discovered tool/prompt/resource's full wire shape
// for ServerFeature.Raw, so the feature service can later hand clients the
// upstream's own schema without mcpmuxd needing to model every MCP field.
func marshalRaw(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}
