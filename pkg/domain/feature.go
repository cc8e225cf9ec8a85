package domain

import "encoding/json"

// FeatureType enumerates the three kinds of upstream capability mcpmuxd
// aggregates.
type FeatureType string

const (
	FeatureTool     FeatureType = "tool"
	FeaturePrompt   FeatureType = "prompt"
	FeatureResource FeatureType = "resource"
)

// ServerFeature is the cache entry for one discovered tool/prompt/resource.
// Uniqueness is (SpaceID, ServerID, Type, Name).
type ServerFeature struct {
	ID          string
	SpaceID     string
	ServerID    string
	Type        FeatureType
	Name        string
	DisplayName string
	Description string
	Raw         json.RawMessage
	IsAvailable bool
}

// QualifiedName returns the prefixed name clients see, given the server's
// assigned prefix. Resources are addressed by URI instead and do not use
// this form.
func (f ServerFeature) QualifiedName(prefix string) string {
	return prefix + "_" + f.Name
}
