package domain

// FeatureSetType enumerates the built-in and user-defined kinds of
// FeatureSet.
type FeatureSetType string

const (
	FeatureSetAll        FeatureSetType = "all"
	FeatureSetDefault    FeatureSetType = "default"
	FeatureSetServerAll  FeatureSetType = "server_all"
	FeatureSetCustom     FeatureSetType = "custom"
)

// FeatureSet is a named selection of features within a Space.
type FeatureSet struct {
	ID      string
	SpaceID string
	Name    string
	Type    FeatureSetType
	// ServerID is set only for server_all sets, naming the server whose
	// complete feature list this set tracks.
	ServerID string
}

// MemberKind distinguishes a whole-server member from an individual
// feature member.
type MemberKind string

const (
	MemberServer  MemberKind = "server"
	MemberFeature MemberKind = "feature"
)

// FeatureSetMember is one include/exclude rule inside a FeatureSet.
type FeatureSetMember struct {
	ID           string
	FeatureSetID string
	Kind         MemberKind
	Exclude      bool

	// Populated when Kind == MemberServer.
	ServerID string

	// Populated when Kind == MemberFeature.
	FeatureServerID string
	FeatureType     FeatureType
	FeatureName     string
}

// Matches reports whether member m applies to feature f.
func (m FeatureSetMember) Matches(f ServerFeature) bool {
	switch m.Kind {
	case MemberServer:
		return m.ServerID == f.ServerID
	case MemberFeature:
		return m.FeatureServerID == f.ServerID && m.FeatureType == f.Type && m.FeatureName == f.Name
	default:
		return false
	}
}

// FeatureSetContains implements set semantics: a feature belongs
// to the set iff some member includes it and no member excludes it. all
// matches everything available; members are ignored for it.
func FeatureSetContains(set FeatureSet, members []FeatureSetMember, f ServerFeature) bool {
	if !f.IsAvailable {
		return false
	}
	if set.Type == FeatureSetAll {
		return true
	}
	included := false
	for _, m := range members {
		if !m.Matches(f) {
			continue
		}
		if m.Exclude {
			return false
		}
		included = true
	}
	return included
}
