package domain

import "testing"

func feat(serverID, name string, available bool) ServerFeature {
	return ServerFeature{ServerID: serverID, Type: FeatureTool, Name: name, IsAvailable: available}
}

func TestFeatureSetContainsAllMatchesEverythingAvailable(t *testing.T) {
	set := FeatureSet{Type: FeatureSetAll}
	if !FeatureSetContains(set, nil, feat("figma", "get_file", true)) {
		t.Fatal("expected all set to contain every available feature")
	}
	if FeatureSetContains(set, nil, feat("figma", "get_file", false)) {
		t.Fatal("expected all set to never contain an unavailable feature")
	}
}

func TestFeatureSetContainsServerMemberIncludesWholeServer(t *testing.T) {
	set := FeatureSet{Type: FeatureSetCustom}
	members := []FeatureSetMember{{Kind: MemberServer, ServerID: "figma"}}

	if !FeatureSetContains(set, members, feat("figma", "get_file", true)) {
		t.Fatal("expected server member to include every feature of that server")
	}
	if FeatureSetContains(set, members, feat("other", "get_file", true)) {
		t.Fatal("expected server member to not include a different server's feature")
	}
}

func TestFeatureSetContainsExcludeWinsOverInclude(t *testing.T) {
	set := FeatureSet{Type: FeatureSetCustom}
	members := []FeatureSetMember{
		{Kind: MemberServer, ServerID: "figma"},
		{Kind: MemberFeature, Exclude: true, FeatureServerID: "figma", FeatureType: FeatureTool, FeatureName: "delete_file"},
	}

	if FeatureSetContains(set, members, feat("figma", "delete_file", true)) {
		t.Fatal("expected an explicit exclude to win over a broader server include")
	}
	if !FeatureSetContains(set, members, feat("figma", "get_file", true)) {
		t.Fatal("expected the server include to still apply to a non-excluded feature")
	}
}

func TestFeatureSetMemberMatches(t *testing.T) {
	serverMember := FeatureSetMember{Kind: MemberServer, ServerID: "figma"}
	if !serverMember.Matches(feat("figma", "anything", true)) {
		t.Fatal("expected server member to match any feature of that server")
	}

	featureMember := FeatureSetMember{Kind: MemberFeature, FeatureServerID: "figma", FeatureType: FeatureTool, FeatureName: "get_file"}
	if !featureMember.Matches(feat("figma", "get_file", true)) {
		t.Fatal("expected feature member to match its exact (server, type, name)")
	}
	if featureMember.Matches(feat("figma", "other_tool", true)) {
		t.Fatal("expected feature member to not match a different feature name")
	}
}
