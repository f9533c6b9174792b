package platform

import "testing"

func TestRegistry_ResolveKnownPlatforms(t *testing.T) {
	r := NewRegistry(RegistryConfig{})

	for _, id := range []string{Codeforces, LeetCode, CodeChef, AtCoder, GitHub, StackOverflow} {
		adapter, err := r.Resolve(id)
		if err != nil {
			t.Errorf("expected %s to resolve, got %v", id, err)
			continue
		}
		if adapter.Capability().ID != id {
			t.Errorf("adapter id mismatch: want %s, got %s", id, adapter.Capability().ID)
		}
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := NewRegistry(RegistryConfig{})

	_, err := r.Resolve("topcoder")
	if err == nil {
		t.Fatal("expected error for unknown platform")
	}
	if KindOf(err) != KindUnsupportedPlatform {
		t.Errorf("expected unsupported_platform, got %s", KindOf(err))
	}
	if r.Supported("topcoder") {
		t.Error("Supported must be false for unknown platform")
	}
}

func TestRegistry_ListSupportedIsSortedAndComplete(t *testing.T) {
	r := NewRegistry(RegistryConfig{})

	caps := r.ListSupported()
	if len(caps) != 6 {
		t.Fatalf("expected 6 platforms, got %d", len(caps))
	}
	for i := 1; i < len(caps); i++ {
		if caps[i-1].ID >= caps[i].ID {
			t.Errorf("list not sorted: %s before %s", caps[i-1].ID, caps[i].ID)
		}
	}
}

func TestRegistry_CapabilityFlags(t *testing.T) {
	r := NewRegistry(RegistryConfig{})

	tests := []struct {
		id             string
		hasRating      bool
		hasContests    bool
		hasSubmissions bool
	}{
		{Codeforces, true, true, true},
		{LeetCode, true, true, true},
		{CodeChef, true, true, false},
		{AtCoder, true, true, false},
		{GitHub, false, false, false},
		{StackOverflow, false, false, false},
	}

	for _, tt := range tests {
		adapter, err := r.Resolve(tt.id)
		if err != nil {
			t.Fatalf("resolve %s: %v", tt.id, err)
		}
		cap := adapter.Capability()
		if cap.HasRating != tt.hasRating || cap.HasContests != tt.hasContests || cap.HasSubmissions != tt.hasSubmissions {
			t.Errorf("%s capability mismatch: %+v", tt.id, cap)
		}
	}
}
