package roles

import "testing"

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		identifier string
		override   string
		expected   string
	}{
		{"RolRole1", "", "rol_role1"},
		{"RolRole2", "", "rol_role2"},
		{"RolRole3", "new_name", "new_name"},
		{"ContentEditor", "", "content_editor"},
		{"Admin", "", "admin"},
		{"HTTPAdmin", "", "http_admin"},
		{"getHTTPResponseCode", "", "get_http_response_code"},
		{"Level2Moderator", "", "level2_moderator"},
		{"already_snake", "", "already_snake"},
		{"", "", ""},
		{"Anything", "Explicit Name", "Explicit Name"},
	}

	for _, tt := range tests {
		t.Run(tt.identifier+"/"+tt.override, func(t *testing.T) {
			got := CanonicalName(tt.identifier, tt.override)
			if got != tt.expected {
				t.Errorf("CanonicalName(%q, %q) = %q, want %q", tt.identifier, tt.override, got, tt.expected)
			}
		})
	}
}

func TestCanonicalName_Deterministic(t *testing.T) {
	first := CanonicalName("SomeLongRoleIdentifier", "")
	for i := 0; i < 10; i++ {
		if got := CanonicalName("SomeLongRoleIdentifier", ""); got != first {
			t.Fatalf("CanonicalName changed between calls: %q then %q", first, got)
		}
	}
}
