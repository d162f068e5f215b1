//go:build unit

package model

import (
	"testing"
)

func TestParsePermissions(t *testing.T) {
	tests := []struct {
		name        string
		kind        Kind
		input       []string
		expected    []Permission
		expectError bool
	}{
		{
			name:     "SingleFilePermission",
			kind:     KindFile,
			input:    []string{"VIEW"},
			expected: []Permission{View},
		},
		{
			name:     "CommaSeparated",
			kind:     KindFile,
			input:    []string{"VIEW,DOWNLOAD"},
			expected: []Permission{Download, View},
		},
		{
			name:     "MixedCaseAndSpaces",
			kind:     KindJob,
			input:    []string{" view ", "UPDATE"},
			expected: []Permission{View, Update},
		},
		{
			name:     "DuplicatesCollapse",
			kind:     KindSample,
			input:    []string{"VIEW", "VIEW,VIEW_ANNOTATIONS"},
			expected: []Permission{ViewAnnotations, View},
		},
		{
			name:     "EmptyTokensIgnored",
			kind:     KindDataset,
			input:    []string{"", ",SHARE,"},
			expected: []Permission{Share},
		},
		{
			name:        "AnnotationPermissionOnJob",
			kind:        KindJob,
			input:       []string{"VIEW_ANNOTATIONS"},
			expectError: true,
		},
		{
			name:        "StudyPermissionOnFile",
			kind:        KindFile,
			input:       []string{"VIEW_FILES"},
			expectError: true,
		},
		{
			name:        "UnknownKind",
			kind:        Kind("bundle"),
			input:       []string{"VIEW"},
			expectError: true,
		},
		{
			name:     "StudyEnumeration",
			kind:     KindStudy,
			input:    []string{"CONFIDENTIAL_VARIABLE_SET_ACCESS,VIEW_STUDY"},
			expected: []Permission{ViewStudy, ConfidentialVariableSetAccess},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParsePermissions(tt.kind, tt.input)

			if tt.expectError && err == nil {
				t.Errorf("ParsePermissions(%s, %v) expected error but got none", tt.kind, tt.input)
			}

			if !tt.expectError && err != nil {
				t.Errorf("ParsePermissions(%s, %v) unexpected error: %v", tt.kind, tt.input, err)
			}

			if !tt.expectError {
				if len(result) != len(tt.expected) {
					t.Fatalf("ParsePermissions(%s, %v) = %v, want %v", tt.kind, tt.input, result, tt.expected)
				}
				for i := range result {
					if result[i] != tt.expected[i] {
						t.Errorf("ParsePermissions(%s, %v)[%d] = %s, want %s", tt.kind, tt.input, i, result[i], tt.expected[i])
					}
				}
			}
		})
	}
}

func TestDeriveEntryFromStudy(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		entry    AclEntry
		expected []Permission
	}{
		{
			name:     "FileHeadersAndContents",
			kind:     KindFile,
			entry:    AclEntry{Member: "alice", Permissions: []Permission{ViewFileHeaders, ViewFileContents, DownloadFiles}},
			expected: []Permission{ViewHeader, ViewContent, Download},
		},
		{
			name:     "JobSubset",
			kind:     KindJob,
			entry:    AclEntry{Member: "@ops", Permissions: []Permission{ViewJobs, DeleteJobs, ViewStudy}},
			expected: []Permission{View, Delete},
		},
		{
			name:     "SampleAnnotations",
			kind:     KindSample,
			entry:    AclEntry{Member: "*", Permissions: []Permission{ViewSampleAnnotations, UpdateSamples}},
			expected: []Permission{ViewAnnotations, Update},
		},
		{
			name:     "UnrelatedRightsProjectEmpty",
			kind:     KindPanel,
			entry:    AclEntry{Member: "bob", Permissions: []Permission{ViewFiles, ViewJobs, UpdateStudy}},
			expected: []Permission{},
		},
		{
			name:     "EmptyStudyEntryStaysEmpty",
			kind:     KindCohort,
			entry:    AclEntry{Member: "carol", Permissions: []Permission{}},
			expected: []Permission{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			derived := DeriveEntryFromStudy(tt.kind, tt.entry)

			if derived.Member != tt.entry.Member {
				t.Errorf("DeriveEntryFromStudy member = %s, want %s", derived.Member, tt.entry.Member)
			}
			if derived.Permissions == nil {
				t.Fatalf("DeriveEntryFromStudy permissions must not be nil, the projection is a decision")
			}
			if len(derived.Permissions) != len(tt.expected) {
				t.Fatalf("DeriveEntryFromStudy = %v, want %v", derived.Permissions, tt.expected)
			}
			for i := range derived.Permissions {
				if derived.Permissions[i] != tt.expected[i] {
					t.Errorf("DeriveEntryFromStudy[%d] = %s, want %s", i, derived.Permissions[i], tt.expected[i])
				}
			}
		})
	}
}

func TestTemplatePermissions(t *testing.T) {
	admin, err := TemplatePermissions(TemplateAdmin)
	if err != nil {
		t.Fatalf("TemplatePermissions(admin) unexpected error: %v", err)
	}
	if len(admin) != len(PermissionsFor(KindStudy)) {
		t.Errorf("admin template carries %d permissions, want the full study set of %d", len(admin), len(PermissionsFor(KindStudy)))
	}

	analyst, err := TemplatePermissions(TemplateAnalyst)
	if err != nil {
		t.Fatalf("TemplatePermissions(analyst) unexpected error: %v", err)
	}
	forbidden := map[Permission]bool{
		UpdateStudy: true, ShareStudy: true,
		DeleteFiles: true, ShareFiles: true,
		DeleteJobs: true, ShareJobs: true,
		DeleteSamples: true, ShareSamples: true,
		DeleteVariableSet:             true,
		ConfidentialVariableSetAccess: true,
	}
	seen := map[Permission]bool{}
	for _, p := range analyst {
		if forbidden[p] {
			t.Errorf("analyst template must not grant %s", p)
		}
		seen[p] = true
	}
	for _, p := range []Permission{ViewStudy, CreateFiles, DownloadFiles, ViewSampleAnnotations, CreateJobs} {
		if !seen[p] {
			t.Errorf("analyst template is missing %s", p)
		}
	}

	locked, err := TemplatePermissions(TemplateLocked)
	if err != nil {
		t.Fatalf("TemplatePermissions(locked) unexpected error: %v", err)
	}
	if len(locked) != 0 {
		t.Errorf("locked template = %v, want empty", locked)
	}

	empty, err := TemplatePermissions("")
	if err != nil {
		t.Fatalf("TemplatePermissions(\"\") unexpected error: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("empty template name = %v, want empty", empty)
	}

	if _, err := TemplatePermissions("root"); err == nil {
		t.Errorf("TemplatePermissions(root) expected error but got none")
	}
}

func TestAclEntryHas(t *testing.T) {
	entry := AclEntry{Member: "alice", Permissions: []Permission{View, Download}}

	if !entry.Has(View) {
		t.Errorf("entry should carry VIEW")
	}
	if entry.Has(Delete) {
		t.Errorf("entry should not carry DELETE")
	}
	if (AclEntry{Member: "bob"}).Has(View) {
		t.Errorf("entry with no permissions should carry nothing")
	}
}
