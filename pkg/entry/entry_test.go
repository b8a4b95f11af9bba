// SPDX-License-Identifier: MPL-2.0

package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		names   []string
		logical string
		want    string
		wantErr bool
	}{
		{
			name:    "bare unit file",
			names:   []string{"m", "m.sh", "m.shc"},
			logical: "m",
			want:    "m",
		},
		{
			name:    "source module",
			names:   []string{"m.sh"},
			logical: "m",
			want:    "m.sh",
		},
		{
			name:    "compiled sibling tests the suffixed name",
			names:   []string{"p/q.shc"},
			logical: "p/q",
			want:    "p/q.shc",
		},
		{
			name:    "source preferred over compiled sibling",
			names:   []string{"p/q.shc", "p/q.sh"},
			logical: "p/q",
			want:    "p/q.sh",
		},
		{
			name:    "source package",
			names:   []string{"p/__init__.sh", "p/q.sh"},
			logical: "p",
			want:    "p/__init__.sh",
		},
		{
			name:    "compiled package",
			names:   []string{"p/__init__.shc", "p/q.shc"},
			logical: "p",
			want:    "p/__init__.shc",
		},
		{
			name:    "module shadows package",
			names:   []string{"p.sh", "p/__init__.sh"},
			logical: "p",
			want:    "p.sh",
		},
		{
			name:    "missing",
			names:   []string{"p/__init__.sh"},
			logical: "p/r",
			wantErr: true,
		},
		{
			name:    "empty logical path",
			names:   []string{""},
			logical: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(NewSet(tt.names), tt.logical)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	names := NewSet([]string{"p/__init__.sh", "p/__init__.shc", "p/q.shc", "p/q.sh"})
	first, err := Resolve(names, "p/q")
	require.NoError(t, err)
	for range 50 {
		got, err := Resolve(names, "p/q")
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, "pkg/sub/mod", LogicalPath("pkg.sub.mod"))
	assert.Equal(t, "pkg", ArchiveName("pkg.sub.mod"))
	assert.Equal(t, "m", ArchiveName("m"))
	assert.Equal(t, "pkg.sub", Parent("pkg.sub.mod"))
	assert.Empty(t, Parent("m"))

	assert.Equal(t, "p.q", ModuleName("p/q.sh"))
	assert.Equal(t, "p", ModuleName("p/__init__.shc"))
	assert.Equal(t, "m", ModuleName("m.shc"))

	assert.True(t, IsPackageEntry("p/__init__.sh"))
	assert.True(t, IsPackageEntry("__init__.shc"))
	assert.False(t, IsPackageEntry("p/q.sh"))
}
