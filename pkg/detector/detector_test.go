package detector

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/geekwala/security-scan-action/pkg/ext"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o600))
	}
}

func TestDetector_Detect(t *testing.T) {
	testCases := []struct {
		name     string
		files    []string
		dirs     []string
		expected string
	}{
		{
			name:     "Should prefer lockfile over manifest",
			files:    []string{"package.json", "package-lock.json"},
			expected: "package-lock.json",
		},
		{
			name:     "Should prefer npm lockfile over other ecosystems",
			files:    []string{"go.sum", "yarn.lock", "Cargo.lock"},
			expected: "yarn.lock",
		},
		{
			name:     "Should pick manifest when no lockfile exists",
			files:    []string{"requirements.txt", "go.mod"},
			expected: "requirements.txt",
		},
		{
			name:     "Should detect csproj file",
			files:    []string{"App.csproj", "README.md"},
			expected: "App.csproj",
		},
		{
			name:     "Should prefer NuGet lockfile over csproj",
			files:    []string{"App.csproj", "packages.lock.json"},
			expected: "packages.lock.json",
		},
		{
			name:     "Should ignore directories",
			files:    []string{"Gemfile.lock"},
			dirs:     []string{"package-lock.json", "Web.csproj"},
			expected: "Gemfile.lock",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			workspace := t.TempDir()
			touch(t, workspace, tc.files...)
			for _, dir := range tc.dirs {
				require.NoError(t, os.Mkdir(filepath.Join(workspace, dir), 0o700))
			}

			path, err := New(ext.DefaultAmbassador).Detect(workspace)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(workspace, tc.expected), path)
		})
	}

	t.Run("Should return error when nothing is found", func(t *testing.T) {
		workspace := t.TempDir()
		touch(t, workspace, "README.md")

		_, err := New(ext.DefaultAmbassador).Detect(workspace)

		var notFound *NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Contains(t, err.Error(), "No supported dependency files found in "+workspace)
		assert.Contains(t, err.Error(), "package-lock.json, yarn.lock, pnpm-lock.yaml")
	})

	t.Run("Should tolerate unreadable workspace", func(t *testing.T) {
		ambassador := ext.NewMockAmbassador()
		ambassador.On("Stat", filepath.Join("/workspace", "package-lock.json")).Return(nil, errors.New("permission denied"))
		ambassador.On("Stat", mock.Anything).Return(nil, os.ErrNotExist)
		ambassador.On("ReadDir", "/workspace").Return(nil, errors.New("permission denied"))

		_, err := New(ambassador).Detect("/workspace")
		var notFound *NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestDetector_Validate(t *testing.T) {
	workspace := t.TempDir()
	touch(t, workspace, "go.sum", "notes.txt")
	d := New(ext.DefaultAmbassador)

	assert.NoError(t, d.Validate(filepath.Join(workspace, "go.sum")))

	err := d.Validate(filepath.Join(workspace, "notes.txt"))
	assert.ErrorContains(t, err, "Unsupported file: notes.txt. Supported files: package-lock.json")

	missing := filepath.Join(workspace, "Cargo.lock")
	assert.EqualError(t, d.Validate(missing), "File not found or not readable: "+missing)
}

func TestDetector_Read(t *testing.T) {
	workspace := t.TempDir()
	touch(t, workspace, "go.mod")
	d := New(ext.DefaultAmbassador)

	content, err := d.Read(filepath.Join(workspace, "go.mod"))
	require.NoError(t, err)
	assert.Equal(t, "go.mod", content)

	_, err = d.Read(filepath.Join(workspace, "go.sum"))
	assert.ErrorContains(t, err, "Failed to read file")
}

func TestPatterns(t *testing.T) {
	assert.True(t, Supported("Cargo.toml"))
	assert.True(t, Supported("Api.csproj"))
	assert.False(t, Supported("build.gradle"))

	assert.Equal(t, 1, Priority("package-lock.json"))
	assert.Equal(t, 16, Priority("Api.csproj"))
	assert.Equal(t, 999, Priority("build.gradle"))

	names := SupportedNames()
	assert.Equal(t, "package-lock.json", names[0])
	assert.Equal(t, "packages.lock.json", names[len(names)-2])
	assert.Equal(t, "*.csproj", names[len(names)-1])
	assert.Len(t, names, len(Patterns)+1)
}
