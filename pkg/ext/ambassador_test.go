package ext

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmbassador_WriteFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "reports", "geekwala.json")

	require.NoError(t, DefaultAmbassador.WriteFile(name, []byte("first")))
	require.NoError(t, DefaultAmbassador.WriteFile(name, []byte("second")))

	data, err := DefaultAmbassador.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestAmbassador_AppendFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "output")

	require.NoError(t, DefaultAmbassador.AppendFile(name, []byte("a=1\n")))
	require.NoError(t, DefaultAmbassador.AppendFile(name, []byte("b=2\n")))

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "a=1\nb=2\n", string(data))

	info, err := DefaultAmbassador.Stat(name)
	require.NoError(t, err)
	assert.Equal(t, int64(8), info.Size())
}

func TestAmbassador_LookupEnv(t *testing.T) {
	t.Setenv("GEEKWALA_AMBASSADOR_TEST", "value")

	value, ok := DefaultAmbassador.LookupEnv("GEEKWALA_AMBASSADOR_TEST")
	assert.True(t, ok)
	assert.Equal(t, "value", value)
	assert.Contains(t, DefaultAmbassador.Environ(), "GEEKWALA_AMBASSADOR_TEST=value")
}
