package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/ochairo/pybuild/internal/domain/errors"
)

func TestParseSettings_Defaults(t *testing.T) {
	s, err := ParseSettings(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPyVersion, s.PyVersion)
	assert.Equal(t, "1.0.8", s.Bz2Version)
	assert.Equal(t, "1.1.1g", s.SSLVersion)
	assert.Equal(t, "5.2.5", s.XzVersion)
	assert.Empty(t, s.Env())
}

func TestParseSettings_UnknownKey(t *testing.T) {
	_, err := ParseSettings(map[string]string{"py_version": "3.8.10", "xv_version": "5.2.4"})
	require.Error(t, err)
	assert.True(t, domainerrors.IsCode(err, domainerrors.ErrConfiguration))
	assert.Contains(t, err.Error(), "xv_version")
}

func TestSettings_MergeCallerWins(t *testing.T) {
	base, err := ParseSettings(map[string]string{"deployment_target": "10.13"})
	require.NoError(t, err)

	merged, err := base.Merge(map[string]string{"py_version": "3.8.10", "deployment_target": "11.0", "ssl_version": ""})
	require.NoError(t, err)

	assert.Equal(t, "3.8.10", merged.PyVersion)
	assert.Equal(t, "11.0", merged.DeploymentTarget)
	assert.Equal(t, DefaultSSLVersion, merged.SSLVersion)
	assert.Equal(t, map[string]string{"MACOSX_DEPLOYMENT_TARGET": "11.0"}, merged.Env())

	// original is untouched
	assert.Equal(t, DefaultPyVersion, base.PyVersion)
	assert.Equal(t, "10.13", base.DeploymentTarget)
}

func TestSettings_InvalidJobs(t *testing.T) {
	_, err := ParseSettings(map[string]string{"jobs": "many"})
	require.Error(t, err)
	assert.True(t, domainerrors.IsCode(err, domainerrors.ErrConfiguration))
}

func TestSettings_VersionFor(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, s.PyVersion, s.VersionFor("Python"))
	assert.Equal(t, s.SSLVersion, s.VersionFor("openssl"))
	assert.Equal(t, "", s.VersionFor("zlib"))
}
