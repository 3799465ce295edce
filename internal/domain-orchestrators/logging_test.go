package orchestrators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/pybuild/internal/domain/interfaces"
)

func TestFieldLogger_PrependsFields(t *testing.T) {
	base := &recordingLogger{}
	logger := &fieldLogger{base: base, fields: []interfaces.Field{interfaces.F("recipe", "python-shared")}}

	logger.Info("Starting phase", interfaces.F("phase", "build"))
	logger.Error("Phase failed")

	require.Len(t, base.entries, 2)
	assert.Equal(t, map[string]interface{}{"recipe": "python-shared", "phase": "build"}, base.entries[0].fields)
	assert.Equal(t, "error", base.entries[1].level)
	assert.Equal(t, map[string]interface{}{"recipe": "python-shared"}, base.entries[1].fields)
	assert.Len(t, logger.fields, 1)
}
