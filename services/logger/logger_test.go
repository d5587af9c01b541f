package logsvc

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/user"
)

func TestLogger(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Debug = false

	buf := new(bytes.Buffer)
	logger := NewLogger(buf, conf)
	logger.Error("creating assignment",
		errors.New("boom"),
		map[string]interface{}{"assignment_id": "a1"},
		user.User{ID: "u1"},
	)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "creating assignment", entry["message"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "a1", entry["assignment_id"])
	assert.Equal(t, "u1", entry["user_id"])

	buf.Reset()
	logger.Debug("hidden")
	assert.Empty(t, buf.String())
}
