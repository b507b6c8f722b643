package hostinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestCollect tests that the host facts are populated with sane values on
// any platform the suite runs on.
func TestCollect(t *testing.T) {
	info := Collect()

	assert.NotEmpty(t, info.Hostname)
	assert.Greater(t, info.NumThreads, 0)
	assert.Greater(t, info.NumCores, 0)
	assert.LessOrEqual(t, info.NumCores, info.NumThreads)
}

// TestFieldValue tests procfs line splitting.
func TestFieldValue(t *testing.T) {
	assert.Equal(t, "0", fieldValue("physical id\t: 0"))
	assert.Equal(t, "", fieldValue("no colon here"))
}
