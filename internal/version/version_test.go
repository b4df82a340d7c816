package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCurrentVersion(t *testing.T) {
	assert.Equal(t, Version, GetCurrentVersion("prod"))
	assert.Equal(t, DevVersion, GetCurrentVersion("dev"))
	assert.Equal(t, DevVersion, GetCurrentVersion("demo"))
}

func TestCompare(t *testing.T) {
	assert.True(t, IsVersionGreaterOrEqualThan("0.10.0", "0.9.3"))
	assert.True(t, IsVersionGreaterOrEqualThan("1.0.0", "1.0.0"))
	assert.False(t, IsVersionGreaterOrEqualThan("0.1.0-dev", "0.1.0"))

	assert.True(t, IsValid("0.1.0"))
	assert.True(t, IsValid(DevVersion))
	assert.False(t, IsValid("v0.1.0"))
	assert.False(t, IsValid("latest"))
}

func TestString(t *testing.T) {
	saved := GitCommit
	t.Cleanup(func() { GitCommit = saved })

	GitCommit = "unknown"
	assert.Equal(t, Version, String())

	GitCommit = "0123456789abcdef"
	assert.Equal(t, Version+"-01234567", String())
	assert.Contains(t, StringFull(), "Version="+Version+"-01234567")
}
