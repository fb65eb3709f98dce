package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
windows:
  - {name: IP configuration, command: ipconfig /all, category: network, description: Show adapters.}
  - {name: Current user, command: whoami, category: users, description: Show the signed-in user.}
unix:
  - {name: Disk usage, command: df -h, category: disk, description: Show mounted file systems.}
  - {name: Host name, command: hostname, category: network, description: Show the computer name.}
  - {name: Current user, command: whoami, category: users, description: Show the signed-in user.}
`

func TestParseCatalog(t *testing.T) {
	win, err := ParseCatalog([]byte(sampleCatalog), "windows")
	require.NoError(t, err)
	assert.Len(t, win.Entries(), 2)

	unix, err := ParseCatalog([]byte(sampleCatalog), "linux")
	require.NoError(t, err)
	assert.Len(t, unix.Entries(), 3)

	_, err = ParseCatalog([]byte("unix: [{name: broken}]"), "linux")
	assert.Error(t, err, "entries need a command")

	_, err = ParseCatalog([]byte("unix: {"), "linux")
	assert.Error(t, err)
}

func TestCatalog_Query(t *testing.T) {
	c, err := ParseCatalog([]byte(sampleCatalog), "linux")
	require.NoError(t, err)

	assert.Equal(t, []string{"disk", "network", "users"}, c.Categories())

	assert.Len(t, c.Filter("", ""), 3)
	assert.Len(t, c.Filter(AllCategories, ""), 3)
	assert.Len(t, c.Filter("NETWORK", ""), 1)
	assert.Empty(t, c.Filter("network", "user"))

	got := c.Filter("all", "SIGNED")
	require.Len(t, got, 1)
	assert.Equal(t, "whoami", got[0].Command)

	got = c.Filter("", "df")
	require.Len(t, got, 1)
	assert.Equal(t, "Disk usage", got[0].Name)

	e, ok := c.Lookup("host NAME")
	require.True(t, ok)
	assert.Equal(t, "hostname", e.Command)

	_, ok = c.Lookup("nope")
	assert.False(t, ok)
}

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	assert.NotEmpty(t, c.Entries())
	assert.Contains(t, c.Categories(), "network")

	win, err := ParseCatalog(builtinCatalog, "windows")
	require.NoError(t, err)
	for _, cat := range []string{"system", "network", "disk", "security", "services", "drivers", "hardware", "logs", "users", "files", "other"} {
		assert.NotEmpty(t, win.Filter(cat, ""), cat)
	}
}
