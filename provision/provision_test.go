package provision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIperfVersion(t *testing.T) {
	v, err := ParseIperfVersion([]byte("iperf 3.1.7 (cJSON 1.5.2)\nLinux ip-10-0-1-23 4.14.296-222.539.amzn2.x86_64\n"))
	require.NoError(t, err)
	assert.Equal(t, "3.1.7", v.String())
}

func TestParseIperfVersionBare(t *testing.T) {
	v, err := ParseIperfVersion([]byte("iperf 3.9"))
	require.NoError(t, err)
	assert.Equal(t, "3.9.0", v.Core().String())
}

func TestParseIperfVersionGarbage(t *testing.T) {
	_, err := ParseIperfVersion([]byte("command not found"))
	assert.Error(t, err)

	_, err = ParseIperfVersion([]byte("iperf banana"))
	assert.Error(t, err)
}
