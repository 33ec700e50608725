package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "ipv4 drops the host octet", input: "192.168.1.47", expected: "192.168.1.0"},
		{name: "ipv4 mapped in ipv6", input: "::ffff:10.1.2.3", expected: "10.1.2.0"},
		{name: "ipv6 keeps the /48 prefix", input: "2001:db8:85a3::8a2e:370:7334", expected: "2001:db8:85a3::"},
		{name: "ipv6 loopback", input: "::1", expected: "::"},
		{name: "empty", input: "", expected: "unknown"},
		{name: "garbage", input: "not-an-ip", expected: "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AnonymizeIP(tt.input))
		})
	}
}

func TestMaskCardUID(t *testing.T) {
	assert.Equal(t, "**********E5F6", MaskCardUID("04A1B2C3D4E5F6"))
	assert.Equal(t, "****", MaskCardUID("ABCD"))
	assert.Equal(t, "", MaskCardUID(""))
}
