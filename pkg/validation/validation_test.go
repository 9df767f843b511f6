package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDeviceID(t *testing.T) {
	assert.NoError(t, ValidateDeviceID("pixel-7_cam.01"))
	assert.NoError(t, ValidateDeviceID("a"))

	assert.Error(t, ValidateDeviceID(""))
	assert.Error(t, ValidateDeviceID("   "))
	assert.Error(t, ValidateDeviceID("has spaces"))
	assert.Error(t, ValidateDeviceID("semi;colon"))

	long := make([]byte, 129)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, ValidateDeviceID(string(long)))
}

func TestValidateDeviceName(t *testing.T) {
	assert.NoError(t, ValidateDeviceName("Living Room Cam"))
	assert.Error(t, ValidateDeviceName(""))
	assert.Error(t, ValidateDeviceName("  "))
}

func TestValidateIPAddress(t *testing.T) {
	assert.NoError(t, ValidateIPAddress("192.168.1.42"))
	assert.NoError(t, ValidateIPAddress("fe80::1"))

	assert.Error(t, ValidateIPAddress(""))
	assert.Error(t, ValidateIPAddress("999.1.1.1"))
	assert.Error(t, ValidateIPAddress("not-an-ip"))
}

func TestValidatePort(t *testing.T) {
	assert.NoError(t, ValidatePort("1"))
	assert.NoError(t, ValidatePort("4747"))
	assert.NoError(t, ValidatePort("65535"))

	assert.Error(t, ValidatePort(""))
	assert.Error(t, ValidatePort("0"))
	assert.Error(t, ValidatePort("65536"))
	assert.Error(t, ValidatePort("http"))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Phone Cam", SanitizeString("  Phone Cam \n"))
	assert.Equal(t, "ab", SanitizeString("a\x00\x1bb"))
	assert.Equal(t, "", SanitizeString("\t\r\n"))
}
