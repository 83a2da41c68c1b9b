package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConnectionString(t *testing.T) {
	cs, err := ParseConnectionString(testConnectionString)
	require.NoError(t, err)

	assert.Equal(t, "quotes-ns", cs.Namespace)
	assert.Equal(t, "quotes-ns.servicebus.windows.net", cs.Host)
	assert.Equal(t, "listen", cs.SharedAccessKeyName)
	assert.Equal(t, "c2VjcmV0", cs.SharedAccessKey)
	assert.Equal(t, "quotes", cs.EntityPath)
	assert.Equal(t, "quotes-ns.servicebus.windows.net:9093", cs.Broker())
}

func TestParseConnectionString_KeyPaddingAndCase(t *testing.T) {
	cs, err := ParseConnectionString("endpoint=sb://ns.servicebus.windows.net/; sharedaccesskey=abc==;")
	require.NoError(t, err)
	assert.Equal(t, "ns", cs.Namespace)
	assert.Equal(t, "abc==", cs.SharedAccessKey)
	assert.Empty(t, cs.EntityPath)
}

func TestParseConnectionString_Invalid(t *testing.T) {
	for _, raw := range []string{
		"",
		"SharedAccessKeyName=a;SharedAccessKey=b",
		"Endpoint=sb://;SharedAccessKey=b",
		"Endpoint=::not a url",
	} {
		_, err := ParseConnectionString(raw)
		assert.ErrorIs(t, err, ErrInvalidConnectionString, raw)
	}
}
