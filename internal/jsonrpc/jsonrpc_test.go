package jsonrpc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Classification(t *testing.T) {
	tests := []struct {
		name           string
		line           string
		isRequest      bool
		isNotification bool
	}{
		{
			name:      "request has method and id",
			line:      `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`,
			isRequest: true,
		},
		{
			name:           "notification has method and no id",
			line:           `{"jsonrpc":"2.0","method":"notifications/initialized"}`,
			isNotification: true,
		},
		{
			name:           "response shape has id and no method",
			line:           `{"jsonrpc":"2.0","id":7,"result":{}}`,
			isRequest:      false,
			isNotification: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Decode([]byte(tt.line))
			require.NoError(t, err)
			assert.Equal(t, tt.isRequest, req.IsRequest())
			if tt.isNotification {
				assert.True(t, req.IsNotification())
				assert.NotEmpty(t, req.Method)
			}
		})
	}
}

func TestDecode_MalformedLine(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	require.Error(t, err)
}

func TestEncode_AppendsNewline(t *testing.T) {
	data, err := Encode(NewResponse(json.RawMessage(`1`), map[string]any{"ok": true}))
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, byte('\n'), data[len(data)-1])
}

func TestNewErrorResponse_CarriesCode(t *testing.T) {
	resp := NewErrorResponse(json.RawMessage(`"abc"`), NewMethodNotFound("nope"))
	data, err := Encode(resp)
	require.NoError(t, err)

	var decoded struct {
		JSONRPC string `json:"jsonrpc"`
		ID      string `json:"id"`
		Error   *Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "2.0", decoded.JSONRPC)
	assert.Equal(t, "abc", decoded.ID)
	require.NotNil(t, decoded.Error)
	assert.Equal(t, CodeMethodNotFound, decoded.Error.Code)
}

func TestError_IsComparesByCode(t *testing.T) {
	err := NewInvalidParams("missing agentName")
	assert.True(t, errors.Is(err, &Error{Code: CodeInvalidParams}))
	assert.False(t, errors.Is(err, &Error{Code: CodeParseError}))
}
