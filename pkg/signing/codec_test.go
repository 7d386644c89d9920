package signing

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_SignVerifyRoundTrip(t *testing.T) {
	codec := NewCodec("hunter2")

	payload := []byte("bm9uY2U9YWJjMTIz")
	signature := codec.Sign(payload)

	assert.Regexp(t, "^[0-9a-f]{64}$", signature)
	assert.True(t, codec.Verify(signature, payload))
}

func TestCodec_SignIsDeterministic(t *testing.T) {
	codec := NewCodec("hunter2")

	payload := []byte("the same payload")
	assert.Equal(t, codec.Sign(payload), codec.Sign(payload))
}

func TestCodec_VerifyRejectsMutatedSignature(t *testing.T) {
	codec := NewCodec("hunter2")

	payload := []byte("payload")
	signature := codec.Sign(payload)

	// Flip one nibble at every position; all mutations must fail.
	for i := range signature {
		mutated := []byte(signature)
		if mutated[i] == 'a' {
			mutated[i] = 'b'
		} else {
			mutated[i] = 'a'
		}
		if string(mutated) == signature {
			continue
		}
		assert.False(t, codec.Verify(string(mutated), payload), "mutation at index %d accepted", i)
	}
}

func TestCodec_VerifyRejectsWrongSecret(t *testing.T) {
	payload := []byte("payload")
	signature := NewCodec("secret-a").Sign(payload)

	assert.False(t, NewCodec("secret-b").Verify(signature, payload))
}

func TestCodec_VerifyMalformedHex(t *testing.T) {
	codec := NewCodec("hunter2")

	tests := []struct {
		name      string
		signature string
	}{
		{name: "not hex", signature: "zzzz"},
		{name: "odd length", signature: "abc"},
		{name: "empty", signature: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, codec.Verify(tt.signature, []byte("payload")))
		})
	}
}

func TestEncodeDecodePayloadRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		fields url.Values
	}{
		{
			name:   "single field",
			fields: url.Values{"nonce": {"abc123"}},
		},
		{
			name: "sso exchange fields",
			fields: url.Values{
				"nonce":          {"cb68251eefb5211e58c00ff1395f0c0b"},
				"return_sso_url": {"https://forum.example.com/session/sso_login"},
			},
		},
		{
			name:   "values needing escaping",
			fields: url.Values{"name": {"A B&C=D"}, "email": {"member+tag@example.com"}},
		},
		{
			name:   "empty map",
			fields: url.Values{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := DecodePayload(EncodePayload(tt.fields))
			require.NoError(t, err)
			assert.Equal(t, tt.fields, decoded)
		})
	}
}

func TestDecodePayload_InvalidBase64(t *testing.T) {
	_, err := DecodePayload("not-valid-base64!!!")
	assert.Error(t, err)
}

func TestDecodePayload_MalformedQuery(t *testing.T) {
	// base64 of "a;b=1"; semicolons are rejected by url.ParseQuery.
	_, err := DecodePayload("YTtiPTE=")
	assert.Error(t, err)
}
