package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBytes_AcceptsWellFormedPayload(t *testing.T) {
	payload := []byte(`{
		"sequence": 3,
		"services": [
			{"name": "web", "depends_on": "api", "instances": [
				{"id": "i-1", "attributes": {"az": "eu-west-1a"}}
			]},
			{"name": "api"}
		]
	}`)
	assert.NoError(t, ValidateBytes(payload))
}

func TestValidateBytes_AcceptsEmptyServices(t *testing.T) {
	assert.NoError(t, ValidateBytes([]byte(`{"services": []}`)))
}

func TestValidateBytes_RejectsMalformedPayloads(t *testing.T) {
	cases := map[string]string{
		"not JSON":            `{"services": [`,
		"missing services":    `{"sequence": 1}`,
		"empty service name":  `{"services": [{"name": ""}]}`,
		"non-string name":     `{"services": [{"name": 42}]}`,
		"negative sequence":   `{"sequence": -1, "services": []}`,
		"instance without id": `{"services": [{"name": "web", "instances": [{"attributes": {}}]}]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, ValidateBytes([]byte(payload)))
		})
	}
}

func TestDecode_NormalizesAndValidates(t *testing.T) {
	payload := []byte(`{"services": [{"name": "web"}, {"name": "api"}]}`)

	s, err := Decode(payload)
	require.NoError(t, err)
	require.Len(t, s.Services, 2)
	assert.Equal(t, "api", s.Services[0].Name)
}

func TestDecode_RejectsDuplicateServices(t *testing.T) {
	payload := []byte(`{"services": [{"name": "web"}, {"name": "web"}]}`)

	_, err := Decode(payload)
	assert.Error(t, err)
}

func TestDecode_SchemaErrorType(t *testing.T) {
	_, err := Decode([]byte(`{"sequence": 1}`))
	require.Error(t, err)

	var schemaErr *SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}
