package rawstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualJSONIgnoresKeyOrder(t *testing.T) {
	a := []byte(`{"id": 1, "nome": "Loja", "endereco": {"uf": "SP", "cep": "01310-100"}}`)
	b := []byte(`{"endereco": {"cep": "01310-100", "uf": "SP"}, "nome": "Loja", "id": 1}`)

	equal, err := EqualJSON(a, b)
	require.NoError(t, err)
	assert.True(t, equal)
}

func TestEqualJSONIgnoresFormatting(t *testing.T) {
	a := []byte(`{"id":1,"tags":["a","b"]}`)
	b := []byte("{\n  \"id\": 1,\n  \"tags\": [\"a\", \"b\"]\n}")

	equal, err := EqualJSON(a, b)
	require.NoError(t, err)
	assert.True(t, equal)
}

func TestEqualJSONDetectsValueChange(t *testing.T) {
	a := []byte(`{"id":1,"total":10.5}`)
	b := []byte(`{"id":1,"total":10.6}`)

	equal, err := EqualJSON(a, b)
	require.NoError(t, err)
	assert.False(t, equal)
}

func TestEqualJSONArrayOrderMatters(t *testing.T) {
	a := []byte(`{"itens":[{"id":1},{"id":2}]}`)
	b := []byte(`{"itens":[{"id":2},{"id":1}]}`)

	equal, err := EqualJSON(a, b)
	require.NoError(t, err)
	assert.False(t, equal, "array element order is meaningful")
}

func TestEqualJSONBrokenDocumentIsAnError(t *testing.T) {
	_, err := EqualJSON([]byte(`{"id":`), []byte(`{"id":1}`))
	require.Error(t, err)

	_, err = EqualJSON([]byte(`{"id":1}`), []byte(`not json`))
	require.Error(t, err)
}
