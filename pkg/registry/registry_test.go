package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oscarflow/pkg/contract"
	"oscarflow/pkg/oscar"
)

// TestStrictUnmarshal 验证严格解码逻辑。
func TestStrictUnmarshal(t *testing.T) {
	type opt struct {
		A int `json:"a"`
	}
	var o opt
	require.NoError(t, strictUnmarshal(nil, &o))
	require.NoError(t, strictUnmarshal(json.RawMessage("null"), &o))
	assert.Equal(t, 0, o.A)
	require.NoError(t, strictUnmarshal(json.RawMessage(`{"a":1}`), &o))
	assert.Equal(t, 1, o.A)
	err := strictUnmarshal(json.RawMessage(`{"a":1,"b":2}`), &o)
	assert.ErrorIs(t, err, contract.ErrConfig)
}

// TestFactories 遍历注册表入口：空选项可用，未知字段报配置错误。
func TestFactories(t *testing.T) {
	for name, f := range Reader {
		_, err := f(json.RawMessage(`{}`))
		assert.NoError(t, err, name)
		_, err = f(json.RawMessage(`{"x":1}`))
		assert.ErrorIs(t, err, contract.ErrConfig, name)
	}
	for name, f := range Encoder {
		_, err := f(nil)
		assert.NoError(t, err, name)
		_, err = f(json.RawMessage(`{"x":1}`))
		assert.ErrorIs(t, err, contract.ErrConfig, name)
	}
	for name, f := range Decoder {
		_, err := f(nil)
		assert.NoError(t, err, name)
	}
	for name, f := range Writer {
		_, err := f(json.RawMessage(`{"backup":false}`))
		assert.NoError(t, err, name)
		_, err = f(json.RawMessage(`{"x":1}`))
		assert.ErrorIs(t, err, contract.ErrConfig, name)
	}
	for name, f := range Format {
		a, err := f()
		require.NoError(t, err, name)
		assert.Equal(t, name, a.Format().String())
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"json", "yoda"}, Names(Encoder))
	assert.Equal(t, []string{oscar.NameBHACQGP, oscar.NameSMASH}, Names(Format))
}
