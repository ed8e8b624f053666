//go:build !windows

package filesystem

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"oscarflow/pkg/contract"
)

func TestMapPathInvalidUnix(t *testing.T) {
	w, _ := New(&Options{BaseDir: t.TempDir()})
	for _, id := range []string{"/abs", "..", "."} {
		_, err := w.mapPath(contract.ArtifactID(id))
		assert.ErrorIs(t, err, contract.ErrPathInvalid, id)
	}
	// 无根目录时绝对路径合法
	w, _ = New(nil)
	p, err := w.mapPath("/tmp/x/../out.json")
	assert.NoError(t, err)
	assert.Equal(t, "/tmp/out.json", p)
}
