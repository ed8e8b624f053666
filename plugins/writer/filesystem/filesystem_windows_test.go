//go:build windows

package filesystem

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"oscarflow/pkg/contract"
)

func TestMapPathInvalidWindows(t *testing.T) {
	w, _ := New(&Options{BaseDir: t.TempDir()})
	for _, id := range []string{"C:\\abs", "..", "."} {
		_, err := w.mapPath(contract.ArtifactID(id))
		assert.ErrorIs(t, err, contract.ErrPathInvalid, id)
	}
}
