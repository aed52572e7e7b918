package ocpi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobResultAccumulates(t *testing.T) {
	r := NewJobResult()
	r.RecordSuccess("a")
	r.RecordFailure("b", errors.New("remote said no"))
	r.RecordSkip()
	r.RecordSuccess("c")

	assert.Equal(t, 2, r.Success)
	assert.Equal(t, 1, r.Failure)
	assert.Equal(t, 4, r.Total)
	assert.Equal(t, []string{"a", "c"}, r.ObjectIDsInSuccess)
	assert.Equal(t, []string{"b"}, r.ObjectIDsInFailure)
	assert.LessOrEqual(t, r.Success+r.Failure, r.Total)

	assert.Len(t, r.Logs, 1)
	assert.Contains(t, r.Logs[0], "remote said no")
}
