package purge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepError(t *testing.T) {
	cause := errors.New("fk violation")
	err := &StepError{AccountID: 7, Step: PurgingRelations, Op: "blocks", Err: cause}

	assert.Equal(t, "purge: account 7: purging_relations (blocks): fk violation", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsStepError(errors.Join(err, &BlobError{Key: "k", Err: cause})))

	err.Op = ""
	assert.Equal(t, "purge: account 7: purging_relations: fk violation", err.Error())
}

func TestBlobError(t *testing.T) {
	cause := errors.New("timeout")
	joined := errors.Join(&BlobError{Key: "a.png", Err: cause}, &BlobError{Key: "b.png", Err: cause})

	assert.True(t, IsBlobError(joined))
	assert.False(t, IsStepError(joined))
	assert.ErrorIs(t, joined, cause)
	assert.Contains(t, joined.Error(), "purge: blob a.png: timeout")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "purging_content", PurgingContent.String())
	assert.Equal(t, "purged", Purged.String())
	assert.Equal(t, "unknown", State(42).String())
}
