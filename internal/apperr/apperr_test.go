package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindNotFound, KindOf(ErrNotFound))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("get: %w", ErrNotFound)))
	assert.Equal(t, KindStorage, KindOf(errors.New("boom")))
}

func TestWrappedSentinelMatches(t *testing.T) {
	wrapped := Wrap(KindConcurrentModification, ErrConcurrentModification.Message, errors.New("55P03"))
	assert.ErrorIs(t, wrapped, ErrConcurrentModification)
	assert.NotErrorIs(t, wrapped, ErrNotFound)
}

func TestStoragePreservesClassified(t *testing.T) {
	assert.Nil(t, Storage("op", nil))
	assert.Same(t, ErrForbidden, Storage("op", ErrForbidden))

	err := Storage("insert request", errors.New("conn refused"))
	assert.Equal(t, KindStorage, KindOf(err))
	assert.Contains(t, err.Error(), "insert request")
}
