package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetKindRoundTrip(t *testing.T) {
	base := errors.New("boom")
	wrapped := fmt.Errorf("layer: %w", Validation(base))

	assert.Equal(t, KindValidation, GetKind(wrapped))
	assert.True(t, errors.Is(wrapped, base))
}

func TestGetKindDefaultsToStorage(t *testing.T) {
	assert.Equal(t, KindStorage, GetKind(errors.New("untagged")))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(KindNotFound, nil))
}
