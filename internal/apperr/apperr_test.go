package apperr

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	require.Equal(t, CodeValidation, CodeOf(New(CodeValidation, "bad")))
	require.Equal(t, CodeInternal, CodeOf(errors.New("plain")))

	// Код должен находиться и через обёртки pkg/errors.
	wrapped := pkgerrors.Wrap(New(CodeNotFound, "order not found"), "load order")
	require.Equal(t, CodeNotFound, CodeOf(wrapped))
}

func TestMessageOf(t *testing.T) {
	cause := errors.New("pg down")
	err := Wrap(CodeInternal, cause, "apply status update")
	require.Equal(t, "apply status update", MessageOf(err))
	require.Contains(t, err.Error(), "pg down")
	require.ErrorIs(t, err, cause)
}
