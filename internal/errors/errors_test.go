package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"delayrisk/domain/core"
)

func TestWrap_PreservesCode(t *testing.T) {
	base := ConfigInvalid("bad seed")
	wrapped := Wrap(base, "loading configuration")

	assert.Equal(t, CodeConfigInvalid, GetCode(wrapped))
	assert.Equal(t, "loading configuration: bad seed", wrapped.Error())
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{"schema", core.NewSchemaError([]string{"duplicate"}), CodeConfigInvalid},
		{"hyperparameters", fmt.Errorf("fit: %w", core.ErrInvalidHyperparameters), CodeConfigInvalid},
		{"missing column", core.NewMissingColumnsError("feature", []string{"density"}), CodeDataContract},
		{"undefined metric", core.ErrUndefinedMetric, CodeDataContract},
		{"bundle exists", fmt.Errorf("write: %w", core.ErrArtifactExists), CodeIOError},
		{"other", stderrors.New("boom"), CodeInternalError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			classified := Classify(tc.err)
			assert.Equal(t, tc.code, GetCode(classified))
			assert.ErrorIs(t, classified, tc.err, "classification must keep the cause chain")
		})
	}
}

func TestClassify_KeepsExistingCode(t *testing.T) {
	err := Wrap(InvalidInput("not an object"), "decode input")
	assert.Equal(t, CodeInvalidInput, CodeOf(err))
	assert.Equal(t, "", CodeOf(nil))
	assert.Nil(t, Classify(nil))
}

func TestGetCode_WrappedAppError(t *testing.T) {
	err := fmt.Errorf("outer: %w", DataContract("extra keys"))
	assert.True(t, IsAppError(err))
	assert.Equal(t, CodeDataContract, GetCode(err))
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("plain")))
}
