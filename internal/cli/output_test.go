package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filterx/internal/config"
	"github.com/roach88/filterx/internal/join"
	"github.com/roach88/filterx/internal/source"
	"github.com/roach88/filterx/internal/stream"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]int{"groups_emitted": 3})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(config.ErrCodeInvalidKey, "no key columns", map[string]string{"field": "a.csv"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, config.ErrCodeInvalidKey, resp.Error.Code)
	assert.Equal(t, "no key columns", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error(ErrCodeInput, "open b.csv: no such file", "b.csv"))
			assert.Contains(t, buf.String(), "Error [INPUT_ERROR]")
			assert.Contains(t, buf.String(), "open b.csv")
			assert.Equal(t, tt.wantDetails, bytes.Contains(buf.Bytes(), []byte("Details:")))
		})
	}
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("resolved %d streams", 2)
	assert.Empty(t, out.String())
	assert.Equal(t, "resolved 2 streams\n", errOut.String())

	formatter.Verbose = false
	formatter.VerboseLog("dropped")
	assert.NotContains(t, errOut.String(), "dropped")
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("boom"), ExitFailure},
		{"exit error", NewExitError(ExitCommandError, "bad"), ExitCommandError},
		{"wrapped exit error", fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "bad", errors.New("inner"))), ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantExit int
		wantCode string
	}{
		{
			name:     "config error",
			err:      &config.Error{Code: config.ErrCodeMissingGroup, Field: "a.csv", Message: "group 2 is not defined"},
			wantExit: ExitCommandError,
			wantCode: config.ErrCodeMissingGroup,
		},
		{
			name:     "input error",
			err:      &source.InputError{Path: "a.csv", Err: errors.New("permission denied")},
			wantExit: ExitCommandError,
			wantCode: ErrCodeInput,
		},
		{
			name:     "empty anchor",
			err:      &source.InputError{Path: "a.csv", Err: join.ErrAnchorEmpty},
			wantExit: ExitCommandError,
			wantCode: ErrCodeInput,
		},
		{
			name:     "invalid stream config",
			err:      fmt.Errorf("%w: a.csv: no key columns", stream.ErrInvalidConfig),
			wantExit: ExitCommandError,
			wantCode: ErrCodeRuntime,
		},
		{
			name:     "invalid options",
			err:      fmt.Errorf("%w: limit -1 is negative", join.ErrInvalidOptions),
			wantExit: ExitCommandError,
			wantCode: ErrCodeRuntime,
		},
		{
			name:     "write failure",
			err:      errors.New("write /dev/full: no space left on device"),
			wantExit: ExitFailure,
			wantCode: ErrCodeRuntime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("join failed", tt.err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.ErrorIs(t, err, tt.err)
			assert.Contains(t, err.Error(), "join failed: ")
			assert.Equal(t, tt.wantCode, errorCode(tt.err))
		})
	}
}
