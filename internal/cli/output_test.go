package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("E005", "ledger confirmed a different digest", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E005", resp.Error.Code)
	assert.Equal(t, "ledger confirmed a different digest", resp.Error.Message)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Error("E003", "record not found", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E003]: record not found")
}

func TestOutputFormatter_SuccessTextByFormat(t *testing.T) {
	textBuf := &bytes.Buffer{}
	require.NoError(t, (&OutputFormatter{Format: "text", Writer: textBuf}).
		SuccessText("plain view", map[string]string{"k": "v"}))
	assert.Equal(t, "plain view\n", textBuf.String())

	jsonBuf := &bytes.Buffer{}
	require.NoError(t, (&OutputFormatter{Format: "json", Writer: jsonBuf}).
		SuccessText("plain view", map[string]string{"k": "v"}))
	assert.NotContains(t, jsonBuf.String(), "plain view")
	assert.Contains(t, jsonBuf.String(), `"status":"ok"`)
}

func TestOutputFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "json",
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   true,
	}

	formatter.VerboseLog("checked %d records", 3)
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "checked 3 records")
}

func TestOutputFormatter_VerboseLogSuppressed(t *testing.T) {
	out := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: out, Verbose: false}

	formatter.VerboseLog("should not appear")
	assert.Empty(t, out.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain error")))

	wrapped := WrapExitError(ExitCommandError, "outer", errors.New("inner"))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Contains(t, wrapped.Error(), "outer")
	assert.Contains(t, wrapped.Error(), "inner")
}

func TestExitErrorReported(t *testing.T) {
	rendered := &ExitError{Code: ExitFailure, Err: errors.New("already printed")}
	assert.True(t, rendered.Reported())
	assert.Equal(t, "already printed", rendered.Error())

	unrendered := NewExitError(ExitCommandError, "not printed yet")
	assert.False(t, unrendered.Reported())
}
