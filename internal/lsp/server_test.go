package lsp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"twig-cs-formatter/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type formatterFunc func(ctx context.Context, req pipeline.Request) (string, error)

func (f formatterFunc) Format(ctx context.Context, req pipeline.Request) (string, error) {
	return f(ctx, req)
}

func upper(_ context.Context, req pipeline.Request) (string, error) {
	return strings.ToUpper(req.Text), nil
}

func frame(t *testing.T, messages ...map[string]any) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	for _, m := range messages {
		m["jsonrpc"] = "2.0"
		payload, err := json.Marshal(m)
		require.NoError(t, err)
		require.NoError(t, writeMessage(&buf, payload))
	}
	return &buf
}

func readAll(t *testing.T, out *bytes.Buffer) []rpcMessage {
	t.Helper()
	reader := bufio.NewReader(bytes.NewReader(out.Bytes()))
	var msgs []rpcMessage
	for {
		payload, err := readMessage(reader)
		if err != nil {
			break
		}
		var msg rpcMessage
		require.NoError(t, json.Unmarshal(payload, &msg))
		msgs = append(msgs, msg)
	}
	return msgs
}

func didOpen(uri, languageID, text string) map[string]any {
	return map[string]any{
		"method": "textDocument/didOpen",
		"params": map[string]any{
			"textDocument": map[string]any{"uri": uri, "languageId": languageID, "version": 1, "text": text},
		},
	}
}

func TestInitializeAdvertisesFormatting(t *testing.T) {
	in := frame(t, map[string]any{
		"id":     1,
		"method": "initialize",
		"params": map[string]any{"rootUri": "file:///ws"},
	})
	var out bytes.Buffer
	server := NewServer(in, &out, formatterFunc(upper))

	require.NoError(t, server.Run(context.Background()))

	msgs := readAll(t, &out)
	require.Len(t, msgs, 1)
	var result initializeResult
	require.NoError(t, json.Unmarshal(msgs[0].Result, &result))
	assert.True(t, result.Capabilities.DocumentFormattingProvider)
	assert.Equal(t, []string{FormatCommand}, result.Capabilities.ExecuteCommandProvider.Commands)
	assert.Equal(t, filepath.FromSlash("/ws"), server.workspaceRoot)
}

func TestFormattingReturnsWholeDocumentEdit(t *testing.T) {
	uri := "file:///ws/a.twig"
	var seen pipeline.Request
	formatter := formatterFunc(func(ctx context.Context, req pipeline.Request) (string, error) {
		seen = req
		return upper(ctx, req)
	})

	in := frame(t,
		map[string]any{"id": 1, "method": "initialize", "params": map[string]any{"rootUri": "file:///ws"}},
		didOpen(uri, "twig", "ab\ncd"),
		map[string]any{
			"method": "textDocument/didChange",
			"params": map[string]any{
				"textDocument": map[string]any{"uri": uri, "version": 2},
				"contentChanges": []map[string]any{{
					"range": map[string]any{
						"start": map[string]any{"line": 1, "character": 2},
						"end":   map[string]any{"line": 1, "character": 2},
					},
					"text": "e",
				}},
			},
		},
		map[string]any{"id": 2, "method": "textDocument/formatting", "params": map[string]any{
			"textDocument": map[string]any{"uri": uri},
		}},
	)
	var out bytes.Buffer
	require.NoError(t, NewServer(in, &out, formatter).Run(context.Background()))

	msgs := readAll(t, &out)
	require.Len(t, msgs, 2)
	var edits []pipeline.TextEdit
	require.NoError(t, json.Unmarshal(msgs[1].Result, &edits))
	require.Len(t, edits, 1)
	assert.Equal(t, "AB\nCDE", edits[0].NewText)
	assert.Equal(t, pipeline.Position{Line: 1, Character: 3}, edits[0].Range.End)
	assert.Equal(t, filepath.FromSlash("/ws/a.twig"), seen.Path)
	assert.Equal(t, filepath.FromSlash("/ws"), seen.WorkspaceRoot)
}

func TestFormattingErrorShowsMessage(t *testing.T) {
	uri := "file:///ws/a.twig"
	formatter := formatterFunc(func(context.Context, pipeline.Request) (string, error) {
		return "", errors.New("prettier: SyntaxError")
	})
	in := frame(t,
		didOpen(uri, "twig", "{% if %}"),
		map[string]any{"id": 7, "method": "textDocument/formatting", "params": map[string]any{
			"textDocument": map[string]any{"uri": uri},
		}},
	)
	var out bytes.Buffer
	require.NoError(t, NewServer(in, &out, formatter).Run(context.Background()))

	msgs := readAll(t, &out)
	require.Len(t, msgs, 2)
	assert.Equal(t, "window/showMessage", msgs[0].Method)
	var shown showMessageParams
	require.NoError(t, json.Unmarshal(msgs[0].Params, &shown))
	assert.Equal(t, "Error formatting Twig file: prettier: SyntaxError", shown.Message)
	assert.JSONEq(t, `[]`, string(msgs[1].Result))
}

func TestExecuteCommandAppliesEdit(t *testing.T) {
	uri := "untitled:Untitled-1"
	in := frame(t,
		didOpen(uri, "twig", "x"),
		map[string]any{"id": 3, "method": "workspace/executeCommand", "params": map[string]any{
			"command": FormatCommand,
		}},
	)
	var out bytes.Buffer
	require.NoError(t, NewServer(in, &out, formatterFunc(upper)).Run(context.Background()))

	msgs := readAll(t, &out)
	require.Len(t, msgs, 2)
	assert.Equal(t, "workspace/applyEdit", msgs[0].Method)
	var params applyWorkspaceEditParams
	require.NoError(t, json.Unmarshal(msgs[0].Params, &params))
	require.Len(t, params.Edit.Changes[uri], 1)
	assert.Equal(t, "X", params.Edit.Changes[uri][0].NewText)
	assert.Equal(t, "3", string(msgs[1].ID))
}

func TestExecuteCommandIgnoresOtherLanguages(t *testing.T) {
	uri := "file:///ws/a.html"
	calls := 0
	formatter := formatterFunc(func(ctx context.Context, req pipeline.Request) (string, error) {
		calls++
		return upper(ctx, req)
	})
	in := frame(t,
		didOpen(uri, "html", "x"),
		map[string]any{"id": 1, "method": "workspace/executeCommand", "params": map[string]any{
			"command": FormatCommand, "arguments": []string{uri},
		}},
	)
	var out bytes.Buffer
	require.NoError(t, NewServer(in, &out, formatter).Run(context.Background()))

	msgs := readAll(t, &out)
	require.Len(t, msgs, 1)
	assert.Equal(t, "null", string(msgs[0].Result))
	assert.Zero(t, calls)
}

func TestFormattingReadsUnopenedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.twig")
	require.NoError(t, os.WriteFile(path, []byte("on disk"), 0o644))

	in := frame(t, map[string]any{"id": 1, "method": "textDocument/formatting", "params": map[string]any{
		"textDocument": map[string]any{"uri": "file://" + filepath.ToSlash(path)},
	}})
	var out bytes.Buffer
	require.NoError(t, NewServer(in, &out, formatterFunc(upper)).Run(context.Background()))

	msgs := readAll(t, &out)
	require.Len(t, msgs, 1)
	var edits []pipeline.TextEdit
	require.NoError(t, json.Unmarshal(msgs[0].Result, &edits))
	require.Len(t, edits, 1)
	assert.Equal(t, "ON DISK", edits[0].NewText)
}

func TestMalformedNotificationKeepsServing(t *testing.T) {
	var buf bytes.Buffer
	for _, payload := range []string{
		`{"jsonrpc":"2.0","method":"textDocument/didOpen","params":{"textDocument":"oops"}}`,
		`{"jsonrpc":"2.0","method":"textDocument/didChange","params":[1]}`,
		`{"jsonrpc":"2.0","method":"textDocument/didClose","params":{"textDocument":{"uri":7}}}`,
	} {
		require.NoError(t, writeMessage(&buf, []byte(payload)))
	}
	in := frame(t, map[string]any{"id": 4, "method": "shutdown"})
	buf.Write(in.Bytes())

	var out bytes.Buffer
	require.NoError(t, NewServer(&buf, &out, formatterFunc(upper)).Run(context.Background()))

	msgs := readAll(t, &out)
	require.Len(t, msgs, 1)
	assert.Equal(t, "4", string(msgs[0].ID))
}

func TestFormattingUntitledUsesWorkspaceRoot(t *testing.T) {
	uri := "untitled:Untitled-2"
	var seen pipeline.Request
	formatter := formatterFunc(func(ctx context.Context, req pipeline.Request) (string, error) {
		seen = req
		return upper(ctx, req)
	})
	in := frame(t,
		map[string]any{"id": 1, "method": "initialize", "params": map[string]any{"rootUri": "file:///ws"}},
		didOpen(uri, "twig", "x"),
		map[string]any{"id": 2, "method": "textDocument/formatting", "params": map[string]any{
			"textDocument": map[string]any{"uri": uri},
		}},
	)
	var out bytes.Buffer
	require.NoError(t, NewServer(in, &out, formatter).Run(context.Background()))

	assert.Empty(t, seen.Path)
	assert.Equal(t, filepath.FromSlash("/ws"), seen.WorkspaceRoot)
}

func TestShutdownAndExit(t *testing.T) {
	in := frame(t,
		map[string]any{"id": 1, "method": "shutdown"},
		map[string]any{"method": "exit"},
	)
	var out bytes.Buffer
	err := NewServer(in, &out, formatterFunc(upper)).Run(context.Background())
	assert.ErrorIs(t, err, ErrExit)

	in = frame(t, map[string]any{"method": "exit"})
	err = NewServer(in, &out, formatterFunc(upper)).Run(context.Background())
	assert.ErrorIs(t, err, ErrExitWithoutShutdown)
}

func TestUnknownRequest(t *testing.T) {
	in := frame(t, map[string]any{"id": 9, "method": "textDocument/hover"})
	var out bytes.Buffer
	require.NoError(t, NewServer(in, &out, formatterFunc(upper)).Run(context.Background()))

	msgs := readAll(t, &out)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Error)
	assert.Equal(t, codeMethodNotFound, msgs[0].Error.Code)
}
