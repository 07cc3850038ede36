package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodav/pkg/davtest"
)

// dittodav runs the CLI against srv with an isolated config directory.
func dittodav(t *testing.T, srv *davtest.Server, args ...string) (int, string, string) {
	t.Helper()

	full := []string{"--cache", "none", "--log-level", "ERROR"}
	if srv != nil {
		full = append(full, "--url", srv.URL())
	}
	full = append(full, args...)

	var stdout, stderr bytes.Buffer
	code := run(full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func isolate(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestRun_List(t *testing.T) {
	isolate(t)
	srv := davtest.NewServer(t)
	srv.AddDir("docs/archive")
	srv.AddFile("docs/b.pdf", make([]byte, 2048))
	srv.AddFile("docs/a.json", []byte("{}"))

	code, out, errOut := dittodav(t, srv, "ls", "docs")
	require.Equal(t, 0, code, errOut)

	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	require.Len(t, lines, 4)
	assert.Contains(t, string(lines[0]), "NAME")
	assert.Contains(t, string(lines[1]), "archive/")
	assert.Contains(t, string(lines[2]), "a.json")
	assert.Contains(t, string(lines[3]), "b.pdf")
	assert.Contains(t, string(lines[3]), "2.0 kB")
}

func TestRun_ListPaged(t *testing.T) {
	isolate(t)
	srv := davtest.NewServer(t)
	for _, name := range []string{"e", "a", "c", "b", "d"} {
		srv.AddFile("docs/"+name+".json", []byte("{}"))
	}

	code, out, errOut := dittodav(t, srv, "ls", "--page", "1", "--page-size", "2", "--desc", "docs")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "c.json")
	assert.Contains(t, out, "b.json")
	assert.NotContains(t, out, "e.json")
	assert.NotContains(t, out, "a.json")
}

func TestRun_ListInvalidSortField(t *testing.T) {
	isolate(t)
	srv := davtest.NewServer(t)
	srv.AddDir("docs")

	code, _, errOut := dittodav(t, srv, "ls", "--sort", "colour", "docs")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "colour")
}

func TestRun_PutCatRemove(t *testing.T) {
	isolate(t)
	srv := davtest.NewServer(t)

	local := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(local, []byte("hello"), 0o644))

	code, out, errOut := dittodav(t, srv, "put", local, "a/b/report.pdf")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Created: a/b/report.pdf")
	assert.True(t, srv.IsDir("a/b"))

	code, out, errOut = dittodav(t, srv, "put", local, "a/b/report.pdf")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Updated")

	code, out, errOut = dittodav(t, srv, "cat", "a/b/report.pdf")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "hello", out)

	code, _, errOut = dittodav(t, srv, "rm", "a/b/report.pdf")
	require.Equal(t, 0, code, errOut)
	assert.False(t, srv.Exists("a/b/report.pdf"))
}

func TestRun_StatAndMkdir(t *testing.T) {
	isolate(t)
	srv := davtest.NewServer(t)

	code, _, errOut := dittodav(t, srv, "mkdir", "x/y")
	require.Equal(t, 0, code, errOut)
	assert.True(t, srv.IsDir("x/y"))

	code, out, errOut := dittodav(t, srv, "stat", "x/y")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Kind:")
	assert.Contains(t, out, "directory")

	code, _, errOut = dittodav(t, srv, "stat", "missing.pdf")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not found")
}

func TestRun_Get(t *testing.T) {
	isolate(t)
	srv := davtest.NewServer(t)
	srv.AddFile("data.json", []byte(`{"ok":true}`))

	local := filepath.Join(t.TempDir(), "out", "data.json")
	code, _, errOut := dittodav(t, srv, "get", "data.json", local)
	require.Equal(t, 0, code, errOut)

	got, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(got))
}

func TestRun_Methods(t *testing.T) {
	isolate(t)
	srv := davtest.NewServer(t)

	code, out, errOut := dittodav(t, srv, "methods")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "PROPFIND")
	assert.Contains(t, out, "MKCOL")
}

func TestRun_UsageErrors(t *testing.T) {
	isolate(t)
	srv := davtest.NewServer(t)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no command", nil, 2},
		{"unknown command", []string{"mv"}, 2},
		{"stat without path", []string{"stat"}, 2},
		{"put with one arg", []string{"put", "x"}, 2},
		{"methods with args", []string{"methods", "x"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := dittodav(t, srv, tt.args...)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestRun_MissingURL(t *testing.T) {
	isolate(t)

	code, _, errOut := dittodav(t, nil, "ls")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "validation")
}

func TestRun_Init(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.yaml")

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"init", "-o", target}, &stdout, &stderr), stderr.String())
	assert.FileExists(t, target)

	stderr.Reset()
	assert.Equal(t, 1, run([]string{"init", "-o", target}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "already exists")

	assert.Equal(t, 0, run([]string{"init", "--force", "-o", target}, &stdout, &stderr))
}
