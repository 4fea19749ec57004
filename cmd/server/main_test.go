package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCommand()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestImportThenExport(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.json")
	out := filepath.Join(dir, "out", "cellar.json")
	require.NoError(t, os.WriteFile(in, []byte(`{"version":1,"whiskeys":[
		{"id":"0190a1b2-0000-7000-8000-000000000001","name":"Talisker","country":"Scotland","age":10,"owned":true},
		{"id":"0190a1b2-0000-7000-8000-000000000002","name":"Hibiki","country":"Japan","age":17}
	]}`), 0o600))

	flags := []string{"--storage-driver", "bolt", "--data-dir", filepath.Join(dir, "data"), "--log-level", "warn"}
	require.NoError(t, run(t, append([]string{"import", in}, flags...)...))
	require.NoError(t, run(t, append([]string{"export", out}, flags...)...))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var doc struct {
		Version  int `json:"version"`
		Whiskeys []struct {
			Name string `json:"name"`
		} `json:"whiskeys"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 1, doc.Version)
	require.Len(t, doc.Whiskeys, 2)
	assert.Equal(t, "Talisker", doc.Whiskeys[0].Name)
	assert.Equal(t, "Hibiki", doc.Whiskeys[1].Name)
}

func TestUnknownDriver(t *testing.T) {
	err := run(t, "export", filepath.Join(t.TempDir(), "x.json"), "--storage-driver", "floppy")
	require.Error(t, err)
}

func TestExportNeedsLocation(t *testing.T) {
	require.Error(t, run(t, "export"))
}
