package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyvit/todostore"
)

// transcript runs each command line against the same store and records the
// commands with their output, the way they would look in a terminal.
func transcript(t *testing.T, global []string, steps ...[]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, args := range steps {
		fmt.Fprintf(&buf, "$ todostore %s\n", shellJoin(args))
		var stdout, stderr bytes.Buffer
		err := run(append(append([]string{}, global...), args...), &stdout, &stderr)
		buf.Write(stdout.Bytes())
		if err != nil {
			fmt.Fprintf(&buf, "error: %v\n", err)
		}
	}
	return buf.Bytes()
}

func shellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \"'") {
			a = strconv.Quote(a)
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}

func assertGolden(t *testing.T, name string, actual []byte) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, actual)
}

func boltPath(t *testing.T) []string {
	return []string{"--path", filepath.Join(t.TempDir(), "todo.db")}
}

func TestSession(t *testing.T) {
	out := transcript(t, boltPath(t),
		[]string{"add", "buy milk", "--id", "a"},
		[]string{"add", "walk dog", "--id", "b", "--completed"},
		[]string{"add", "call mom", "--id", "c"},
		[]string{"list"},
		[]string{"list", "--completed"},
		[]string{"list", "--completed=false"},
		[]string{"done", "a"},
		[]string{"rename", "b", "walk the dog"},
		[]string{"undone", "b"},
		[]string{"get", "a"},
		[]string{"rm", "c"},
		[]string{"rm", "c"},
		[]string{"get", "zzz"},
		[]string{"add", "again", "--id", "a"},
		[]string{"add", "", "--id", "d"},
		[]string{"done", "x:y"},
		[]string{"list", "-o", "json"},
		[]string{"check"},
	)
	assertGolden(t, "session", out)
}

func TestDump(t *testing.T) {
	out := transcript(t, boltPath(t),
		[]string{"add", "buy milk", "--id", "a"},
		[]string{"add", "walk dog", "--id", "b", "--completed"},
		[]string{"dump"},
	)
	assertGolden(t, "dump", out)
}

func TestRepair(t *testing.T) {
	global := boltPath(t)
	out := transcript(t, global,
		[]string{"add", "buy milk", "--id", "a"},
		[]string{"add", "walk dog", "--id", "b", "--completed"},
	)

	kv, err := todostore.OpenBolt(global[1], todostore.BoltOptions{})
	require.NoError(t, err)
	require.NoError(t, kv.Write(context.Background(), new(todostore.Batch).
		Put([]byte("todo-completed-true:ghost"), []byte("ghost")).
		Put([]byte("todo-completed-true:a"), []byte("a")).
		Delete([]byte("todo-completed-true:b"))))
	require.NoError(t, kv.Close())

	out = append(out, transcript(t, global,
		[]string{"check"},
		[]string{"reindex"},
		[]string{"check"},
		[]string{"list", "--completed"},
	)...)
	assertGolden(t, "repair", out)
}

func TestBackends(t *testing.T) {
	for _, backend := range []string{"bolt", "pebble"} {
		t.Run(backend, func(t *testing.T) {
			global := []string{"--backend", backend, "--path", filepath.Join(t.TempDir(), "todo")}
			out := transcript(t, global,
				[]string{"add", "buy milk", "--id", "a"},
				[]string{"done", "a"},
				[]string{"list", "--completed"},
			)
			assert.Equal(t, "$ todostore add \"buy milk\" --id a\nadded a\n"+
				"$ todostore done a\n[x] a buy milk\n"+
				"$ todostore list --completed\n[x] a buy milk\n", string(out))
		})
	}
}

func TestJSONFormatFlag(t *testing.T) {
	global := append(boltPath(t), "--format", "json")
	var stdout bytes.Buffer
	require.NoError(t, run(append(global, "add", "x", "--id", "a"), &stdout, &stdout))

	kv, err := todostore.OpenBolt(global[1], todostore.BoltOptions{})
	require.NoError(t, err)
	defer kv.Close()
	raw, err := kv.Get(context.Background(), []byte("todo:a"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a","title":"x","completed":false}`, string(raw))
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "todostore.yaml")
	yaml := fmt.Sprintf("backend: pebble\npath: %s\nmax_retries: 5\n", filepath.Join(dir, "data"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o644))

	cfg, err := LoadConfig(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, Config{Backend: "pebble", Path: filepath.Join(dir, "data"), Format: "envelope", MaxRetries: 5}, cfg)

	var stdout bytes.Buffer
	require.NoError(t, run([]string{"--config", cfgPath, "add", "x", "--id", "a"}, &stdout, &stdout))
	stdout.Reset()
	require.NoError(t, run([]string{"--config", cfgPath, "list"}, &stdout, &stdout))
	assert.Equal(t, "[ ] a x\n", stdout.String())

	// flags win over the file
	stdout.Reset()
	require.NoError(t, run([]string{"--config", cfgPath, "--backend", "mem", "list"}, &stdout, &stdout))
	assert.Equal(t, "", stdout.String())
}

func TestConfigFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"unknown key": "backend: bolt\nbogus: 1\n",
		"bad backend": "backend: leveldb\n",
		"bad format":  "format: xml\n",
		"no path":     "backend: bolt\npath: \"\"\n",
	} {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".yaml")
			require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
			_, err := LoadConfig(p)
			require.Error(t, err)
		})
	}

	p := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(p, nil, 0o644))
	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(&RootOptions{})
	require.NotNil(t, cmd)
	assert.Equal(t, "todostore", cmd.Use)

	for _, name := range []string{"add", "list", "get", "done", "undone", "rename", "rm", "check", "reindex", "dump"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	outputFlag := cmd.PersistentFlags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
	assert.Equal(t, "text", outputFlag.DefValue)
}

func TestInvalidOutput(t *testing.T) {
	var stdout bytes.Buffer
	err := run([]string{"--backend", "mem", "-o", "xml", "list"}, &stdout, &stdout)
	require.ErrorContains(t, err, `invalid output "xml"`)
}
