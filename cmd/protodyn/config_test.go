package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protodyn.toml")
	writeFile(t, path, `
[text]
pretty = true
expand_any = false

[json]
indent = "\t"
use_proto_names = true
`)

	var c codecFlags
	flags := c.flagSet()
	require.NoError(t, flags.Parse([]string{"--text-pretty=false", "--json-enum-numbers"}))
	require.NoError(t, applyConfig(path, flags))

	// flags given on the command line win
	assert.False(t, c.text.Pretty)
	assert.True(t, c.json.UseEnumNumbers)
	// the file provides the rest
	assert.False(t, c.text.ExpandAny)
	assert.Equal(t, "\t", c.json.Indent)
	assert.True(t, c.json.UseProtoNames)
	// and anything unset keeps its default
	assert.False(t, c.json.StringifyInt64s)
	assert.False(t, c.textIn.Strict)
	assert.True(t, c.text.SkipUnknownFields)
}

func TestApplyConfigErrors(t *testing.T) {
	dir := t.TempDir()
	var c codecFlags

	err := applyConfig(filepath.Join(dir, "missing.toml"), c.flagSet())
	require.ErrorContains(t, err, "load config")

	unknown := filepath.Join(dir, "unknown.toml")
	writeFile(t, unknown, "[json]\nbogus = 1\n")
	err = applyConfig(unknown, c.flagSet())
	require.ErrorContains(t, err, "unknown settings: json.bogus")

	wrongType := filepath.Join(dir, "type.toml")
	writeFile(t, wrongType, "[text]\npretty = \"yes\"\n")
	require.Error(t, applyConfig(wrongType, c.flagSet()))

	syntax := filepath.Join(dir, "syntax.toml")
	writeFile(t, syntax, "[text\n")
	require.Error(t, applyConfig(syntax, c.flagSet()))
}

func TestConfigFile(t *testing.T) {
	schema := schemaFile(t)
	path := filepath.Join(t.TempDir(), "protodyn.toml")
	writeFile(t, path, "[json]\nuse_proto_names = true\nindent = \"  \"\n")

	res := run(t, "\n\x02u1", "convert", "--config", path, "--schema", schema, "-t", "test.v1.Account")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "{\n  \"user_id\": \"u1\",\n  \"balance\": 0\n}\n", res.stdout)

	res = run(t, "\n\x02u1", "convert", "-c", path, "--json-indent=", "--schema", schema, "-t", "test.v1.Account")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, `{"user_id":"u1","balance":0}`+"\n", res.stdout)

	// config settings for flags the command lacks are ignored
	res = run(t, "", "describe", "-c", path, "--schema", schema, "test.v1.Person")
	require.Equal(t, 0, res.code, res.stderr)
}
