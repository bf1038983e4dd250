package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
)

// fileConfig is the layout of the --config file. Every setting supplies the
// default for the codec flag of the same meaning, for example:
//
//	[text]
//	pretty = true
//
//	[json]
//	indent = "  "
//	use_proto_names = true
type fileConfig struct {
	Text struct {
		Pretty            bool `toml:"pretty"`
		ExpandAny         bool `toml:"expand_any"`
		SkipUnknownFields bool `toml:"skip_unknown_fields"`
		Strict            bool `toml:"strict"`
	} `toml:"text"`
	JSON struct {
		Indent                string `toml:"indent"`
		UseProtoNames         bool   `toml:"use_proto_names"`
		UseEnumNumbers        bool   `toml:"use_enum_numbers"`
		StringifyInt64s       bool   `toml:"stringify_int64s"`
		SkipDefaultFields     bool   `toml:"skip_default_fields"`
		DisallowUnknownFields bool   `toml:"disallow_unknown_fields"`
	} `toml:"json"`
}

type setting struct {
	key   string
	flag  string
	value any
}

func (c *fileConfig) settings() []setting {
	return []setting{
		{"text.pretty", "text-pretty", c.Text.Pretty},
		{"text.expand_any", "text-expand-any", c.Text.ExpandAny},
		{"text.skip_unknown_fields", "text-skip-unknown", c.Text.SkipUnknownFields},
		{"text.strict", "text-strict", c.Text.Strict},
		{"json.indent", "json-indent", c.JSON.Indent},
		{"json.use_proto_names", "json-proto-names", c.JSON.UseProtoNames},
		{"json.use_enum_numbers", "json-enum-numbers", c.JSON.UseEnumNumbers},
		{"json.stringify_int64s", "json-stringify-int64s", c.JSON.StringifyInt64s},
		{"json.skip_default_fields", "json-skip-defaults", c.JSON.SkipDefaultFields},
		{"json.disallow_unknown_fields", "json-disallow-unknown", c.JSON.DisallowUnknownFields},
	}
}

// applyConfig loads the config file at path and uses its settings for any
// flag in flags that was not given on the command line. Settings for flags
// that the running command does not have are ignored.
func applyConfig(path string, flags *pflag.FlagSet) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("load config %s: unknown settings: %s", path, strings.Join(keys, ", "))
	}

	for _, s := range raw.settings() {
		if !meta.IsDefined(strings.Split(s.key, ".")...) {
			continue
		}
		f := flags.Lookup(s.flag)
		if f == nil || f.Changed {
			continue
		}
		if err := f.Value.Set(fmt.Sprint(s.value)); err != nil {
			return fmt.Errorf("load config %s: %s: %w", path, s.key, err)
		}
	}
	return nil
}
