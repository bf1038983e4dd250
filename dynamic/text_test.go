package dynamic_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/jhump/dynproto/dynamic"
	"github.com/jhump/dynproto/internal/testprotos"
)

func composite(t *testing.T) *dynamic.Message {
	counts := dynamic.NewMap()
	require.NoError(t, counts.Set(dynamic.ValueOfString("a"), dynamic.ValueOfInt32(1)))
	return newMessage(t, "test.v1.Composite",
		dynamic.Assign("numbers", dynamic.ValueOfList(dynamic.NewList(dynamic.ValueOfInt32(1), dynamic.ValueOfInt32(2)))),
		dynamic.Assign("counts", dynamic.ValueOfMap(counts)),
		dynamic.Assign("owner", dynamic.ValueOfMessage(newMessage(t, "test.v1.Person", dynamic.Assign("name", dynamic.ValueOfString("Bob"))))),
		dynamic.Assign("text", dynamic.ValueOfString("hi")),
	)
}

func TestMarshalText(t *testing.T) {
	m := newMessage(t, "test.v1.TestMessage", dynamic.Assign("greeting", dynamic.ValueOfString("Hello World")))
	text, err := m.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, `greeting:"Hello World"`, string(text))
	text, err = m.MarshalTextIndent()
	require.NoError(t, err)
	assert.Equal(t, `greeting: "Hello World"`, string(text))
	assert.Equal(t, `greeting:"Hello World"`, m.String())

	p := newMessage(t, "test.v1.Person",
		dynamic.Assign("name", dynamic.ValueOfString("Ann")),
		dynamic.Assign("age", dynamic.ValueOfInt32(30)),
	)
	text, err = p.MarshalTextIndent()
	require.NoError(t, err)
	assert.Equal(t, "name: \"Ann\"\nage: 30", string(text))

	text, err = newMessage(t, "test.v1.Person").MarshalText()
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestMarshalTextComposite(t *testing.T) {
	c := composite(t)
	text, err := c.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, `numbers:[1,2],counts{key:"a",value:1},owner{name:"Bob"},text:"hi"`, string(text))

	text, err = c.MarshalTextIndent()
	require.NoError(t, err)
	want := `numbers: [1, 2]
counts {
  key: "a"
  value: 1
}
owner {
  name: "Bob"
}
text: "hi"`
	assert.Equal(t, want, string(text))

	// the protobuf runtime reads what we write
	for _, out := range [][]byte{mustText(t, c, false), mustText(t, c, true)} {
		dm := dynamicpb.NewMessage(c.Descriptor().Unwrap())
		require.NoError(t, prototext.Unmarshal(out, dm))
		back, err := dynamic.Unmarshal(c.Descriptor(), mustMarshal(t, dm))
		require.NoError(t, err)
		assert.True(t, c.Equal(back), "got %v, want %v", back, c)
	}
}

func mustText(t *testing.T, m *dynamic.Message, pretty bool) []byte {
	t.Helper()
	opts := dynamic.DefaultMarshalTextOptions
	opts.Pretty = pretty
	text, err := m.MarshalTextWithOptions(opts)
	require.NoError(t, err)
	return text
}

func TestMarshalTextEmptyMessageField(t *testing.T) {
	c := newMessage(t, "test.v1.Composite")
	_, err := c.MutableFieldByName("owner")
	require.NoError(t, err)
	assert.Equal(t, "owner{}", string(mustText(t, c, false)))
	assert.Equal(t, "owner {}", string(mustText(t, c, true)))
}

func TestMarshalTextScalars(t *testing.T) {
	testCases := []struct {
		field string
		value dynamic.Value
		want  string
	}{
		{"color", dynamic.ValueOfEnum(2), "color:COLOR_GREEN"},
		{"color", dynamic.ValueOfEnum(7), "color:7"},
		{"float_value", dynamic.ValueOfFloat32(float32(math.Inf(1))), "float_value:inf"},
		{"double_value", dynamic.ValueOfFloat64(math.Inf(-1)), "double_value:-inf"},
		{"double_value", dynamic.ValueOfFloat64(math.NaN()), "double_value:nan"},
		{"double_value", dynamic.ValueOfFloat64(0.25), "double_value:0.25"},
		{"int64_value", dynamic.ValueOfInt64(-5), "int64_value:-5"},
		{"bool_value", dynamic.ValueOfBool(true), "bool_value:true"},
		{"bytes_value", dynamic.ValueOfBytes([]byte("\x00a\"")), `bytes_value:"\000a\""`},
		{"string_value", dynamic.ValueOfString("héllo\n"), `string_value:"héllo\n"`},
	}
	for _, tc := range testCases {
		t.Run(tc.want, func(t *testing.T) {
			m := newMessage(t, "test.v1.Scalars", dynamic.Assign(tc.field, tc.value))
			assert.Equal(t, tc.want, string(mustText(t, m, false)))
		})
	}
}

func TestMarshalTextUnknownFields(t *testing.T) {
	m, err := dynamic.Unmarshal(testprotos.Message(t, "test.v1.TestMessage"),
		[]byte("\n\x02hi\x28\x96\x01\x35\x01\x00\x00\x00\x3a\x02ab\x43\x08\x01\x44"))
	require.NoError(t, err)
	assert.Equal(t, `greeting:"hi"`, m.String())

	opts := dynamic.DefaultMarshalTextOptions
	opts.SkipUnknownFields = false
	text, err := m.MarshalTextWithOptions(opts)
	require.NoError(t, err)
	assert.Equal(t, `greeting:"hi",5:150,6:0x00000001,7:"ab",8{1:1}`, string(text))
}

func TestMarshalTextAny(t *testing.T) {
	wk := newMessage(t, "test.v1.WellKnown")
	anyVal, err := wk.MutableFieldByName("any")
	require.NoError(t, err)
	require.NoError(t, anyVal.Message().SetFieldByName("type_url", dynamic.ValueOfString("type.googleapis.com/test.v1.Person")))
	require.NoError(t, anyVal.Message().SetFieldByName("value", dynamic.ValueOfBytes([]byte("\n\x03Ann"))))

	assert.Equal(t, `any{[type.googleapis.com/test.v1.Person]{name:"Ann"}}`, wk.String())

	opts := dynamic.DefaultMarshalTextOptions
	opts.ExpandAny = false
	text, err := wk.MarshalTextWithOptions(opts)
	require.NoError(t, err)
	assert.Equal(t, `any{type_url:"type.googleapis.com/test.v1.Person",value:"\n\003Ann"}`, string(text))

	// both forms can be read back
	for _, in := range []string{wk.String(), string(text)} {
		back, err := dynamic.UnmarshalText(wk.Descriptor(), []byte(in))
		require.NoError(t, err)
		assert.True(t, wk.Equal(back), "got %v, want %v", back, wk)
	}

	// unresolvable types are not expanded
	require.NoError(t, anyVal.Message().SetFieldByName("type_url", dynamic.ValueOfString("type.googleapis.com/foo.Bar")))
	assert.Equal(t, `any{type_url:"type.googleapis.com/foo.Bar",value:"\n\003Ann"}`, wk.String())
}

func TestMarshalTextGroup(t *testing.T) {
	rec, err := dynamic.Unmarshal(testprotos.Message(t, "test.legacy.Record"), []byte("\x0a\x01x\x3b\x42\x02hi\x3c"))
	require.NoError(t, err)
	assert.Equal(t, `id:"x",Extra{note:"hi"}`, rec.String())

	back, err := dynamic.UnmarshalText(rec.Descriptor(), []byte(rec.String()))
	require.NoError(t, err)
	assert.True(t, rec.Equal(back))
}

func TestUnmarshalText(t *testing.T) {
	md := testprotos.Message(t, "test.v1.Composite")
	m, err := dynamic.UnmarshalText(md, []byte(`
		numbers: [1, 2]
		counts { key: "a" value: 1 }
		owner { name: "Bob" }
		text: "hi"
	`))
	require.NoError(t, err)
	want := composite(t)
	assert.True(t, want.Equal(m), "got %v, want %v", m, want)

	// enums by name or number
	s, err := dynamic.UnmarshalText(testprotos.Message(t, "test.v1.Scalars"), []byte(`color: COLOR_BLUE`))
	require.NoError(t, err)
	v, err := s.GetFieldByName("color")
	require.NoError(t, err)
	assert.Equal(t, int32(3), v.Enum())
	s, err = dynamic.UnmarshalText(testprotos.Message(t, "test.v1.Scalars"), []byte(`color: 2`))
	require.NoError(t, err)
	v, err = s.GetFieldByName("color")
	require.NoError(t, err)
	assert.Equal(t, int32(2), v.Enum())
}

func TestUnmarshalTextUnknownNames(t *testing.T) {
	md := testprotos.Message(t, "test.v1.TestMessage")
	m, err := dynamic.UnmarshalText(md, []byte(`greeting: "hi" salutation: "hey"`))
	require.NoError(t, err)
	assert.Equal(t, `greeting:"hi"`, m.String())

	_, err = dynamic.UnmarshalTextWithOptions(md, []byte(`greeting: "hi" salutation: "hey"`), dynamic.UnmarshalTextOptions{Strict: true})
	var tpe *dynamic.TextParseError
	require.ErrorAs(t, err, &tpe)
}

func TestUnmarshalTextErrors(t *testing.T) {
	md := testprotos.Message(t, "test.v1.Person")
	for _, in := range []string{
		`name: `,
		`name: 123`,
		`age: "thirty"`,
		`name: "Ann" {`,
		`age: 99999999999`,
	} {
		t.Run(in, func(t *testing.T) {
			m, err := dynamic.UnmarshalText(md, []byte(in))
			assert.Nil(t, m)
			var tpe *dynamic.TextParseError
			require.ErrorAs(t, err, &tpe)
		})
	}

	p := newMessage(t, "test.v1.Person", dynamic.Assign("name", dynamic.ValueOfString("Ann")))
	require.Error(t, p.UnmarshalText([]byte(`name: `)))
	assert.Equal(t, `name:"Ann"`, p.String())
	require.NoError(t, p.UnmarshalText([]byte(`age: 3`)))
	assert.Equal(t, `age:3`, p.String())
}

func TestUnmarshalTextMatchesRuntime(t *testing.T) {
	const in = `id: "x" samples: [1, 2] packed_samples: 3 Extra { note: "n" }`
	rec, err := dynamic.UnmarshalText(testprotos.Message(t, "test.legacy.Record"), []byte(in))
	require.NoError(t, err)
	data, err := rec.Marshal()
	require.NoError(t, err)

	want := dynamicpb.NewMessage(rec.Descriptor().Unwrap())
	require.NoError(t, prototext.Unmarshal([]byte(in), want))
	got := dynamicpb.NewMessage(rec.Descriptor().Unwrap())
	require.NoError(t, proto.Unmarshal(data, got))
	assert.True(t, proto.Equal(want, got))
}
