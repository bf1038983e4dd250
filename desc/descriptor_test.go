package desc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhump/dynproto/desc"
	"github.com/jhump/dynproto/internal/testprotos"
)

func TestFieldKinds(t *testing.T) {
	md := testprotos.Message(t, "test.v1.Scalars")
	want := []desc.Kind{
		desc.DoubleKind, desc.FloatKind, desc.Int32Kind, desc.Int64Kind,
		desc.Uint32Kind, desc.Uint64Kind, desc.Sint32Kind, desc.Sint64Kind,
		desc.Fixed32Kind, desc.Fixed64Kind, desc.Sfixed32Kind, desc.Sfixed64Kind,
		desc.BoolKind, desc.StringKind, desc.BytesKind, desc.EnumKind,
	}
	require.Len(t, md.Fields(), len(want))
	for i, fd := range md.Fields() {
		assert.Equal(t, want[i], fd.Kind(), fd.Name())
		assert.Equal(t, int32(i+1), fd.Number())
	}
	assert.Equal(t, "sfixed64", desc.Sfixed64Kind.String())
	assert.Equal(t, "group", desc.GroupKind.String())
	assert.Equal(t, "invalid", desc.Kind(99).String())
	assert.True(t, desc.GroupKind.IsMessage())
	assert.False(t, desc.EnumKind.IsMessage())

	color := md.FindFieldByName("color")
	require.NotNil(t, color.Enum())
	assert.Equal(t, "test.v1.Color", color.Enum().FullName())
	assert.Nil(t, color.Message())
}

func TestFieldOrder(t *testing.T) {
	md := testprotos.Message(t, "test.legacy.Record")
	var declared, numbered []string
	for _, fd := range md.Fields() {
		declared = append(declared, fd.Name())
	}
	for _, fd := range md.FieldsInNumberOrder() {
		numbered = append(numbered, fd.Name())
	}
	assert.Equal(t, []string{"id", "count", "label", "status", "samples", "packed_samples", "extra", "parent", "history"}, declared)
	assert.Equal(t, declared, numbered)

	assert.Nil(t, md.FindFieldByName("note"))
	assert.Nil(t, md.FindFieldByNumber(8))
	assert.Equal(t, "note", md.FindFieldByName("extra").Message().FindFieldByNumber(8).Name())
}

func TestCardinality(t *testing.T) {
	md := testprotos.Message(t, "test.legacy.Record")
	assert.Equal(t, desc.Required, md.FindFieldByName("id").Cardinality())
	assert.Equal(t, desc.Optional, md.FindFieldByName("count").Cardinality())
	assert.Equal(t, desc.Repeated, md.FindFieldByName("samples").Cardinality())
	assert.Equal(t, "required", desc.Required.String())
	assert.Equal(t, "repeated", desc.Repeated.String())

	assert.False(t, md.FindFieldByName("samples").IsPacked())
	assert.True(t, md.FindFieldByName("packed_samples").IsPacked())
	assert.True(t, md.FindFieldByName("samples").IsList())
	assert.True(t, md.FindFieldByName("count").HasPresence())
	assert.False(t, md.FindFieldByName("label").RequiresUTF8())

	extra := md.FindFieldByName("extra")
	assert.Equal(t, desc.GroupKind, extra.Kind())
	assert.Equal(t, "test.legacy.Record.Extra", extra.Message().FullName())
	assert.Same(t, md, extra.Message().Parent())
}

func TestDefaults(t *testing.T) {
	md := testprotos.Message(t, "test.legacy.Record")
	assert.Equal(t, "", md.FindFieldByName("id").Default().String())
	assert.Equal(t, int64(7), md.FindFieldByName("count").Default().Int())
	assert.Equal(t, "none", md.FindFieldByName("label").Default().String())
	assert.EqualValues(t, 1, md.FindFieldByName("status").Default().Enum())
	assert.False(t, md.FindFieldByName("parent").Default().IsValid())
	assert.False(t, md.FindFieldByName("samples").Default().IsValid())

	scalars := testprotos.Message(t, "test.v1.Scalars")
	assert.Equal(t, 0.0, scalars.FindFieldByName("double_value").Default().Float())
	assert.True(t, scalars.FindFieldByName("string_value").RequiresUTF8())
}

func TestMapFields(t *testing.T) {
	md := testprotos.Message(t, "test.v1.Composite")
	counts := md.FindFieldByName("counts")
	assert.True(t, counts.IsMap())
	assert.False(t, counts.IsList())
	assert.Equal(t, desc.Repeated, counts.Cardinality())
	assert.True(t, counts.Message().IsMapEntry())
	assert.Equal(t, desc.StringKind, counts.MapKey().Kind())
	assert.Equal(t, desc.Int32Kind, counts.MapValue().Kind())
	assert.Contains(t, md.NestedMessages(), counts.Message())
	assert.Same(t, md, counts.Message().Parent())

	people := md.FindFieldByName("people")
	assert.Equal(t, desc.Int64Kind, people.MapKey().Kind())
	assert.Same(t, testprotos.Message(t, "test.v1.Person"), people.MapValue().Message())

	assert.Nil(t, md.FindFieldByName("numbers").MapKey())
	assert.Nil(t, md.FindFieldByName("owner").MapValue())
}

func TestOneofs(t *testing.T) {
	md := testprotos.Message(t, "test.v1.Composite")
	var choice, maybe *desc.OneofDescriptor
	for _, od := range md.Oneofs() {
		switch od.Name() {
		case "choice":
			choice = od
		case "_maybe":
			maybe = od
		}
	}
	require.NotNil(t, choice)
	require.NotNil(t, maybe)
	assert.False(t, choice.IsSynthetic())
	assert.True(t, maybe.IsSynthetic())
	assert.Same(t, md, choice.ContainingMessage())

	var names []string
	for _, fd := range choice.Fields() {
		names = append(names, fd.Name())
		assert.Same(t, choice, fd.ContainingOneof())
		assert.True(t, fd.HasPresence())
	}
	assert.Equal(t, []string{"text", "number", "person"}, names)
	assert.Nil(t, md.FindFieldByName("owner").ContainingOneof())
	assert.True(t, md.FindFieldByName("maybe").HasPresence())
	assert.False(t, md.FindFieldByName("numbers").HasPresence())
}

func TestRecursiveTypes(t *testing.T) {
	tree := testprotos.Message(t, "test.v1.Tree")
	assert.Same(t, tree, tree.FindFieldByName("children").Message())

	ping := testprotos.Message(t, "test.v1.Ping")
	pong := ping.FindFieldByName("pong").Message()
	assert.Equal(t, "test.v1.Pong", pong.FullName())
	assert.Same(t, ping, pong.FindFieldByName("ping").Message())
}

func TestJSONNames(t *testing.T) {
	md := testprotos.Message(t, "test.v1.Account")
	fd := md.FindFieldByName("user_id")
	assert.Equal(t, "userId", fd.JSONName())
	assert.Same(t, fd, md.FindFieldByJSONName("userId"))
	assert.Nil(t, md.FindFieldByJSONName("user_id"))
}

func TestEnums(t *testing.T) {
	pool := testprotos.Pool(t)
	color, err := pool.FindEnumByName("test.v1.Color")
	require.NoError(t, err)
	assert.False(t, color.IsClosed())
	require.Len(t, color.Values(), 4)
	assert.Equal(t, int32(2), color.FindValueByName("COLOR_GREEN").Number())
	assert.Equal(t, "COLOR_BLUE", color.FindValueByNumber(3).Name())
	assert.Equal(t, "test.v1.COLOR_BLUE", color.FindValueByNumber(3).FullName())
	assert.Nil(t, color.FindValueByNumber(7))
	assert.Same(t, color, color.Values()[0].Enum())

	status, err := pool.FindEnumByName("test.legacy.Status")
	require.NoError(t, err)
	assert.True(t, status.IsClosed())
}

func TestServices(t *testing.T) {
	pool := testprotos.Pool(t)
	sd, err := pool.FindServiceByName("test.v1.Rot13Service")
	require.NoError(t, err)
	assert.Equal(t, "Rot13Service", sd.Name())
	methods := sd.Methods()
	require.Len(t, methods, 2)

	transform := methods["Transform"]
	require.NotNil(t, transform)
	assert.Same(t, transform, sd.FindMethodByName("Transform"))
	assert.Equal(t, "test.v1.Rot13Service.Transform", transform.FullName())
	assert.Same(t, testprotos.Message(t, "test.v1.Rot13Request"), transform.Input())
	assert.Same(t, testprotos.Message(t, "test.v1.Rot13Response"), transform.Output())
	assert.False(t, transform.IsClientStreaming())
	assert.False(t, transform.IsServerStreaming())
	assert.Same(t, sd, transform.Service())

	stream := sd.FindMethodByName("TransformStream")
	require.NotNil(t, stream)
	assert.True(t, stream.IsClientStreaming())
	assert.True(t, stream.IsServerStreaming())
	assert.Nil(t, sd.FindMethodByName("transform"))

	// the returned map is a copy
	delete(methods, "Transform")
	assert.Len(t, sd.Methods(), 2)
}
