package desc

import (
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Kind is the declared type of a field.
type Kind int

// The kinds of fields. Most are scalar kinds. MessageKind and GroupKind
// fields refer to a MessageDescriptor; EnumKind fields refer to an
// EnumDescriptor.
const (
	InvalidKind Kind = iota
	DoubleKind
	FloatKind
	Int32Kind
	Int64Kind
	Uint32Kind
	Uint64Kind
	Sint32Kind
	Sint64Kind
	Fixed32Kind
	Fixed64Kind
	Sfixed32Kind
	Sfixed64Kind
	BoolKind
	StringKind
	BytesKind
	MessageKind
	GroupKind
	EnumKind
)

var kindNames = [...]string{
	InvalidKind:  "invalid",
	DoubleKind:   "double",
	FloatKind:    "float",
	Int32Kind:    "int32",
	Int64Kind:    "int64",
	Uint32Kind:   "uint32",
	Uint64Kind:   "uint64",
	Sint32Kind:   "sint32",
	Sint64Kind:   "sint64",
	Fixed32Kind:  "fixed32",
	Fixed64Kind:  "fixed64",
	Sfixed32Kind: "sfixed32",
	Sfixed64Kind: "sfixed64",
	BoolKind:     "bool",
	StringKind:   "string",
	BytesKind:    "bytes",
	MessageKind:  "message",
	GroupKind:    "group",
	EnumKind:     "enum",
}

// String returns the name of the kind as it is spelled in proto source,
// such as "int32" or "bytes".
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[InvalidKind]
	}
	return kindNames[k]
}

// IsMessage returns true for MessageKind and GroupKind.
func (k Kind) IsMessage() bool {
	return k == MessageKind || k == GroupKind
}

func kindOf(k protoreflect.Kind) Kind {
	switch k {
	case protoreflect.DoubleKind:
		return DoubleKind
	case protoreflect.FloatKind:
		return FloatKind
	case protoreflect.Int32Kind:
		return Int32Kind
	case protoreflect.Int64Kind:
		return Int64Kind
	case protoreflect.Uint32Kind:
		return Uint32Kind
	case protoreflect.Uint64Kind:
		return Uint64Kind
	case protoreflect.Sint32Kind:
		return Sint32Kind
	case protoreflect.Sint64Kind:
		return Sint64Kind
	case protoreflect.Fixed32Kind:
		return Fixed32Kind
	case protoreflect.Fixed64Kind:
		return Fixed64Kind
	case protoreflect.Sfixed32Kind:
		return Sfixed32Kind
	case protoreflect.Sfixed64Kind:
		return Sfixed64Kind
	case protoreflect.BoolKind:
		return BoolKind
	case protoreflect.StringKind:
		return StringKind
	case protoreflect.BytesKind:
		return BytesKind
	case protoreflect.MessageKind:
		return MessageKind
	case protoreflect.GroupKind:
		return GroupKind
	case protoreflect.EnumKind:
		return EnumKind
	default:
		return InvalidKind
	}
}

// Cardinality indicates how many values a field may hold.
type Cardinality int

const (
	Optional Cardinality = iota + 1
	Required
	Repeated
)

func (c Cardinality) String() string {
	switch c {
	case Optional:
		return "optional"
	case Required:
		return "required"
	case Repeated:
		return "repeated"
	default:
		return "invalid"
	}
}

// MessageDescriptor describes a message type. It is a view into the Pool
// that created it.
type MessageDescriptor struct {
	pool     *Pool
	md       protoreflect.MessageDescriptor
	parent   *MessageDescriptor
	fields   []*FieldDescriptor
	ordered  []*FieldDescriptor
	byName   map[string]*FieldDescriptor
	byJSON   map[string]*FieldDescriptor
	byNumber map[int32]*FieldDescriptor
	oneofs   []*OneofDescriptor
	nested   []*MessageDescriptor
	enums    []*EnumDescriptor
}

// Name returns the simple name of the message, without package or
// enclosing message names.
func (md *MessageDescriptor) Name() string {
	return string(md.md.Name())
}

// FullName returns the dotted, fully-qualified name of the message.
func (md *MessageDescriptor) FullName() string {
	return string(md.md.FullName())
}

// Fields returns the message's fields in declaration order. The returned
// slice must not be modified.
func (md *MessageDescriptor) Fields() []*FieldDescriptor {
	return md.fields
}

// FieldsInNumberOrder returns the message's fields sorted by field number.
// This is the order in which fields are written to the wire. The returned
// slice must not be modified.
func (md *MessageDescriptor) FieldsInNumberOrder() []*FieldDescriptor {
	return md.ordered
}

// FindFieldByName returns the field with the given name, or nil.
func (md *MessageDescriptor) FindFieldByName(name string) *FieldDescriptor {
	return md.byName[name]
}

// FindFieldByJSONName returns the field whose JSON name is the given name,
// or nil.
func (md *MessageDescriptor) FindFieldByJSONName(name string) *FieldDescriptor {
	return md.byJSON[name]
}

// FindFieldByNumber returns the field with the given number, or nil.
func (md *MessageDescriptor) FindFieldByNumber(number int32) *FieldDescriptor {
	return md.byNumber[number]
}

// Oneofs returns the message's oneofs in declaration order, including
// synthetic oneofs for proto3 optional fields.
func (md *MessageDescriptor) Oneofs() []*OneofDescriptor {
	return md.oneofs
}

// NestedMessages returns the message types declared inside this one.
func (md *MessageDescriptor) NestedMessages() []*MessageDescriptor {
	return md.nested
}

// NestedEnums returns the enum types declared inside this message.
func (md *MessageDescriptor) NestedEnums() []*EnumDescriptor {
	return md.enums
}

// Parent returns the enclosing message, or nil for a top-level message.
func (md *MessageDescriptor) Parent() *MessageDescriptor {
	return md.parent
}

// IsMapEntry returns true if this is the synthetic entry type of a map
// field.
func (md *MessageDescriptor) IsMapEntry() bool {
	return md.md.IsMapEntry()
}

// Pool returns the pool that owns this descriptor.
func (md *MessageDescriptor) Pool() *Pool {
	return md.pool
}

// Unwrap returns the underlying protoreflect descriptor.
func (md *MessageDescriptor) Unwrap() protoreflect.MessageDescriptor {
	return md.md
}

func (md *MessageDescriptor) String() string {
	return md.FullName()
}

// FieldDescriptor describes one field of a message.
type FieldDescriptor struct {
	fd      protoreflect.FieldDescriptor
	owner   *MessageDescriptor
	kind    Kind
	message *MessageDescriptor
	enum    *EnumDescriptor
	oneof   *OneofDescriptor
}

func (fd *FieldDescriptor) Name() string {
	return string(fd.fd.Name())
}

func (fd *FieldDescriptor) FullName() string {
	return string(fd.fd.FullName())
}

// JSONName returns the lower-camel-case name used for this field in JSON.
func (fd *FieldDescriptor) JSONName() string {
	return fd.fd.JSONName()
}

// Number returns the field number. It is positive and unique within the
// containing message.
func (fd *FieldDescriptor) Number() int32 {
	return int32(fd.fd.Number())
}

func (fd *FieldDescriptor) Kind() Kind {
	return fd.kind
}

func (fd *FieldDescriptor) Cardinality() Cardinality {
	switch fd.fd.Cardinality() {
	case protoreflect.Required:
		return Required
	case protoreflect.Repeated:
		return Repeated
	default:
		return Optional
	}
}

// Message returns the message type of a message, group, or map field. It
// returns nil for all other kinds. For map fields, this is the synthetic
// map entry type.
func (fd *FieldDescriptor) Message() *MessageDescriptor {
	return fd.message
}

// Enum returns the enum type of an enum field, or nil.
func (fd *FieldDescriptor) Enum() *EnumDescriptor {
	return fd.enum
}

// IsList returns true for repeated fields that are not maps.
func (fd *FieldDescriptor) IsList() bool {
	return fd.fd.IsList()
}

// IsMap returns true for map fields.
func (fd *FieldDescriptor) IsMap() bool {
	return fd.fd.IsMap()
}

// MapKey returns the key field of a map field's entry type, or nil if
// this is not a map field.
func (fd *FieldDescriptor) MapKey() *FieldDescriptor {
	if !fd.IsMap() {
		return nil
	}
	return fd.message.FindFieldByNumber(1)
}

// MapValue returns the value field of a map field's entry type, or nil
// if this is not a map field.
func (fd *FieldDescriptor) MapValue() *FieldDescriptor {
	if !fd.IsMap() {
		return nil
	}
	return fd.message.FindFieldByNumber(2)
}

// HasPresence returns true if the field distinguishes between being unset
// and being set to its default value. Repeated fields and proto3 fields
// without the optional keyword do not.
func (fd *FieldDescriptor) HasPresence() bool {
	return fd.fd.HasPresence()
}

// IsPacked returns true if a repeated field of a scalar kind uses the
// packed wire encoding.
func (fd *FieldDescriptor) IsPacked() bool {
	return fd.fd.IsPacked()
}

// RequiresUTF8 returns true for string fields whose contents must be
// valid UTF-8.
func (fd *FieldDescriptor) RequiresUTF8() bool {
	return fd.kind == StringKind && fd.fd.ParentFile().Syntax() == protoreflect.Proto3
}

// Default returns the default value of a singular scalar or enum field,
// which is the declared default for proto2 fields that have one. For
// message and repeated fields it returns an invalid value.
func (fd *FieldDescriptor) Default() protoreflect.Value {
	if fd.fd.IsList() || fd.fd.IsMap() || fd.kind.IsMessage() {
		return protoreflect.Value{}
	}
	return fd.fd.Default()
}

// ContainingMessage returns the message that declares this field.
func (fd *FieldDescriptor) ContainingMessage() *MessageDescriptor {
	return fd.owner
}

// ContainingOneof returns the oneof this field belongs to, or nil.
func (fd *FieldDescriptor) ContainingOneof() *OneofDescriptor {
	return fd.oneof
}

func (fd *FieldDescriptor) Unwrap() protoreflect.FieldDescriptor {
	return fd.fd
}

func (fd *FieldDescriptor) String() string {
	return fd.FullName()
}

// OneofDescriptor describes a set of fields of which at most one is set.
type OneofDescriptor struct {
	od     protoreflect.OneofDescriptor
	owner  *MessageDescriptor
	fields []*FieldDescriptor
}

func (od *OneofDescriptor) Name() string {
	return string(od.od.Name())
}

func (od *OneofDescriptor) FullName() string {
	return string(od.od.FullName())
}

// Fields returns the member fields of the oneof.
func (od *OneofDescriptor) Fields() []*FieldDescriptor {
	return od.fields
}

// IsSynthetic returns true for the implicit oneof that wraps a proto3
// optional field.
func (od *OneofDescriptor) IsSynthetic() bool {
	return od.od.IsSynthetic()
}

func (od *OneofDescriptor) ContainingMessage() *MessageDescriptor {
	return od.owner
}

// EnumDescriptor describes an enum type.
type EnumDescriptor struct {
	pool     *Pool
	ed       protoreflect.EnumDescriptor
	values   []*EnumValueDescriptor
	byName   map[string]*EnumValueDescriptor
	byNumber map[int32]*EnumValueDescriptor
}

func (ed *EnumDescriptor) Name() string {
	return string(ed.ed.Name())
}

func (ed *EnumDescriptor) FullName() string {
	return string(ed.ed.FullName())
}

// Values returns the enum's values in declaration order.
func (ed *EnumDescriptor) Values() []*EnumValueDescriptor {
	return ed.values
}

// FindValueByName returns the value with the given simple name, or nil.
func (ed *EnumDescriptor) FindValueByName(name string) *EnumValueDescriptor {
	return ed.byName[name]
}

// FindValueByNumber returns the first declared value with the given
// number, or nil.
func (ed *EnumDescriptor) FindValueByNumber(number int32) *EnumValueDescriptor {
	return ed.byNumber[number]
}

// IsClosed returns true if the enum only admits its declared numbers, as
// proto2 enums do.
func (ed *EnumDescriptor) IsClosed() bool {
	return ed.ed.IsClosed()
}

func (ed *EnumDescriptor) Pool() *Pool {
	return ed.pool
}

func (ed *EnumDescriptor) Unwrap() protoreflect.EnumDescriptor {
	return ed.ed
}

func (ed *EnumDescriptor) String() string {
	return ed.FullName()
}

// EnumValueDescriptor describes one named value of an enum.
type EnumValueDescriptor struct {
	vd   protoreflect.EnumValueDescriptor
	enum *EnumDescriptor
}

func (vd *EnumValueDescriptor) Name() string {
	return string(vd.vd.Name())
}

func (vd *EnumValueDescriptor) FullName() string {
	return string(vd.vd.FullName())
}

func (vd *EnumValueDescriptor) Number() int32 {
	return int32(vd.vd.Number())
}

func (vd *EnumValueDescriptor) Enum() *EnumDescriptor {
	return vd.enum
}

// ServiceDescriptor describes a service and its methods.
type ServiceDescriptor struct {
	pool    *Pool
	sd      protoreflect.ServiceDescriptor
	methods []*MethodDescriptor
}

func (sd *ServiceDescriptor) Name() string {
	return string(sd.sd.Name())
}

func (sd *ServiceDescriptor) FullName() string {
	return string(sd.sd.FullName())
}

// Methods returns the service's methods keyed by simple name. A new map is
// returned on each call.
func (sd *ServiceDescriptor) Methods() map[string]*MethodDescriptor {
	methods := make(map[string]*MethodDescriptor, len(sd.methods))
	for _, mtd := range sd.methods {
		methods[mtd.Name()] = mtd
	}
	return methods
}

// FindMethodByName returns the method with the given simple name, or nil.
func (sd *ServiceDescriptor) FindMethodByName(name string) *MethodDescriptor {
	for _, mtd := range sd.methods {
		if mtd.Name() == name {
			return mtd
		}
	}
	return nil
}

func (sd *ServiceDescriptor) Pool() *Pool {
	return sd.pool
}

func (sd *ServiceDescriptor) Unwrap() protoreflect.ServiceDescriptor {
	return sd.sd
}

func (sd *ServiceDescriptor) String() string {
	return sd.FullName()
}

// MethodDescriptor describes one RPC method of a service. Its input and
// output types are views into the same pool.
type MethodDescriptor struct {
	md      protoreflect.MethodDescriptor
	service *ServiceDescriptor
	input   *MessageDescriptor
	output  *MessageDescriptor
}

func (mtd *MethodDescriptor) Name() string {
	return string(mtd.md.Name())
}

func (mtd *MethodDescriptor) FullName() string {
	return string(mtd.md.FullName())
}

// Input returns the request message type.
func (mtd *MethodDescriptor) Input() *MessageDescriptor {
	return mtd.input
}

// Output returns the response message type.
func (mtd *MethodDescriptor) Output() *MessageDescriptor {
	return mtd.output
}

func (mtd *MethodDescriptor) IsClientStreaming() bool {
	return mtd.md.IsStreamingClient()
}

func (mtd *MethodDescriptor) IsServerStreaming() bool {
	return mtd.md.IsStreamingServer()
}

// Service returns the service that declares this method.
func (mtd *MethodDescriptor) Service() *ServiceDescriptor {
	return mtd.service
}

func (mtd *MethodDescriptor) Unwrap() protoreflect.MethodDescriptor {
	return mtd.md
}

func (mtd *MethodDescriptor) String() string {
	return mtd.FullName()
}
