package desc

import (
	"sort"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// Wrapping happens in two passes. The first creates exactly one view per
// linked descriptor and indexes it by full name. The second assigns the
// cross references (field types, method input and output) by index lookup.
// Because no view is ever created while resolving a reference, recursive
// and mutually-recursive types need no special handling.

func (p *Pool) indexFile(fd protoreflect.FileDescriptor) {
	enums := fd.Enums()
	for i, length := 0, enums.Len(); i < length; i++ {
		p.indexEnum(enums.Get(i))
	}
	msgs := fd.Messages()
	for i, length := 0, msgs.Len(); i < length; i++ {
		p.indexMessage(msgs.Get(i), nil)
	}
	svcs := fd.Services()
	for i, length := 0, svcs.Len(); i < length; i++ {
		p.indexService(svcs.Get(i))
	}
}

func (p *Pool) indexEnum(ed protoreflect.EnumDescriptor) *EnumDescriptor {
	ret := &EnumDescriptor{
		pool:     p,
		ed:       ed,
		byName:   map[string]*EnumValueDescriptor{},
		byNumber: map[int32]*EnumValueDescriptor{},
	}
	vals := ed.Values()
	for i, length := 0, vals.Len(); i < length; i++ {
		vd := &EnumValueDescriptor{vd: vals.Get(i), enum: ret}
		ret.values = append(ret.values, vd)
		ret.byName[vd.Name()] = vd
		if _, ok := ret.byNumber[vd.Number()]; !ok {
			// with allow_alias, the first value declared for a number wins
			ret.byNumber[vd.Number()] = vd
		}
	}
	p.enums[ret.FullName()] = ret
	return ret
}

func (p *Pool) indexMessage(md protoreflect.MessageDescriptor, parent *MessageDescriptor) *MessageDescriptor {
	ret := &MessageDescriptor{
		pool:     p,
		md:       md,
		parent:   parent,
		byName:   map[string]*FieldDescriptor{},
		byJSON:   map[string]*FieldDescriptor{},
		byNumber: map[int32]*FieldDescriptor{},
	}
	oneofs := md.Oneofs()
	for i, length := 0, oneofs.Len(); i < length; i++ {
		ret.oneofs = append(ret.oneofs, &OneofDescriptor{od: oneofs.Get(i), owner: ret})
	}
	fields := md.Fields()
	for i, length := 0, fields.Len(); i < length; i++ {
		fld := fields.Get(i)
		fd := &FieldDescriptor{fd: fld, owner: ret, kind: kindOf(fld.Kind())}
		if od := fld.ContainingOneof(); od != nil {
			fd.oneof = ret.oneofs[od.Index()]
			fd.oneof.fields = append(fd.oneof.fields, fd)
		}
		ret.fields = append(ret.fields, fd)
		ret.byName[fd.Name()] = fd
		ret.byJSON[fd.JSONName()] = fd
		ret.byNumber[fd.Number()] = fd
	}
	ret.ordered = make([]*FieldDescriptor, len(ret.fields))
	copy(ret.ordered, ret.fields)
	sort.Slice(ret.ordered, func(i, j int) bool {
		return ret.ordered[i].Number() < ret.ordered[j].Number()
	})

	enums := md.Enums()
	for i, length := 0, enums.Len(); i < length; i++ {
		ret.enums = append(ret.enums, p.indexEnum(enums.Get(i)))
	}
	nested := md.Messages()
	for i, length := 0, nested.Len(); i < length; i++ {
		ret.nested = append(ret.nested, p.indexMessage(nested.Get(i), ret))
	}
	p.messages[ret.FullName()] = ret
	return ret
}

func (p *Pool) indexService(sd protoreflect.ServiceDescriptor) {
	ret := &ServiceDescriptor{pool: p, sd: sd}
	methods := sd.Methods()
	for i, length := 0, methods.Len(); i < length; i++ {
		ret.methods = append(ret.methods, &MethodDescriptor{md: methods.Get(i), service: ret})
	}
	p.services[ret.FullName()] = ret
}

// link resolves the references between views. Every referenced type was
// linked by protodesc, so it must be present in the index.
func (p *Pool) link() {
	for _, md := range p.messages {
		for _, fd := range md.fields {
			switch {
			case fd.kind.IsMessage():
				fd.message = p.messages[string(fd.fd.Message().FullName())]
			case fd.kind == EnumKind:
				fd.enum = p.enums[string(fd.fd.Enum().FullName())]
			}
		}
	}
	for _, sd := range p.services {
		for _, mtd := range sd.methods {
			mtd.input = p.messages[string(mtd.md.Input().FullName())]
			mtd.output = p.messages[string(mtd.md.Output().FullName())]
		}
	}
}
