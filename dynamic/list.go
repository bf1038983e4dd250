package dynamic

import (
	"fmt"
	"iter"
	"strings"

	"github.com/jhump/dynproto/desc"
)

// List is the value of a repeated field that is not a map.
//
// A List created with NewList accepts values of any kind. Once a list is
// stored in a message, the message holds its own copy that is bound to the
// field, and Append and Set on that copy reject values that do not match
// the field's element type.
type List struct {
	fd    *desc.FieldDescriptor
	owner *Message
	elems []Value
}

// NewList returns an unbound list with the given elements.
func NewList(vals ...Value) *List {
	l := &List{}
	if len(vals) > 0 {
		l.elems = append(l.elems, vals...)
	}
	return l
}

func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.elems)
}

// Get returns the element at index i. It panics if i is out of range.
func (l *List) Get(i int) Value {
	return l.elems[i]
}

// Set replaces the element at index i. It panics if i is out of range.
func (l *List) Set(i int, v Value) error {
	if i < 0 || i >= len(l.elems) {
		panic(fmt.Sprintf("dynamic: list index %d out of range [0:%d]", i, len(l.elems)))
	}
	v, err := l.check(v)
	if err != nil {
		return err
	}
	l.elems[i] = v
	return nil
}

// Append adds values to the end of the list. If any value does not match
// the element type of a bound list, none are added.
func (l *List) Append(vals ...Value) error {
	checked := make([]Value, len(vals))
	for i, v := range vals {
		var err error
		if checked[i], err = l.check(v); err != nil {
			return err
		}
	}
	l.elems = append(l.elems, checked...)
	return nil
}

// Truncate removes all elements at index n and beyond.
func (l *List) Truncate(n int) {
	clear(l.elems[n:])
	l.elems = l.elems[:n]
}

// All returns an iterator over the indices and elements of the list.
func (l *List) All() iter.Seq2[int, Value] {
	return func(yield func(int, Value) bool) {
		for i := 0; i < l.Len(); i++ {
			if !yield(i, l.elems[i]) {
				return
			}
		}
	}
}

func (l *List) check(v Value) (Value, error) {
	if l.fd == nil {
		return v, nil
	}
	v, err := checkSingular(l.fd, v)
	if err != nil {
		return Value{}, err
	}
	if l.owner != nil && v.contains(l.owner) {
		return Value{}, cycleError(l.fd)
	}
	return v, nil
}

// bind returns a copy of l bound to fd, or an error if any element does not
// match fd's element type.
func (l *List) bind(fd *desc.FieldDescriptor) (*List, error) {
	ret := &List{fd: fd, elems: make([]Value, 0, l.Len())}
	for i := 0; i < l.Len(); i++ {
		v, err := checkSingular(fd, l.elems[i])
		if err != nil {
			return nil, err
		}
		ret.elems = append(ret.elems, v)
	}
	return ret, nil
}

func (l *List) equal(other *List) bool {
	if l.Len() != other.Len() {
		return false
	}
	for i := 0; i < l.Len(); i++ {
		if !l.elems[i].Equal(other.elems[i]) {
			return false
		}
	}
	return true
}

func (l *List) clone() *List {
	if l == nil {
		return nil
	}
	ret := &List{fd: l.fd, elems: make([]Value, len(l.elems))}
	for i, v := range l.elems {
		ret.elems[i] = v.clone()
	}
	return ret
}

func (l *List) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < l.Len(); i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(l.elems[i].String())
	}
	sb.WriteByte(']')
	return sb.String()
}
