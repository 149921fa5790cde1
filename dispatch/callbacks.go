package dispatch

import (
	"fmt"
	"reflect"
	"sync"
)

// Operation is the ordinal of one RPC of a service. Each service declares its
// operations as consecutive constants starting at zero, followed by a count
// sentinel:
//
//	const (
//		ConfirmationReply dispatch.Operation = iota
//		GetAccess
//		SetAccess
//		operationCount
//	)
type Operation uint

// OperationSet names the operations of one service, indexed by ordinal.
type OperationSet struct {
	names []string
}

// NewOperationSet returns the set of operations with the given names, in
// ordinal order.
func NewOperationSet(names ...string) OperationSet {
	return OperationSet{names: append([]string(nil), names...)}
}

// Size returns the number of operations in the set.
func (s OperationSet) Size() int {
	return len(s.names)
}

// Contains reports whether op is a valid ordinal of the set.
func (s OperationSet) Contains(op Operation) bool {
	return int(op) < len(s.names)
}

// Name returns the name of op, or a placeholder for ordinals outside the set.
func (s OperationSet) Name(op Operation) string {
	if !s.Contains(op) {
		return fmt.Sprintf("Operation(%d)", op)
	}
	return s.names[op]
}

// CallbackTable holds at most one registered callback per operation.
//
// Slots start empty and are replaced wholesale by SetCallback; there is no
// layering and no individual removal other than storing a nil callback.
// Reads and writes are guarded by a read-mostly lock so that registration may
// race with in-flight calls.
//
// A slot bound to a callback type by BindCallback only accepts callbacks of
// exactly that type.
type CallbackTable struct {
	mu    sync.RWMutex
	ops   OperationSet
	slots []any
	types []reflect.Type
}

// NewCallbackTable creates a table for count operations. It panics if the
// operation set does not name exactly count operations: a mismatch is a
// programming error in the service definition.
func NewCallbackTable(count Operation, ops OperationSet) *CallbackTable {
	if ops.Size() != int(count) {
		panic(fmt.Sprintf("dispatch: callback table arity %d does not match %d operation names", count, ops.Size()))
	}
	return &CallbackTable{
		ops:   ops,
		slots: make([]any, count),
		types: make([]reflect.Type, count),
	}
}

// Operations returns the operation set the table is indexed by.
func (t *CallbackTable) Operations() OperationSet {
	return t.ops
}

func (t *CallbackTable) set(op Operation, typ reflect.Type, fn any) {
	if !t.ops.Contains(op) {
		panic(fmt.Sprintf("dispatch: operation %d out of range", op))
	}
	if isNilFunc(fn) {
		fn = nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if want := t.types[op]; want != nil && want != typ {
		panic(fmt.Sprintf("dispatch: %s callback is %v, not %v", t.ops.Name(op), want, typ))
	}
	t.slots[op] = fn
}

func (t *CallbackTable) bind(op Operation, typ reflect.Type) {
	if !t.ops.Contains(op) {
		panic(fmt.Sprintf("dispatch: operation %d out of range", op))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if want := t.types[op]; want != nil && want != typ {
		panic(fmt.Sprintf("dispatch: %s already bound to %v, not %v", t.ops.Name(op), want, typ))
	}
	if fn := t.slots[op]; fn != nil && reflect.TypeOf(fn) != typ {
		panic(fmt.Sprintf("dispatch: %s holds a %T callback, not %v", t.ops.Name(op), fn, typ))
	}
	t.types[op] = typ
}

func (t *CallbackTable) get(op Operation) any {
	if !t.ops.Contains(op) {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.slots[op]
}

// SetCallback stores fn in the slot of op, replacing whatever was there.
// Storing a nil function empties the slot. It panics if the slot is bound to
// a callback type other than F.
func SetCallback[F any](t *CallbackTable, op Operation, fn F) {
	t.set(op, reflect.TypeFor[F](), fn)
}

// BindCallback fixes the callback type of op to F. Handle binds every
// operation it serves to its strategy's callback type.
func BindCallback[F any](t *CallbackTable, op Operation) {
	t.bind(op, reflect.TypeFor[F]())
}

// Callback returns the callback registered for op. The boolean is false when
// the slot is empty or holds a callback of a different type.
func Callback[F any](t *CallbackTable, op Operation) (F, bool) {
	fn, ok := t.get(op).(F)
	return fn, ok
}

// Registered reports whether the slot of op holds a callback.
func (t *CallbackTable) Registered(op Operation) bool {
	return t.get(op) != nil
}

func isNilFunc(fn any) bool {
	if fn == nil {
		return true
	}
	v := reflect.ValueOf(fn)
	return v.Kind() == reflect.Func && v.IsNil()
}
