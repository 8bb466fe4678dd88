package native

import (
	"errors"
	"fmt"
	"reflect"
)

// Table holds the bound entry points of libccasm. Handles are opaque addresses
// owned by the engine; they are never dereferenced on the Go side.
type Table struct {
	Stdout     func() uintptr
	Stderr     func() uintptr
	NullStream func() uintptr

	OStringStreamNew    func() uintptr
	OStringStreamDelete func(sink uintptr)
	OStringStreamSize   func(sink uintptr) uint64
	OStringStreamStrcpy func(sink uintptr, dst *byte) uintptr

	PrimClexNew     func(root string, log, debugLog, errLog uintptr) uintptr
	PrimClexDelete  func(primclex uintptr)
	PrimClexRefresh func(primclex uintptr, settings, composition, chemRef, configs, clearClex bool)

	CAPI func(args string, primclex uintptr, root string, log, debugLog, errLog uintptr) int32
}

// Kind is the abstract native kind of a parameter or return value.
type Kind string

const (
	KindVoid    Kind = "void"
	KindHandle  Kind = "void*"
	KindCString Kind = "char*"
	KindBuffer  Kind = "char[]"
	KindULong   Kind = "unsigned long"
	KindBool    Kind = "bool"
	KindInt     Kind = "int"
)

// Signature declares one entry point.
type Signature struct {
	Symbol  string
	Params  []Kind
	Returns Kind

	field func(*Table) any
}

func (s Signature) String() string {
	return fmt.Sprintf("%s %s%v", s.Returns, s.Symbol, s.Params)
}

// Signatures is the fixed entry-point table of libccasm.
var Signatures = []Signature{
	{Symbol: "casm_STDOUT", Returns: KindHandle,
		field: func(t *Table) any { return &t.Stdout }},
	{Symbol: "casm_STDERR", Returns: KindHandle,
		field: func(t *Table) any { return &t.Stderr }},
	{Symbol: "casm_nullstream", Returns: KindHandle,
		field: func(t *Table) any { return &t.NullStream }},
	{Symbol: "casm_ostringstream_new", Returns: KindHandle,
		field: func(t *Table) any { return &t.OStringStreamNew }},
	{Symbol: "casm_ostringstream_delete", Params: []Kind{KindHandle}, Returns: KindVoid,
		field: func(t *Table) any { return &t.OStringStreamDelete }},
	{Symbol: "casm_ostringstream_size", Params: []Kind{KindHandle}, Returns: KindULong,
		field: func(t *Table) any { return &t.OStringStreamSize }},
	{Symbol: "casm_ostringstream_strcpy", Params: []Kind{KindHandle, KindBuffer}, Returns: KindBuffer,
		field: func(t *Table) any { return &t.OStringStreamStrcpy }},
	{Symbol: "casm_primclex_new", Params: []Kind{KindCString, KindHandle, KindHandle, KindHandle}, Returns: KindHandle,
		field: func(t *Table) any { return &t.PrimClexNew }},
	{Symbol: "casm_primclex_delete", Params: []Kind{KindHandle}, Returns: KindVoid,
		field: func(t *Table) any { return &t.PrimClexDelete }},
	{Symbol: "casm_primclex_refresh", Params: []Kind{KindHandle, KindBool, KindBool, KindBool, KindBool, KindBool}, Returns: KindVoid,
		field: func(t *Table) any { return &t.PrimClexRefresh }},
	{Symbol: "casm_capi", Params: []Kind{KindCString, KindHandle, KindCString, KindHandle, KindHandle, KindHandle}, Returns: KindInt,
		field: func(t *Table) any { return &t.CAPI }},
}

// ErrUnbound reports a Table field that has no implementation.
var ErrUnbound = errors.New("entry point not bound")

// ErrSignatureMismatch reports a Table field whose Go type disagrees with the
// kinds declared for its entry point.
var ErrSignatureMismatch = errors.New("signature mismatch")

var (
	uintptrType = reflect.TypeOf(uintptr(0))
	stringType  = reflect.TypeOf("")
	bufferType  = reflect.TypeOf((*byte)(nil))
	uint64Type  = reflect.TypeOf(uint64(0))
	boolType    = reflect.TypeOf(false)
	int32Type   = reflect.TypeOf(int32(0))
)

// goType maps k to the Go type purego marshals it as. A nil type with ok set
// means no value (void results).
func (k Kind) goType(result bool) (reflect.Type, bool) {
	switch k {
	case KindVoid:
		return nil, result
	case KindHandle:
		return uintptrType, true
	case KindCString:
		return stringType, true
	case KindBuffer:
		// strcpy returns its destination, which is never dereferenced here.
		if result {
			return uintptrType, true
		}
		return bufferType, true
	case KindULong:
		return uint64Type, true
	case KindBool:
		return boolType, true
	case KindInt:
		return int32Type, true
	default:
		return nil, false
	}
}

// check compares the declared kinds against the Go func type of the field s
// binds in t.
func (s Signature) check(t *Table) error {
	ft := reflect.TypeOf(s.field(t)).Elem()
	if ft.Kind() != reflect.Func {
		return fmt.Errorf("%s: field is %s: %w", s, ft, ErrSignatureMismatch)
	}
	if ft.NumIn() != len(s.Params) {
		return fmt.Errorf("%s: field is %s: %w", s, ft, ErrSignatureMismatch)
	}
	for i, k := range s.Params {
		want, ok := k.goType(false)
		if !ok || want != ft.In(i) {
			return fmt.Errorf("%s: parameter %d is %s: %w", s, i, ft.In(i), ErrSignatureMismatch)
		}
	}
	want, ok := s.Returns.goType(true)
	if !ok {
		return fmt.Errorf("%s: unknown return kind: %w", s, ErrSignatureMismatch)
	}
	if want == nil {
		if ft.NumOut() != 0 {
			return fmt.Errorf("%s: field is %s: %w", s, ft, ErrSignatureMismatch)
		}
		return nil
	}
	if ft.NumOut() != 1 || ft.Out(0) != want {
		return fmt.Errorf("%s: field is %s: %w", s, ft, ErrSignatureMismatch)
	}
	return nil
}

// Validate reports the first entry point without an implementation or whose
// field disagrees with its declared kinds.
func (t *Table) Validate() error {
	return validate(Signatures, t)
}

func validate(sigs []Signature, t *Table) error {
	if t == nil {
		return fmt.Errorf("nil table: %w", ErrUnbound)
	}
	for _, sig := range sigs {
		if err := sig.check(t); err != nil {
			return err
		}
		if isNilFunc(sig.field(t)) {
			return fmt.Errorf("%s: %w", sig.Symbol, ErrUnbound)
		}
	}
	return nil
}

func isNilFunc(fptr any) bool {
	switch f := fptr.(type) {
	case *func() uintptr:
		return *f == nil
	case *func(uintptr):
		return *f == nil
	case *func(uintptr) uint64:
		return *f == nil
	case *func(uintptr, *byte) uintptr:
		return *f == nil
	case *func(string, uintptr, uintptr, uintptr) uintptr:
		return *f == nil
	case *func(uintptr, bool, bool, bool, bool, bool):
		return *f == nil
	case *func(string, uintptr, string, uintptr, uintptr, uintptr) int32:
		return *f == nil
	default:
		return true
	}
}

// bind checks the declared kinds and resolves every symbol before registering
// any of them, so a bad table or a missing symbol leaves nothing bound.
func bind(lookup func(string) (uintptr, error), register func(fptr any, addr uintptr)) (*Table, error) {
	return bindSignatures(Signatures, lookup, register)
}

func bindSignatures(sigs []Signature, lookup func(string) (uintptr, error), register func(fptr any, addr uintptr)) (*Table, error) {
	t := &Table{}
	for _, sig := range sigs {
		if err := sig.check(t); err != nil {
			return nil, &SessionError{Stage: StageBind, Symbol: sig.Symbol, Err: err}
		}
	}

	addrs := make([]uintptr, len(sigs))
	for i, sig := range sigs {
		addr, err := lookup(sig.Symbol)
		if err != nil {
			return nil, &SessionError{Stage: StageResolve, Symbol: sig.Symbol, Err: err}
		}
		if addr == 0 {
			return nil, &SessionError{Stage: StageResolve, Symbol: sig.Symbol, Err: ErrUnbound}
		}
		addrs[i] = addr
	}

	for i, sig := range sigs {
		if err := registerSafe(register, sig, sig.field(t), addrs[i]); err != nil {
			return nil, err
		}
	}
	if err := validate(sigs, t); err != nil {
		return nil, &SessionError{Stage: StageBind, Err: err}
	}
	return t, nil
}

func registerSafe(register func(any, uintptr), sig Signature, fptr any, addr uintptr) (err error) {
	// purego panics on signatures it cannot marshal.
	defer func() {
		if r := recover(); r != nil {
			err = &SessionError{Stage: StageBind, Symbol: sig.Symbol, Err: fmt.Errorf("register %s: %v", sig, r)}
		}
	}()
	register(fptr, addr)
	return nil
}
