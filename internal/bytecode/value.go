package bytecode

// ValueType is the interpreter's full tagged-union kind. The JIT's type
// lattice (jit.ValueType) only ever specializes on Number/Bool/String; the
// remaining kinds exist so the JIT can recognize operands it must reject.
type ValueType byte

const (
	ValUndefined ValueType = iota
	ValBool
	ValNumber
	ValString
	ValFunction
	ValNeedThis        // 方法查找结果：尚未绑定 this 的函数
	ValWithThis        // 已绑定 this 的函数
	ValEmbeddedFunction
	ValObject
)

func (t ValueType) String() string {
	switch t {
	case ValUndefined:
		return "undefined"
	case ValBool:
		return "bool"
	case ValNumber:
		return "number"
	case ValString:
		return "string"
	case ValFunction:
		return "function"
	case ValNeedThis:
		return "need-this"
	case ValWithThis:
		return "with-this"
	case ValEmbeddedFunction:
		return "embedded-function"
	case ValObject:
		return "object"
	default:
		return "unknown"
	}
}

// FunctionDescriptor identifies a user-defined function by the bytecode PC
// of its CREATE_CONTEXT entry instruction.
type FunctionDescriptor struct {
	EntryPC int
	Name    string
}

// ObjectDescriptor is a compile-time-resolvable object literal: a map
// from member names to constant-table indices. GET_MEMBER folds through
// this when the parent operand carries one as its literal.
type ObjectDescriptor struct {
	Members map[string]int // member name -> index into the owning ConstantTable
}

// Value is the interpreter's runtime value. Only Bool/Number/String ever
// cross into compiled code; the rest are carried so the JIT can see them
// (as PUSH_CONST literals or interpreter-stack contents) and correctly
// refuse to specialize on them.
type Value struct {
	Type ValueType

	Num float64 // ValNumber, and ValBool (0/1) for convenience on the stack
	Str string  // ValString

	Func     *FunctionDescriptor // ValFunction
	Embedded EmbeddedFunctionID  // ValEmbeddedFunction
	Object   *ObjectDescriptor   // ValObject
}

// Undefined is the canonical undefined value.
var Undefined = Value{Type: ValUndefined}

// NumberValue constructs a Number value.
func NumberValue(n float64) Value { return Value{Type: ValNumber, Num: n} }

// BoolValue constructs a Bool value.
func BoolValue(b bool) Value {
	n := 0.0
	if b {
		n = 1.0
	}
	return Value{Type: ValBool, Num: n}
}

// StringValue constructs a String value.
func StringValue(s string) Value { return Value{Type: ValString, Str: s} }

// FunctionValue constructs a Function value referring to a user function.
func FunctionValue(entryPC int, name string) Value {
	return Value{Type: ValFunction, Func: &FunctionDescriptor{EntryPC: entryPC, Name: name}}
}

// EmbeddedFunctionValue constructs a Value naming a host-provided helper.
func EmbeddedFunctionValue(id EmbeddedFunctionID) Value {
	return Value{Type: ValEmbeddedFunction, Embedded: id}
}

// ObjectValue constructs a Value for a compile-time object literal descriptor.
func ObjectValue(desc *ObjectDescriptor) Value {
	return Value{Type: ValObject, Object: desc}
}

// Bool reports the value's truthiness when it is ValBool (Num != 0 means true).
func (v Value) Bool() bool { return v.Num != 0 }

// IsNumber, IsBool and IsString are convenience predicates used throughout
// the type lattice and the marshalling shims.
func (v Value) IsNumber() bool { return v.Type == ValNumber }
func (v Value) IsBool() bool   { return v.Type == ValBool }
func (v Value) IsString() bool { return v.Type == ValString }
