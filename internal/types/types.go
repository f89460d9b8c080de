// Package types implements the resolved Type sum (spec.md §3) and the
// Copy/Move predicate every other pass consults.
package types

import "fmt"

// Type is a resolved type: primitive, reference, function, or box.
type Type interface {
	String() string
	isType()
}

// PrimKind enumerates the primitive kinds.
type PrimKind int

const (
	I32 PrimKind = iota
	U32
	Bool
	Unit
)

// PrimitiveType is one of i32, u32, bool, unit.
type PrimitiveType struct {
	Kind PrimKind
}

func (p *PrimitiveType) isType() {}
func (p *PrimitiveType) String() string {
	switch p.Kind {
	case I32:
		return "i32"
	case U32:
		return "u32"
	case Bool:
		return "bool"
	default:
		return "unit"
	}
}

// Convenience constructors, reused everywhere a literal type is needed.
func I32Type() *PrimitiveType  { return &PrimitiveType{Kind: I32} }
func U32Type() *PrimitiveType  { return &PrimitiveType{Kind: U32} }
func BoolType() *PrimitiveType { return &PrimitiveType{Kind: Bool} }
func UnitType() *PrimitiveType { return &PrimitiveType{Kind: Unit} }

// RefType represents &T (Mut == false) or &mut T (Mut == true).
type RefType struct {
	Mut  bool
	Elem Type
}

func (r *RefType) isType() {}
func (r *RefType) String() string {
	if r.Mut {
		return fmt.Sprintf("&mut %s", r.Elem.String())
	}

	return fmt.Sprintf("&%s", r.Elem.String())
}

// BoxType represents Box<T>, a heap-owned single cell.
type BoxType struct {
	Elem Type
}

func (b *BoxType) isType()        {}
func (b *BoxType) String() string { return fmt.Sprintf("Box<%s>", b.Elem.String()) }

// FuncType represents fn(T1,...,Tn) -> R. ParamNames line up with Params
// (spec.md §3: "carrying parameter names and types plus return type").
type FuncType struct {
	ParamNames []string
	Params     []Type
	Return     Type
}

func (f *FuncType) isType() {}
func (f *FuncType) String() string {
	s := "fn("
	for i, p := range f.Params {
		if i > 0 {
			s += ", "
		}

		s += p.String()
	}

	return s + ") -> " + f.Return.String()
}

// TypesEqual reports whether two types have the same variant and
// structural payload (spec.md §3).
func TypesEqual(a, b Type) bool {
	switch a := a.(type) {
	case *PrimitiveType:
		b, ok := b.(*PrimitiveType)
		return ok && a.Kind == b.Kind
	case *RefType:
		b, ok := b.(*RefType)
		return ok && a.Mut == b.Mut && TypesEqual(a.Elem, b.Elem)
	case *BoxType:
		b, ok := b.(*BoxType)
		return ok && TypesEqual(a.Elem, b.Elem)
	case *FuncType:
		b, ok := b.(*FuncType)
		if !ok || len(a.Params) != len(b.Params) {
			return false
		}

		for i := range a.Params {
			if !TypesEqual(a.Params[i], b.Params[i]) {
				return false
			}
		}

		return TypesEqual(a.Return, b.Return)
	default:
		return false
	}
}

// IsCopy reports whether t is copy-semantic: primitive or immutable
// reference. Everything else (&mut T, Box<T>) is move-semantic. This is
// the sole authority the borrow checker consults (spec.md §3).
func IsCopy(t Type) bool {
	switch t := t.(type) {
	case *PrimitiveType:
		return true
	case *RefType:
		return !t.Mut
	default:
		return false
	}
}

// IsNumeric reports whether t supports + - * / %.
func IsNumeric(t Type) bool {
	p, ok := t.(*PrimitiveType)
	return ok && (p.Kind == I32 || p.Kind == U32)
}
