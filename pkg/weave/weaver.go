package weave

import (
	"errors"
	"fmt"
	"math"

	"github.com/daimatz/jweave/pkg/bytecode"
	"github.com/daimatz/jweave/pkg/classfile"
	"github.com/daimatz/jweave/pkg/interceptor"
)

const throwableClass = "java/lang/Throwable"

var errNoSuperCall = errors.New("constructor does not call a superclass constructor")

// Weave splices the hooks of interceptor id into the member h. The fragments
// woven follow interceptor.Reconcile; on any failure the member and its
// class are left exactly as they were.
//
// Layout of a woven method:
//
//	[before][original body, every xreturn replaced by goto exit][exit][handler]
//
// For constructors the before fragment follows the call that initializes
// this. The catch-all handler covers the original body only, so a hook is
// never reported twice for one invocation.
func Weave(h *MethodHandle, reg *interceptor.Registry, id int, kind interceptor.Kind) error {
	m := h.model
	fail := func(err error) error {
		return &Error{Op: "weave", Class: m.Name(), Member: h.Name() + h.Descriptor(), Err: err}
	}

	if m.frozen {
		return fail(ErrClassFrozen)
	}
	entry, err := reg.Lookup(id)
	if err != nil {
		return fail(err)
	}
	caps, err := interceptor.Reconcile(entry.Capability, kind)
	if err != nil {
		return fail(err)
	}
	if h.IsClassInitializer() {
		return fail(fmt.Errorf("%w: class initializers cannot be intercepted", ErrFragmentGeneration))
	}
	if h.IsEmpty() {
		return fail(fmt.Errorf("%w: member has no body", ErrFragmentGeneration))
	}
	if caps.Has(interceptor.After) && !m.pool.Contains(throwableClass) {
		return fail(fmt.Errorf("%w: %s", ErrUnknownType, classfile.DottedName(throwableClass)))
	}

	pool := classfile.NewConstPool(m.cf.ConstantPool)
	code, listing, err := splice(h, pool, id, caps)
	if err != nil {
		return fail(err)
	}

	m.cf.ConstantPool = pool.Entries()
	h.info().Code = code
	m.woven[h.index] = true

	m.logger.V(1).Info("woven", "member", h.LongName(), "id", id, "hooks", caps.String(),
		"codeLength", len(code.Code), "fragment", bytecode.Disassemble(listing))
	return nil
}

type handlerRef struct {
	start, end, handler *bytecode.Insn
	catchType           uint16
}

// splice builds the woven body of h on copies. It returns the new code
// attribute and the instruction list it was assembled from.
func splice(h *MethodHandle, pool *classfile.ConstPool, id int, caps interceptor.Capability) (*classfile.CodeAttribute, []*bytecode.Insn, error) {
	code := h.Code().Clone()
	mt, err := classfile.ParseMethodDescriptor(h.Descriptor())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFragmentGeneration, err)
	}
	l, err := bytecode.Decode(code.Code)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrFragmentGeneration, err)
	}
	body := l.Insns
	if len(body) == 0 {
		return nil, nil, fmt.Errorf("%w: empty code", ErrFragmentGeneration)
	}
	origLen := len(code.Code)

	// at maps an original offset to its instruction; the end of the body
	// maps to nil.
	at := func(pc int) (*bytecode.Insn, error) {
		if pc == origLen {
			return nil, nil
		}
		in := l.At(pc)
		if in == nil {
			return nil, fmt.Errorf("%w: offset %d is not an instruction boundary", ErrFragmentGeneration, pc)
		}
		return in, nil
	}
	handlers := make([]handlerRef, 0, len(code.ExceptionHandlers)+1)
	for _, eh := range code.ExceptionHandlers {
		var hr handlerRef
		var err error
		if hr.start, err = at(int(eh.StartPC)); err != nil {
			return nil, nil, err
		}
		if hr.end, err = at(int(eh.EndPC)); err != nil {
			return nil, nil, err
		}
		if hr.handler, err = at(int(eh.HandlerPC)); err != nil {
			return nil, nil, err
		}
		if hr.start == nil || hr.handler == nil {
			return nil, nil, fmt.Errorf("%w: exception handler outside code", ErrFragmentGeneration)
		}
		hr.catchType = eh.CatchType
		handlers = append(handlers, hr)
	}

	f := &fragmentBuilder{
		pool:   pool,
		id:     id,
		static: h.IsStatic(),
		class:  h.model.Name(),
		method: h.HookName(),
		mt:     mt,
	}

	insertAt := 0
	if h.IsConstructor() && h.model.cf.SuperClass != 0 {
		idx, err := superCallIndex(body, pool.Entries())
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrFragmentGeneration, err)
		}
		insertAt = idx + 1
		if insertAt >= len(body) {
			return nil, nil, fmt.Errorf("%w: constructor ends at its super call", ErrFragmentGeneration)
		}
	}
	// The catch-all range starts at the first original instruction that
	// runs with an initialized receiver.
	bodyStart := body[insertAt]

	insns := make([]*bytecode.Insn, 0, len(body)+64)
	insns = append(insns, body[:insertAt]...)
	if caps.Has(interceptor.Before) {
		insns = append(insns, f.before()...)
	}
	insns = append(insns, body[insertAt:]...)

	maxLocals := int(code.MaxLocals)
	var exit, handler []*bytecode.Insn
	if caps.Has(interceptor.After) {
		retSlot := maxLocals
		excSlot := retSlot
		if mt.Return != "V" {
			excSlot += classfile.SlotSize(mt.Return)
		}
		exit = f.normalExit(retSlot)
		for _, in := range body {
			if in.Op.IsReturn() {
				in.Op, in.Operand, in.Target = bytecode.OpGoto, nil, exit[0]
			}
		}
		handler = f.exceptionalExit(excSlot)
		insns = append(insns, exit...)
		insns = append(insns, handler...)
		maxLocals = excSlot + 1
		handlers = append(handlers, handlerRef{
			start:     bodyStart,
			end:       exit[0],
			handler:   handler[0],
			catchType: pool.Class(throwableClass),
		})
	}
	if maxLocals > math.MaxUint16 {
		return nil, nil, fmt.Errorf("%w: %d locals", ErrFragmentGeneration, maxLocals)
	}
	if err := pool.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrFragmentGeneration, err)
	}

	enc, err := bytecode.Encode(insns)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrFragmentGeneration, err)
	}

	var bodyEnd *bytecode.Insn
	if exit != nil {
		bodyEnd = exit[0]
	}
	offset := func(in *bytecode.Insn) uint16 {
		if in == nil {
			in = bodyEnd
		}
		if in == nil {
			return uint16(len(enc.Code))
		}
		off, _ := enc.Offset(in)
		return uint16(off)
	}

	code.Code = enc.Code
	code.MaxLocals = uint16(maxLocals)
	code.MaxStack = uint16(min(int(code.MaxStack)+fragmentStack, math.MaxUint16))
	code.ExceptionHandlers = code.ExceptionHandlers[:0]
	for _, hr := range handlers {
		code.ExceptionHandlers = append(code.ExceptionHandlers, classfile.ExceptionHandler{
			StartPC:   offset(hr.start),
			EndPC:     offset(hr.end),
			HandlerPC: offset(hr.handler),
			CatchType: hr.catchType,
		})
	}

	attrs, err := remapCodeAttributes(code.Attributes, at, offset)
	if err != nil {
		return nil, nil, err
	}
	code.Attributes = attrs
	return code, insns, nil
}

// superCallIndex returns the position of the invokespecial <init> that
// initializes the receiver: the first one not paired with a preceding new.
func superCallIndex(insns []*bytecode.Insn, pool []classfile.ConstantPoolEntry) (int, error) {
	pending := 0
	for i, in := range insns {
		switch in.Op {
		case bytecode.OpNew:
			pending++
		case bytecode.OpInvokespecial:
			ref, err := classfile.ResolveMethodref(pool, uint16(in.Operand[0])<<8|uint16(in.Operand[1]))
			if err != nil || ref.MethodName != "<init>" {
				continue
			}
			if pending == 0 {
				return i, nil
			}
			pending--
		}
	}
	return -1, errNoSuperCall
}

// remapCodeAttributes moves debug tables to the new offsets and drops the
// stack map frames, which no longer describe the woven body.
func remapCodeAttributes(attrs []classfile.AttributeInfo, at func(int) (*bytecode.Insn, error), offset func(*bytecode.Insn) uint16) ([]classfile.AttributeInfo, error) {
	out := make([]classfile.AttributeInfo, 0, len(attrs))
	for _, a := range attrs {
		switch a.Name {
		case classfile.AttrStackMapTable:
			continue

		case classfile.AttrLineNumberTable:
			lines, err := classfile.ParseLineNumberTable(a.Data)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrFragmentGeneration, err)
			}
			for i := range lines {
				in, err := at(int(lines[i].StartPC))
				if err != nil {
					return nil, err
				}
				lines[i].StartPC = offset(in)
			}
			a.Data = classfile.EncodeLineNumberTable(lines)

		case classfile.AttrLocalVariableTable, classfile.AttrLocalVariableTypeTable:
			vars, err := classfile.ParseLocalVariableTable(a.Data)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrFragmentGeneration, err)
			}
			for i := range vars {
				v := &vars[i]
				end, err := at(int(v.StartPC) + int(v.Length))
				if err != nil {
					return nil, err
				}
				var start uint16
				if v.StartPC != 0 {
					in, err := at(int(v.StartPC))
					if err != nil {
						return nil, err
					}
					start = offset(in)
				}
				v.StartPC = start
				v.Length = offset(end) - start
			}
			a.Data = classfile.EncodeLocalVariableTable(vars)
		}
		out = append(out, a)
	}
	return out, nil
}
