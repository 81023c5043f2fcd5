package gogen

import (
	"github.com/dave/jennifer/jen"

	"github.com/sghaida/oproxy/internal/aop"
)

func (r *renderer) signature(m *aop.Method) (params []jen.Code, results []jen.Code) {
	for i, p := range m.Params {
		t := r.typ(p.Type.Type)
		if p.Variadic && i == len(m.Params)-1 {
			params = append(params, jen.Id(p.Name).Op("...").Add(t))
			continue
		}
		params = append(params, jen.Id(p.Name).Add(r.paramType(p)))
	}
	for _, t := range m.Returns {
		results = append(results, r.typ(t.Type))
	}
	return params, results
}

func (r *renderer) recvFunc(f *jen.File, name string, params []jen.Code, results []jen.Code, body ...jen.Code) {
	fn := f.Func().Params(jen.Id("px").Add(r.proxyPtr())).Id(name).Params(params...)
	switch len(results) {
	case 0:
	case 1:
		fn.Add(results[0])
	default:
		fn.Params(results...)
	}
	fn.Block(body...)
	f.Line()
}

func (r *renderer) method(f *jen.File, m *aop.Method) {
	targetT := func() *jen.Statement { return r.targetType() }

	switch b := m.Body.(type) {
	case aop.InterceptBody:
		params, results := r.signature(m)
		r.recvFunc(f, m.Name, params, results, r.intercept(b)...)
	case aop.ForwardBody:
		params, results := r.signature(m)
		r.recvFunc(f, m.Name, params, results, r.forward(b.Ref)...)
	case aop.BridgeBody:
		params, results := r.signature(m)
		call := jen.Id("px").Dot(b.Field.Name).Dot(b.Slot.Name()).Call(callArgs(m.Params)...)
		if len(m.Returns) == 0 {
			r.recvFunc(f, m.Name, params, results, call)
		} else {
			r.recvFunc(f, m.Name, params, results, jen.Return(call))
		}
	case aop.BindingsBody:
		r.recvFunc(f, m.Name, nil, []jen.Code{r.rtQual("BindingSet")}, jen.Return(jen.Id(r.bindingsVar())))
	case aop.HasCachedTargetBody:
		r.recvFunc(f, m.Name, nil, []jen.Code{jen.Bool()}, r.hasCached(b.Mode))
	case aop.TargetAccessorBody:
		r.recvFunc(f, m.Name, nil, []jen.Code{targetT(), jen.Error()}, r.accessor(b.Mode)...)
	case aop.SwapBody:
		lock := r.pxField(aop.FieldTargetLock)
		r.recvFunc(f, m.Name, []jen.Code{jen.Id("target").Add(targetT())}, []jen.Code{targetT()},
			lock.Clone().Dot("Lock").Call(),
			jen.Defer().Add(lock.Clone()).Dot("Unlock").Call(),
			jen.Id("prev").Op(":=").Add(r.pxField(aop.FieldTarget)),
			r.pxField(aop.FieldTarget).Op("=").Id("target"),
			jen.Return(jen.Id("prev")),
		)
	case aop.ResetTargetBody:
		mu := r.pxField(aop.FieldTargetMutex)
		r.recvFunc(f, m.Name, nil, nil,
			mu.Clone().Dot("Lock").Call(),
			jen.Defer().Add(mu.Clone()).Dot("Unlock").Call(),
			r.pxField(aop.FieldTarget).Dot("Store").Call(jen.Nil()),
		)
	default:
		r.fail(&TypeError{Expr: m.Name, Reason: "unknown method body"})
	}
}

// callArgs passes params on, spreading a trailing variadic parameter.
func callArgs(params []aop.Param) []jen.Code {
	out := make([]jen.Code, len(params))
	for i, p := range params {
		a := jen.Id(p.Name)
		if p.Variadic && i == len(params)-1 {
			a = a.Op("...")
		}
		out[i] = a
	}
	return out
}

// failWith ends a method on err: returned when the last result is an error,
// raised otherwise. Other results are zero.
func (r *renderer) failWith(returns []aop.TypeRef, err jen.Code) jen.Code {
	if len(returns) == 0 || !returns[len(returns)-1].IsError() {
		return jen.Panic(err)
	}
	vals := make([]jen.Code, 0, len(returns))
	for _, t := range returns[:len(returns)-1] {
		vals = append(vals, r.rtQual("Zero").Types(r.typ(t.Type)).Call())
	}
	return jen.Return(append(vals, err)...)
}

func (r *renderer) fetchTarget(returns []aop.TypeRef) []jen.Code {
	return []jen.Code{
		jen.List(jen.Id("target"), jen.Err()).Op(":=").Id("px").Dot("InterceptedTarget").Call(),
		jen.If(jen.Err().Op("!=").Nil()).Block(r.failWith(returns, jen.Err())),
	}
}

func (r *renderer) intercept(b aop.InterceptBody) []jen.Code {
	s := b.Slot
	ref := s.Ref

	var body []jen.Code
	recv := jen.Id("px")
	if b.Receiver == aop.ReceiverTarget {
		body = append(body, r.fetchTarget(ref.Returns)...)
		recv = jen.Id("target")
	}

	args := []jen.Code{
		r.pxField(aop.FieldInterceptors).Index(jen.Lit(s.Index)),
		recv,
		jen.Id(r.tableVar()).Dot("At").Call(jen.Lit(s.Index)),
	}
	for _, p := range ref.Params {
		args = append(args, jen.Id(p.Name))
	}
	proceed := r.rtQual("NewInvocation").Call(args...).Dot("Proceed").Call()
	isErr := jen.Err().Op("!=").Nil()

	switch ref.ResultShape() {
	case aop.ShapeNone:
		body = append(body, jen.If(jen.List(jen.Id("_"), jen.Err()).Op(":=").Add(proceed), isErr).Block(
			jen.Panic(jen.Err()),
		))
	case aop.ShapeError:
		body = append(body,
			jen.If(jen.List(jen.Id("_"), jen.Err()).Op(":=").Add(proceed), isErr).Block(jen.Return(jen.Err())),
			jen.Return(jen.Nil()),
		)
	case aop.ShapeValue:
		body = append(body,
			jen.List(jen.Id("res"), jen.Err()).Op(":=").Add(proceed),
			jen.If(isErr).Block(jen.Panic(jen.Err())),
			jen.Return(r.rtQual("MustResult").Types(r.typ(ref.Returns[0].Type)).Call(jen.Id("res"))),
		)
	case aop.ShapeValueError:
		body = append(body,
			jen.List(jen.Id("res"), jen.Err()).Op(":=").Add(proceed),
			jen.If(isErr).Block(r.failWith(ref.Returns, jen.Err())),
			jen.Return(r.rtQual("Result").Types(r.typ(ref.Returns[0].Type)).Call(jen.Id("res"))),
		)
	default:
		r.fail(&TypeError{Expr: ref.Name, Reason: "unsupported result shape"})
	}
	return body
}

func (r *renderer) forward(ref aop.MethodRef) []jen.Code {
	body := r.fetchTarget(ref.Returns)
	call := jen.Id("target").Dot(ref.Name).Call(callArgs(ref.Params)...)
	if len(ref.Returns) == 0 {
		return append(body, call)
	}
	return append(body, jen.Return(call))
}

func (r *renderer) hasCached(mode aop.ResolutionMode) jen.Code {
	switch mode {
	case aop.ModeLazy:
		return jen.Return(jen.False())
	case aop.ModeCachedLazy:
		return jen.Return(r.pxField(aop.FieldTarget).Dot("Load").Call().Op("!=").Nil())
	default:
		return jen.Return(jen.True())
	}
}

func (r *renderer) locate(rc, loc, q jen.Code) *jen.Statement {
	return r.rtQual("Locate").Types(r.targetType()).Call(loc, rc, q)
}

func (r *renderer) accessor(mode aop.ResolutionMode) []jen.Code {
	switch mode {
	case aop.ModeEager:
		return []jen.Code{jen.Return(r.pxField(aop.FieldTarget), jen.Nil())}

	case aop.ModeLazy:
		return []jen.Code{jen.Return(r.locate(
			r.pxField(aop.FieldResolutionContext),
			r.pxField(aop.FieldLocator),
			r.pxField(aop.FieldQualifier),
		))}

	case aop.ModeCachedLazy:
		load := func() jen.Code {
			return jen.If(jen.Id("t").Op(":=").Add(r.pxField(aop.FieldTarget)).Dot("Load").Call(), jen.Id("t").Op("!=").Nil()).Block(
				jen.Return(jen.Op("*").Id("t"), jen.Nil()),
			)
		}
		mu := r.pxField(aop.FieldTargetMutex)
		return []jen.Code{
			load(),
			mu.Clone().Dot("Lock").Call(),
			jen.Defer().Add(mu.Clone()).Dot("Unlock").Call(),
			load(),
			jen.List(jen.Id("target"), jen.Err()).Op(":=").Add(r.locate(
				r.pxField(aop.FieldResolutionContext),
				r.pxField(aop.FieldLocator),
				r.pxField(aop.FieldQualifier),
			)),
			jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Id("target"), jen.Err())),
			r.pxField(aop.FieldTarget).Dot("Store").Call(jen.Op("&").Id("target")),
			r.pxField(aop.FieldResolutionContext).Op("=").Nil(),
			jen.Return(jen.Id("target"), jen.Nil()),
		}

	case aop.ModeHotSwap:
		lock := r.pxField(aop.FieldTargetLock)
		return []jen.Code{
			lock.Clone().Dot("RLock").Call(),
			jen.Defer().Add(lock.Clone()).Dot("RUnlock").Call(),
			jen.Id("target").Op(":=").Add(r.pxField(aop.FieldTarget)),
			jen.Return(jen.Id("target"), jen.Nil()),
		}
	}
	r.fail(&TypeError{Expr: r.p.Name, Reason: "no target accessor in mode " + mode.String()})
	return nil
}
