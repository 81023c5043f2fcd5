package gogen

import (
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/sghaida/oproxy/internal/aop"
	"github.com/sghaida/oproxy/proxy"
)

func (r *renderer) declarations(f *jen.File) {
	p := r.p

	f.Comment(r.bindingsVar() + " is the binding set " + p.Name + " was generated for.")
	f.Var().Id(r.bindingsVar()).Op("=").Add(r.bindingSet(p.Bindings))
	f.Line()

	entries := make([]jen.Code, 0, len(p.Slots)+len(p.Delegates))
	for _, s := range p.Slots {
		entries = append(entries, r.slotEntry(s))
	}
	for _, d := range p.Delegates {
		entries = append(entries, r.delegateEntry(d))
	}
	f.Var().Id(r.tableVar()).Op("=").Add(r.rtQual("NewMethodTable")).Custom(multiParens, entries...)
	f.Line()

	if c, ok := r.constructOriginal(); ok && c.Bindings.Len() > 0 {
		f.Var().Id(r.ctorMethodVar()).Op("=").Add(r.ctorEntry(c))
		f.Line()
	}

	f.Comment(r.definitionVar() + " describes " + p.Constructor + " to containers.")
	f.Var().Id(r.definitionVar()).Op("=").Add(r.definition())
	f.Line()

	f.Var().Defs(r.assertions()...)
}

// One item per line, trailing comma included.
var (
	multiParens = jen.Options{Open: "(", Close: ")", Separator: ",", Multi: true}
	multiBraces = jen.Options{Open: "{", Close: "}", Separator: ",", Multi: true}
)

func (r *renderer) binding(b proxy.Binding) *jen.Statement {
	fn := "Around"
	switch b.Kind {
	case proxy.KindIntroduction:
		fn = "Introduction"
	case proxy.KindAroundConstruct:
		fn = "AroundConstruct"
	}
	return r.rtQual(fn).Call(jen.Lit(b.Name))
}

func (r *renderer) bindingSet(bs proxy.BindingSet) *jen.Statement {
	items := make([]jen.Code, 0, bs.Len())
	for _, b := range bs.All() {
		items = append(items, r.binding(b))
	}
	return r.rtQual("NewBindingSet").Call(items...)
}

func stringSlice(ss []string) *jen.Statement {
	items := make([]jen.Code, len(ss))
	for i, s := range ss {
		items[i] = jen.Lit(s)
	}
	return jen.Index().String().Values(items...)
}

func (r *renderer) executable(ref aop.MethodRef, bindings proxy.BindingSet, abstract bool, invoke jen.Code) *jen.Statement {
	d := jen.Dict{
		jen.Id("Declaring"): jen.Lit(ref.Declaring),
		jen.Id("Name"):      jen.Lit(ref.Name),
		jen.Id("Bindings"):  r.bindingSet(bindings),
	}
	if len(ref.Params) > 0 {
		d[jen.Id("ArgumentTypes")] = stringSlice(ref.ArgTypes())
	}
	if ref.IsGeneric() {
		d[jen.Id("GenericArgumentTypes")] = stringSlice(ref.GenericArgTypes())
	}
	if len(ref.Returns) > 0 {
		d[jen.Id("ReturnTypes")] = stringSlice(ref.ReturnTypes())
	}
	if abstract {
		d[jen.Id("Abstract")] = jen.True()
	}
	if invoke != nil {
		d[jen.Id("Invoke")] = invoke
	}
	return jen.Op("&").Add(r.rtQual("ExecutableMethod")).Values(d)
}

// invoker builds func(target any, args []any) (any, error) around call.
func (r *renderer) invoker(shape aop.Shape, call *jen.Statement) *jen.Statement {
	var body []jen.Code
	switch shape {
	case aop.ShapeNone:
		body = []jen.Code{call, jen.Return(jen.Nil(), jen.Nil())}
	case aop.ShapeValue:
		body = []jen.Code{jen.Return(call, jen.Nil())}
	case aop.ShapeError:
		body = []jen.Code{jen.Return(jen.Nil(), call)}
	default:
		body = []jen.Code{jen.Return(call)}
	}
	return jen.Func().
		Params(jen.Id("target").Id("any"), jen.Id("args").Index().Id("any")).
		Params(jen.Id("any"), jen.Error()).
		Block(body...)
}

// unpack is the argument list that reads params back out of args.
func (r *renderer) unpack(params []aop.Param) []jen.Code {
	out := make([]jen.Code, len(params))
	for i, p := range params {
		a := r.rtQual("Arg").Types(r.paramType(p)).Call(jen.Id("args"), jen.Lit(i))
		if p.Variadic {
			a = a.Op("...")
		}
		out[i] = a
	}
	return out
}

func (r *renderer) slotEntry(s *aop.MethodSlot) *jen.Statement {
	var recv *jen.Statement
	switch s.Impl {
	case aop.ImplNone:
		return r.executable(s.Ref, s.Bindings, true, nil)
	case aop.ImplBridge:
		recv = jen.Id("target").Assert(r.proxyPtr()).Dot(s.BridgeName())
	default:
		recv = jen.Id("target").Assert(r.targetType()).Dot(s.Name())
	}
	call := recv.Call(r.unpack(s.Ref.Params)...)
	return r.executable(s.Ref, s.Bindings, false, r.invoker(s.Ref.ResultShape(), call))
}

// delegateEntry invokes the intercepted method of the proxy handed in as target,
// converting arguments to the slot's parameter types.
func (r *renderer) delegateEntry(d aop.Delegate) *jen.Statement {
	call := jen.Id("target").Assert(r.proxyPtr()).Dot(d.To.Name()).Call(r.unpack(d.To.Ref.Params)...)
	return r.executable(d.Ref, d.To.Bindings, false, r.invoker(d.To.Ref.ResultShape(), call))
}

func (r *renderer) constructOriginal() (aop.ConstructOriginal, bool) {
	for _, st := range r.p.Init {
		if c, ok := st.(aop.ConstructOriginal); ok {
			return c, true
		}
	}
	return aop.ConstructOriginal{}, false
}

func (r *renderer) ctorEntry(c aop.ConstructOriginal) *jen.Statement {
	ref := aop.MethodRef{
		Declaring: r.p.Target.Name,
		Name:      "New" + r.p.Target.Name,
		Returns:   []aop.TypeRef{aop.T(r.p.Target.TypeExpr())},
	}
	if c.Ctor != nil {
		ref.Name = c.Ctor.Name
		ref.Params = c.Ctor.Params
	}
	return r.executable(ref, c.Bindings, false, nil)
}

var roleConst = map[proxy.ParamRole]string{
	proxy.RoleInjectable:        "RoleInjectable",
	proxy.RoleResolutionContext: "RoleResolutionContext",
	proxy.RoleLocator:           "RoleLocator",
	proxy.RoleQualifier:         "RoleQualifier",
	proxy.RoleInterceptors:      "RoleInterceptors",
	proxy.RoleRegistry:          "RoleRegistry",
}

// tailTypes are the bookkeeping parameter types as written in definitions.
var tailTypes = map[proxy.ParamRole]string{
	proxy.RoleResolutionContext: "*proxy.ResolutionContext",
	proxy.RoleLocator:           "proxy.Locator",
	proxy.RoleQualifier:         "proxy.Qualifier",
	proxy.RoleInterceptors:      "[]proxy.Registration",
	proxy.RoleRegistry:          "proxy.InterceptorRegistry",
}

func (r *renderer) definition() *jen.Statement {
	l := r.p.Layout
	params := make([]jen.Code, 0, l.Len())
	for _, h := range l.Handles() {
		typ := tailTypes[h.Role]
		if h.Role == proxy.RoleInjectable {
			op := l.OriginalParam(h)
			typ = op.Type.Type
			if op.Variadic {
				typ = "[]" + typ
			}
		}
		d := jen.Dict{
			jen.Id("Name"): jen.Lit(h.Name),
			jen.Id("Type"): jen.Lit(typ),
			jen.Id("Role"): r.rtQual(roleConst[h.Role]),
		}
		if h.Role == proxy.RoleInterceptors {
			d[jen.Id("Qualifier")] = jen.Id(r.bindingsVar())
		}
		params = append(params, jen.Values(d))
	}

	return jen.Op("&").Add(r.rtQual("Definition")).Values(jen.Dict{
		jen.Id("Type"):        jen.Lit(r.p.Name),
		jen.Id("Target"):      jen.Lit(r.p.Target.TypeExpr()),
		jen.Id("Mode"):        jen.Lit(r.p.Mode.String()),
		jen.Id("Constructor"): jen.Lit(r.p.Constructor),
		jen.Id("Params"):      jen.Index().Add(r.rtQual("ParamDefinition")).Custom(multiBraces, params...),
		jen.Id("Bindings"):    jen.Id(r.bindingsVar()),
	})
}

func (r *renderer) assertions() []jen.Code {
	var ifaces []*jen.Statement
	if r.p.Target.Interface {
		ifaces = append(ifaces, r.targetType())
	}
	for _, i := range r.p.Target.Interfaces {
		if strings.TrimSpace(i) != "" {
			ifaces = append(ifaces, r.typ(i))
		}
	}
	switch r.p.Marker {
	case aop.MarkerAccessor:
		ifaces = append(ifaces, r.rtQual("TargetAccessor").Types(r.targetType()))
	case aop.MarkerHotSwap:
		ifaces = append(ifaces, r.rtQual("HotSwappable").Types(r.targetType()))
	default:
		ifaces = append(ifaces, r.rtQual("Intercepted"))
	}
	if r.p.Mode == aop.ModeCachedLazy {
		ifaces = append(ifaces, r.rtQual("ResettableTarget"))
	}

	out := make([]jen.Code, len(ifaces))
	for i, t := range ifaces {
		out[i] = jen.Id("_").Add(t).Op("=").Parens(r.proxyPtr()).Call(jen.Nil())
	}
	return out
}

func (r *renderer) structType(f *jen.File) {
	fields := make([]jen.Code, 0, len(r.p.Fields))
	for _, fd := range r.p.Fields {
		switch fd.Role {
		case aop.FieldEmbedded:
			fields = append(fields, jen.Op("*").Id(r.p.Target.Name))
		case aop.FieldTarget:
			if r.p.Mode == aop.ModeCachedLazy {
				fields = append(fields, jen.Id(fd.Name).Qual("sync/atomic", "Pointer").Types(r.targetType()))
			} else {
				fields = append(fields, jen.Id(fd.Name).Add(r.targetType()))
			}
		case aop.FieldTargetMutex:
			fields = append(fields, jen.Id(fd.Name).Qual("sync", "Mutex"))
		case aop.FieldTargetLock:
			fields = append(fields, jen.Id(fd.Name).Qual("sync", "RWMutex"))
		case aop.FieldResolutionContext:
			fields = append(fields, jen.Id(fd.Name).Op("*").Add(r.rtQual("ResolutionContext")))
		case aop.FieldLocator:
			fields = append(fields, jen.Id(fd.Name).Add(r.rtQual("Locator")))
		case aop.FieldQualifier:
			fields = append(fields, jen.Id(fd.Name).Add(r.rtQual("Qualifier")))
		case aop.FieldInterceptors:
			fields = append(fields, jen.Id(fd.Name).Index().Index().Add(r.rtQual("Interceptor")))
		}
	}

	what := "intercepts " + r.p.Target.Name
	switch r.p.Mode {
	case aop.ModeNoTarget:
		if r.p.Target.Interface {
			what = "implements " + r.p.Target.Name + " from interceptors alone"
		}
	default:
		what += " and forwards to its " + r.p.Mode.String() + " target"
	}
	f.Comment(r.p.Name + " " + what + ".")
	f.Type().Id(r.p.Name).Struct(fields...)
	f.Line()
}

func (r *renderer) constructor(f *jen.File) {
	l := r.p.Layout
	params := make([]jen.Code, 0, l.Len())
	for _, h := range l.Original {
		params = append(params, jen.Id(h.Name).Add(r.paramType(l.OriginalParam(h))))
	}
	params = append(params,
		jen.Id(l.ResolutionContext.Name).Op("*").Add(r.rtQual("ResolutionContext")),
		jen.Id(l.Locator.Name).Add(r.rtQual("Locator")),
		jen.Id(l.Qualifier.Name).Add(r.rtQual("Qualifier")),
		jen.Id(l.Interceptors.Name).Index().Add(r.rtQual("Registration")),
		jen.Id(l.Registry.Name).Add(r.rtQual("InterceptorRegistry")),
	)

	body := []jen.Code{jen.Id("px").Op(":=").Op("&").Id(r.p.Name).Values()}
	for _, st := range r.p.Init {
		body = append(body, r.stmt(st)...)
	}
	body = append(body, jen.Return(jen.Id("px"), jen.Nil()))

	f.Comment(r.p.Constructor + " constructs a new " + r.p.Name + ".")
	f.Func().Id(r.p.Constructor).Custom(multiParens, params...).Params(r.proxyPtr(), jen.Error()).Block(body...)
	f.Line()
}

func returnOnErr() *jen.Statement {
	return jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Err()))
}

func (r *renderer) stmt(st aop.Stmt) []jen.Code {
	switch s := st.(type) {
	case aop.ConstructOriginal:
		return r.construct(s)
	case aop.AssignParam:
		return []jen.Code{jen.Id("px").Dot(s.Field.Name).Op("=").Id(s.Param.Name)}
	case aop.ResolveTarget:
		return []jen.Code{
			jen.List(jen.Id("target"), jen.Err()).Op(":=").Add(r.rtQual("Locate")).Types(r.targetType()).
				Call(jen.Id(s.Locator.Name), jen.Id(s.ResolutionContext.Name), jen.Id(s.Qualifier.Name)),
			returnOnErr(),
			jen.Id("px").Dot(s.Field.Name).Op("=").Id("target"),
		}
	case aop.InitInterceptors:
		return []jen.Code{
			jen.Id("px").Dot(s.Field.Name).Op("=").Make(jen.Index().Index().Add(r.rtQual("Interceptor")), jen.Lit(s.Slots)),
		}
	case aop.ResolveChain:
		fn := "ResolveAroundInterceptors"
		if s.Kind == proxy.KindIntroduction {
			fn = "ResolveIntroductionInterceptors"
		}
		return []jen.Code{
			jen.Id("px").Dot(s.Field.Name).Index(jen.Lit(s.Slot.Index)).Op("=").Add(r.rtQual(fn)).Call(
				jen.Id(s.Registry.Name),
				jen.Id(r.tableVar()).Dot("At").Call(jen.Lit(s.Slot.Index)),
				jen.Id(s.Candidates.Name),
			),
		}
	}
	r.fail(&TypeError{Expr: r.p.Name, Reason: "unknown constructor statement"})
	return nil
}

// construct builds the embedded instance: the zero value, the original
// constructor, or the original constructor wrapped by around-construct
// interceptors.
func (r *renderer) construct(c aop.ConstructOriginal) []jen.Code {
	l := r.p.Layout
	assign := jen.Id("px").Dot(c.Field.Name).Op("=")
	zero := jen.Op("&").Id(r.p.Target.Name).Values()

	args := make([]jen.Code, len(c.Args))
	for i, h := range c.Args {
		a := jen.Id(h.Name)
		if l.OriginalParam(h).Variadic {
			a = a.Op("...")
		}
		args[i] = a
	}

	if c.Bindings.Len() == 0 {
		switch {
		case c.Ctor == nil:
			return []jen.Code{assign.Add(zero)}
		case !c.Ctor.ReturnsError:
			return []jen.Code{assign.Id(c.Ctor.Name).Call(args...)}
		}
		return []jen.Code{
			jen.List(jen.Id("orig"), jen.Err()).Op(":=").Id(c.Ctor.Name).Call(args...),
			returnOnErr(),
			jen.Id("px").Dot(c.Field.Name).Op("=").Id("orig"),
		}
	}

	var ctorBody jen.Code
	switch {
	case c.Ctor == nil:
		ctorBody = jen.Return(zero, jen.Nil())
	case c.Ctor.ReturnsError:
		ctorBody = jen.Return(jen.Id(c.Ctor.Name).Call(r.unpack(c.Ctor.Params)...))
	default:
		ctorBody = jen.Return(jen.Id(c.Ctor.Name).Call(r.unpack(c.Ctor.Params)...), jen.Nil())
	}
	ctorFn := jen.Func().Params(jen.Id("args").Index().Id("any")).Params(r.targetType(), jen.Error()).Block(ctorBody)

	callArgs := []jen.Code{
		r.rtQual("ResolveAroundConstructInterceptors").Call(jen.Id(c.Registry.Name), jen.Id(r.ctorMethodVar()), jen.Id(c.Interceptors.Name)),
		jen.Id(r.ctorMethodVar()),
		ctorFn,
	}
	for _, h := range c.Args {
		callArgs = append(callArgs, jen.Id(h.Name))
	}
	return []jen.Code{
		jen.List(jen.Id("orig"), jen.Err()).Op(":=").Add(r.rtQual("Construct")).Types(r.targetType()).Custom(multiParens, callArgs...),
		returnOnErr(),
		jen.Id("px").Dot(c.Field.Name).Op("=").Id("orig"),
	}
}
