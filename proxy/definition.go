package proxy

// ParamRole tells a container what a proxy constructor parameter is for.
type ParamRole int

const (
	// RoleInjectable is an original constructor parameter the container supplies.
	RoleInjectable ParamRole = iota

	// RoleResolutionContext receives the *ResolutionContext of the current request.
	RoleResolutionContext

	// RoleLocator receives the Locator used to resolve the proxy target.
	RoleLocator

	// RoleQualifier receives the Qualifier of the proxy target.
	RoleQualifier

	// RoleInterceptors receives the candidate registrations matching Definition.Bindings.
	RoleInterceptors

	// RoleRegistry receives the InterceptorRegistry.
	RoleRegistry
)

// String returns a short role name.
func (r ParamRole) String() string {
	switch r {
	case RoleInjectable:
		return "injectable"
	case RoleResolutionContext:
		return "resolution-context"
	case RoleLocator:
		return "locator"
	case RoleQualifier:
		return "qualifier"
	case RoleInterceptors:
		return "interceptors"
	case RoleRegistry:
		return "registry"
	default:
		return "unknown"
	}
}

// ParamDefinition describes one constructor parameter of a generated proxy.
type ParamDefinition struct {
	Name string
	Type string
	Role ParamRole

	// Qualifier is set on the interceptor-list parameter: only registrations
	// answering to one of these bindings should be passed.
	Qualifier BindingSet
}

// Definition is the injectable metadata emitted next to every generated proxy.
type Definition struct {
	// Type is the proxy type name.
	Type string

	// Target is the proxied type as written in Go ("Greeter", "*Cart").
	Target string

	// Mode is the target resolution mode ("eager", "lazy", ...).
	Mode string

	// Constructor is the name of the generated constructor.
	Constructor string

	// Params lists the constructor parameters in order.
	Params []ParamDefinition

	// Bindings is the full binding set of the proxy.
	Bindings BindingSet
}

// Param returns the first parameter with the given role.
func (d *Definition) Param(role ParamRole) (ParamDefinition, bool) {
	for _, p := range d.Params {
		if p.Role == role {
			return p, true
		}
	}
	return ParamDefinition{}, false
}

// Injectables returns the original (container supplied) parameters.
func (d *Definition) Injectables() []ParamDefinition {
	var out []ParamDefinition
	for _, p := range d.Params {
		if p.Role == RoleInjectable {
			out = append(out, p)
		}
	}
	return out
}
