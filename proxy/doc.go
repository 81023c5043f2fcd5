// Package proxy is the runtime used by code generated with proxygen.
//
// A generated proxy routes calls of selected methods through an ordered chain of
// interceptors. Each chain ends either in the real implementation (around advice)
// or, when no implementation exists, in an UnimplementedError (introduction advice
// that no interceptor answered).
//
// The package is intentionally small:
//
//   - Binding / BindingSet: which interceptors apply (by name and kind)
//   - Interceptor / Invocation: the chain and its Proceed step
//   - ExecutableMethod / MethodTable: per-method descriptors with a terminal Invoker
//   - InterceptorRegistry: ordering and filtering of candidate interceptors
//   - Locator / MapLocator: how proxies obtain their target instance
//   - Intercepted / TargetAccessor / HotSwappable: capabilities of generated types
//   - Definition: constructor metadata for containers
//
// No reflection-based invocation happens at runtime. Generated code calls the
// target directly; reflection is only used to key Locator lookups by type.
//
// Import
//
//	"github.com/sghaida/oproxy/proxy"
package proxy
