// Package oproxy generates interceptor proxies for Go types at build time.
//
// A proxy spec next to a type names the methods to intercept and the
// interceptor bindings that apply to them. proxygen turns it into a plain Go
// file: a proxy type whose intercepted methods run through an ordered
// interceptor chain before reaching the original code, with no reflection on
// the call path.
//
// Three kinds of advice are supported:
//
//   - around: interceptors wrap an existing implementation
//   - introduction: interceptors are the implementation of an interface
//   - around-construct: interceptors wrap construction of the proxied instance
//
// Interface proxies may forward to a target obtained from a locator, resolved
// eagerly, lazily, lazily with caching, or held behind a hot-swappable lock.
//
// See subpackages:
//   - proxy: runtime API used by generated code and by interceptors
//   - cmd/proxygen: the generator
//   - internal/aop: the synthesis engine, independent of Go syntax
//   - internal/gogen: lowering of synthesized proxies to Go source
//   - examples/shop, examples/greeter: generated proxies with their tests
package oproxy
