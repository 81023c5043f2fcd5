// Command proxygen generates interceptor proxies from spec files.
//
// A spec names a target type, the advice and the interceptor bindings of its
// methods. proxygen synthesizes a proxy type for it and writes a *.gen.go file
// into the target package:
//
//	//go:generate go run github.com/sghaida/oproxy/cmd/proxygen gen --spec cart.proxy.json
//
// # Targets
//
// Struct targets are proxied by embedding *T. Intercepted methods are
// overridden and reach the original implementation through an unexported
// orig<Method> bridge; every other method stays promoted. The proxy
// constructor takes the original constructor's parameters first and can run
// around-construct interceptors around it.
//
// Interface targets are proxied by implementing the interface. With
// "advice": "introduction" there is no target at all: interceptors supply the
// implementation and a chain that falls through returns
// *proxy.UnimplementedError. With "proxyTarget": true calls reach an instance
// obtained from a proxy.Locator, resolved
//
//   - once in the constructor (default)
//   - on every call ("lazy")
//   - on first use and then cached until ResetInterceptedTarget ("lazy" and "cacheLazyTarget")
//   - once, and replaceable at run time through Swap ("hotswap")
//
// "lazy" and "hotswap" exclude each other; lazy wins and a warning is logged.
//
// # Spec files
//
// JSON and YAML are accepted. A minimal around proxy:
//
//	{
//	  "package": "shop",
//	  "target": "Cart",
//	  "constructor": {"name": "NewCart", "params": [{"name": "owner", "type": "string"}]},
//	  "methods": [
//	    {"name": "Add",
//	     "params": [{"name": "item", "type": "string"}, {"name": "qty", "type": "int"}],
//	     "returns": [{"type": "int"}, {"type": "error"}],
//	     "bindings": [{"name": "logged"}]}
//	  ]
//	}
//
// With --load, method signatures, the original constructor and imports are
// read from the type-checked package, so a spec may list methods by name and
// bindings only.
//
// # Output
//
// The generated file starts with a "Code generated" header, the spec path and
// the spec's SHA-256. It declares the binding set, the executable method
// table, the proxy struct, its constructor, the overrides and a
// proxy.Definition describing the constructor parameters to a container.
//
// # Usage
//
//	proxygen gen --spec a.proxy.json [--spec b.proxy.yaml] [--out x.gen.go]
//	             [--check] [--load] [--dump-ir] [--log-level debug]
//	proxygen version
//
// --check writes nothing and fails with a diff when a generated file is out
// of date. PROXYGEN_LOG_LEVEL sets the default log level.
package main
