package proxy

// Intercepted is implemented by every generated proxy.
type Intercepted interface {
	// InterceptedBindings returns the frozen binding set the proxy was generated with.
	InterceptedBindings() BindingSet
}

// TargetAccessor is implemented by proxies that forward to a separate target instance
// (eager, lazy and cached-lazy resolution).
type TargetAccessor[T any] interface {
	Intercepted

	// HasCachedInterceptedTarget reports whether the target is held by the proxy,
	// so that InterceptedTarget will not consult the locator.
	HasCachedInterceptedTarget() bool

	// InterceptedTarget returns the target, resolving it if needed.
	InterceptedTarget() (T, error)
}

// HotSwappable is implemented by proxies whose target can be replaced at runtime.
type HotSwappable[T any] interface {
	TargetAccessor[T]

	// Swap atomically replaces the target and returns the previous one.
	Swap(target T) T
}

// ResettableTarget is implemented by cached-lazy proxies. After a reset the next
// access resolves the target through the locator again.
type ResettableTarget interface {
	ResetInterceptedTarget()
}
