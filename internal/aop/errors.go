package aop

import "strconv"

// ConfigError reports an invalid proxy configuration found during the visit phase.
//
// It aborts the synthesis pass and carries the offending type and, when known,
// the offending method.
type ConfigError struct {
	Type   string
	Method string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	// Example: aop: Greeter.Greet: method returns 3 values; want at most (T, error)
	where := e.Type
	if e.Method != "" {
		where += "." + e.Method
	}
	return "aop: " + where + ": " + e.Reason
}

// StructuralError is the panic value for driver programming errors, such as
// finishing a pass before a constructor was visited. It is never returned.
type StructuralError struct {
	Op     string
	Reason string
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	return "aop: " + e.Op + ": " + e.Reason
}

func structural(op, reason string) {
	panic(&StructuralError{Op: op, Reason: reason})
}

func configErr(typ, method, reason string) *ConfigError {
	return &ConfigError{Type: typ, Method: method, Reason: reason}
}

func quote(s string) string { return strconv.Quote(s) }
