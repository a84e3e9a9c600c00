package errors

// WrapOpComponent wraps err with an operation and component. If err is nil, returns nil.
func WrapOpComponent(err error, op, component string) error {
	if err == nil {
		return nil
	}
	return E(Op(op), Component(component), err)
}

// WrapOpComponentKind wraps err with an operation, component and kind.
// If err is nil, returns nil.
func WrapOpComponentKind(err error, op, component string, kind Kind) error {
	if err == nil {
		return nil
	}
	return E(Op(op), Component(component), kind, err)
}
