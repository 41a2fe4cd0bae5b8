package errors

// WrapStorage wraps err as a StorageError tagged with the given component.
// If err is nil or already a StorageError, it is returned unchanged.
func WrapStorage(err error, op Operation, component string) error {
	if err == nil || IsStorage(err) {
		return err
	}
	e := NewStorageError(op, err)
	if component != "" {
		e.Component = component
	}
	return e
}

// WrapOpComponentKind wraps err with Op, Component and Kind.
// If err is nil, returns nil.
func WrapOpComponentKind(err error, op, component string, kind Kind) error {
	if err == nil {
		return nil
	}
	e := NewWithComponent(Operation(op), component, err)
	e.Kind = kind
	return e
}
