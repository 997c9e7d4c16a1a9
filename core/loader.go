package core

// Factory builds a module from code resident in a loaded library. A nil
// module with a nil error is the factory returning null.
type Factory func() (Module, error)

// Library is an opened shared library (or script) that can produce
// modules. Close releases the library and every instance it produced, so
// it must only run once those instances are no longer referenced.
type Library interface {
	Path() string
	Factory(symbol string) (Factory, error)
	Close() error
}

// Loader opens libraries by platform-native path.
type Loader interface {
	Open(path string) (Library, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(path string) (Library, error)

func (f LoaderFunc) Open(path string) (Library, error) { return f(path) }
