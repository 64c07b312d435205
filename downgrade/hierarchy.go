package downgrade

import (
	"sync"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
)

type classInfo struct {
	super       string
	isInterface bool
}

// jdkClasses covers the platform types that most often meet at a merge
// point: exception handlers, boxed numbers and common interfaces.
var jdkClasses = map[string]classInfo{
	"java/lang/Object":    {},
	"java/lang/String":    {super: "java/lang/Object"},
	"java/lang/Number":    {super: "java/lang/Object"},
	"java/lang/Integer":   {super: "java/lang/Number"},
	"java/lang/Long":      {super: "java/lang/Number"},
	"java/lang/Short":     {super: "java/lang/Number"},
	"java/lang/Byte":      {super: "java/lang/Number"},
	"java/lang/Float":     {super: "java/lang/Number"},
	"java/lang/Double":    {super: "java/lang/Number"},
	"java/lang/Character": {super: "java/lang/Object"},
	"java/lang/Boolean":   {super: "java/lang/Object"},
	"java/lang/Enum":      {super: "java/lang/Object"},
	"java/lang/Record":    {super: "java/lang/Object"},
	"java/lang/Class":     {super: "java/lang/Object"},

	"java/lang/Throwable":                       {super: "java/lang/Object"},
	"java/lang/Exception":                       {super: "java/lang/Throwable"},
	"java/lang/Error":                           {super: "java/lang/Throwable"},
	"java/lang/RuntimeException":                {super: "java/lang/Exception"},
	"java/lang/IllegalArgumentException":        {super: "java/lang/RuntimeException"},
	"java/lang/NumberFormatException":           {super: "java/lang/IllegalArgumentException"},
	"java/lang/IllegalStateException":           {super: "java/lang/RuntimeException"},
	"java/lang/NullPointerException":            {super: "java/lang/RuntimeException"},
	"java/lang/ArithmeticException":             {super: "java/lang/RuntimeException"},
	"java/lang/ClassCastException":              {super: "java/lang/RuntimeException"},
	"java/lang/UnsupportedOperationException":   {super: "java/lang/RuntimeException"},
	"java/lang/IndexOutOfBoundsException":       {super: "java/lang/RuntimeException"},
	"java/lang/ArrayIndexOutOfBoundsException":  {super: "java/lang/IndexOutOfBoundsException"},
	"java/lang/StringIndexOutOfBoundsException": {super: "java/lang/IndexOutOfBoundsException"},
	"java/util/NoSuchElementException":          {super: "java/lang/RuntimeException"},
	"java/util/ConcurrentModificationException": {super: "java/lang/RuntimeException"},
	"java/io/UncheckedIOException":              {super: "java/lang/RuntimeException"},
	"java/lang/ReflectiveOperationException":    {super: "java/lang/Exception"},
	"java/lang/ClassNotFoundException":          {super: "java/lang/ReflectiveOperationException"},
	"java/lang/InterruptedException":            {super: "java/lang/Exception"},
	"java/io/IOException":                       {super: "java/lang/Exception"},
	"java/io/FileNotFoundException":             {super: "java/io/IOException"},
	"java/util/concurrent/ExecutionException":   {super: "java/lang/Exception"},
	"java/util/concurrent/CompletionException":  {super: "java/lang/RuntimeException"},
	"java/lang/AssertionError":                  {super: "java/lang/Error"},
	"java/lang/LinkageError":                    {super: "java/lang/Error"},

	"java/lang/CharSequence":      {isInterface: true},
	"java/lang/Comparable":        {isInterface: true},
	"java/lang/Iterable":          {isInterface: true},
	"java/lang/Runnable":          {isInterface: true},
	"java/lang/AutoCloseable":     {isInterface: true},
	"java/io/Closeable":           {isInterface: true},
	"java/io/Serializable":        {isInterface: true},
	"java/util/Collection":        {isInterface: true},
	"java/util/List":              {isInterface: true},
	"java/util/Set":               {isInterface: true},
	"java/util/Map":               {isInterface: true},
	"java/util/Map$Entry":         {isInterface: true},
	"java/util/Iterator":          {isInterface: true},
	"java/util/function/Function": {isInterface: true},
	"java/util/function/Supplier": {isInterface: true},
	"java/util/function/Consumer": {isInterface: true},
}

// Hierarchy answers super class queries for frame computation from the
// classes being processed, the configured libraries and a small table of
// platform classes. Classes are parsed on first use. Hierarchy is safe for
// concurrent use.
type Hierarchy struct {
	mu      sync.RWMutex
	known   map[string]classInfo
	sources map[string]func() ([]byte, error)
	roots   []classRoot
}

// NewHierarchy returns a hierarchy knowing only the platform table.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{
		known:   make(map[string]classInfo),
		sources: make(map[string]func() ([]byte, error)),
	}
}

// AddSource registers a lazily read class. Earlier registrations win, so
// the input being processed shadows libraries added after it.
func (h *Hierarchy) AddSource(name string, read func() ([]byte, error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sources[name]; !ok {
		h.sources[name] = read
	}
}

// AddClass registers an already parsed class.
func (h *Hierarchy) AddClass(c *cf.Class) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.known[c.Name] = classInfo{super: c.Super, isInterface: c.IsInterface()}
}

// AddLibrary registers every class of a directory or jar. The library
// stays open until Close.
func (h *Hierarchy) AddLibrary(path string) error {
	root, err := openClassRoot(path)
	if err != nil {
		return err
	}
	h.addRoot(root)
	return nil
}

func (h *Hierarchy) addRoot(root classRoot) {
	h.mu.Lock()
	h.roots = append(h.roots, root)
	h.mu.Unlock()
	for _, name := range root.names() {
		name := name
		h.AddSource(name, func() ([]byte, error) {
			data, _, err := root.open(name)
			return data, err
		})
	}
}

// SuperClass implements classfile.Hierarchy.
func (h *Hierarchy) SuperClass(name string) (string, bool, bool) {
	h.mu.RLock()
	info, ok := h.known[name]
	read := h.sources[name]
	h.mu.RUnlock()
	if ok {
		return info.super, info.isInterface, true
	}

	if read != nil {
		if data, err := read(); err == nil {
			if c, err := cf.Parse(data); err == nil && c.Name == name {
				h.AddClass(c)
				return c.Super, c.IsInterface(), true
			}
		}
	}
	if info, ok := jdkClasses[name]; ok {
		return info.super, info.isInterface, true
	}
	return "", false, false
}

// Close releases the libraries.
func (h *Hierarchy) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var first error
	for _, r := range h.roots {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	h.roots = nil
	return first
}
