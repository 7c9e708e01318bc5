package foreign

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockRuntime is an in-memory Runtime used by bridge and service tests. It
// models the host's local reference table so tests can assert that every
// transient reference created during a call was released, and it supports
// scripted failure injection at each lifecycle stage.
type MockRuntime struct {
	mu      sync.Mutex
	nextRef uint64
	live    map[Ref]string            // ref -> tag describing what it holds
	strings map[Ref]string            // interned string contents
	maps    map[Ref]map[string]string // foreign hash map contents

	// Captured bridge activity.
	Params     map[string]string // entries put into the scanner config map
	InitArg    string            // serialized pushdown ranges passed to init
	InitCalls  int
	OpenCalls  int
	ReadCalls  int
	CloseCalls int

	// Scripted batches returned by getNextBatch, one payload per call;
	// when exhausted the scanner reports end of stream.
	Batches  [][]byte
	batchIdx int

	// Failure injection.
	FailFindClass map[string]error // by class name
	FailNewObject map[string]error // by class name
	FailMethod    map[string]error // by method name
	FailReadAt    int              // 1-based getNextBatch call to fail, 0 = never
	FailNewString error
}

// scanner-impl is the tag the mock loader hands back for the concrete
// scanner class, standing in for whatever class the loader resolves.
const mockScannerClass = "scanner-impl"

// NewMockRuntime creates an empty mock runtime.
func NewMockRuntime() *MockRuntime {
	return &MockRuntime{
		live:    make(map[Ref]string),
		strings: make(map[Ref]string),
		maps:    make(map[Ref]map[string]string),
	}
}

func (m *MockRuntime) alloc(tag string) Ref {
	m.nextRef++
	r := Ref(m.nextRef)
	m.live[r] = tag
	return r
}

// LiveRefs returns the number of references currently held in the mock's
// local reference table. A leak-free bridge leaves exactly its owned
// scanner ref live after create, and zero after close.
func (m *MockRuntime) LiveRefs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// LiveTags returns the tags of all live refs, for failure messages.
func (m *MockRuntime) LiveTags() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	tags := make([]string, 0, len(m.live))
	for _, t := range m.live {
		tags = append(tags, t)
	}
	return tags
}

// FindClass resolves a class name to a mock class ref.
func (m *MockRuntime) FindClass(ctx context.Context, name string) (Ref, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailFindClass[name]; err != nil {
		return NilRef, err
	}
	return m.alloc("class:" + name), nil
}

// NewObject constructs a mock instance of the given class.
func (m *MockRuntime) NewObject(ctx context.Context, class Ref, args ...Value) (Ref, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tag, ok := m.live[class]
	if !ok {
		return NilRef, fmt.Errorf("mock: NewObject on released ref %d", class)
	}
	name := strings.TrimPrefix(tag, "class:")
	if err := m.FailNewObject[name]; err != nil {
		return NilRef, err
	}

	switch {
	case strings.Contains(name, "HashMap"):
		r := m.alloc("map")
		m.maps[r] = make(map[string]string)
		return r, nil
	case name == mockScannerClass:
		// Constructor is (fieldCount, configMap); capture the config.
		for _, a := range args {
			if a.Kind == KindRef {
				if entries, ok := m.maps[a.Ref]; ok {
					m.Params = make(map[string]string, len(entries))
					for k, v := range entries {
						m.Params[k] = v
					}
				}
			}
		}
		return m.alloc("scanner"), nil
	default:
		return m.alloc("object:" + name), nil
	}
}

// NewString interns a string.
func (m *MockRuntime) NewString(ctx context.Context, s string) (Ref, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNewString != nil {
		return NilRef, m.FailNewString
	}
	r := m.alloc("string")
	m.strings[r] = s
	return r, nil
}

// CallMethod dispatches mock behavior by method name.
func (m *MockRuntime) CallMethod(ctx context.Context, obj Ref, method string, args ...Value) (Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tag, ok := m.live[obj]
	if !ok {
		return Null(), fmt.Errorf("mock: CallMethod %s on released ref %d", method, obj)
	}
	if err := m.FailMethod[method]; err != nil {
		return Null(), err
	}

	switch method {
	case "getLoaderClass":
		return RefValue(m.alloc("class:" + mockScannerClass)), nil

	case "put":
		entries, ok := m.maps[obj]
		if !ok {
			return Null(), fmt.Errorf("mock: put on non-map ref %d (%s)", obj, tag)
		}
		if len(args) != 2 {
			return Null(), fmt.Errorf("mock: put expects 2 args, got %d", len(args))
		}
		key, kok := m.strings[args[0].Ref]
		val, vok := m.strings[args[1].Ref]
		if !kok || !vok {
			return Null(), fmt.Errorf("mock: put with released string refs")
		}
		entries[key] = val
		return Null(), nil

	case "init":
		m.InitCalls++
		if len(args) > 0 {
			m.InitArg = args[0].Str
		}
		return Null(), nil

	case "open":
		m.OpenCalls++
		return Null(), nil

	case "getNextBatch":
		m.ReadCalls++
		if m.FailReadAt > 0 && m.ReadCalls == m.FailReadAt {
			return Null(), fmt.Errorf("mock: injected read failure at call %d", m.ReadCalls)
		}
		if m.batchIdx < len(m.Batches) {
			payload := m.Batches[m.batchIdx]
			m.batchIdx++
			return BytesValue(payload), nil
		}
		return Null(), nil

	case "close":
		m.CloseCalls++
		return Null(), nil

	default:
		return Null(), fmt.Errorf("mock: unknown method %q on %s", method, tag)
	}
}

// ReleaseLocal drops a reference from the mock table.
func (m *MockRuntime) ReleaseLocal(ctx context.Context, ref Ref) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, ref)
	delete(m.strings, ref)
	delete(m.maps, ref)
}

// Close is a no-op for the mock.
func (m *MockRuntime) Close() error { return nil }
