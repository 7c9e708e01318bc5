package bridge

import (
	"context"
	"fmt"
	"log"
	"sort"

	"hudi-scan-bridge/internal/columnar"
	"hudi-scan-bridge/internal/foreign"
	"hudi-scan-bridge/internal/utils"
)

// Class names resolved in the foreign runtime. The loader indirection
// keeps the bridge decoupled from the concrete scanner class: the loader
// decides at runtime which implementation to hand back.
const (
	scannerLoaderClass = "org/apache/hudi/bridge/HudiScannerLoader"
	hashMapClass       = "java/util/HashMap"
)

// ScannerHandle owns exactly one foreign scanner object and mediates
// every cross-boundary call to it. A handle is driven by a single thread;
// it provides no internal synchronization.
type ScannerHandle struct {
	rt      foreign.Runtime
	scanner foreign.Ref
	st      state
	closed  bool
}

// NewScannerHandle resolves the scanner class through the loader
// indirection and constructs the foreign scanner with the required field
// count and the flat scan configuration. Every transient foreign
// reference created along the way is released before return, on success
// and on failure.
func NewScannerHandle(ctx context.Context, rt foreign.Runtime, requiredFieldCount int, params map[string]string) (*ScannerHandle, error) {
	bag := foreign.NewRefBag(rt)
	defer bag.ReleaseAll(ctx)

	loaderClass, err := rt.FindClass(ctx, scannerLoaderClass)
	if err != nil {
		return nil, utils.NewBridgeInitError(err, "scanner loader class not found")
	}
	bag.Add(loaderClass)

	loader, err := rt.NewObject(ctx, loaderClass)
	if err != nil {
		return nil, utils.NewBridgeInitError(err, "scanner loader construction failed")
	}
	bag.Add(loader)

	loaded, err := rt.CallMethod(ctx, loader, "getLoaderClass")
	if err != nil {
		return nil, utils.NewBridgeInitError(err, "scanner class resolution failed")
	}
	scannerClass := bag.Add(loaded.Ref)

	mapClass, err := rt.FindClass(ctx, hashMapClass)
	if err != nil {
		return nil, utils.NewBridgeInitError(err, "map class not found")
	}
	bag.Add(mapClass)

	configMap, err := rt.NewObject(ctx, mapClass, foreign.Int(len(params)))
	if err != nil {
		return nil, utils.NewBridgeInitError(err, "config map construction failed")
	}
	bag.Add(configMap)

	// Sorted for deterministic call order; the map itself is unordered.
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key, err := rt.NewString(ctx, k)
		if err != nil {
			return nil, utils.NewBridgeInitError(err, "config key intern failed")
		}
		val, err := rt.NewString(ctx, params[k])
		if err != nil {
			rt.ReleaseLocal(ctx, key)
			return nil, utils.NewBridgeInitError(err, "config value intern failed")
		}
		_, err = rt.CallMethod(ctx, configMap, "put", foreign.RefValue(key), foreign.RefValue(val))
		rt.ReleaseLocal(ctx, key)
		rt.ReleaseLocal(ctx, val)
		if err != nil {
			return nil, utils.NewBridgeInitError(err, "config map population failed")
		}
	}

	scanner, err := rt.NewObject(ctx, scannerClass, foreign.Int(requiredFieldCount), foreign.RefValue(configMap))
	if err != nil {
		return nil, utils.NewBridgeInitError(err, "scanner construction failed")
	}

	return &ScannerHandle{
		rt:      rt,
		scanner: scanner,
		st:      stateConstructed,
	}, nil
}

// State returns the handle's lifecycle state name, for status reporting.
func (h *ScannerHandle) State() string { return h.st.String() }

// Closed reports whether the foreign scanner has been closed.
func (h *ScannerHandle) Closed() bool { return h.closed }

// Init forwards the serialized pushdown ranges to the foreign scanner.
// Must precede Open.
func (h *ScannerHandle) Init(ctx context.Context, pushdown string) error {
	if h.st != stateConstructed {
		return utils.NewBridgeStateError(fmt.Sprintf("init called in state %s", h.st))
	}

	if _, err := h.rt.CallMethod(ctx, h.scanner, "init", foreign.String(pushdown)); err != nil {
		h.st = stateFailed
		return utils.NewPushdownError(err, err.Error())
	}

	h.st = stateInitialized
	return nil
}

// Open opens the foreign scanner's underlying resources.
func (h *ScannerHandle) Open(ctx context.Context) error {
	if h.st != stateInitialized {
		return utils.NewBridgeStateError(fmt.Sprintf("open called in state %s", h.st))
	}

	if _, err := h.rt.CallMethod(ctx, h.scanner, "open"); err != nil {
		h.st = stateFailed
		return utils.NewOpenError(err, err.Error())
	}

	h.st = stateOpened
	return nil
}

// NextBlock pulls the next batch from the foreign scanner into the block.
// A null result is end of stream: the handle closes the scanner exactly
// once before returning eof. On a read failure the handle transitions to
// Failed and still attempts that single close; a close failure during
// cleanup is attached but never masks the read error.
func (h *ScannerHandle) NextBlock(ctx context.Context, block *columnar.Block) (int, bool, error) {
	if h.st != stateOpened {
		return 0, false, utils.NewBridgeStateError(fmt.Sprintf("nextBlock called in state %s", h.st))
	}

	result, err := h.rt.CallMethod(ctx, h.scanner, "getNextBatch")
	if err != nil {
		h.st = stateFailed
		readErr := utils.NewReadError(err, err.Error())
		if closeErr := h.Close(ctx); closeErr != nil {
			log.Printf("bridge: cleanup close after read failure also failed: %v", closeErr)
		}
		return 0, false, readErr
	}

	if result.IsNull() || (result.Kind == foreign.KindBytes && len(result.Bytes) == 0) {
		if err := h.Close(ctx); err != nil {
			return 0, true, err
		}
		return 0, true, nil
	}

	rows, err := block.AppendIPC(result.Bytes)
	if err != nil {
		h.st = stateFailed
		readErr := utils.NewReadError(err, err.Error())
		if closeErr := h.Close(ctx); closeErr != nil {
			log.Printf("bridge: cleanup close after decode failure also failed: %v", closeErr)
		}
		return 0, false, readErr
	}

	return rows, false, nil
}

// Close releases the foreign scanner and its resources. Called at most
// once per handle: the bridge invokes it on end-of-stream or during
// failure unwinding, never twice. A second call is a programming error.
func (h *ScannerHandle) Close(ctx context.Context) error {
	if h.closed {
		return utils.NewBridgeStateError("close called twice")
	}
	h.closed = true

	_, err := h.rt.CallMethod(ctx, h.scanner, "close")
	h.rt.ReleaseLocal(ctx, h.scanner)
	h.scanner = foreign.NilRef
	if h.st != stateFailed {
		h.st = stateClosed
	}
	if err != nil {
		return utils.NewCloseError(err, err.Error())
	}
	return nil
}

// Abandon releases the scanner when the bridge is torn down before
// reaching end of stream. Best effort: the foreign object reference is
// always dropped, but foreign-side resources are only guaranteed released
// by a successful close.
func (h *ScannerHandle) Abandon(ctx context.Context) {
	if h.closed {
		return
	}
	if err := h.Close(ctx); err != nil {
		log.Printf("bridge: abandon close failed: %v", err)
	}
}
