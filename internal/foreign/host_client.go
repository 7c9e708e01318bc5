package foreign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"hudi-scan-bridge/internal/middleware"
)

// HostClient drives a scanner-host sidecar process over HTTP. The host
// owns the actual JVM objects; this client only moves handles and values
// across the process boundary. Batch results travel as Arrow IPC streams
// inside the JSON frame.
type HostClient struct {
	baseURL    string
	httpClient *http.Client
}

// HostConfig holds scanner host connection settings.
type HostConfig struct {
	Endpoint string        // host endpoint, e.g. http://127.0.0.1:9430
	Timeout  time.Duration // per-call timeout; scans can block on storage I/O
}

// NewHostClient creates a client for the scanner host.
func NewHostClient(config *HostConfig) (*HostClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("scanner host endpoint is required")
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	return &HostClient{
		baseURL: config.Endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// wire frames. Values are tagged unions so the host can reconstruct the
// argument types without method signatures; the flat map protocol in the
// scan configuration is the only schema surface between the two sides.

type wireValue struct {
	Kind  string `json:"kind"`
	Bool  bool   `json:"bool,omitempty"`
	Int   int64  `json:"int,omitempty"`
	Str   string `json:"str,omitempty"`
	Bytes []byte `json:"bytes,omitempty"` // base64 via encoding/json
	Ref   uint64 `json:"ref,omitempty"`
}

type invokeRequest struct {
	Class  string      `json:"class,omitempty"`
	Target uint64      `json:"target,omitempty"`
	Method string      `json:"method,omitempty"`
	Args   []wireValue `json:"args,omitempty"`
	Str    string      `json:"str,omitempty"`
}

type invokeResponse struct {
	Result *wireValue `json:"result,omitempty"`
	Ref    uint64     `json:"ref,omitempty"`
	Error  string     `json:"error,omitempty"`
}

func encodeValue(v Value) wireValue {
	switch v.Kind {
	case KindBool:
		return wireValue{Kind: "bool", Bool: v.Bool}
	case KindInt:
		return wireValue{Kind: "int", Int: v.Int}
	case KindLong:
		return wireValue{Kind: "long", Int: v.Int}
	case KindString:
		return wireValue{Kind: "string", Str: v.Str}
	case KindBytes:
		return wireValue{Kind: "bytes", Bytes: v.Bytes}
	case KindRef:
		return wireValue{Kind: "ref", Ref: uint64(v.Ref)}
	default:
		return wireValue{Kind: "null"}
	}
}

func decodeValue(w *wireValue) Value {
	if w == nil {
		return Null()
	}
	switch w.Kind {
	case "bool":
		return Bool(w.Bool)
	case "int":
		return Int(int(w.Int))
	case "long":
		return Long(w.Int)
	case "string":
		return String(w.Str)
	case "bytes":
		return BytesValue(w.Bytes)
	case "ref":
		return RefValue(Ref(w.Ref))
	default:
		return Null()
	}
}

// FindClass resolves a class in the host JVM.
func (c *HostClient) FindClass(ctx context.Context, name string) (Ref, error) {
	resp, err := c.post(ctx, "/v1/class/find", &invokeRequest{Class: name})
	if err != nil {
		return NilRef, err
	}
	return Ref(resp.Ref), nil
}

// NewObject constructs an instance of the given class in the host JVM.
func (c *HostClient) NewObject(ctx context.Context, class Ref, args ...Value) (Ref, error) {
	req := &invokeRequest{Target: uint64(class), Args: encodeArgs(args)}
	resp, err := c.post(ctx, "/v1/object/new", req)
	if err != nil {
		return NilRef, err
	}
	return Ref(resp.Ref), nil
}

// CallMethod invokes a method on a host-side object.
func (c *HostClient) CallMethod(ctx context.Context, obj Ref, method string, args ...Value) (Value, error) {
	req := &invokeRequest{Target: uint64(obj), Method: method, Args: encodeArgs(args)}
	resp, err := c.post(ctx, "/v1/object/call", req)
	if err != nil {
		return Null(), err
	}
	return decodeValue(resp.Result), nil
}

// NewString interns a string in the host JVM.
func (c *HostClient) NewString(ctx context.Context, s string) (Ref, error) {
	resp, err := c.post(ctx, "/v1/string/new", &invokeRequest{Str: s})
	if err != nil {
		return NilRef, err
	}
	return Ref(resp.Ref), nil
}

// ReleaseLocal drops a local reference in the host's handle table. Release
// failures are logged and swallowed: the handle is gone from the bridge's
// point of view either way, and masking an in-flight error with a release
// error would be worse.
func (c *HostClient) ReleaseLocal(ctx context.Context, ref Ref) {
	if ref == NilRef {
		return
	}
	if _, err := c.post(ctx, "/v1/ref/release", &invokeRequest{Target: uint64(ref)}); err != nil {
		log.Printf("scanner host: release of ref %d failed: %v", ref, err)
	}
}

// Ping checks that the scanner host is reachable.
func (c *HostClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/v1/ping", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("scanner host unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scanner host returned status %d", resp.StatusCode)
	}
	return nil
}

// Close shuts down the client. The host process outlives individual
// clients; there is nothing to tear down beyond idle connections.
func (c *HostClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func encodeArgs(args []Value) []wireValue {
	if len(args) == 0 {
		return nil
	}
	out := make([]wireValue, len(args))
	for i, a := range args {
		out[i] = encodeValue(a)
	}
	return out
}

func (c *HostClient) post(ctx context.Context, path string, payload *invokeRequest) (*invokeResponse, error) {
	resp, err := c.postFrame(ctx, path, payload)
	if err != nil {
		middleware.RecordForeignCall(path, "error")
		return nil, err
	}
	middleware.RecordForeignCall(path, "ok")
	return resp, nil
}

func (c *HostClient) postFrame(ctx context.Context, path string, payload *invokeRequest) (*invokeResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scanner host request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("scanner host returned status %d: %s", resp.StatusCode, string(raw))
	}

	var decoded invokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if decoded.Error != "" {
		return nil, fmt.Errorf("%s", decoded.Error)
	}

	return &decoded, nil
}
