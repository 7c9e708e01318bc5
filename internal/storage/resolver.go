package storage

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Storage-access property keys recognized by the resolver. These arrive
// from the planner as plain keys; the marshaller namespaces them under
// hadoop_fs. before they cross the runtime boundary, but the resolver
// consumes the structured form directly.
const (
	PropDefaultFS      = "fs.defaultFS"
	PropHadoopUsername = "hadoop.username"
	PropS3Endpoint     = "s3.endpoint"
	PropS3AccessKey    = "s3.access_key"
	PropS3SecretKey    = "s3.secret_key"
	PropS3Region       = "s3.region"
	PropS3Token        = "s3.session_token"
	PropS3Secure       = "s3.use_ssl"
)

// Resolver picks and caches the storage backend for a path based on its
// scheme and the scan range's storage-access properties. One resolver is
// shared across scan ranges; backends are created lazily and cached per
// scheme, authority, and merged property set, so ranges carrying
// different credentials never share a client.
type Resolver struct {
	mu       sync.Mutex
	defaults map[string]string
	backends map[string]Backend
}

// NewResolver creates a resolver with service-level default properties.
// Per-range properties override them.
func NewResolver(defaults map[string]string) *Resolver {
	return &Resolver{
		defaults: defaults,
		backends: make(map[string]Backend),
	}
}

// Resolve returns the backend serving the given path.
func (r *Resolver) Resolve(path string, properties map[string]string) (Backend, error) {
	scheme := pathScheme(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	props := r.merged(properties)
	key := cacheKey(scheme, path, props)
	if b, ok := r.backends[key]; ok {
		return b, nil
	}

	var backend Backend
	var err error
	switch scheme {
	case "hdfs":
		backend, err = r.buildHDFS(path, props)
	case "s3", "s3a", "s3n":
		backend, err = r.buildS3(props)
	case "", "file":
		backend = NewLocalBackend()
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", scheme)
	}
	if err != nil {
		return nil, err
	}

	r.backends[key] = backend
	return backend, nil
}

// cacheKey fingerprints everything that feeds backend construction. The
// HDFS authority matters because the client binds to the NameNode in the
// path; for the other schemes the scheme plus properties decide.
func cacheKey(scheme, path string, props map[string]string) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(scheme)
	if scheme == "hdfs" {
		if u, err := url.Parse(path); err == nil {
			sb.WriteString("//" + u.Host)
		}
	}
	for _, k := range keys {
		sb.WriteByte('\n')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(props[k])
	}
	return sb.String()
}

func (r *Resolver) merged(properties map[string]string) map[string]string {
	props := make(map[string]string, len(r.defaults)+len(properties))
	for k, v := range r.defaults {
		props[k] = v
	}
	for k, v := range properties {
		props[k] = v
	}
	return props
}

func (r *Resolver) buildHDFS(path string, props map[string]string) (Backend, error) {
	var nameNodes []string
	if u, err := url.Parse(path); err == nil && u.Host != "" {
		nameNodes = []string{u.Host}
	} else if fs := props[PropDefaultFS]; fs != "" {
		if u, err := url.Parse(fs); err == nil && u.Host != "" {
			nameNodes = []string{u.Host}
		}
	}

	return NewHDFSBackend(&HDFSConfig{
		NameNodes: nameNodes,
		Username:  props[PropHadoopUsername],
	})
}

func (r *Resolver) buildS3(props map[string]string) (Backend, error) {
	return NewS3Backend(&S3Config{
		Endpoint:  props[PropS3Endpoint],
		AccessKey: props[PropS3AccessKey],
		SecretKey: props[PropS3SecretKey],
		Region:    props[PropS3Region],
		Token:     props[PropS3Token],
		Secure:    strings.EqualFold(props[PropS3Secure], "true"),
	})
}

func pathScheme(path string) string {
	i := strings.Index(path, "://")
	if i < 0 {
		return ""
	}
	return strings.ToLower(path[:i])
}
