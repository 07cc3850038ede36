// Package davtest provides an in-memory WebDAV server for tests.
//
// The server implements the subset of RFC 4918 the client uses (PROPFIND
// with Depth 0/1, MKCOL, PUT, GET, DELETE, OPTIONS), reports all six
// properties the translator reads, and records every request so tests can
// assert on request counts and ordering.
package davtest

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
)

// AllowedMethods is reported in the Allow header of OPTIONS responses.
const AllowedMethods = "OPTIONS, GET, HEAD, PUT, DELETE, PROPFIND, MKCOL"

// Request is a recorded request.
type Request struct {
	Method string
	// Path is normalized: base path stripped, no leading or trailing slash.
	Path  string
	Depth string
}

func (r Request) String() string {
	return r.Method + " /" + r.Path
}

type node struct {
	dir         bool
	content     []byte
	contentType string
	etag        string
	created     time.Time
	modified    time.Time
}

// Server is an in-memory WebDAV server.
type Server struct {
	srv      *httptest.Server
	basePath string

	omitDisplayName bool
	now             func() time.Time

	mu       sync.Mutex
	nodes    map[string]*node
	requests []Request
	failures map[string][]int
	bodies   map[string][]byte
}

// Option configures a Server.
type Option func(*Server)

// WithBasePath mounts the tree below base, e.g. "/remote.php/webdav".
func WithBasePath(base string) Option {
	return func(s *Server) {
		s.basePath = "/" + strings.Trim(base, "/")
		if s.basePath == "/" {
			s.basePath = ""
		}
	}
}

// WithoutDisplayName omits the displayname property from responses.
func WithoutDisplayName() Option {
	return func(s *Server) {
		s.omitDisplayName = true
	}
}

// WithClock sets the time source for creation and modification dates.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer starts a server that is closed when t finishes.
func NewServer(t testing.TB, opts ...Option) *Server {
	s := &Server{
		now:      func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
		nodes:    map[string]*node{},
		failures: map[string][]int{},
		bodies:   map[string][]byte{},
	}
	for _, opt := range opts {
		opt(s)
	}

	now := s.now()
	s.nodes[""] = &node{dir: true, created: now, modified: now}

	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the WebDAV root URL, with a trailing slash.
func (s *Server) URL() string {
	return s.srv.URL + s.basePath + "/"
}

// AddDir creates a directory and any missing parents.
func (s *Server) AddDir(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mkdirAllLocked(clean(p))
}

// AddFile creates or replaces a file, creating missing parents.
func (s *Server) AddFile(p string, content []byte) {
	s.AddFileWithType(p, content, "")
}

// AddFileWithType is AddFile with an explicit server-reported content type.
func (s *Server) AddFileWithType(p string, content []byte, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p = clean(p)
	s.mkdirAllLocked(parent(p))
	s.putLocked(p, content, contentType)
}

// Touch bumps the modification time and ETag of p without changing its
// content, as an out-of-band writer would.
func (s *Server) Touch(p string, modified time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.nodes[clean(p)]; ok {
		n.modified = modified
		n.etag = fmt.Sprintf(`"%016x-%d"`, xxhash.Sum64(n.content), modified.UnixNano())
	}
}

// Remove deletes p and its descendants behind the client's back.
func (s *Server) Remove(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(clean(p))
}

// Exists reports whether p exists.
func (s *Server) Exists(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.nodes[clean(p)]
	return ok
}

// IsDir reports whether p exists as a directory.
func (s *Server) IsDir(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[clean(p)]
	return ok && n.dir
}

// Content returns the content of the file at p.
func (s *Server) Content(p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[clean(p)]
	if !ok || n.dir {
		return nil, false
	}
	return append([]byte(nil), n.content...), true
}

// ETag returns the current ETag of p.
func (s *Server) ETag(p string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[clean(p)]; ok {
		return n.etag
	}
	return ""
}

// FailNext makes the next request with method fail with status. Calls queue.
func (s *Server) FailNext(method string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = append(s.failures[method], status)
}

// SetResponse overrides the PROPFIND body returned for p.
func (s *Server) SetResponse(p string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies[clean(p)] = body
}

// Requests returns a copy of the recorded requests.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsFor returns the recorded requests with the given method.
func (s *Server) RequestsFor(method string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

// Count returns the number of recorded requests with method.
func (s *Server) Count(method string) int {
	return len(s.RequestsFor(method))
}

// ResetRequests clears the request log.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	rel, ok := strings.CutPrefix(r.URL.Path, s.basePath)
	if !ok {
		http.NotFound(w, r)
		return
	}
	p := clean(rel)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, Request{Method: r.Method, Path: p, Depth: r.Header.Get("Depth")})

	if queue := s.failures[r.Method]; len(queue) > 0 {
		s.failures[r.Method] = queue[1:]
		w.WriteHeader(queue[0])
		return
	}

	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Allow", AllowedMethods)
		w.Header().Set("DAV", "1, 2")
		w.WriteHeader(http.StatusOK)
	case "PROPFIND":
		s.propfindLocked(w, r, p)
	case "MKCOL":
		s.mkcolLocked(w, p)
	case http.MethodPut:
		s.handlePutLocked(w, r, p)
	case http.MethodGet:
		n, ok := s.nodes[p]
		switch {
		case !ok:
			w.WriteHeader(http.StatusNotFound)
		case n.dir:
			w.WriteHeader(http.StatusMethodNotAllowed)
		default:
			w.Header().Set("ETag", n.etag)
			_, _ = w.Write(n.content)
		}
	case http.MethodDelete:
		if _, ok := s.nodes[p]; !ok || p == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		s.removeLocked(p)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) propfindLocked(w http.ResponseWriter, r *http.Request, p string) {
	if body, ok := s.bodies[p]; ok {
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.WriteHeader(http.StatusMultiStatus)
		_, _ = w.Write(body)
		return
	}

	n, ok := s.nodes[p]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	members := []string{p}
	if n.dir && r.Header.Get("Depth") != "0" {
		members = append(members, s.childrenLocked(p)...)
	}

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	buf.WriteString(`<d:multistatus xmlns:d="DAV:">` + "\n")
	for _, m := range members {
		s.writeResponseLocked(&buf, m, s.nodes[m])
	}
	buf.WriteString(`</d:multistatus>` + "\n")

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) writeResponseLocked(buf *bytes.Buffer, p string, n *node) {
	buf.WriteString("  <d:response>\n")
	writeElement(buf, "    ", "href", s.href(p, n.dir))
	buf.WriteString("    <d:propstat>\n      <d:prop>\n")

	if !s.omitDisplayName {
		writeElement(buf, "        ", "displayname", path.Base("/"+p))
	}
	writeElement(buf, "        ", "creationdate", n.created.UTC().Format(time.RFC3339))
	writeElement(buf, "        ", "getlastmodified", n.modified.UTC().Format(http.TimeFormat))
	if n.dir {
		buf.WriteString("        <d:resourcetype><d:collection/></d:resourcetype>\n")
		buf.WriteString("        <d:getcontenttype/>\n")
	} else {
		buf.WriteString("        <d:resourcetype/>\n")
		writeElement(buf, "        ", "getcontenttype", n.contentType)
		writeElement(buf, "        ", "getcontentlength", fmt.Sprint(len(n.content)))
		writeElement(buf, "        ", "getetag", n.etag)
	}

	buf.WriteString("      </d:prop>\n")
	buf.WriteString("      <d:status>HTTP/1.1 200 OK</d:status>\n")
	buf.WriteString("    </d:propstat>\n  </d:response>\n")
}

func (s *Server) mkcolLocked(w http.ResponseWriter, p string) {
	if _, ok := s.nodes[p]; ok {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if parentNode, ok := s.nodes[parent(p)]; !ok || !parentNode.dir {
		w.WriteHeader(http.StatusConflict)
		return
	}
	now := s.now()
	s.nodes[p] = &node{dir: true, created: now, modified: now}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handlePutLocked(w http.ResponseWriter, r *http.Request, p string) {
	if parentNode, ok := s.nodes[parent(p)]; !ok || !parentNode.dir {
		w.WriteHeader(http.StatusConflict)
		return
	}
	if existing, ok := s.nodes[p]; ok && existing.dir {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	_, existed := s.nodes[p]
	s.putLocked(p, body, r.Header.Get("Content-Type"))
	if existed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) putLocked(p string, content []byte, contentType string) {
	now := s.now()
	created := now
	if existing, ok := s.nodes[p]; ok {
		created = existing.created
	}
	s.nodes[p] = &node{
		content:     append([]byte(nil), content...),
		contentType: contentType,
		etag:        fmt.Sprintf(`"%016x"`, xxhash.Sum64(content)),
		created:     created,
		modified:    now,
	}
}

func (s *Server) mkdirAllLocked(p string) {
	if p == "" {
		return
	}
	if _, ok := s.nodes[p]; ok {
		return
	}
	s.mkdirAllLocked(parent(p))
	now := s.now()
	s.nodes[p] = &node{dir: true, created: now, modified: now}
}

func (s *Server) removeLocked(p string) {
	for k := range s.nodes {
		if k == p || (p != "" && strings.HasPrefix(k, p+"/")) || (p == "" && k != "") {
			delete(s.nodes, k)
		}
	}
}

func (s *Server) childrenLocked(p string) []string {
	var out []string
	for k := range s.nodes {
		if k != "" && k != p && parent(k) == p {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Server) href(p string, dir bool) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	h := s.basePath + "/" + strings.Join(segments, "/")
	if dir && !strings.HasSuffix(h, "/") {
		h += "/"
	}
	return h
}

func writeElement(buf *bytes.Buffer, indent, name, value string) {
	buf.WriteString(indent + "<d:" + name + ">")
	_ = xml.EscapeText(buf, []byte(value))
	buf.WriteString("</d:" + name + ">\n")
}

func clean(p string) string {
	return strings.Trim(path.Clean("/"+p), "/")
}

func parent(p string) string {
	return clean(path.Dir("/" + p))
}
