package geminitest

import (
	"context"
	"strings"

	"github.com/ninedraft/gemcore/gemini/status"
)

// Router dispatches requests by URL path.
// Pattern parts starting with ':' match any single path part and capture it as a parameter.
// Static parts take precedence over parameters.
//
//	router.Handle("/hop/:n", redirectHop)
type Router struct {
	root     *node
	handlers []Handler
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{root: newNode()}
}

// Handle registers handler for pattern, replacing the previous one.
func (router *Router) Handle(pattern string, handler Handler) {
	var current = router.root
	for _, part := range pathParts(pattern) {
		current = current.insert(part)
	}
	current.handler = len(router.handlers)
	router.handlers = append(router.handlers, handler)
}

// Serve is a Handler. Unknown paths are answered with 51.
func (router *Router) Serve(ctx context.Context, rw ResponseWriter, req *Request) {
	var params = map[string]string{}
	var index = router.match(req.URL.Path, params)
	if index < 0 {
		rw.WriteStatus(status.NotFound, status.Text(status.NotFound))
		return
	}
	req.Params = params
	router.handlers[index](ctx, rw, req)
}

func (router *Router) match(path string, params map[string]string) int {
	var current = router.root
	for _, part := range pathParts(path) {
		var next = current.children[part]
		if next == nil && current.param != nil {
			next = current.param
			params[next.name] = part
		}
		if next == nil {
			return -1
		}
		current = next
	}
	return current.handler
}

func pathParts(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

type node struct {
	children map[string]*node
	param    *node
	// name of the captured parameter
	name    string
	handler int
}

func newNode() *node {
	return &node{
		children: map[string]*node{},
		handler:  -1,
	}
}

func (n *node) insert(part string) *node {
	if name, ok := strings.CutPrefix(part, ":"); ok {
		if n.param == nil {
			n.param = newNode()
		}
		n.param.name = name
		return n.param
	}
	var child = n.children[part]
	if child == nil {
		child = newNode()
		n.children[part] = child
	}
	return child
}
