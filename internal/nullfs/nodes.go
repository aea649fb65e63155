package nullfs

import (
	"fmt"
	"sync"

	"github.com/rfratto/asyncfuse/internal/fuse"
)

// nodeTable tracks the nodes the kernel holds references to, and the open
// file handles.
type nodeTable struct {
	mut        sync.RWMutex
	nodes      map[fuse.Node]*nodeRef
	keys       map[nodeKey]*nodeRef
	nextID     uint64
	generation uint64

	handleMut   sync.Mutex
	handles     map[fuse.Handle]*handle
	freeHandles []fuse.Handle
	nextHandle  fuse.Handle
}

type nodeKey struct {
	parent fuse.Node
	name   string
}

type nodeRef struct {
	id         fuse.Node
	generation uint64
	key        nodeKey
	file       *file

	// Number of lookups the kernel hasn't forgotten yet. Guarded by the
	// table's mut.
	lookups uint64
}

// handle is an open file or directory.
type handle struct {
	file    *file
	entries []fuse.DirEntry // Directory listing, captured at open.
}

// newNodeTable creates a nodeTable holding root as fuse.RootNode.
func newNodeTable(root *file) *nodeTable {
	t := &nodeTable{
		nodes:   make(map[fuse.Node]*nodeRef),
		keys:    make(map[nodeKey]*nodeRef),
		handles: make(map[fuse.Handle]*handle),
	}
	if _, err := t.add(0, "", root); err != nil {
		panic(err)
	}
	return t
}

// add records a lookup of name in parent. Looking up a name which is already
// known returns the existing node with its lookup count increased.
func (t *nodeTable) add(parent fuse.Node, name string, f *file) (*nodeRef, error) {
	t.mut.Lock()
	defer t.mut.Unlock()

	key := nodeKey{parent: parent, name: name}
	if n, ok := t.keys[key]; ok {
		n.lookups++
		return n, nil
	}
	if parent != 0 {
		if _, ok := t.nodes[parent]; !ok {
			return nil, fmt.Errorf("parent node %d is not known: %w", parent, fuse.ErrorStale)
		}
	}

	t.nextID++
	if t.nextID == 0 {
		// IDs wrapped around; reused IDs get a new generation.
		t.generation++
		t.nextID = 1
	}

	n := &nodeRef{
		id:         fuse.Node(t.nextID),
		generation: t.generation,
		key:        key,
		file:       f,
		lookups:    1,
	}
	t.nodes[n.id] = n
	t.keys[key] = n
	return n, nil
}

// get returns the node for id.
func (t *nodeTable) get(id fuse.Node) (*nodeRef, error) {
	t.mut.RLock()
	defer t.mut.RUnlock()

	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, fuse.ErrorStale)
	}
	return n, nil
}

// forget drops lookups references to id. The node is removed once no
// references remain. The root node is never removed.
func (t *nodeTable) forget(id fuse.Node, lookups uint64) error {
	t.mut.Lock()
	defer t.mut.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("node %d: %w", id, fuse.ErrorStale)
	}
	if lookups < n.lookups {
		n.lookups -= lookups
		return nil
	}
	n.lookups = 0
	if id == fuse.RootNode {
		return nil
	}

	delete(t.nodes, id)
	if t.keys[n.key] == n {
		delete(t.keys, n.key)
	}
	return nil
}

// len returns the number of tracked nodes, including the root.
func (t *nodeTable) len() int {
	t.mut.RLock()
	defer t.mut.RUnlock()
	return len(t.nodes)
}

// open stores h and returns its ID. Released IDs are reused.
func (t *nodeTable) open(h *handle) (fuse.Handle, error) {
	t.handleMut.Lock()
	defer t.handleMut.Unlock()

	var id fuse.Handle
	if n := len(t.freeHandles); n > 0 {
		id = t.freeHandles[n-1]
		t.freeHandles = t.freeHandles[:n-1]
	} else {
		if t.nextHandle+1 == 0 {
			return 0, fuse.ErrorNoMemory
		}
		t.nextHandle++
		id = t.nextHandle
	}

	t.handles[id] = h
	return id, nil
}

// handle returns the open handle for id.
func (t *nodeTable) handle(id fuse.Handle) (*handle, error) {
	t.handleMut.Lock()
	defer t.handleMut.Unlock()

	h, ok := t.handles[id]
	if !ok {
		return nil, fmt.Errorf("handle %d: %w", id, fuse.ErrorBadHandle)
	}
	return h, nil
}

// release closes the handle id.
func (t *nodeTable) release(id fuse.Handle) error {
	t.handleMut.Lock()
	defer t.handleMut.Unlock()

	if _, ok := t.handles[id]; !ok {
		return fmt.Errorf("handle %d: %w", id, fuse.ErrorBadHandle)
	}
	delete(t.handles, id)
	t.freeHandles = append(t.freeHandles, id)
	return nil
}

// openHandles returns the number of open handles.
func (t *nodeTable) openHandles() int {
	t.handleMut.Lock()
	defer t.handleMut.Unlock()
	return len(t.handles)
}
