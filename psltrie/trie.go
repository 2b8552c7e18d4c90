// Package psltrie compiles public suffixes into a flat reversed-label trie
// and finds the public suffix boundary of a domain without allocating.
//
// Serialized layout, all integers little-endian:
//
//	[u32 string table length, padded to 4]
//	[string table: NUL-terminated labels, zero padding]
//	[nodes: {u32 label offset, u32 first child, u32 next sibling, u32 flags}...]
//
// Child and sibling pointers are node indices multiplied by NodeWords, i.e.
// offsets in 32-bit words into the node array. Node 0 is the root sentinel:
// it has no label and its first child starts the top-level label list, so a
// pointer value of 0 always means "none".
package psltrie

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strings"
)

// Constants mirrored by every runtime reading the artifacts.
const (
	NodeWords    = 4
	FlagTerminal = 1

	// MaxLabels bounds the number of labels walked per domain.
	MaxLabels = 128

	headerBytes = 4
	wordBytes   = 4
	nodeBytes   = NodeWords * wordBytes

	fieldLabel       = 0
	fieldFirstChild  = 1
	fieldNextSibling = 2
	fieldFlags       = 3
)

// Trie is a read view over a serialized trie.
// Tries returned by FromSerialized borrow the caller's buffer.
type Trie struct {
	buf   []byte
	table []byte
	nodes []byte

	nodeCount int
	suffixes  int
}

type buildNode struct {
	children map[string]*buildNode
	flags    uint32
}

type flatNode struct {
	label       string
	firstChild  uint32
	nextSibling uint32
	flags       uint32
}

// Build compiles suffixes (e.g. "com", "co.uk") into a trie.
// Entries are lowercased and trimmed; blank entries are skipped.
func Build(suffixes []string) (*Trie, error) {
	root := &buildNode{}
	for _, s := range suffixes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		labels := strings.Split(s, ".")
		node := root
		for i := len(labels) - 1; i >= 0; i-- {
			label := labels[i]
			if label == "" {
				return nil, fmt.Errorf("%w: %q", ErrEmptyLabel, s)
			}
			if node.children == nil {
				node.children = make(map[string]*buildNode)
			}
			child, has := node.children[label]
			if !has {
				child = &buildNode{}
				node.children[label] = child
			}
			node = child
		}
		node.flags |= FlagTerminal
	}
	if len(root.children) == 0 {
		return nil, ErrEmptyInput
	}

	f := &flattener{nodes: []flatNode{{}}}
	f.nodes[0].firstChild = f.flattenChildren(root)

	return FromSerialized(serialize(f.nodes))
}

type flattener struct {
	nodes []flatNode
}

// flattenChildren emits the children of n (each after its own subtree),
// links them as a sibling list and returns the index of the first one.
func (f *flattener) flattenChildren(n *buildNode) uint32 {
	if len(n.children) == 0 {
		return 0
	}
	labels := make([]string, 0, len(n.children))
	for label := range n.children {
		labels = append(labels, label)
	}
	slices.Sort(labels)

	indices := make([]uint32, len(labels))
	for i, label := range labels {
		child := n.children[label]
		first := f.flattenChildren(child)
		indices[i] = uint32(len(f.nodes))
		f.nodes = append(f.nodes, flatNode{
			label:      label,
			firstChild: first,
			flags:      child.flags,
		})
	}
	for i := 0; i+1 < len(indices); i++ {
		f.nodes[indices[i]].nextSibling = indices[i+1]
	}
	return indices[0]
}

func padded(n int) int { return (n + 3) &^ 3 }

func serialize(nodes []flatNode) []byte {
	offsets := make(map[string]uint32, len(nodes))
	var table []byte
	for _, n := range nodes {
		if _, has := offsets[n.label]; has {
			continue
		}
		offsets[n.label] = uint32(len(table))
		table = append(table, n.label...)
		table = append(table, 0)
	}
	tableLen := padded(len(table))

	buf := make([]byte, headerBytes+tableLen+len(nodes)*nodeBytes)
	binary.LittleEndian.PutUint32(buf[0:], uint32(tableLen))
	copy(buf[headerBytes:], table)

	at := headerBytes + tableLen
	for _, n := range nodes {
		binary.LittleEndian.PutUint32(buf[at+fieldLabel*wordBytes:], offsets[n.label])
		binary.LittleEndian.PutUint32(buf[at+fieldFirstChild*wordBytes:], n.firstChild*NodeWords)
		binary.LittleEndian.PutUint32(buf[at+fieldNextSibling*wordBytes:], n.nextSibling*NodeWords)
		binary.LittleEndian.PutUint32(buf[at+fieldFlags*wordBytes:], n.flags)
		at += nodeBytes
	}
	return buf
}

// FromSerialized wraps a serialized trie without copying it. The whole
// structure is validated here so lookups can skip bounds reasoning.
func FromSerialized(buffer []byte) (*Trie, error) {
	if len(buffer) < headerBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(buffer))
	}
	tableLen := uint64(binary.LittleEndian.Uint32(buffer[0:]))
	if tableLen%wordBytes != 0 {
		return nil, fmt.Errorf("%w: string table length %d", ErrBadAlignment, tableLen)
	}
	if headerBytes+tableLen > uint64(len(buffer)) {
		return nil, fmt.Errorf("%w: string table length %d exceeds %d bytes", ErrTruncated, tableLen, len(buffer))
	}
	nodesStart := headerBytes + int(tableLen)
	nodesLen := len(buffer) - nodesStart
	if nodesLen%nodeBytes != 0 || nodesLen == 0 {
		return nil, fmt.Errorf("%w: node array of %d bytes", ErrTruncated, nodesLen)
	}

	t := &Trie{
		buf:       buffer,
		table:     buffer[headerBytes:nodesStart],
		nodes:     buffer[nodesStart:],
		nodeCount: nodesLen / nodeBytes,
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Trie) validate() error {
	count := uint32(t.nodeCount)
	for i := uint32(0); i < count; i++ {
		ptr := i * NodeWords
		ref := t.word(ptr, fieldLabel)
		if int(ref) >= len(t.table) || !slices.Contains(t.table[ref:], 0) {
			return fmt.Errorf("%w: node %d label offset %d", ErrCorrupt, i, ref)
		}
		for _, field := range []uint32{fieldFirstChild, fieldNextSibling} {
			p := t.word(ptr, field)
			if p%NodeWords != 0 || p/NodeWords >= count {
				return fmt.Errorf("%w: node %d pointer %d", ErrCorrupt, i, p)
			}
		}
		if t.word(ptr, fieldFlags)&FlagTerminal != 0 {
			t.suffixes++
		}
	}

	// Every node must be reachable at most once from the root, which rules
	// out cycles and shared subtrees in the sibling and child chains.
	visited := make([]bool, count)
	visited[0] = true
	stack := []uint32{t.word(0, fieldFirstChild)}
	for len(stack) > 0 {
		ptr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for ; ptr != 0; ptr = t.word(ptr, fieldNextSibling) {
			idx := ptr / NodeWords
			if visited[idx] {
				return fmt.Errorf("%w: node %d reached twice", ErrCorrupt, idx)
			}
			visited[idx] = true
			if child := t.word(ptr, fieldFirstChild); child != 0 {
				stack = append(stack, child)
			}
		}
	}
	return nil
}

func (t *Trie) word(ptr, field uint32) uint32 {
	return binary.LittleEndian.Uint32(t.nodes[(ptr+field)*wordBytes:])
}

// labelMatches compares s[start:end] with the NUL-terminated label at ref.
func (t *Trie) labelMatches(ref uint32, s string, start, end int) bool {
	label := t.table[ref:]
	n := end - start
	for i := 0; ; i++ {
		c := label[i]
		if c == 0 {
			return i == n
		}
		if i >= n || c != s[start+i] {
			return false
		}
	}
}

func (t *Trie) findChild(parent uint32, s string, start, end int) uint32 {
	for ptr := t.word(parent, fieldFirstChild); ptr != 0; ptr = t.word(ptr, fieldNextSibling) {
		if t.labelMatches(t.word(ptr, fieldLabel), s, start, end) {
			return ptr
		}
	}
	return 0
}

// SuffixStart returns the byte offset where the longest public suffix of
// domain begins, or -1 if no suffix matches. dots must hold the offsets of
// the dots in domain in increasing order.
//
// Labels are consumed right to left; the walk stops at the first label
// without a matching child.
func (t *Trie) SuffixStart(domain string, dots []int32) int {
	suffix := -1
	node := uint32(0)
	end := len(domain)
	for i := len(dots) - 1; i >= -1; i-- {
		start := 0
		if i >= 0 {
			start = int(dots[i]) + 1
		}
		child := t.findChild(node, domain, start, end)
		if child == 0 {
			break
		}
		node = child
		if t.word(node, fieldFlags)&FlagTerminal != 0 {
			suffix = start
		}
		end = start - 1
	}
	return suffix
}

// PublicSuffix returns the longest public suffix of domain, or "" if none
// matches or domain has more than MaxLabels dots.
func (t *Trie) PublicSuffix(domain string) string {
	var dots [MaxLabels]int32
	n := 0
	for i := 0; i < len(domain); i++ {
		if domain[i] != '.' {
			continue
		}
		if n == len(dots) {
			return ""
		}
		dots[n] = int32(i)
		n++
	}
	start := t.SuffixStart(domain, dots[:n])
	if start < 0 {
		return ""
	}
	return domain[start:]
}

// Serialize returns the serialized trie.
// The returned slice aliases the trie; callers must not modify it.
func (t *Trie) Serialize() []byte {
	if t == nil {
		return nil
	}
	return t.buf
}

// StringTableLen returns the padded string table length stored in the header.
func (t *Trie) StringTableLen() int {
	return len(t.table)
}

// Nodes returns the number of node records, including the root sentinel.
func (t *Trie) Nodes() int {
	return t.nodeCount
}

// Suffixes returns the number of terminal nodes.
func (t *Trie) Suffixes() int {
	return t.suffixes
}

// Allocated returns the serialized size in bytes.
func (t *Trie) Allocated() int {
	if t == nil {
		return 0
	}
	return len(t.buf)
}

// String returns a short summary of the trie.
func (t *Trie) String() string {
	if t == nil {
		return "PSLTrie{empty}"
	}
	return fmt.Sprintf("PSLTrie{suffixes=%d, nodes=%d, used=%d (header=%d, strings=%d, nodes=%d)}",
		t.suffixes, t.nodeCount, len(t.buf), headerBytes, len(t.table), len(t.nodes))
}
