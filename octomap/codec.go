package octomap

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Message is a serialized octree as received from a subscriber: a type
// identifier, an encoding flag, the tree resolution, and the node stream.
// FrameID and Stamp identify the coordinate frame the tree is expressed in.
type Message struct {
	FrameID    string
	Stamp      time.Time
	ID         string
	Binary     bool
	Resolution float64
	Data       []byte
}

// DecodeError reports a malformed or unsupported octree payload. It is
// scoped to the single message it occurred in.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return "octomap decode: " + e.Reason + ": " + e.Err.Error()
	}
	return "octomap decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is (or wraps) a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func decodeErrf(err error, format string, args ...interface{}) error {
	return &DecodeError{Reason: errors.Errorf(format, args...).Error(), Err: err}
}

const gzipMagic = "\x1f\x8b"

// Decode parses a serialized octree message into a Tree. The message ID must
// name a supported tree kind and the node stream must be well formed;
// anything else fails with a DecodeError. Payloads may arrive
// gzip-compressed and are decompressed transparently.
func Decode(msg Message) (*Tree, error) {
	var kind Kind
	switch msg.ID {
	case KindOcTree.treeID():
		kind = KindOcTree
	case KindTextureOcTree.treeID():
		kind = KindTextureOcTree
	default:
		return nil, decodeErrf(nil, "unsupported tree id %q", msg.ID)
	}
	if msg.Binary && kind == KindTextureOcTree {
		return nil, decodeErrf(nil, "binary encoding carries no texture data for tree id %q", msg.ID)
	}
	if msg.Resolution <= 0 {
		return nil, decodeErrf(nil, "non-positive resolution %f", msg.Resolution)
	}
	if len(msg.Data) == 0 {
		return nil, decodeErrf(nil, "empty node stream")
	}

	data := msg.Data
	if bytes.HasPrefix(data, []byte(gzipMagic)) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, decodeErrf(err, "bad gzip payload")
		}
		data, err = io.ReadAll(zr)
		if cerr := zr.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, decodeErrf(err, "bad gzip payload")
		}
	}

	tree := NewTree(kind, msg.Resolution)
	dec := &decoder{tree: tree, buf: data}
	root := &Node{}
	if kind == KindTextureOcTree {
		root.faces = &[numFaces]faceStat{}
	}
	var err error
	if msg.Binary {
		err = dec.readBinaryNode(root, Key{}, 0)
	} else {
		err = dec.readFullNode(root, Key{}, 0)
	}
	if err != nil {
		return nil, err
	}
	if len(dec.buf) != 0 {
		return nil, decodeErrf(nil, "%d trailing bytes after root subtree", len(dec.buf))
	}
	tree.root = root
	return tree, nil
}

type decoder struct {
	tree *Tree
	buf  []byte
}

func (d *decoder) take(n int) ([]byte, error) {
	if len(d.buf) < n {
		return nil, decodeErrf(nil, "truncated node stream: need %d bytes, have %d", n, len(d.buf))
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b, nil
}

// readFullNode consumes one preorder full-encoding node record:
// log-odds float32, then for texture trees 6 face records of
// {value sum float32, observations uint32}, then the child bitmask.
func (d *decoder) readFullNode(node *Node, key Key, depth int) error {
	b, err := d.take(4)
	if err != nil {
		return err
	}
	node.logOdds = math.Float32frombits(binary.BigEndian.Uint32(b))

	if d.tree.kind == KindTextureOcTree {
		for f := 0; f < numFaces; f++ {
			b, err := d.take(8)
			if err != nil {
				return err
			}
			node.faces[f] = faceStat{
				valueSum:     math.Float32frombits(binary.BigEndian.Uint32(b)),
				observations: binary.BigEndian.Uint32(b[4:]),
			}
		}
	}

	b, err = d.take(1)
	if err != nil {
		return err
	}
	mask := b[0]
	if mask == 0 {
		d.tree.mergeLeafBounds(key, depth)
		return nil
	}
	if depth == TreeMaxDepth {
		return decodeErrf(nil, "node at max depth %d has children", TreeMaxDepth)
	}
	for i := 0; i < 8; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		child := node.ensureChild(i, d.tree.kind == KindTextureOcTree)
		if err := d.readFullNode(child, key.child(i), depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Two-bit child codes of the binary encoding.
const (
	binChildUnknown  = 0 // no child
	binChildFree     = 1
	binChildOccupied = 2
	binChildInner    = 3
)

// readBinaryNode consumes one preorder binary-encoding record: two bytes
// holding a 2-bit code per child (free and occupied children become clamped
// leaves, inner children recurse). The node's own occupancy is rebuilt from
// its children afterwards.
func (d *decoder) readBinaryNode(node *Node, key Key, depth int) error {
	if depth == TreeMaxDepth {
		return decodeErrf(nil, "node at max depth %d has children", TreeMaxDepth)
	}
	b, err := d.take(2)
	if err != nil {
		return err
	}
	codes := uint16(b[0]) | uint16(b[1])<<8
	var inner []int
	for i := 0; i < 8; i++ {
		switch codes >> uint(2*i) & 3 {
		case binChildUnknown:
		case binChildFree:
			child := node.ensureChild(i, false)
			child.logOdds = freeLogOdds
			d.tree.mergeLeafBounds(key.child(i), depth+1)
		case binChildOccupied:
			child := node.ensureChild(i, false)
			child.logOdds = occupiedLogOdds
			d.tree.mergeLeafBounds(key.child(i), depth+1)
		case binChildInner:
			node.ensureChild(i, false)
			inner = append(inner, i)
		}
	}
	for _, i := range inner {
		if err := d.readBinaryNode(node.childAt(i), key.child(i), depth+1); err != nil {
			return err
		}
	}
	node.refreshFromChildren()
	return nil
}

// Marshal serializes a tree with the full node encoding, the inverse of
// Decode for non-binary messages. The result goes into a Message.Data slot;
// nothing is written to storage.
func Marshal(tree *Tree) ([]byte, error) {
	if tree == nil || tree.root == nil {
		return nil, errors.New("cannot marshal an empty tree")
	}
	var out bytes.Buffer
	writeFullNode(&out, tree.root, tree.kind == KindTextureOcTree)
	return out.Bytes(), nil
}

func writeFullNode(out *bytes.Buffer, node *Node, textured bool) {
	var scratch [8]byte
	binary.BigEndian.PutUint32(scratch[:4], math.Float32bits(node.logOdds))
	out.Write(scratch[:4])
	if textured {
		for f := 0; f < numFaces; f++ {
			var stat faceStat
			if node.faces != nil {
				stat = node.faces[f]
			}
			binary.BigEndian.PutUint32(scratch[:4], math.Float32bits(stat.valueSum))
			binary.BigEndian.PutUint32(scratch[4:], stat.observations)
			out.Write(scratch[:])
		}
	}
	var mask uint8
	for i := 0; i < 8; i++ {
		if node.childAt(i) != nil {
			mask |= 1 << uint(i)
		}
	}
	out.WriteByte(mask)
	for i := 0; i < 8; i++ {
		if child := node.childAt(i); child != nil {
			writeFullNode(out, child, textured)
		}
	}
}
