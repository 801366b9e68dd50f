package octomap

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/gzip"
	"go.viam.com/test"
)

func textureTestTree() *Tree {
	tree := NewTree(KindTextureOcTree, 0.1)
	leaf := tree.SetLeaf(Key{X: 3, Y: 1, Z: 2}, 2, occupiedLogOdds)
	leaf.SetFace(FaceXPlus, 510, 2)
	leaf.SetFace(FaceZMinus, 100, 1)
	tree.SetLeaf(Key{X: 0, Y: 0, Z: 0}, 2, freeLogOdds)
	tree.SetLeaf(Key{X: 1, Y: 1, Z: 1}, 1, occupiedLogOdds)
	return tree
}

func TestDecodeRoundTrip(t *testing.T) {
	tree := textureTestTree()
	data, err := Marshal(tree)
	test.That(t, err, test.ShouldBeNil)

	decoded, err := Decode(Message{ID: "TextureOcTree", Resolution: 0.1, Data: data})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded.Kind(), test.ShouldEqual, KindTextureOcTree)
	test.That(t, decoded.Resolution(), test.ShouldEqual, 0.1)

	leaf := decoded.Search(Key{X: 3, Y: 1, Z: 2}, 2)
	test.That(t, leaf, test.ShouldNotBeNil)
	test.That(t, leaf.Occupied(), test.ShouldBeTrue)
	test.That(t, leaf.FaceValue(FaceXPlus), test.ShouldAlmostEqual, 255)
	test.That(t, leaf.FaceObservations(FaceXPlus), test.ShouldEqual, 2)
	test.That(t, leaf.FaceValue(FaceZMinus), test.ShouldAlmostEqual, 100)
	test.That(t, leaf.FaceValue(FaceYPlus), test.ShouldEqual, 0)

	free := decoded.Search(Key{X: 0, Y: 0, Z: 0}, 2)
	test.That(t, free, test.ShouldNotBeNil)
	test.That(t, free.Occupied(), test.ShouldBeFalse)

	var count int
	decoded.IterateLeaves(0, func(Leaf) bool {
		count++
		return true
	})
	test.That(t, count, test.ShouldEqual, 3)

	min, max := decoded.Bounds()
	wantMin, wantMax := tree.Bounds()
	test.That(t, min, test.ShouldResemble, wantMin)
	test.That(t, max, test.ShouldResemble, wantMax)
}

func TestDecodeGzip(t *testing.T) {
	tree := textureTestTree()
	data, err := Marshal(tree)
	test.That(t, err, test.ShouldBeNil)

	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	_, err = zw.Write(data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, zw.Close(), test.ShouldBeNil)

	decoded, err := Decode(Message{ID: "TextureOcTree", Resolution: 0.1, Data: compressed.Bytes()})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded.Search(Key{X: 3, Y: 1, Z: 2}, 2), test.ShouldNotBeNil)
}

func TestDecodeBinary(t *testing.T) {
	// Root record: child 0 occupied (code 10), child 1 free (code 01).
	data := []byte{0x06, 0x00}
	decoded, err := Decode(Message{ID: "OcTree", Binary: true, Resolution: 0.05, Data: data})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded.Kind(), test.ShouldEqual, KindOcTree)

	occupied := decoded.Search(Key{X: 0, Y: 0, Z: 0}, 1)
	test.That(t, occupied, test.ShouldNotBeNil)
	test.That(t, occupied.Occupied(), test.ShouldBeTrue)
	test.That(t, occupied.Occupancy(), test.ShouldBeGreaterThan, 0.9)

	free := decoded.Search(Key{X: 1, Y: 0, Z: 0}, 1)
	test.That(t, free, test.ShouldNotBeNil)
	test.That(t, free.Occupied(), test.ShouldBeFalse)

	t.Run("inner children recurse", func(t *testing.T) {
		// Root has one inner child 0, which holds one occupied child 7.
		data := []byte{0x03, 0x00, 0x00, 0x80}
		decoded, err := Decode(Message{ID: "OcTree", Binary: true, Resolution: 0.05, Data: data})
		test.That(t, err, test.ShouldBeNil)
		leaf := decoded.Search(Key{X: 1, Y: 1, Z: 1}, 2)
		test.That(t, leaf, test.ShouldNotBeNil)
		test.That(t, leaf.Occupied(), test.ShouldBeTrue)
		// The inner parent aggregates its children's occupancy.
		parent := decoded.Search(Key{X: 0, Y: 0, Z: 0}, 1)
		test.That(t, parent, test.ShouldNotBeNil)
		test.That(t, parent.Occupied(), test.ShouldBeTrue)
	})
}

func TestDecodeFailures(t *testing.T) {
	valid, err := Marshal(textureTestTree())
	test.That(t, err, test.ShouldBeNil)

	for _, tc := range []struct {
		name   string
		msg    Message
		reason string
	}{
		{
			"unsupported id",
			Message{ID: "ColorOcTree", Resolution: 0.1, Data: valid},
			"unsupported tree id",
		},
		{
			"binary texture tree",
			Message{ID: "TextureOcTree", Binary: true, Resolution: 0.1, Data: valid},
			"no texture data",
		},
		{
			"non-positive resolution",
			Message{ID: "TextureOcTree", Resolution: 0, Data: valid},
			"resolution",
		},
		{
			"empty payload",
			Message{ID: "TextureOcTree", Resolution: 0.1},
			"empty node stream",
		},
		{
			"truncated stream",
			Message{ID: "TextureOcTree", Resolution: 0.1, Data: valid[:len(valid)-3]},
			"truncated",
		},
		{
			"trailing bytes",
			Message{ID: "TextureOcTree", Resolution: 0.1, Data: append(append([]byte{}, valid...), 0xff)},
			"trailing",
		},
		{
			"bad gzip",
			Message{ID: "TextureOcTree", Resolution: 0.1, Data: []byte{0x1f, 0x8b, 0x00}},
			"gzip",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.msg)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, IsDecodeError(err), test.ShouldBeTrue)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.reason)
		})
	}
}

func TestMarshalEmpty(t *testing.T) {
	_, err := Marshal(NewTree(KindOcTree, 1))
	test.That(t, err, test.ShouldNotBeNil)
}
