package export

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/require"

	"github.com/livedepth/livedepth/meshing"
)

func triMesh() *meshing.Mesh {
	return &meshing.Mesh{
		Positions: []float32{
			0, 0, -1,
			0.1, 0, -1,
			0, 0.1, -1,
			0.1, 0.1, -1,
		},
		Colors: []float32{
			1, 0, 0,
			0, 1, 0,
			0, 0, 1,
			1, 1, 1,
		},
		Triangles: []uint32{0, 1, 2, 2, 1, 3},
	}
}

func pointMesh() *meshing.Mesh {
	m := triMesh()
	m.Triangles = nil
	return m
}

func TestWrite_Binary(t *testing.T) {
	var buf bytes.Buffer
	res, err := Write(&buf, triMesh(), true)
	require.NoError(t, err)
	require.False(t, res.FellBack)
	require.Equal(t, 4, res.Vertices)
	require.Equal(t, 2, res.Triangles)

	// GLB magic
	require.Equal(t, []byte("glTF"), buf.Bytes()[:4])

	doc := new(gltf.Document)
	require.NoError(t, gltf.NewDecoder(&buf).Decode(doc))
	require.Len(t, doc.Meshes, 1)

	prim := doc.Meshes[0].Primitives[0]
	require.Contains(t, prim.Attributes, gltf.POSITION)
	require.Contains(t, prim.Attributes, gltf.COLOR_0)
	require.NotNil(t, prim.Indices)
	require.Equal(t, 4, doc.Accessors[prim.Attributes[gltf.POSITION]].Count)
	require.Equal(t, 6, doc.Accessors[*prim.Indices].Count)
}

func TestWrite_PointCloudFallback(t *testing.T) {
	var buf bytes.Buffer
	res, err := Write(&buf, pointMesh(), true)
	require.NoError(t, err)
	require.True(t, res.FellBack)
	require.Zero(t, res.Triangles)

	doc := new(gltf.Document)
	require.NoError(t, gltf.NewDecoder(&buf).Decode(doc))
	prim := doc.Meshes[0].Primitives[0]
	require.Equal(t, gltf.PrimitivePoints, prim.Mode)
	require.Nil(t, prim.Indices)
	require.Contains(t, prim.Attributes, gltf.COLOR_0)
}

func TestWrite_EmptyMeshFails(t *testing.T) {
	var buf bytes.Buffer
	_, err := Write(&buf, &meshing.Mesh{}, true)
	require.Error(t, err)
	require.Zero(t, buf.Len())
}

func TestWriteFile_ExtensionSelectsFormat(t *testing.T) {
	dir := t.TempDir()

	glb := filepath.Join(dir, "scene.glb")
	res, err := WriteFile(glb, triMesh())
	require.NoError(t, err)
	require.Equal(t, 2, res.Triangles)

	doc, err := gltf.Open(glb)
	require.NoError(t, err)
	require.Len(t, doc.Meshes, 1)

	text := filepath.Join(dir, "scene.gltf")
	_, err = WriteFile(text, triMesh())
	require.NoError(t, err)

	doc, err = gltf.Open(text)
	require.NoError(t, err)
	require.Len(t, doc.Meshes, 1)
	require.Equal(t, 4, doc.Accessors[doc.Meshes[0].Primitives[0].Attributes[gltf.POSITION]].Count)
}
