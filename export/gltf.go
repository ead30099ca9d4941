// Package export serializes a reconstructed mesh as a glTF 2.0 scene,
// binary (.glb) or textual (.gltf), with per-vertex color in both forms.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/livedepth/livedepth/meshing"
)

// Result reports what was written. FellBack is the observable marker of the
// mandatory point-cloud fallback; it is not an error.
type Result struct {
	FellBack  bool
	Vertices  int
	Triangles int
	NodeName  string
}

// Write serializes mesh to w. binary selects GLB; otherwise the textual
// glTF form with the payload embedded as a data URI.
func Write(w io.Writer, mesh *meshing.Mesh, binary bool) (Result, error) {
	res := Result{
		Vertices:  mesh.VertexCount(),
		Triangles: mesh.TriangleCount(),
		FellBack:  mesh.TriangleCount() == 0,
		NodeName:  "livedepth-" + uuid.NewString()[:8],
	}
	if mesh.VertexCount() == 0 {
		return res, fmt.Errorf("export: empty mesh, nothing to write")
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = "livedepth"

	positions := make([][3]float32, mesh.VertexCount())
	colors := make([][3]float32, mesh.VertexCount())
	for i := range positions {
		positions[i] = [3]float32{mesh.Positions[3*i], mesh.Positions[3*i+1], mesh.Positions[3*i+2]}
		colors[i] = [3]float32{mesh.Colors[3*i], mesh.Colors[3*i+1], mesh.Colors[3*i+2]}
	}

	posIdx := modeler.WritePosition(doc, positions)
	colIdx := modeler.WriteColor(doc, colors)

	prim := &gltf.Primitive{
		Attributes: map[string]int{
			gltf.POSITION: posIdx,
			gltf.COLOR_0:  colIdx,
		},
	}
	if res.FellBack {
		prim.Mode = gltf.PrimitivePoints
	} else {
		prim.Indices = gltf.Index(modeler.WriteIndices(doc, mesh.Triangles))
	}

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name:       res.NodeName,
		Primitives: []*gltf.Primitive{prim},
	})
	doc.Nodes = append(doc.Nodes, &gltf.Node{
		Name: res.NodeName,
		Mesh: gltf.Index(len(doc.Meshes) - 1),
	})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, len(doc.Nodes)-1)

	if !binary {
		// textual form carries the payload inline
		for _, buf := range doc.Buffers {
			buf.EmbeddedResource()
		}
	}

	enc := gltf.NewEncoder(w)
	enc.AsBinary = binary
	if err := enc.Encode(doc); err != nil {
		return res, fmt.Errorf("export: %w", err)
	}
	return res, nil
}

// WriteFile writes mesh to path, choosing the format from the extension
// (.glb binary, anything else textual glTF).
func WriteFile(path string, mesh *meshing.Mesh) (Result, error) {
	f, err := os.Create(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	binary := strings.EqualFold(filepath.Ext(path), ".glb")
	res, err := Write(f, mesh, binary)
	if err != nil {
		return res, err
	}
	return res, f.Sync()
}
