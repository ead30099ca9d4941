package gpu

import (
	"image"
	"image/draw"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/livedepth/livedepth/render/gpu/shaders"
)

type hudVertex struct {
	Pos [2]float32
	UV  [2]float32
}

// hudState renders a single status line in the top-left corner. The text
// is rasterized on the CPU with the basic bitmap font and uploaded as a
// texture; a texture swap happens only when the text changes.
type hudState struct {
	pipeline *wgpu.RenderPipeline
	sampler  *wgpu.Sampler

	tex       *wgpu.Texture
	view      *wgpu.TextureView
	bindGroup *wgpu.BindGroup
	vertices  *wgpu.Buffer

	text    string
	visible bool
}

func newHudState(device *wgpu.Device, config *wgpu.SurfaceConfiguration) (*hudState, error) {
	h := &hudState{}

	shader, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "hud",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.HudWGSL},
	})
	if err != nil {
		return nil, err
	}
	defer shader.Release()

	h.pipeline, err = device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "HUD Pipeline",
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: uint64(unsafe.Sizeof(hudVertex{})),
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format: config.Format,
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorSrcAlpha,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
					Alpha: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOne,
						Operation: wgpu.BlendOperationAdd,
					},
				},
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}

	h.sampler, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		MagFilter:     wgpu.FilterModeNearest,
		MinFilter:     wgpu.FilterModeNearest,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (h *hudState) setText(device *wgpu.Device, queue *wgpu.Queue, config *wgpu.SurfaceConfiguration, text string) error {
	if text == h.text {
		return nil
	}
	if text == "" {
		h.text = ""
		h.visible = false
		return nil
	}
	// hide until the new resources are fully built; on failure the stale
	// text is kept out of h.text so the next frame retries
	h.visible = false

	face := basicfont.Face7x13
	pad := 4
	w := font.MeasureString(face, text).Ceil() + 2*pad
	hgt := face.Metrics().Height.Ceil() + 2*pad

	img := image.NewRGBA(image.Rect(0, 0, w, hgt))
	draw.Draw(img, img.Bounds(), image.NewUniform(image.Black), image.Point{}, draw.Src)
	d := font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(pad, pad+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)

	if h.tex != nil {
		h.view.Release()
		h.tex.Release()
	}
	extent := wgpu.Extent3D{Width: uint32(w), Height: uint32(hgt), DepthOrArrayLayers: 1}
	tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "HUD Text",
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return err
	}
	if err := queue.WriteTexture(tex.AsImageCopy(), img.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(img.Stride),
		RowsPerImage: uint32(hgt),
	}, &extent); err != nil {
		tex.Release()
		return err
	}
	h.tex = tex
	h.view, err = tex.CreateView(nil)
	if err != nil {
		return err
	}

	if h.bindGroup != nil {
		h.bindGroup.Release()
	}
	layout := h.pipeline.GetBindGroupLayout(0)
	defer layout.Release()
	h.bindGroup, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: h.view},
			{Binding: 1, Sampler: h.sampler},
		},
	})
	if err != nil {
		return err
	}

	// quad in clip space, anchored top-left with a 10px margin
	sw := float32(config.Width)
	sh := float32(config.Height)
	x0 := -1 + 2*10/sw
	y0 := 1 - 2*10/sh
	x1 := x0 + 2*float32(w)/sw
	y1 := y0 - 2*float32(hgt)/sh
	verts := []hudVertex{
		{Pos: [2]float32{x0, y1}, UV: [2]float32{0, 1}},
		{Pos: [2]float32{x1, y1}, UV: [2]float32{1, 1}},
		{Pos: [2]float32{x0, y0}, UV: [2]float32{0, 0}},
		{Pos: [2]float32{x0, y0}, UV: [2]float32{0, 0}},
		{Pos: [2]float32{x1, y1}, UV: [2]float32{1, 1}},
		{Pos: [2]float32{x1, y0}, UV: [2]float32{1, 0}},
	}
	if h.vertices != nil {
		h.vertices.Release()
	}
	h.vertices, err = device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "HUD VB",
		Contents: unsafe.Slice((*byte)(unsafe.Pointer(&verts[0])), len(verts)*int(unsafe.Sizeof(hudVertex{}))),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		return err
	}
	h.text = text
	h.visible = true
	return nil
}

func (h *hudState) draw(pass *wgpu.RenderPassEncoder) {
	if !h.visible || h.bindGroup == nil || h.vertices == nil {
		return
	}
	pass.SetPipeline(h.pipeline)
	pass.SetBindGroup(0, h.bindGroup, nil)
	pass.SetVertexBuffer(0, h.vertices, 0, wgpu.WholeSize)
	pass.Draw(6, 1, 0, 0)
}

func (h *hudState) release() {
	if h.vertices != nil {
		h.vertices.Release()
	}
	if h.bindGroup != nil {
		h.bindGroup.Release()
	}
	if h.view != nil {
		h.view.Release()
	}
	if h.tex != nil {
		h.tex.Release()
	}
	h.sampler.Release()
	h.pipeline.Release()
}
