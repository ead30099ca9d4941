// Package gpu implements the render.Backend capability on WebGPU: instanced
// point sprites with per-vertex color, plus a HUD status line.
package gpu

import (
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/livedepth/livedepth/core"
	"github.com/livedepth/livedepth/render"
	"github.com/livedepth/livedepth/render/gpu/shaders"
)

type cameraUniform struct {
	View [16]float32
	Proj [16]float32
}

// Renderer is the WebGPU implementation of render.Backend.
type Renderer struct {
	window  *glfw.Window
	surface *wgpu.Surface
	adapter *wgpu.Adapter
	device  *wgpu.Device
	queue   *wgpu.Queue
	config  *wgpu.SurfaceConfiguration

	pointsPipeline *wgpu.RenderPipeline
	cameraBuffer   *wgpu.Buffer
	instanceBuffer *wgpu.Buffer
	instanceCount  uint32
	instanceCap    int

	sprites    *render.SpriteTable
	spriteKey  render.SpriteKey
	spriteTex  *wgpu.Texture
	spriteView *wgpu.TextureView
	sampler    *wgpu.Sampler
	bindGroup  *wgpu.BindGroup

	hud *hudState
}

// NewRenderer wraps a glfw window into a WebGPU surface and builds the
// point pipeline.
func NewRenderer(window *glfw.Window) (*Renderer, error) {
	r := &Renderer{
		window:  window,
		sprites: render.NewSpriteTable(),
	}

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	r.surface = instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: r.surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, err
	}
	r.adapter = adapter

	r.device, err = adapter.RequestDevice(nil)
	if err != nil {
		return nil, err
	}
	r.queue = r.device.GetQueue()

	width, height := window.GetFramebufferSize()
	caps := r.surface.GetCapabilities(adapter)
	r.config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	r.surface.Configure(adapter, r.device, r.config)

	if err := r.createPointsPipeline(); err != nil {
		return nil, err
	}

	r.cameraBuffer, err = r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Camera",
		Size:  uint64(unsafe.Sizeof(cameraUniform{})),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}

	r.sampler, err = r.device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, err
	}

	r.hud, err = newHudState(r.device, r.config)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) createPointsPipeline() error {
	shader, err := r.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "points",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.PointsWGSL},
	})
	if err != nil {
		return err
	}
	defer shader.Release()

	stride := uint64(unsafe.Sizeof(render.PointVertex{}))
	r.pointsPipeline, err = r.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Points Pipeline",
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: stride,
				StepMode:    wgpu.VertexStepModeInstance,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32, Offset: 12, ShaderLocation: 1},
					{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 2},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format: r.config.Format,
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
	return err
}

// UploadPoints replaces the instance buffer, growing it when the pool
// outgrows the current allocation.
func (r *Renderer) UploadPoints(points []render.PointVertex) {
	r.instanceCount = uint32(len(points))
	if len(points) == 0 {
		return
	}
	size := uint64(len(points)) * uint64(unsafe.Sizeof(render.PointVertex{}))
	if r.instanceBuffer == nil || r.instanceCap < len(points) {
		if r.instanceBuffer != nil {
			r.instanceBuffer.Release()
		}
		var err error
		r.instanceBuffer, err = r.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "Point Instances",
			Size:  size,
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			core.LogError("renderer: instance buffer: %v", err)
			r.instanceCount = 0
			r.instanceCap = 0
			return
		}
		r.instanceCap = len(points)
	}
	bytes := unsafe.Slice((*byte)(unsafe.Pointer(&points[0])), size)
	if err := r.queue.WriteBuffer(r.instanceBuffer, 0, bytes); err != nil {
		core.LogError("renderer: instance upload: %v", err)
		r.instanceCount = 0
	}
}

// SetHUD replaces the status overlay text. A failed rebuild hides the HUD
// for the frame and is logged; the point pass is unaffected.
func (r *Renderer) SetHUD(text string) {
	if err := r.hud.setText(r.device, r.queue, r.config, text); err != nil {
		core.LogError("renderer: hud: %v", err)
	}
}

// ensureSprite regenerates the mask texture and bind group when the sprite
// parameters change.
func (r *Renderer) ensureSprite(key render.SpriteKey) error {
	if r.bindGroup != nil && key == r.spriteKey {
		return nil
	}
	mask := r.sprites.Mask(key)

	if r.spriteTex != nil {
		r.spriteView.Release()
		r.spriteTex.Release()
	}
	extent := wgpu.Extent3D{
		Width:              uint32(render.SpriteMaskSize),
		Height:             uint32(render.SpriteMaskSize),
		DepthOrArrayLayers: 1,
	}
	tex, err := r.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Sprite Mask",
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatR8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return err
	}
	if err := r.queue.WriteTexture(tex.AsImageCopy(), mask.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(mask.Stride),
		RowsPerImage: uint32(render.SpriteMaskSize),
	}, &extent); err != nil {
		tex.Release()
		return err
	}
	r.spriteTex = tex
	r.spriteView, err = tex.CreateView(nil)
	if err != nil {
		return err
	}

	if r.bindGroup != nil {
		r.bindGroup.Release()
	}
	layout := r.pointsPipeline.GetBindGroupLayout(0)
	defer layout.Release()
	r.bindGroup, err = r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: r.cameraBuffer, Size: wgpu.WholeSize},
			{Binding: 1, TextureView: r.spriteView},
			{Binding: 2, Sampler: r.sampler},
		},
	})
	if err != nil {
		return err
	}
	r.spriteKey = key
	return nil
}

// Draw renders the uploaded points and the HUD into the surface.
func (r *Renderer) Draw(cam render.Camera, style render.PointStyle) error {
	if err := r.ensureSprite(render.SpriteKey{
		Shape:     style.Shape,
		Feather:   style.Feather,
		Thickness: style.Thickness,
	}); err != nil {
		return err
	}

	var uni cameraUniform
	copy(uni.View[:], cam.View[:])
	copy(uni.Proj[:], cam.Proj[:])
	uniBytes := unsafe.Slice((*byte)(unsafe.Pointer(&uni)), unsafe.Sizeof(uni))
	if err := r.queue.WriteBuffer(r.cameraBuffer, 0, uniBytes); err != nil {
		return err
	}

	nextTexture, err := r.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("surface texture: %w", err)
	}
	view, err := nextTexture.CreateView(nil)
	if err != nil {
		return err
	}
	defer view.Release()

	encoder, err := r.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0.02, G: 0.02, B: 0.04, A: 1.0},
		}},
	})

	if r.instanceCount > 0 && r.instanceBuffer != nil {
		pass.SetPipeline(r.pointsPipeline)
		pass.SetBindGroup(0, r.bindGroup, nil)
		pass.SetVertexBuffer(0, r.instanceBuffer, 0, wgpu.WholeSize)
		pass.Draw(6, r.instanceCount, 0, 0)
	}

	r.hud.draw(pass)

	if err := pass.End(); err != nil {
		return err
	}
	pass.Release()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer cmd.Release()

	r.queue.Submit(cmd)
	r.surface.Present()
	return nil
}

// Resize reconfigures the surface.
func (r *Renderer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r.config.Width = uint32(width)
	r.config.Height = uint32(height)
	r.surface.Configure(r.adapter, r.device, r.config)
}

// Release frees GPU resources.
func (r *Renderer) Release() {
	if r.instanceBuffer != nil {
		r.instanceBuffer.Release()
	}
	if r.bindGroup != nil {
		r.bindGroup.Release()
	}
	if r.spriteView != nil {
		r.spriteView.Release()
	}
	if r.spriteTex != nil {
		r.spriteTex.Release()
	}
	r.hud.release()
	r.sampler.Release()
	r.cameraBuffer.Release()
	r.pointsPipeline.Release()
	r.device.Release()
}
