package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/livedepth/livedepth/config"
	"github.com/livedepth/livedepth/core"
	"github.com/livedepth/livedepth/render"
	"github.com/livedepth/livedepth/render/gpu"
	"github.com/livedepth/livedepth/stream"
	"github.com/livedepth/livedepth/viewer"
)

func init() {
	runtime.LockOSThread()
}

// orbitCamera circles a fixed target. Drag rotates, scroll zooms.
type orbitCamera struct {
	target   mgl32.Vec3
	yaw      float32
	pitch    float32
	distance float32

	dragging     bool
	lastX, lastY float64
	aspect       float32
	sensitivity  float32
	minDist      float32
	maxDist      float32
}

func newOrbitCamera(aspect float32) *orbitCamera {
	return &orbitCamera{
		target:      mgl32.Vec3{0, 0, -1.5},
		pitch:       0.15,
		distance:    3.0,
		aspect:      aspect,
		sensitivity: 0.005,
		minDist:     0.3,
		maxDist:     30.0,
	}
}

func (c *orbitCamera) drag(x, y float64) {
	if !c.dragging {
		return
	}
	c.yaw += float32(x-c.lastX) * c.sensitivity
	c.pitch += float32(y-c.lastY) * c.sensitivity
	limit := float32(math.Pi/2 - 0.05)
	if c.pitch > limit {
		c.pitch = limit
	}
	if c.pitch < -limit {
		c.pitch = -limit
	}
	c.lastX, c.lastY = x, y
}

func (c *orbitCamera) zoom(dy float64) {
	c.distance *= float32(math.Pow(0.9, dy))
	if c.distance < c.minDist {
		c.distance = c.minDist
	}
	if c.distance > c.maxDist {
		c.distance = c.maxDist
	}
}

func (c *orbitCamera) matrices() render.Camera {
	cp := float32(math.Cos(float64(c.pitch)))
	eye := c.target.Add(mgl32.Vec3{
		c.distance * cp * float32(math.Sin(float64(c.yaw))),
		c.distance * float32(math.Sin(float64(c.pitch))),
		c.distance * cp * float32(math.Cos(float64(c.yaw))),
	})
	return render.Camera{
		View: mgl32.LookAtV(eye, c.target, mgl32.Vec3{0, 1, 0}),
		Proj: mgl32.Perspective(mgl32.DegToRad(60), c.aspect, 0.05, 200),
	}
}

func main() {
	cfgPath := flag.String("config", "", "path to a TOML config file")
	urlFlag := flag.String("url", "", "depth producer WebSocket URL (overrides config)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			core.LogFatal("config: %v", err)
		}
		cfg = loaded
	}
	if *urlFlag != "" {
		cfg.Stream.URL = *urlFlag
	}
	core.SetDebug(*debug || cfg.Debug)

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	backend, err := gpu.NewRenderer(window)
	if err != nil {
		core.LogFatal("renderer: %v", err)
	}
	defer backend.Release()

	session := viewer.NewSession(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := stream.NewClient(cfg.Stream)
	go client.Run(ctx)

	var cfgUpdates <-chan config.Config
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	if *cfgPath != "" {
		cfgUpdates, err = config.Watch(*cfgPath, stopWatch)
		if err != nil {
			core.LogWarn("config watch disabled: %v", err)
		}
	}

	fbw, fbh := window.GetFramebufferSize()
	cam := newOrbitCamera(float32(fbw) / float32(fbh))

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		backend.Resize(width, height)
		if height > 0 {
			cam.aspect = float32(width) / float32(height)
		}
	})
	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button == glfw.MouseButtonLeft {
			cam.dragging = action == glfw.Press
			cam.lastX, cam.lastY = w.GetCursorPos()
		}
	})
	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		cam.drag(xpos, ypos)
	})
	window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		cam.zoom(yoff)
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeyE:
			ext := ".glb"
			if mods&glfw.ModShift != 0 {
				ext = ".gltf"
			}
			if _, _, err := session.Export(cfg.Export.Dir, ext); err != nil {
				core.LogError("%v", err)
			}
		}
	})

	clock := core.NewClock()

	for !window.ShouldClose() {
		glfw.PollEvents()
		dt := float32(clock.Tick().Seconds())
		now := core.NowMs()

		select {
		case ps, ok := <-client.PointSets():
			if ok {
				session.HandlePointSet(ps, now)
			}
		default:
		}
		select {
		case next, ok := <-cfgUpdates:
			if ok {
				session.ApplyConfig(next)
				cfg = next
			}
		default:
		}

		verts := session.Tick(now, dt)
		backend.UploadPoints(verts)
		backend.SetHUD(hudLine(client, len(verts), dt))

		if err := backend.Draw(cam.matrices(), session.Style()); err != nil {
			core.LogError("draw: %v", err)
		}
	}

	cancel()
}

func hudLine(client *stream.Client, points int, dt float32) string {
	status := "connecting"
	if client.Connected() {
		status = "live"
	}
	frames, dropped, malformed, _ := client.StatsSnapshot()
	fps := 0.0
	if dt > 0 {
		fps = 1 / float64(dt)
	}
	return fmt.Sprintf("%s | %.0f fps | %d points | frames %d drop %d bad %d",
		status, fps, points, frames, dropped, malformed)
}
