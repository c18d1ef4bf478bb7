package editor

import "github.com/chazu/csgbox/pkg/scene"

// Camera returns the current camera.
func (s *Session) Camera() scene.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cam
}

// Viewport returns the current render target size.
func (s *Session) Viewport() scene.Viewport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vp
}

// Resize sets the render target size.
func (s *Session) Resize(vp scene.Viewport) {
	s.mu.Lock()
	s.vp = vp
	s.mu.Unlock()
}

func (s *Session) Orbit(dAzimuth, dElevation float64) {
	s.mu.Lock()
	s.cam.Orbit(dAzimuth, dElevation)
	s.mu.Unlock()
}

func (s *Session) Zoom(delta float64) {
	s.mu.Lock()
	s.cam.Zoom(delta)
	s.mu.Unlock()
}

func (s *Session) Pan(right, forward float64) {
	s.mu.Lock()
	s.cam.Pan(right, forward)
	s.mu.Unlock()
}
