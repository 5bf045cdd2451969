package opencv

import (
	"fmt"

	"face-lock-go/config"
	"face-lock-go/internal/vision"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Camera liest Frames von einer lokalen Kamera oder einem Netzwerk-Stream.
// Read gibt immer dieselbe Mat zurück, deren Inhalt pro Aufruf
// überschrieben wird; der Frame ist nur bis zum nächsten Read gültig.
type Camera struct {
	capture *gocv.VideoCapture
	frame   gocv.Mat
}

// NewCamera öffnet die konfigurierte Videoquelle
func NewCamera(cfg config.CameraConfig) (*Camera, error) {
	var capture *gocv.VideoCapture
	var err error

	if cfg.URL != "" {
		log.Infof("Opening video stream: %s", cfg.URL)
		capture, err = gocv.OpenVideoCapture(cfg.URL)
	} else {
		log.Infof("Opening camera device %d", cfg.Device)
		capture, err = gocv.OpenVideoCapture(cfg.Device)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open video source: %w", err)
	}

	if cfg.Width > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}

	return &Camera{capture: capture, frame: gocv.NewMat()}, nil
}

// Read liest den nächsten Frame. false bedeutet Stream-Ende oder Lesefehler.
func (c *Camera) Read() (vision.Frame, bool) {
	if !c.capture.Read(&c.frame) || c.frame.Empty() {
		return nil, false
	}
	return c.frame, true
}

// Close gibt Kamera und Frame-Puffer frei
func (c *Camera) Close() error {
	if err := c.capture.Close(); err != nil {
		return err
	}
	return c.frame.Close()
}
