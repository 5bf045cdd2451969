package opencv

import (
	"fmt"

	"face-lock-go/internal/vision"

	"gocv.io/x/gocv"
)

// LoadImage lädt ein Bild von der Festplatte als Frame. Der Aufrufer ist
// für das Schließen verantwortlich.
func LoadImage(path string) (vision.Frame, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		return nil, fmt.Errorf("failed to read image from %s", path)
	}
	return &mat, nil
}

// DecodeImage dekodiert Bilddaten (JPEG/PNG) als Frame. Der Aufrufer ist
// für das Schließen verantwortlich.
func DecodeImage(data []byte) (vision.Frame, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}
	return &mat, nil
}
