package opencv

import (
	"fmt"
	"image"

	"face-lock-go/internal/core/identity"
	"face-lock-go/internal/vision"

	"gocv.io/x/gocv"
)

// Embedder berechnet Gesichts-Embeddings über ein ONNX-Modell
// (ArcFace-Familie). Eingabe ist der ausgerichtete 112x112-Ausschnitt,
// Ausgabe der L2-normalisierte Embedding-Vektor.
//
// Nicht nebenläufig nutzbar: gocv.Net serialisiert Forward-Aufrufe nicht.
type Embedder struct {
	net gocv.Net
}

// NewEmbedder lädt das ONNX-Modell
func NewEmbedder(modelPath string) (*Embedder, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load embedder model from %s", modelPath)
	}
	return &Embedder{net: net}, nil
}

// Embed berechnet das Embedding eines ausgerichteten Gesichtsausschnitts
func (e *Embedder) Embed(crop vision.Frame) ([]float32, error) {
	mat, ok := matFromFrame(crop)
	if !ok {
		return nil, fmt.Errorf("unsupported crop type %T", crop)
	}
	if mat.Cols() != AlignedSize || mat.Rows() != AlignedSize {
		return nil, fmt.Errorf("embedder expects %dx%d input, got %dx%d",
			AlignedSize, AlignedSize, mat.Cols(), mat.Rows())
	}

	// ArcFace-Normalisierung: (Pixel - 127.5) / 127.5, BGR nach RGB
	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(AlignedSize, AlignedSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read embedder output: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("embedder produced empty output")
	}

	// Kopieren, bevor die Ausgabe-Mat freigegeben wird
	embedding := make([]float32, len(data))
	copy(embedding, data)
	identity.Normalize(embedding)
	return embedding, nil
}

// Close gibt die Modell-Ressourcen frei
func (e *Embedder) Close() error {
	return e.net.Close()
}
