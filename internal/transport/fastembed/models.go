// Package fastembed runs dense embedding models locally through ONNX.
// It needs cgo; without it every constructor fails with ErrNotAvailable.
package fastembed

import (
	"errors"
	"fmt"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
)

// ErrNotAvailable is returned by binaries built without cgo.
var ErrNotAvailable = errors.New("fastembed: not available (built without cgo)")

// DefaultModel is a small multilingual-friendly BGE model.
const DefaultModel = "BAAI/bge-small-en-v1.5"

// Config selects the local model.
type Config struct {
	Model     string
	CacheDir  string
	MaxLength int
}

var modelDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
}

// Dimensions reports the vector size of a supported model.
func Dimensions(model string) (int, error) {
	if model == "" {
		model = DefaultModel
	}
	dims, ok := modelDimensions[model]
	if !ok {
		return 0, fmt.Errorf("fastembed model %q is not supported: %w", model, domain.ErrConfiguration)
	}
	return dims, nil
}
