package domain

// KeyPrefix namespaces every key this service writes to the key-value store.
const KeyPrefix = "retriever:"

// VectorConfig holds the dense vectorization settings of a listing collection.
type VectorConfig struct {
	Model          string
	Dimensions     int
	DistanceMetric string
}

// DefaultVectorConfig returns the configuration of OpenAI text-embedding-3-small.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:          "text-embedding-3-small",
		Dimensions:     1536,
		DistanceMetric: "cosine",
	}
}
