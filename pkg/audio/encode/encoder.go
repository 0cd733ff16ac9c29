// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for clip encoders
package encode

// Encoder encodes float32 samples to a self-contained audio file
type Encoder interface {
	// Encode converts samples captured at sampleRate into file bytes
	Encode(samples []float32, sampleRate int) ([]byte, error)

	// MIME returns the container MIME type of the encoded output
	MIME() string
}
