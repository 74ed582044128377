// Package transcription defines the provider interface and common types
// for speech-to-text backends.
//
// Backends register in a provider.Registry so the node picks one by name
// from configuration:
//
//	reg := transcription.NewRegistry()
//	reg.RegisterFactory(whisper.ProviderName, whisper.Factory())
//	p, err := reg.Create("whisper", map[string]any{"url": url})
//
// # Backends
//
//   - transcription/whisper: faster-whisper HTTP sidecar
package transcription
