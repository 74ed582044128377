package transcription

import "github.com/701789262a/backend-dailychat/provider"

// NewRegistry creates a registry for transcription backends.
func NewRegistry() *provider.Registry[Provider] {
	return provider.NewRegistry[Provider]()
}
