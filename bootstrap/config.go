package bootstrap

import (
	"github.com/701789262a/backend-dailychat/config"
)

// Config is the constraint for service configuration types. Any struct
// embedding config.ServiceConfig satisfies it through promoted methods,
// as long as it also provides its own ApplyDefaults and Validate.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
