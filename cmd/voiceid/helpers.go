package main

import (
	"github.com/701789262a/backend-dailychat/bootstrap"
	"github.com/701789262a/backend-dailychat/component"
)

// registerAll registers infrastructure components in start order.
func registerAll[C bootstrap.Config](app *bootstrap.App[C], comps ...component.Component) error {
	for _, c := range comps {
		if err := app.RegisterComponent(c); err != nil {
			return err
		}
	}
	return nil
}
