// Package server runs the gin HTTP surface of each service behind an h2c
// handler, with the shared middleware stack and the /health endpoint.
//
//	srv := server.New(cfg.HTTP, log)
//	srv.ApplyDefaults("dispatcher", registry.HealthAll)
//	srv.Engine().POST("/", handler.Submit)
//	app.RegisterComponent(server.NewComponent(srv))
package server
