// Package app wires pitpipe together and manages its lifecycle.
//
// # Initialization Flow
//
//  1. Load configuration from the YAML file and PIT_* environment
//  2. Initialize logging and OpenTelemetry
//  3. Open the SQLite store when a source needs it
//  4. Build one source loader per configured dataset
//  5. Register the loaders with the event service
//  6. Set up handlers and middleware on a chi router
//  7. Start the HTTP server and shut down gracefully on a signal
//
// # Usage
//
//	application, err := app.NewApplication(configPath)
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// Tests and the CLI use New with an already loaded configuration.
package app
