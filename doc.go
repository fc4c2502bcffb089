// Package halcyon is an asynchronous, multi-producer/single-consumer
// logging core. Producers build a record with Info/Warn/Error/... and
// commit it with Msg/Msgf/Send; a single writer goroutine owns the file
// handle and rotation policy, so producers never block on disk I/O.
//
// Call Init once at process startup and Shutdown before exit:
//
//	cfg, err := halcyon.LoadConfig("log.yaml")
//	if err != nil {
//		cfg = halcyon.DefaultConfig()
//	}
//	if err := halcyon.Init("myapp", cfg); err != nil {
//		panic(err)
//	}
//	defer halcyon.Shutdown()
//
//	halcyon.Info("main").Str("listening on").Str(addr).Msg("server started")
//
// Before Init and after Shutdown, commits fall through to a stderr
// fallback rather than blocking or panicking.
package halcyon
