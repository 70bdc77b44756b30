// Package vidtask is a provider-agnostic client for asynchronous video
// generation APIs. A provider's whole protocol is configuration: endpoint
// paths and methods, JSON field paths for the request and response, and the
// status vocabularies marking terminal states. Submitting a task yields a
// TaskSnapshot; the Poller refreshes it until the provider reports a result
// URL or a terminal status.
//
// Most callers use the Service facade, which combines provider resolution,
// submission, polling and task persistence:
//
//	registry, _ := vidtask.LoadProvidersFile("providers.yaml", logger)
//	service := vidtask.NewService(registry, store, nil, logger)
//	defer service.Close()
//	snapshot, err := service.Generate(ctx, "sora", "a cat surfing", nil)
package vidtask
