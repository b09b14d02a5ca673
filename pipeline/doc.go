// Package pipeline puts a single worker goroutine in front of a
// NodeProvisioner so that concurrent HTTP handlers can share one
// non-thread-safe orchestrator.
//
// Requests are served in submission order, one at a time. Each request
// carries its own buffered response channel, so every caller receives
// exactly the result of its own request and the worker never blocks on a
// caller that went away. A request whose context is done before the worker
// reaches it is answered with the context error without touching the
// provisioner, so no address is consumed for it.
//
//	p := pipeline.New(orch, log)
//	p.Start()
//	defer p.Stop()
//	bundle, err := p.ProvisionNode(ctx, "node-1")
//
// After Stop every caller receives interfaces.ErrPipelineUnavailable.
package pipeline
