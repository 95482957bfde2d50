// Package junction provides a resilient connector framework and inbound
// webhook receiver for third-party service integrations.
//
// # Architecture
//
// Junction is split into two planes:
//
// 1. Outbound: provider adapters (pkg/connector/providers) implement the
// minimal core.Connector transport contract, and the framework wrapper
// (pkg/connector/base) supplies everything else: a lifecycle state
// machine, fixed-window rate limiting, retries with exponential backoff
// and jitter, health history, and lifecycle events.
//
// 2. Inbound: the webhook layer (pkg/webhook) verifies provider HMAC
// signatures, detects the event source from header fingerprints, and
// routes parsed events to registered handlers.
//
// # Quick Start
//
// Wrap a provider adapter and call an API with retries:
//
//	cfg := config.NewConnectorConfig("jira-prod", "httpapi")
//	cfg.Settings["base_url"] = "https://api.example.com"
//
//	impl, _ := registry.Create(cfg)
//	conn, _ := base.New(cfg, impl)
//
//	_ = conn.Connect(ctx, creds)
//	err := conn.WithRetry(ctx, "create_issue", func(ctx context.Context) error {
//	    return doCreateIssue(ctx)
//	})
//
// Receive webhooks:
//
//	manager := webhook.NewManager()
//	manager.SetSignatureSecret("github", secret)
//	manager.RegisterHandler("github", handleGitHub)
//	http.Handle("/webhooks", webhook.NewHTTPHandler(manager))
package junction
