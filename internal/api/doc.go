// Package api provides a scope-based client for the NovaPress synthesis API.
//
// Usage:
//
//	client, err := api.New(baseURL, api.WithTimeout(30*time.Second), api.WithAdminKey(key))
//	status, err := client.Admin().Status(ctx)
//	page, err := client.Syntheses().Live(ctx, api.LiveQuery{Hours: 24, Limit: 20})
//	graph, err := client.Causal().Graph(ctx, synthesisID)
//
// The client performs no caching or retries; see package querycache for that.
package api
