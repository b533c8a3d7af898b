// Copyright 2026 © The Flakewatch Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/flakewatch/pkg/config"
	"github.com/jllopis/flakewatch/pkg/detector"
	"github.com/jllopis/flakewatch/pkg/embed"
	"github.com/jllopis/flakewatch/pkg/errors"
	"github.com/jllopis/flakewatch/pkg/store"
)

// runMCP serves the detector over MCP stdio so agent tooling can trigger
// passes and read persisted clusters.
func runMCP(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	if len(args) > 0 {
		fatalUsage(fmt.Errorf("unexpected args: %v", args))
	}

	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		exitWith(err, global.JSON)
	}

	srv := mcpserver.NewMCPServer("flakewatch", version)

	detect := mcpgo.NewTool("detect_flaky_clusters",
		mcpgo.WithDescription("Run a detection pass over recent test failures and return the ranked clusters"),
		mcpgo.WithNumber("days", mcpgo.Description("Fetch window in days; defaults to the configured window")),
	)
	srv.AddTool(detect, func(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		days := cfg.Detection.TimeWindowDays
		if argMap, ok := request.Params.Arguments.(map[string]interface{}); ok {
			if v, ok := argMap["days"].(float64); ok && v >= 1 {
				days = int(v)
			}
		}

		provider := providerFactory(cfg)
		d, err := detector.New(st, provider, cfg.ClusterParams(),
			detector.WithTimeWindow(days),
			detector.WithOrchestrator(embed.NewOrchestrator(provider,
				embed.WithMaxBatchSize(cfg.Embedding.MaxBatchSize),
				embed.WithBatchDelay(cfg.BatchDelay()),
			)),
		)
		if err != nil {
			return toolError(err), nil
		}
		clusters, err := d.Run(ctx)
		if err != nil {
			return toolError(err), nil
		}
		return toolJSON(clusters)
	})

	fetch := mcpgo.NewTool("fetch_clusters",
		mcpgo.WithDescription("Return the clusters persisted by the most recent detection pass"),
		mcpgo.WithNumber("limit", mcpgo.Description("Maximum clusters to return; 0 returns all")),
	)
	srv.AddTool(fetch, func(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		limit := 0
		if argMap, ok := request.Params.Arguments.(map[string]interface{}); ok {
			if v, ok := argMap["limit"].(float64); ok && v > 0 {
				limit = int(v)
			}
		}
		clusters, err := st.FetchClusters(ctx, limit)
		if err != nil {
			return toolError(err), nil
		}
		return toolJSON(clusters)
	})

	if err := mcpserver.ServeStdio(srv); err != nil {
		exitWith(errors.New(errors.CodeInternal, "mcp server failed", err), global.JSON)
	}
}

func toolJSON(value interface{}) (*mcpgo.CallToolResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return toolError(err), nil
	}
	return &mcpgo.CallToolResult{
		Content: []mcpgo.Content{
			mcpgo.TextContent{Type: "text", Text: string(payload)},
		},
	}, nil
}

func toolError(err error) *mcpgo.CallToolResult {
	fe := errors.AsFlakewatchError(err)
	return &mcpgo.CallToolResult{
		IsError: true,
		Content: []mcpgo.Content{
			mcpgo.TextContent{Type: "text", Text: fe.Error()},
		},
	}
}
