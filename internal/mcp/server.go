// Package mcp exposes the code map to AI coding assistants over the Model
// Context Protocol (stdio transport).
package mcp

// Implementation Plan:
// 1. MCPServer struct with index and watcher
// 2. NewMCPServer - loads the code map, registers tools, creates watcher
// 3. Serve - starts MCP server on stdio, returns on ctx cancellation or error
// 4. Clean error handling and logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/see-the-code/internal/match"
)

// ServerName is the MCP implementation name.
const ServerName = "see-the-code-mcp"

// MCPServerConfig configures the MCP server.
type MCPServerConfig struct {
	CodeMapPath string
	Version     string
	Match       match.Options
	Watch       bool
	Logger      *slog.Logger
}

// MCPServer manages the MCP server lifecycle.
type MCPServer struct {
	config  *MCPServerConfig
	index   *Index
	watcher *FileWatcher
	mcp     *server.MCPServer
	logger  *slog.Logger
}

// NewMCPServer creates a new MCP server over the code map at
// config.CodeMapPath.
func NewMCPServer(ctx context.Context, config *MCPServerConfig) (*MCPServer, error) {
	if config == nil || config.CodeMapPath == "" {
		return nil, errors.New("code map path is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := config.Version
	if version == "" {
		version = "dev"
	}

	index, err := NewIndex(ctx, config.CodeMapPath, config.Match, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
	)
	RegisterTools(mcpServer, index)

	s := &MCPServer{
		config: config,
		index:  index,
		mcp:    mcpServer,
		logger: logger,
	}

	if config.Watch {
		watcher, err := NewFileWatcher(index, config.CodeMapPath, logger)
		if err != nil {
			index.Close()
			return nil, fmt.Errorf("failed to create file watcher: %w", err)
		}
		s.watcher = watcher
	}

	return s, nil
}

// RegisterTools adds every see-the-code tool to s.
func RegisterTools(s *server.MCPServer, index *Index) {
	AddLookupTool(s, index)
	AddMatchTool(s, index)
	AddSearchTool(s, index)
}

// Index returns the server's index.
func (s *MCPServer) Index() *Index {
	return s.index
}

// Serve starts the MCP server and blocks until ctx is done or stdio closes.
func (s *MCPServer) Serve(ctx context.Context) error {
	if s.watcher != nil {
		s.watcher.Start(ctx)
		defer s.watcher.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting MCP server on stdio", "selectors", s.index.Len())
		if err := server.ServeStdio(s.mcp); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("stopping MCP server")
		return nil
	}
}

// Close releases all resources.
func (s *MCPServer) Close() error {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	return s.index.Close()
}
