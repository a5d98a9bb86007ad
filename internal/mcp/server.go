// Package mcp exposes a live treewatch session to AI agents as Model
// Context Protocol tools served on stdio.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/treewatch/internal/session"
	"github.com/ziadkadry99/treewatch/internal/store"
	"github.com/ziadkadry99/treewatch/internal/tree"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Session is the part of the session service the tools drive.
type Session interface {
	State() store.State
	Hierarchy() *tree.Hierarchy
	Node(id string) (tree.Node, bool)
	Select(id string) error
	Run(ctx context.Context, question string, opts session.RunOptions) (session.Ticket, error)
	Compare(ctx context.Context, question string, opts session.RunOptions) (session.Ticket, error)
	Await(ctx context.Context, generation uint64) (store.State, error)
}

// Server wraps an MCP server bound to one session.
type Server struct {
	sess Session
	mcp  *server.MCPServer
}

// NewServer creates an MCP server for sess.
func NewServer(sess Session) *Server {
	s := &Server{sess: sess}

	s.mcp = server.NewMCPServer(
		"treewatch",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(getStateTool, s.handleGetState)
	s.mcp.AddTool(getTreeTool, s.handleGetTree)
	s.mcp.AddTool(getNodeTool, s.handleGetNode)
	s.mcp.AddTool(selectNodeTool, s.handleSelectNode)
	s.mcp.AddTool(startRunTool, s.handleStartRun)
	s.mcp.AddTool(awaitRunTool, s.handleAwaitRun)
}

// Serve starts the MCP server on stdio. Stdout carries protocol messages,
// so all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
