package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/treewatch/internal/progress"
	"github.com/ziadkadry99/treewatch/internal/report"
	"github.com/ziadkadry99/treewatch/internal/session"
	"github.com/ziadkadry99/treewatch/internal/store"
	"github.com/ziadkadry99/treewatch/internal/tree"
)

const defaultAwaitTimeout = 300 * time.Second

func (s *Server) handleGetState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return stateResult(s.sess.State())
}

func (s *Server) handleGetTree(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h := s.sess.Hierarchy()
	if h.Len() == 0 {
		return mcp.NewToolResultText("No tree yet. Use start_run to begin a search."), nil
	}
	maxDepth := request.GetInt("max_depth", 0)
	return mcp.NewToolResultText(outline(h, maxDepth)), nil
}

func (s *Server) handleGetNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	n, ok := s.sess.Node(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("node %q is not in the current tree", id)), nil
	}
	return mcp.NewToolResultText(report.NodeMarkdown(n)), nil
}

func (s *Server) handleSelectNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	if err := s.sess.Select(id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("selecting %q: %v", id, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Selected %s.", id)), nil
}

func (s *Server) handleStartRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question := strings.TrimSpace(request.GetString("question", ""))
	opts := session.RunOptions{
		MaxIterations: request.GetInt("max_iterations", 0),
		MaxDepth:      request.GetInt("max_depth", 0),
		VideoIDs:      splitIDs(request.GetString("video_ids", "")),
	}

	start := s.sess.Run
	if request.GetBool("compare", false) {
		start = s.sess.Compare
	}
	ticket, err := start(ctx, question, opts)
	if errors.Is(err, session.ErrEmptyQuestion) {
		return mcp.NewToolResultError("a question is required for this backend"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("starting run: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Run started (request %s, generation %d). Call await_run with generation %d for the outcome.",
		ticket.Request.RequestID, ticket.Generation, ticket.Generation,
	)), nil
}

func (s *Server) handleAwaitRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	generation := request.GetInt("generation", -1)
	if generation < 0 {
		return mcp.NewToolResultError("missing required parameter: generation"), nil
	}
	timeout := defaultAwaitTimeout
	if secs := request.GetInt("timeout_seconds", 0); secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	st, err := s.sess.Await(ctx, uint64(generation))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("waiting for run %d: %v", generation, err)), nil
	}
	return stateResult(st)
}

// stateResult renders the one-line outcome followed by the state as JSON.
func stateResult(st store.State) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding state: %v", err)), nil
	}

	headline := fmt.Sprintf("Status: %s (generation %d)", st.Status, st.Generation)
	if !st.Busy() && (st.Result != nil || st.Error != "") {
		headline = progress.Summary(st)
	}
	return mcp.NewToolResultText(headline + "\n\n" + string(data)), nil
}

// outline lists the hierarchy depth first, two spaces of indent per level.
// A positive maxDepth prunes deeper nodes.
func outline(h *tree.Hierarchy, maxDepth int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d node(s), generation %d:\n", h.Len(), h.Generation)

	stack := []*tree.Vertex{h.Root}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		fmt.Fprintf(&sb, "%s- [%s] %s (id %s, visits %d, value %.3f)\n",
			strings.Repeat("  ", v.Depth), v.Type.Label(), v.Label, v.ID, v.Visits, v.Value)

		if maxDepth > 0 && v.Depth >= maxDepth {
			continue
		}
		for i := len(v.Children) - 1; i >= 0; i-- {
			stack = append(stack, v.Children[i])
		}
	}
	return sb.String()
}

func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
