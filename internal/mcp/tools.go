package mcp

import "github.com/mark3labs/mcp-go/mcp"

var getStateTool = mcp.NewTool("get_state",
	mcp.WithDescription("Get the session status, run progress, result artifacts and connection state as JSON."),
)

var getTreeTool = mcp.NewTool("get_tree",
	mcp.WithDescription("Get the current search tree as an indented outline with node types, visits and values."),
	mcp.WithNumber("max_depth",
		mcp.Description("Only list nodes up to this depth (default: whole tree)"),
	),
)

var getNodeTool = mcp.NewTool("get_node",
	mcp.WithDescription("Get the full details of one node as Markdown: reward signals, content, code and execution output."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Node id as listed by get_tree"),
	),
)

var selectNodeTool = mcp.NewTool("select_node",
	mcp.WithDescription("Select a node so the terminal UI and dashboards highlight it."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Node id as listed by get_tree"),
	),
)

var startRunTool = mcp.NewTool("start_run",
	mcp.WithDescription("Start a new search run, replacing the current tree. Returns the generation to pass to await_run."),
	mcp.WithString("question",
		mcp.Description("Question to answer (required unless the backend runs discovery)"),
	),
	mcp.WithBoolean("compare",
		mcp.Description("Also run the plain baseline and report both results"),
	),
	mcp.WithNumber("max_iterations",
		mcp.Description("Search iterations (default from config)"),
	),
	mcp.WithNumber("max_depth",
		mcp.Description("Maximum tree depth (default from config)"),
	),
	mcp.WithString("video_ids",
		mcp.Description("Comma-separated video ids to search"),
	),
)

var awaitRunTool = mcp.NewTool("await_run",
	mcp.WithDescription("Wait for a run to end and return its outcome."),
	mcp.WithNumber("generation",
		mcp.Required(),
		mcp.Description("Generation returned by start_run"),
	),
	mcp.WithNumber("timeout_seconds",
		mcp.Description("How long to wait (default 300)"),
	),
)
