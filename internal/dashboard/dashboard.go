package dashboard

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"

	"github.com/ziadkadry99/treewatch/internal/report"
	"github.com/ziadkadry99/treewatch/internal/session"
	"github.com/ziadkadry99/treewatch/internal/store"
	"github.com/ziadkadry99/treewatch/internal/tree"
)

// Session is the part of *session.Service the dashboard drives.
type Session interface {
	State() store.State
	Hierarchy() *tree.Hierarchy
	Node(id string) (tree.Node, bool)
	Select(id string) error
	Selected() (string, bool)
	Run(ctx context.Context, question string, ro session.RunOptions) (session.Ticket, error)
	Compare(ctx context.Context, question string, ro session.RunOptions) (session.Ticket, error)
	LoadDataset(ctx context.Context) error
	Subscribe(fn session.StateFunc) func()
}

// Dashboard serves the live tree page, its websocket stream and the JSON
// API around one session.
type Dashboard struct {
	sess   Session
	hub    *Hub
	md     goldmark.Markdown
	report *report.Generator
	logger zerolog.Logger

	unsubscribe func()
}

// New creates a Dashboard. hub must be the render sink of sess so the page
// sees every batch.
func New(sess Session, hub *Hub, logger zerolog.Logger) *Dashboard {
	d := &Dashboard{
		sess:   sess,
		hub:    hub,
		md:     report.NewMarkdown(),
		report: report.NewGenerator(),
		logger: logger.With().Str("component", "dashboard").Logger(),
	}
	hub.PublishState(sess.State())
	d.unsubscribe = sess.Subscribe(hub.PublishState)
	return d
}

// Close stops forwarding state changes to the hub.
func (d *Dashboard) Close() {
	if d.unsubscribe != nil {
		d.unsubscribe()
	}
}

// RegisterRoutes mounts all dashboard routes onto the given router.
func (d *Dashboard) RegisterRoutes(r chi.Router) {
	r.Get("/", d.ServeIndex)
	r.Get("/api/state", d.handleState)
	r.Get("/api/tree", d.handleTree)
	r.Get("/api/nodes/{id}", d.handleNode)
	r.Post("/api/select", d.handleSelect)
	r.Post("/api/run", d.handleRun)
	r.Post("/api/dataset/load", d.handleLoadDataset)
	r.Get("/report", d.handleReport)
	r.Get("/ws/tree", d.handleWebSocket)
}
