// Package app assembles every orchestration-bus subsystem into one
// running process: the Postgres-backed store, the nine agent tools,
// the dashboard HTTP server, the background status monitor, and the
// optional Telegram bridge. Modeled on the control plane's
// composition-root Server, generalized to the bus's component set.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/marcus-qen/orchestra/internal/agentstatus"
	"github.com/marcus-qen/orchestra/internal/audit"
	"github.com/marcus-qen/orchestra/internal/bridge"
	"github.com/marcus-qen/orchestra/internal/cardexec"
	"github.com/marcus-qen/orchestra/internal/config"
	"github.com/marcus-qen/orchestra/internal/coord"
	"github.com/marcus-qen/orchestra/internal/dashboard"
	"github.com/marcus-qen/orchestra/internal/events"
	"github.com/marcus-qen/orchestra/internal/mcpserver"
	"github.com/marcus-qen/orchestra/internal/monitor"
	"github.com/marcus-qen/orchestra/internal/ops"
	"github.com/marcus-qen/orchestra/internal/registry"
	"github.com/marcus-qen/orchestra/internal/sharedfile"
	"github.com/marcus-qen/orchestra/internal/store"
	"github.com/marcus-qen/orchestra/internal/telegram"
	"github.com/marcus-qen/orchestra/internal/tools"
	"github.com/marcus-qen/orchestra/internal/topology"

	"github.com/robfig/cron/v3"
)

const (
	eventBusBufferSize  = 256
	monitorIntervalSec  = 5
	monitorReadLines    = 30
	topologySweepCron   = "@every 5m"
)

// App is the fully wired bus process.
type App struct {
	cfg    config.Config
	cfgPath string
	logger *zap.Logger

	store       *store.Store
	auditSink   *audit.Sink
	statusStore *agentstatus.Store
	fileStore   *sharedfile.Store
	opsStore    *ops.Store
	executor    *cardexec.Executor
	topo        *topology.Engine
	tasks       *coord.TaskStore
	approvals   *coord.ApprovalStore
	locks       *coord.LockStore
	roster      *registry.Store
	registrar   *bridge.Registrar
	diagnostics *tools.DiagnosticsMirror
	dbTool      *tools.DBTool
	registry    *tools.Registry
	mcp         *mcpserver.MCPServer
	bridge      bridge.Bridge
	mon         *monitor.Monitor
	bus         *events.Bus

	telegramBot *telegram.Bot
	dashSrv     *dashboard.Server
	sweepCron   *cron.Cron
}

// New opens the store, applies migrations, and wires every subsystem.
// cfgPath is the path cfg was loaded from (may be empty); it is used
// to persist runtime changes the Telegram bridge makes (chat-id
// binding, watchdog toggling).
func New(ctx context.Context, cfg config.Config, cfgPath string, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	st, err := store.Open(ctx, store.Options{DSN: cfg.PostgresDSN, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}

	a := &App{
		cfg:     cfg,
		cfgPath: cfgPath,
		logger:  logger,
		store:   st,
		bus:     events.NewBus(eventBusBufferSize),
	}

	a.auditSink = audit.New(st)
	a.statusStore = agentstatus.New(st)
	a.fileStore = sharedfile.New(st, a.auditSink)
	a.opsStore = ops.New(st, a.auditSink)
	a.executor = cardexec.New(st, a.opsStore, a.auditSink, cfg.CardExec.OutputLimitChars)
	a.topo = topology.New(st, a.auditSink, topology.Options{
		TTLSec:      cfg.Topology.TTLSec,
		ArchiveDays: cfg.Topology.ArchiveDays,
		BackupCount: cfg.Topology.BackupCount,
		TopologyDir: cfg.TopologyDir,
	})
	a.tasks = coord.NewTaskStore(st, a.auditSink)
	a.approvals = coord.NewApprovalStore(st, a.auditSink)
	a.locks = coord.NewLockStore(st, a.auditSink)
	a.roster = registry.New(st, a.statusStore, a.auditSink)
	a.registrar = bridge.NewRegistrar(st, a.auditSink)

	// No external terminal host is wired into this process; a real
	// deployment supplies its own bridge.Bridge over the same
	// interface and this in-memory adapter is swapped out.
	a.bridge = bridge.NewMemoryBridge()

	if cfg.HasDiagnosticsMySQL() {
		mirror, err := tools.NewDiagnosticsMirror(cfg.DiagnosticsMySQLDSN)
		if err != nil {
			a.store.Close()
			return nil, fmt.Errorf("app: diagnostics mirror: %w", err)
		}
		a.diagnostics = mirror
	}
	a.dbTool = tools.NewDBTool(st, a.diagnostics, cfg.DBExecuteEnabled)

	a.registry = tools.NewRegistry()
	a.registry.Register(tools.NewItermTool(a.bridge, a.registrar))
	a.registry.Register(tools.NewSharedFileTool(a.fileStore))
	a.registry.Register(tools.NewInteractionTool(a.opsStore, a.roster))
	a.registry.Register(tools.NewPromptTemplateTool(a.opsStore))
	a.registry.Register(tools.NewCommandCardTool(a.opsStore, a.executor))
	a.registry.Register(a.dbTool)
	a.registry.Register(tools.NewTaskTool(a.tasks))
	a.registry.Register(tools.NewApprovalTool(a.approvals))
	a.registry.Register(tools.NewLockTool(a.locks))

	a.mcp = mcpserver.New(a.registry, logger)
	a.mon = monitor.New(a.bridge, a.statusStore, a.bus)

	a.dashSrv = dashboard.New(cfg, dashboard.Deps{
		Store:       st,
		Audit:       a.auditSink,
		Status:      a.statusStore,
		SharedFiles: a.fileStore,
		Ops:         a.opsStore,
		Executor:    a.executor,
		Topology:    a.topo,
		Tasks:       a.tasks,
		Approvals:   a.approvals,
		Locks:       a.locks,
		Registry:    a.roster,
		Monitor:     a.mon,
		DBTool:      a.dbTool,
		MCP:         a.mcp,
		Bus:         a.bus,
		Logger:      logger,
	})

	if cfg.HasTelegram() {
		a.telegramBot = telegram.New(cfg, cfgPath, a.bridge, a.statusStore, a.roster, logger.Named("telegram"))
	}

	return a, nil
}

// Run starts the dashboard server, the background status monitor, the
// topology archival sweep, and (if configured) the Telegram bridge. It
// blocks until ctx is cancelled, then shuts everything down gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 4)

	go func() {
		if err := a.dashSrv.Run(ctx); err != nil {
			errCh <- fmt.Errorf("dashboard: %w", err)
		}
	}()

	go a.mon.Run(ctx, monitorIntervalSec, monitorReadLines)

	a.sweepCron = cron.New()
	if _, err := a.sweepCron.AddFunc(topologySweepCron, func() {
		if err := a.topo.Sweep(context.Background()); err != nil {
			a.logger.Warn("topology sweep failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("app: schedule topology sweep: %w", err)
	}
	a.sweepCron.Start()

	if a.telegramBot != nil {
		go func() {
			if err := a.telegramBot.Run(ctx); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("telegram: %w", err)
			}
		}()
	}

	select {
	case err := <-errCh:
		a.shutdown()
		return err
	case <-ctx.Done():
	}

	a.shutdown()
	return nil
}

func (a *App) shutdown() {
	if a.sweepCron != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		select {
		case <-a.sweepCron.Stop().Done():
		case <-stopCtx.Done():
		}
	}
	a.store.Close()
}
