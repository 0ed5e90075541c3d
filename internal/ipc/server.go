package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"reshelve/internal/logging"
	"reshelve/internal/migration"
)

// Server exposes the migration engine via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. Migrations
// started over the socket run under ctx.
func NewServer(ctx context.Context, path string, engine *migration.Engine, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("ipc server requires an engine")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	srv := &service{engine: engine, logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName("Reshelve", srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Info("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the server"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file. Connections still
// open are closed by their clients.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	engine *migration.Engine
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Plan(req PlanRequest, resp *PlanResponse) error {
	kind, err := migration.ParseKind(req.Kind)
	if err != nil {
		return err
	}
	plan, err := s.engine.PlanMigration(s.ctx, migration.PlanRequest{
		ArtistID:  req.ArtistID,
		Kind:      kind,
		Overrides: req.Overrides,
		Excludes:  req.Excludes,
	})
	if err != nil {
		return err
	}
	resp.Plan = plan
	return nil
}

func (s *service) Validate(req ValidateRequest, resp *ValidateResponse) error {
	if req.Plan == nil {
		return errors.New("validate: plan is required")
	}
	ignore, err := migration.ParseIgnoreChecks(req.Ignore)
	if err != nil {
		return err
	}
	result, err := s.engine.Validate(s.ctx, req.Plan, migration.ValidateOptions{Ignore: ignore, Backup: req.Backup})
	if err != nil {
		return err
	}
	resp.Result = result
	return nil
}

func (s *service) Execute(req ExecuteRequest, resp *ExecuteResponse) error {
	ignore, err := migration.ParseIgnoreChecks(req.Ignore)
	if err != nil {
		return err
	}
	opts := s.engine.DefaultExecuteOptions()
	opts.DryRun = req.DryRun
	opts.Ignore = ignore
	if req.Backup != nil {
		opts.Backup = *req.Backup
	}

	plan := req.Plan
	if plan == nil {
		kind, err := migration.ParseKind(req.Kind)
		if err != nil {
			return err
		}
		plan, err = s.engine.PlanMigration(s.ctx, migration.PlanRequest{
			ArtistID:  req.ArtistID,
			Kind:      kind,
			Overrides: req.Overrides,
			Excludes:  req.Excludes,
		})
		if err != nil {
			return err
		}
	}

	s.logger.Debug("execute requested",
		logging.String(logging.FieldArtist, plan.ArtistID),
		logging.Bool("dry_run", opts.DryRun))
	res, err := s.engine.Execute(s.ctx, plan, opts)
	resp.Result = res
	if err != nil {
		migErr, ok := migration.AsError(err)
		if !ok {
			return err
		}
		resp.Error = migErr
	}
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	entries, err := s.engine.GetHistory(s.ctx, req.ArtistID, req.Limit)
	if err != nil {
		return err
	}
	resp.Entries = entries
	return nil
}

func (s *service) Statistics(_ StatisticsRequest, resp *StatisticsResponse) error {
	stats, err := s.engine.GetStatistics(s.ctx)
	if err != nil {
		return err
	}
	resp.Statistics = stats
	return nil
}

func (s *service) Inspect(req InspectRequest, resp *InspectResponse) error {
	score, err := s.engine.Inspect(req.ArtistID)
	if err != nil {
		return err
	}
	resp.Score = score
	return nil
}
