package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/hris-workflow-go/internal/config"
	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/approval"
	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/user"
	appHTTP "github.com/cmlabs-hris/hris-workflow-go/internal/handler/http"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/cron"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/database"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/sse"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/timeutil"
	"github.com/cmlabs-hris/hris-workflow-go/internal/repository/memory"
	"github.com/cmlabs-hris/hris-workflow-go/internal/repository/postgresql"
	"github.com/cmlabs-hris/hris-workflow-go/internal/repository/postgresql/migrations"
	approvalService "github.com/cmlabs-hris/hris-workflow-go/internal/service/approval"
	attendanceService "github.com/cmlabs-hris/hris-workflow-go/internal/service/attendance"
)

// repositories is the storage surface the services need.
type repositories struct {
	attendance attendance.AttendanceRepository
	roster     attendance.RosterRepository
	requests   approval.RequestRepository
	audits     approval.AuditRepository
	org        approval.OrgHierarchy
	roles      user.RoleDirectory
	close      func()
}

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logLevel := appHTTP.ParseLogLevel(cfg.App.LogLevel)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.close()

	normalizer, err := timeutil.NewNormalizerFromName(cfg.Attendance.BusinessTimezone)
	if err != nil {
		return fmt.Errorf("invalid business timezone: %w", err)
	}
	defaultShift, err := defaultShiftWindow(cfg.Attendance)
	if err != nil {
		return err
	}

	hub := sse.NewHub()
	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)

	attendanceSvc := attendanceService.NewAttendanceService(
		repos.attendance,
		attendanceService.NewShiftResolver(repos.roster, defaultShift),
		normalizer,
	)

	approvalRouter := approvalService.NewRouter(repos.org, repos.roles)
	stateMachine := approvalService.NewStateMachine(repos.requests, approvalRouter, repos.roles)
	approvalSvc := approvalService.NewApprovalService(
		repos.requests,
		repos.audits,
		stateMachine,
		approvalRouter,
		approval.DefaultPayloadValidators(),
		hub,
	)

	scheduler := cron.NewScheduler()
	cron.NewApprovalJobs(approvalSvc, cfg.Approval.PendingReminderAfter, cfg.Approval.PendingReminderInterval).RegisterJobs(scheduler)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	router := appHTTP.NewRouter(
		appHTTP.RouterConfig{
			AllowedOrigins: cfg.App.CORSAllowedOrigins,
			Env:            cfg.App.Env,
			LogLevel:       logLevel,
		},
		JWTService,
		appHTTP.NewAttendanceHandler(attendanceSvc),
		appHTTP.NewRequestHandler(approvalSvc),
		appHTTP.NewEventHandler(hub, JWTService),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server running", "addr", server.Addr, "storage", cfg.Database.Driver, "timezone", cfg.Attendance.BusinessTimezone)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openRepositories(ctx context.Context, cfg *config.Config) (*repositories, error) {
	if cfg.Database.Driver == config.StorageDriverMemory {
		slog.Warn("Using in-memory storage, data is lost on restart")
		store := memory.NewRequestStore()
		org := memory.NewOrgHierarchy()
		roles := memory.NewRoleDirectory()
		if cfg.Database.SeedFile == "" {
			slog.Warn("MEMORY_SEED_FILE is not set, the org chart is empty and every submission will fail")
		} else {
			seed, err := memory.LoadSeedFile(cfg.Database.SeedFile)
			if err != nil {
				return nil, err
			}
			if err := seed.Apply(org, roles); err != nil {
				return nil, fmt.Errorf("error applying memory seed: %w", err)
			}
			slog.Info("Loaded memory seed",
				"path", cfg.Database.SeedFile,
				"employees", len(seed.Employees),
				"departments", len(seed.Departments))
		}
		return &repositories{
			attendance: memory.NewAttendanceRepository(),
			roster:     memory.NewRosterRepository(),
			requests:   store,
			audits:     store,
			org:        org,
			roles:      roles,
			close:      func() {},
		}, nil
	}

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolOptions{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, migrations.Files); err != nil {
			db.Close()
			return nil, fmt.Errorf("error migrating database: %w", err)
		}
	}

	return &repositories{
		attendance: postgresql.NewAttendanceRepository(db),
		roster:     postgresql.NewRosterRepository(db),
		requests:   postgresql.NewApprovalRequestRepository(db),
		audits:     postgresql.NewAuditRepository(db),
		org:        postgresql.NewOrgHierarchy(db),
		roles:      postgresql.NewRoleDirectory(db),
		close:      db.Close,
	}, nil
}

func defaultShiftWindow(cfg config.AttendanceConfig) (attendance.ShiftWindow, error) {
	start, err := attendance.ParseTimeOfDay(cfg.DefaultShiftStart)
	if err != nil {
		return attendance.ShiftWindow{}, fmt.Errorf("invalid DEFAULT_SHIFT_START: %w", err)
	}
	end, err := attendance.ParseTimeOfDay(cfg.DefaultShiftEnd)
	if err != nil {
		return attendance.ShiftWindow{}, fmt.Errorf("invalid DEFAULT_SHIFT_END: %w", err)
	}
	return attendance.ShiftWindow{
		Start:                start,
		End:                  end,
		GraceLateInMinutes:   cfg.DefaultGraceLateInMinutes,
		GraceEarlyOutMinutes: cfg.DefaultGraceEarlyOutMinutes,
	}, nil
}
