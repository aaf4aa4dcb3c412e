// Package server is the composition root: it opens the database, builds the
// services and handlers, mounts the routes and runs the HTTP server.
//
// DEPENDENCY FLOW:
//
//	config.Config → sqlite.DB → repositories
//	                         → services (+ githubapi, auth, metrics, task queue)
//	                         → handlers → chi routes
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Ross11547/Automatizacion/internal/auth"
	"github.com/Ross11547/Automatizacion/internal/config"
	"github.com/Ross11547/Automatizacion/internal/githubapi"
	"github.com/Ross11547/Automatizacion/internal/handler"
	"github.com/Ross11547/Automatizacion/internal/metrics"
	"github.com/Ross11547/Automatizacion/internal/middleware"
	sqliteRepo "github.com/Ross11547/Automatizacion/internal/repository/sqlite"
	"github.com/Ross11547/Automatizacion/internal/service"
)

const (
	metricsNamespace = "gestteam"
	taskQueueSize    = 128
	taskTimeout      = 2 * time.Minute
	shutdownTimeout  = 30 * time.Second
)

// Server owns the database and the background task queue; both are closed
// when Start returns.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	tasks   *service.TaskQueue
	metrics *metrics.Metrics
}

// New wires every dependency. The database file's directory is created if
// needed.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		metrics: metrics.New(metricsNamespace),
	}
	s.tasks = service.NewTaskQueue(taskQueueSize, taskTimeout, logger, s.metrics)

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	s.tasks.Start()
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) newGitHubClient() (*githubapi.Service, error) {
	opts := githubapi.Options{BaseURL: s.config.GitHub.APIURL}

	gh := s.config.GitHub
	if gh.AppConfigured() {
		pem, err := auth.LoadAppPrivateKey(gh.AppPrivateKey, gh.AppPrivateKeyPath)
		if err != nil {
			return nil, err
		}
		issuer, err := auth.NewAppTokenIssuer(gh.AppID, pem)
		if err != nil {
			return nil, err
		}
		opts.AppTokens = issuer
	} else {
		s.logger.Warn("GitHub App not configured; installations and repository provisioning are unavailable")
	}
	return githubapi.New(opts)
}

// setupRoutes configures middleware and routes.
//
// ROUTES:
//
//	POST   /auth/login                          public
//	GET    /api/me                              auth
//	*      /usuario, /docente, /estudiante,     public (legacy admin front end)
//	       /director
//	*      /facultad, /carrera, /semestre,      public
//	       /materia, /horario
//	GET    /materias/mias                       auth
//	GET    /dashboard/summary, /student-growth  public
//	*      /projects ...                        auth
//	GET    /github/oauth/callback               public, redirects
//	GET    /github/app/install, /app/installed  public, redirects
//	*      /github/... (rest)                   auth
//	GET    /github/healthz, /github/debug/...   public
//	GET    /metrics                             public
func (s *Server) setupRoutes() error {
	cfg := s.config

	tokens, err := auth.NewTokenService(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	gh, err := s.newGitHubClient()
	if err != nil {
		return fmt.Errorf("creating GitHub client: %w", err)
	}
	passwords := auth.NewPasswordService()

	users := s.db.Users()
	creds := s.db.Credentials()
	installs := s.db.Installations()
	projects := s.db.Projects()
	memberships := s.db.Memberships()
	faculties := s.db.Faculties()
	careers := s.db.Careers()
	subjects := s.db.Subjects()
	semesters := s.db.Semesters()
	assignments := s.db.Assignments()
	roles := service.NewRoleResolver(s.db.Roles(), cfg.Cache.RoleTTL)

	// === Services ===
	authSvc := service.NewAuthService(users, tokens, passwords, cfg.Institution.Domain, s.logger)
	userSvc := service.NewUserService(users, passwords, s.logger)
	directoryDeps := service.DirectoryDeps{
		Users:       users,
		Roles:       roles,
		Faculties:   faculties,
		Careers:     careers,
		Semesters:   semesters,
		Subjects:    subjects,
		Assignments: assignments,
		Passwords:   passwords,
		EmailPrefix: cfg.Institution.EmailPrefix,
		Domain:      cfg.Institution.Domain,
		Logger:      s.logger,
	}
	teacherSvc := service.NewTeacherDirectory(directoryDeps)
	studentSvc := service.NewStudentDirectory(directoryDeps)
	directorSvc := service.NewDirectorDirectory(directoryDeps)
	projectSvc := service.NewProjectService(projects, memberships, subjects, users, s.logger)
	catalogSvc := service.NewCatalogService(service.CatalogRepos{
		Faculties:   faculties,
		Careers:     careers,
		Semesters:   semesters,
		Subjects:    subjects,
		Schedules:   s.db.Schedules(),
		Assignments: assignments,
	}, s.logger)
	dashboardSvc := service.NewDashboardService(users, roles, faculties)

	inviteSvc := service.NewInviteService(creds, memberships, installs, gh, s.metrics, s.logger)
	linkSvc := service.NewLinkService(service.LinkServiceDeps{
		States:     tokens,
		Provider:   auth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.CallbackURL),
		GitHub:     gh,
		Users:      users,
		Creds:      creds,
		Inviter:    inviteSvc,
		Dispatcher: s.tasks,
		Policy: service.EmailPolicy{
			Domain:          cfg.Institution.Domain,
			RequireVerified: cfg.Institution.RequireVerified,
		},
		Metrics: s.metrics,
		Logger:  s.logger,
	})
	installSvc := service.NewInstallationService(tokens, users, installs, gh, s.metrics, s.logger)
	provisionSvc := service.NewProvisionService(projects, memberships, installs, creds, gh, s.metrics, s.logger)
	accountSvc := service.NewAccountService(users, creds, installs, projects, memberships, gh, s.logger)

	// === Handlers ===
	authH := handler.NewAuthHandler(authSvc, s.logger)
	userH := handler.NewUserHandler(userSvc, s.logger)
	teacherH := handler.NewDirectoryHandler(teacherSvc, "teacher", s.logger)
	studentH := handler.NewDirectoryHandler(studentSvc, "student", s.logger)
	directorH := handler.NewDirectoryHandler(directorSvc, "director", s.logger)
	dashboardH := handler.NewDashboardHandler(dashboardSvc, s.logger)
	projectH := handler.NewProjectHandler(projectSvc, s.logger)
	catalogH := handler.NewCatalogHandler(catalogSvc, s.logger)
	githubH := handler.NewGitHubHandler(handler.GitHubHandlerDeps{
		Link:        linkSvc,
		Installs:    installSvc,
		Provision:   provisionSvc,
		Invites:     inviteSvc,
		Accounts:    accountSvc,
		Sessions:    handler.NewInstallSessionStore(cfg.Auth.SessionSecret, cfg.Auth.CookieSecure),
		FrontendURL: cfg.Server.FrontendURL,
		InstallURL:  cfg.GitHub.AppInstallURL,
		Logger:      s.logger,
	})

	requireAuth := auth.RequireAuth(tokens, users)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger, s.metrics))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Post("/auth/login", authH.HandleLogin)
	s.router.With(requireAuth).Get("/api/me", authH.HandleMe)

	s.router.Route("/usuario", func(r chi.Router) {
		r.Get("/", userH.HandleList)
		r.Post("/", userH.HandleCreate)
		r.Get("/{id}", userH.HandleGet)
		r.Put("/{id}", userH.HandleUpdate)
		r.Delete("/{id}", userH.HandleDelete)
	})
	mountDirectory(s.router, "/docente", teacherH)
	mountDirectory(s.router, "/estudiante", studentH)
	mountDirectory(s.router, "/director", directorH)
	s.router.Route("/facultad", func(r chi.Router) {
		r.Get("/", catalogH.HandleListFaculties)
		r.Post("/", catalogH.HandleCreateFaculty)
		r.Get("/{id}", catalogH.HandleGetFaculty)
		r.Put("/{id}", catalogH.HandleUpdateFaculty)
		r.Delete("/{id}", catalogH.HandleDeleteFaculty)
	})
	s.router.Route("/carrera", func(r chi.Router) {
		r.Get("/", catalogH.HandleListCareers)
		r.Post("/", catalogH.HandleCreateCareer)
		r.Get("/{id}", catalogH.HandleGetCareer)
		r.Put("/{id}", catalogH.HandleUpdateCareer)
		r.Delete("/{id}", catalogH.HandleDeleteCareer)
	})
	s.router.Route("/semestre", func(r chi.Router) {
		r.Get("/", catalogH.HandleListSemesters)
		r.Post("/", catalogH.HandleCreateSemester)
		r.Get("/by-carrera", catalogH.HandleSemestersByCareer)
		r.Get("/{id}", catalogH.HandleGetSemester)
		r.Put("/{id}", catalogH.HandleUpdateSemester)
		r.Delete("/{id}", catalogH.HandleDeleteSemester)
	})
	s.router.Route("/materia", func(r chi.Router) {
		r.Get("/", catalogH.HandleListSubjects)
		r.Get("/by-semestre", catalogH.HandleSubjectsBySemester)
		r.Post("/", catalogH.HandleCreateSubject)
		r.Get("/{id}", catalogH.HandleGetSubject)
		r.Put("/{id}", catalogH.HandleUpdateSubject)
		r.Delete("/{id}", catalogH.HandleDeleteSubject)
	})

	s.router.With(requireAuth).Get("/materias/mias", catalogH.HandleMySubjects)
	s.router.Route("/horario", func(r chi.Router) {
		r.Get("/", catalogH.HandleListSchedules)
		r.Post("/", catalogH.HandleCreateSchedule)
		r.Get("/by-materia", catalogH.HandleSchedulesBySubject)
		r.Get("/{id}", catalogH.HandleGetSchedule)
		r.Put("/{id}", catalogH.HandleUpdateSchedule)
		r.Delete("/{id}", catalogH.HandleDeleteSchedule)
	})
	s.router.Get("/dashboard/summary", dashboardH.HandleSummary)
	s.router.Get("/dashboard/student-growth", dashboardH.HandleStudentGrowth)

	s.router.Route("/projects", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", projectH.HandleCreate)
		r.Get("/my", projectH.HandleListMine)
		r.Post("/{id}/members", projectH.HandleAddMember)
	})

	s.router.Route("/github", func(r chi.Router) {
		r.Get("/oauth/callback", githubH.HandleOAuthCallback)
		r.Get("/app/install", githubH.HandleAppInstall)
		r.Get("/app/installed", githubH.HandleAppInstalled)
		r.Get("/healthz", githubH.HandleHealthz)
		r.Get("/debug/app", githubH.HandleDebugApp)
		r.Get("/debug/install/{id}", githubH.HandleDebugInstallation)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/oauth/start", githubH.HandleOAuthStart)
			r.Post("/app/backfill", githubH.HandleBackfill)
			r.Post("/project/{id}/repo", githubH.HandleProvisionRepo)
			r.Post("/me/invite-personal-on-all", githubH.HandleInvitePersonal("could not send invitations"))
			r.Post("/me/retry-invites", githubH.HandleInvitePersonal("could not retry invitations"))
			r.Get("/me/overview", githubH.HandleOverview)
			r.Get("/me/repos", githubH.HandleRepos)
			r.Get("/me/repos/full", githubH.HandleReposFull)
			r.Post("/import/repos", githubH.HandleImportRepos)
			r.Post("/me/sync-repos", githubH.HandleSyncRepos)
		})
	})

	return nil
}

// mountDirectory registers the CRUD routes of one role directory.
func mountDirectory(r chi.Router, prefix string, h *handler.DirectoryHandler) {
	r.Route(prefix, func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// Close drains the task queue and closes the database. Start calls it; use
// it directly only for servers that were never started.
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	if err := s.tasks.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("draining task queue: %w", err))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}
	return errors.Join(errs...)
}

// Start serves HTTP until SIGINT or SIGTERM, then shuts down gracefully:
// in-flight requests finish, queued background tasks drain, the database
// closes.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("database", s.config.Database.Path),
			slog.String("frontend", s.config.Server.FrontendURL),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			runErr = fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		runErr = errors.Join(runErr, err)
	}
	if runErr == nil {
		s.logger.Info("server stopped gracefully")
	}
	return runErr
}
