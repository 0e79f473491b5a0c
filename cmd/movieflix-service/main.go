package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/movieflix/movieflix-service/internal/cache"
	"github.com/movieflix/movieflix-service/internal/config"
	"github.com/movieflix/movieflix-service/internal/http/handlers/admin"
	"github.com/movieflix/movieflix-service/internal/http/handlers/auth"
	"github.com/movieflix/movieflix-service/internal/http/handlers/public"
	"github.com/movieflix/movieflix-service/internal/http/handlers/uploader"
	"github.com/movieflix/movieflix-service/internal/ratelimit"
	"github.com/movieflix/movieflix-service/internal/router"
	"github.com/movieflix/movieflix-service/internal/services/media"
	"github.com/movieflix/movieflix-service/internal/session"
	"github.com/movieflix/movieflix-service/internal/storage"
	"github.com/movieflix/movieflix-service/internal/storage/postgres"
	"github.com/movieflix/movieflix-service/internal/types"
	"github.com/movieflix/movieflix-service/internal/web/view"
)

func main() {
	// load config
	cfg := config.MustLoad()

	// database setup
	db, err := postgres.NewPostgres(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}

	// session backend
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to redis:", err)
	}
	slog.Info("Connected to redis")

	// catalog reads go through the redis cache
	store := cache.NewCatalog(db, redisClient)

	// file storage
	var fileStore media.FileStore
	switch cfg.Uploads.Driver {
	case "minio":
		fileStore, err = media.NewMinIOStore(cfg)
		if err != nil {
			log.Fatal("Failed to initialize MinIO storage:", err)
		}
	default:
		fileStore = media.NewLocalStore(cfg.Uploads.LocalBase)
	}
	files := media.NewService(cfg, fileStore)

	renderer, err := view.New()
	if err != nil {
		log.Fatal("Failed to load templates:", err)
	}

	sessions := session.NewManager(redisClient, cfg.Session.CookieName,
		time.Duration(cfg.Session.TTLSeconds)*time.Second)

	loginAttempts := ratelimit.NewTokenBucket(redisClient,
		cfg.RateLimit.LoginBurst, cfg.RateLimit.LoginPerMinute)

	// route table
	rt := router.New(sessions, renderer, slog.Default())
	registerRoutes(rt, cfg, store, files, loginAttempts)

	var handler http.Handler = rt
	if cfg.Uploads.Driver != "minio" {
		// Uploaded posters and videos are served straight off disk.
		mux := http.NewServeMux()
		mux.Handle("/assets/", http.FileServer(http.Dir(cfg.Uploads.LocalBase)))
		mux.Handle("/", rt)
		handler = mux
	}

	server := http.Server{
		Addr:    cfg.HTTPServer.Address,
		Handler: handler,
	}

	log.Println("server started on", cfg.HTTPServer.Address)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %s", err)
		}
	}()

	<-done

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = server.Shutdown(ctx)
	if err != nil {
		slog.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
		return
	}

	slog.Info("Server stopped")
}

// registerRoutes declares the full HTTP surface. Order matters: the first
// matching route wins.
func registerRoutes(rt *router.Router, cfg *config.Config, store storage.Storage, files *media.Service, loginAttempts *ratelimit.TokenBucket) {
	// Public routes
	rt.Register("GET", "/", router.Public(), public.Home(store))
	rt.Register("GET", "/movies/{id}", router.Public(), public.Details(store))
	rt.Register("GET", "/search", router.Public(), public.Search(store))
	rt.Register("GET", "/login", router.GuestOnly(), auth.ShowLogin())
	rt.Register("POST", "/login", router.GuestOnly(), auth.Login(store, loginAttempts))
	rt.Register("GET", "/register", router.GuestOnly(), auth.ShowRegister())
	rt.Register("POST", "/register", router.GuestOnly(), auth.Register(store))
	rt.Register("GET", "/logout", router.Public(), auth.Logout())

	// User dashboard: plain users only; other roles are bounced home.
	rt.Register("GET", "/user/dashboard", router.Policy{
		RequireLogin:  true,
		Roles:         []types.Role{types.RoleUser},
		LoginMessage:  "You must be logged in to view your dashboard.",
		LoginFlashKey: "login_error",
		RoleRedirect:  "/",
		RoleMessage:   "Access denied to this dashboard.",
	}, auth.Dashboard())

	// Uploader routes: uploader or admin, listed explicitly.
	uploadPolicy := router.Roles(
		"Access denied. You must be an uploader or administrator to upload movies.",
		types.RoleUploader, types.RoleAdmin)
	managePolicy := router.Roles(
		"Access denied. You must be an uploader or administrator to manage movies.",
		types.RoleUploader, types.RoleAdmin)
	editPolicy := router.Roles(
		"Access denied. You must be an uploader or administrator to edit movies.",
		types.RoleUploader, types.RoleAdmin)
	deletePolicy := router.Roles(
		"Access denied. You must be an uploader or administrator to delete movies.",
		types.RoleUploader, types.RoleAdmin)

	rt.Register("GET", "/uploader/upload", uploadPolicy, uploader.ShowUploadForm())
	rt.Register("POST", "/uploader/upload", uploadPolicy, uploader.ProcessUpload(store, files))
	rt.Register("GET", "/uploader/manage", managePolicy, uploader.ListMovies(store))
	rt.Register("GET", "/uploader/edit/{id}", editPolicy, uploader.ShowEditForm(store))
	rt.Register("POST", "/uploader/edit/{id}", editPolicy, uploader.ProcessEdit(store, files))
	rt.Register("POST", "/uploader/delete/{id}", deletePolicy, uploader.DeleteMovie(store, files))

	// Admin routes
	adminPolicy := router.Roles(
		"Access denied. You must be an administrator to access this area.",
		types.RoleAdmin)

	rt.Register("GET", "/admin/dashboard", adminPolicy, admin.Dashboard())
	rt.Register("GET", "/admin/users", adminPolicy, admin.ManageUsers(store))
	rt.Register("GET", "/admin/users/edit/{id}", adminPolicy, admin.ShowUserEditForm(store))
	rt.Register("POST", "/admin/users/edit/{id}", adminPolicy, admin.ProcessUserEdit(store))
	rt.Register("POST", "/admin/users/delete/{id}", adminPolicy, admin.DeleteUser(store))
	rt.Register("GET", "/admin/movies", adminPolicy, admin.ManageContent(store))
	rt.Register("POST", "/admin/movies/delete/{id}", adminPolicy, admin.DeleteContent(store, files))
	rt.Register("GET", "/admin/settings", adminPolicy, admin.SiteSettings(cfg))
}
