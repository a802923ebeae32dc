package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/image-uploader/backend/internal/api"
	"github.com/image-uploader/backend/internal/config"
	"github.com/image-uploader/backend/internal/session"
	"github.com/image-uploader/backend/internal/storage"
	"github.com/image-uploader/backend/internal/upload"
	"github.com/image-uploader/backend/internal/uploader"
	"github.com/image-uploader/backend/internal/web"
	"github.com/image-uploader/backend/internal/widget"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	configPath := flag.String("config", filepath.Join(filepath.Dir(exePath), "ImageUploader.config"),
		"path to the XML (.config) or YAML (.yaml) configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	maxFileSize, err := cfg.GetMaxFileSize()
	if err != nil {
		fmt.Printf("Invalid MaxFileSize: %v\n", err)
		os.Exit(1)
	}

	// Staging storage for selected files
	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir(), maxFileSize)
	if err != nil {
		fmt.Printf("Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}

	// Outbound multipart client. No timeout: an upload runs until the endpoint answers.
	client := uploader.NewClient(uploader.Config{
		Endpoint:    cfg.Upload.Endpoint,
		HeaderName:  cfg.Upload.HeaderName,
		HeaderValue: cfg.Upload.HeaderValue,
	}, &http.Client{})

	allowed := widget.ParseAllowList(cfg.Upload.AllowedTypes)
	sessionMgr := session.NewManager(fileStore, client, allowed, cfg.Widgets.MaxWidgets)
	uploadMgr := upload.NewManager(context.Background())

	// Start background widget and job cleanup
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Widgets.CleanupIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			removed := sessionMgr.CleanupOldSessions(time.Duration(cfg.Widgets.SessionTimeoutMinutes) * time.Minute)
			if removed > 0 {
				fmt.Printf("[Cleanup] Unmounted %d idle widget(s)\n", removed)
			}
			uploadMgr.CleanupOldJobs(time.Duration(cfg.Widgets.JobRetentionMinutes) * time.Minute)
		}
	}()

	embeddedMode := web.HasEmbeddedFiles()

	e := echo.New()
	e.HideBanner = true

	// Configure middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/drag") ||
				strings.HasPrefix(path, "/api/uploads/") ||
				path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1024 * 4,
		DisablePrintStack: false,
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 1 && origins[0] == "" {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	api.SetShowErrorDetails(cfg.Advanced.LogLevel == "debug")
	api.SetupMiddleware(e)
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Sessions: sessionMgr,
		Jobs:     uploadMgr,
		Version:  Version,
		Stream: api.StreamConfig{
			PushInterval:   time.Duration(cfg.Advanced.ProgressPushIntervalMs) * time.Millisecond,
			MaxMessageSize: int64(cfg.Advanced.WebSocketMaxMessageSize) * 1024,
		},
	}))

	// Register embedded page if available
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			fmt.Printf("Warning: failed to register static routes: %v\n", err)
		} else {
			fmt.Println("Serving embedded page from binary")
		}
	}

	// Configure server with settings from config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Image Uploader Server                           ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", *configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("║  Staging:   %-46s║\n", cfg.GetUploadDir())
	fmt.Printf("║  Endpoint:  %-46s║\n", client.Endpoint())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embeddedMode {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}

	e.Logger.Fatal(e.StartServer(s))
}
