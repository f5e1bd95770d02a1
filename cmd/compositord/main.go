package main

import (
	"context"
	"flag"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/voidshard/compositor"
	"github.com/voidshard/compositor/handlers/api/images"
	"github.com/voidshard/compositor/stores/aws"
)

// corsOptions allows the given origins. With none configured only pages
// served from the local machine may call the API.
func corsOptions(origins []string) cors.Options {
	opts := cors.Options{
		AllowedMethods: []string{"GET", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Content-Length"},
		MaxAge:         300,
	}
	if len(origins) > 0 {
		opts.AllowedOrigins = origins
		return opts
	}
	opts.AllowOriginFunc = func(r *http.Request, origin string) bool {
		if origin == "" {
			return false
		}

		parsed, err := url.Parse(origin)
		if err != nil {
			return false
		}

		switch parsed.Scheme {
		case "http", "https":
			switch parsed.Hostname() {
			case "localhost", "127.0.0.1", "::1":
				return true
			}
		}

		return false
	}
	return opts
}

// splitOrigins parses a comma separated CORS_ALLOWED_ORIGINS value.
func splitOrigins(s string) []string {
	origins := []string{}
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func setupRouter(svc images.Service, origins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(corsOptions(origins)))

	r.Route("/api/v1/images", func(r chi.Router) {
		images.Routes(r, svc)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}

// options builds compositor options from the environment.
func options(ctx context.Context) ([]compositor.Option, error) {
	opts := []compositor.Option{compositor.Logger(logrus.StandardLogger())}

	switch os.Getenv("STORAGE_TYPE") {
	case "s3":
		bucket := os.Getenv("S3_BUCKET_NAME")
		if bucket == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		store, err := aws.NewStore(ctx, bucket, os.Getenv("S3_PREFIX"))
		if err != nil {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{"storageType": "s3", "bucketName": bucket}).Info("Use storage")
		opts = append(opts, compositor.WithStore(store))
	default:
		dir := os.Getenv("CACHE_DIR")
		if dir == "" {
			dir = "./cache" // Default path
		}
		logrus.WithFields(logrus.Fields{"storageType": "filesystem", "basePath": dir}).Info("Use storage")
		opts = append(opts, compositor.Directory(dir))
	}

	if dir := os.Getenv("IMAGE_DIR"); dir != "" {
		opts = append(opts, compositor.ImageDirectory(dir))
	}

	if s := os.Getenv("MAX_PIXELS"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		opts = append(opts, compositor.MaxPixels(n))
	}

	if s := os.Getenv("RENDER_SCALE"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		opts = append(opts, compositor.Scale(f))
	}

	return opts, nil
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3010", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	stacksDir := flag.String("stacks", "", "Directory of layer stack documents (*.json) to register.")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := options(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	comp, err := compositor.New(opts...)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create compositor")
	}

	if *stacksDir != "" {
		n, err := comp.Registry().LoadDir(*stacksDir)
		if err != nil {
			logrus.WithError(err).WithField("dir", *stacksDir).Fatal("Failed to load layer stacks")
		}
		logrus.WithFields(logrus.Fields{"dir": *stacksDir, "stacks": n}).Info("Registered layer stacks")
	}

	origins := splitOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if len(origins) == 0 {
		logrus.Info("CORS_ALLOWED_ORIGINS not set, allowing local origins only")
	}
	srv := &http.Server{Addr: *listenAddress, Handler: setupRouter(comp, origins)}

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down...")

	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		logrus.WithError(err).Error("Failed to shut down cleanly")
	}
}
