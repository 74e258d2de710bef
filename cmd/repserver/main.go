// Command repserver serves rep detection over HTTP and gRPC and records
// every run in a sqlite database.
//
//	repserver -listen :8080 -grpc-listen :50051 -db reps.db -config tuning.json
//	repserver -db reps.db migrate status
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/willGauntletAi/tiktok-sub000/internal/api"
	"github.com/willGauntletAi/tiktok-sub000/internal/config"
	"github.com/willGauntletAi/tiktok-sub000/internal/db"
	"github.com/willGauntletAi/tiktok-sub000/internal/monitoring"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/pipeline"
	"github.com/willGauntletAi/tiktok-sub000/internal/version"
)

var (
	listen     = flag.String("listen", ":8080", "Listen address")
	grpcListen = flag.String("grpc-listen", ":50051", "gRPC listen address for the Detect service (empty disables)")
	dbFile     = flag.String("db", "reps.db", "path to sqlite DB file")
	configFile = flag.String("config", "", "tuning config JSON file merged over the built-in defaults")
	verbose    = flag.Bool("verbose", false, "log per-run selection detail")
)

// loadTuning returns the server-wide tuning defaults.
func loadTuning(path string) (*config.TuningConfig, error) {
	tuning := config.DefaultTuningConfig()
	if path == "" {
		return tuning, nil
	}
	file, err := config.LoadTuningConfig(path)
	if err != nil {
		return nil, err
	}
	tuning = tuning.Merge(file)
	if err := tuning.Validate(); err != nil {
		return nil, err
	}
	return tuning, nil
}

// newHandler mounts the API and the admin debug routes on one mux.
func newHandler(store *db.DB, apiServer *api.Server) (http.Handler, error) {
	mux := http.NewServeMux()

	// mount the admin debugging routes (accessible only over loopback or Tailscale)
	if err := store.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}

	mux.Handle("/api/", apiServer.ServeMux())
	return api.LoggingMiddleware(mux), nil
}

// newGRPCServer registers the Detect service on a fresh gRPC server.
func newGRPCServer(apiServer *api.Server) *grpc.Server {
	gs := grpc.NewServer()
	apiServer.RegisterGRPC(gs)
	return gs
}

// Main
func main() {
	flag.Parse()

	if flag.NArg() > 0 && flag.Arg(0) == "migrate" {
		if err := db.RunMigrateCommand(flag.Args()[1:], *dbFile, os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	monitoring.SetVerbose(*verbose)
	if *verbose {
		pipeline.SetLogWriters(os.Stderr, os.Stderr)
	} else {
		pipeline.SetLogWriters(os.Stderr, nil)
	}

	tuning, err := loadTuning(*configFile)
	if err != nil {
		log.Fatalf("Failed to load tuning config: %v", err)
	}

	store, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	apiServer := api.NewServer(store, tuning)
	handler, err := newHandler(store, apiServer)
	if err != nil {
		log.Fatalf("Failed to set up routes: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// gRPC server goroutine
	if *grpcListen != "" {
		lis, err := net.Listen("tcp", *grpcListen)
		if err != nil {
			log.Fatalf("failed to listen on %s: %v", *grpcListen, err)
		}
		gs := newGRPCServer(apiServer)

		wg.Add(1)
		go func() {
			defer wg.Done()
			go func() {
				log.Printf("gRPC Detect service listening on %s", lis.Addr())
				if err := gs.Serve(lis); err != nil {
					log.Printf("gRPC server error: %v", err)
				}
			}()

			<-ctx.Done()
			log.Println("shutting down gRPC server...")
			gs.GracefulStop()
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		server := &http.Server{
			Addr:              *listen,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("repserver %s listening on %s (db %s)", version.Get(), *listen, store.Path())
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// Create a shutdown context with a timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()
	log.Print("graceful shutdown complete")
}
