package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/DrumilPatell/edumanage-sms/internal/auth"
	"github.com/DrumilPatell/edumanage-sms/internal/config"
	"github.com/DrumilPatell/edumanage-sms/internal/db"
	identitygrpc "github.com/DrumilPatell/edumanage-sms/internal/grpc"
	internalhttp "github.com/DrumilPatell/edumanage-sms/internal/http"
	"github.com/DrumilPatell/edumanage-sms/internal/identity"
	"github.com/DrumilPatell/edumanage-sms/internal/jobs"
	"github.com/DrumilPatell/edumanage-sms/internal/mail"
	"github.com/DrumilPatell/edumanage-sms/internal/oauth"
	"github.com/DrumilPatell/edumanage-sms/internal/otp"
	"github.com/DrumilPatell/edumanage-sms/internal/repository"
	"github.com/DrumilPatell/edumanage-sms/internal/telemetry"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv load error: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "edumanage-sms", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("tracing init failed: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Printf("tracing shutdown error: %v", err)
		}
	}()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatalf("db migration failed: %v", err)
		}
	}

	store := repository.NewStore(pool)

	var otpStore otp.Store
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
		otpStore = otp.NewRedisStore(redisClient, cfg.OTPTTL)
	} else {
		memory := otp.NewMemoryStore(cfg.OTPTTL)
		jobs.StartOTPSweepJob(ctx, cfg.OTPSweepInterval, memory)
		otpStore = memory
	}

	tokens, err := auth.NewTokenService(cfg.SecretKey, cfg.Algorithm, cfg.AccessTokenTTL)
	if err != nil {
		log.Fatalf("token service init failed: %v", err)
	}
	lastToken := &auth.LastToken{}
	tokens.RecordInto(lastToken)

	mailer := mail.NewSMTPMailer(mail.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		Timeout:  cfg.SMTPTimeout,
		OTPTTL:   cfg.OTPTTL,
	})

	server := internalhttp.NewServer(cfg, store, internalhttp.Services{
		Tokens:    tokens,
		LastToken: lastToken,
		Providers: oauth.NewDefaultRegistry(cfg),
		Identity:  identity.NewResolver(store, identity.StaticAllowlists(cfg.AdminEmails, cfg.FacultyEmails, cfg.StudentEmails)),
		Resets:    otp.NewService(otpStore, store, mailer, cfg.OTPTTL),
		Contact:   mailer,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var grpcServer *grpc.Server
	if cfg.ServiceAuthToken != "" {
		serviceAuthInterceptor, err := identitygrpc.NewServiceAuthUnaryInterceptor(cfg.ServiceAuthToken)
		if err != nil {
			log.Fatalf("grpc service auth init failed: %v", err)
		}
		grpcServer = grpc.NewServer(
			grpc.StatsHandler(otelgrpc.NewServerHandler()),
			grpc.UnaryInterceptor(serviceAuthInterceptor),
		)
		identitygrpc.RegisterIdentityQueryServiceServer(grpcServer, identitygrpc.NewIdentityServer(store, tokens))

		go func() {
			listener, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				log.Fatalf("grpc listen error: %v", err)
			}
			log.Printf("edumanage grpc listening on %s", cfg.GRPCAddr)
			if err := grpcServer.Serve(listener); err != nil {
				log.Fatalf("grpc server error: %v", err)
			}
		}()
	} else {
		log.Printf("grpc identity service disabled: SERVICE_AUTH_TOKEN not set")
	}

	go func() {
		log.Printf("edumanage http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
}
