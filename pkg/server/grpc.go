package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"

	"fogsly/pkg/config"
	"fogsly/pkg/errutil"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/validator"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

var ProvideGRPCServer = fx.Module("grpc.server",
	fx.Provide(
		NewListener,
		WithOption,
		NewGRPCServer,
		NewHealthServer,
	),
	fx.Invoke(
		registerHealthServer,
		StartGRPCServer,
	),
)

func NewListener(cfg *config.Config) (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf(":%s", cfg.Grpc.Addr))
}

type optionParams struct {
	fx.In
	Config         *config.Config
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

func WithOption(p optionParams) []grpc.ServerOption {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			validator.UnaryServerInterceptor(validator.WithFailFast()),
			domainErrorInterceptor,
		),
		grpc.ChainStreamInterceptor(
			validator.StreamServerInterceptor(validator.WithFailFast()),
		),
		WithStatsHandler(p.TracerProvider, p.MeterProvider),
	}

	if p.Config.TLS.Enable {
		cert, err := LoadCertificate(p.Config.TLS.CertPath, p.Config.TLS.KeyPath)
		if err != nil {
			zap.L().Error("failed to load gRPC TLS certificate, serving plaintext", zap.Error(err))
		} else {
			opts = append(opts, WithTLS(cert))
		}
	}

	return opts
}

func WithStatsHandler(tp trace.TracerProvider, mp metric.MeterProvider) grpc.ServerOption {
	return grpc.StatsHandler(
		otelgrpc.NewServerHandler(
			otelgrpc.WithTracerProvider(tp),
			otelgrpc.WithMeterProvider(mp),
		),
	)
}

func LoadCertificate(certPath, keyPath string) (*tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func WithTLS(tls *tls.Certificate) grpc.ServerOption {
	return grpc.Creds(
		credentials.NewServerTLSFromCert(tls),
	)
}

// domainErrorInterceptor maps errutil errors returned by handlers onto gRPC codes.
func domainErrorInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	return resp, errutil.ToGRPCError(err)
}

func NewGRPCServer(opts []grpc.ServerOption) *grpc.Server {
	return grpc.NewServer(opts...)
}

func registerHealthServer(srv *grpc.Server, health *HealthServer) {
	grpc_health_v1.RegisterHealthServer(srv, health)
}

func StartGRPCServer(lc fx.Lifecycle, lis net.Listener, srv *grpc.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				zap.L().Info("Starting gRPC server", zap.String("addr", lis.Addr().String()))
				reflection.Register(srv)
				if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
					zap.L().Fatal("gRPC server exited", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			zap.L().Info("Stopping gRPC server")

			done := make(chan struct{})
			go func() {
				srv.GracefulStop()
				close(done)
			}()

			select {
			case <-ctx.Done():
				srv.Stop()
			case <-done:
			}
			return nil
		},
	})
}
