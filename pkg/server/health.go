package server

import (
	"context"

	"github.com/gogo/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"
)

// HealthServer reports SERVING while the database answers pings.
type HealthServer struct {
	grpc_health_v1.UnimplementedHealthServer

	db *gorm.DB
}

func NewHealthServer(db *gorm.DB) *HealthServer {
	return &HealthServer{db: db}
}

func (s *HealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, status.Error(codes.Internal, "db not ready")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_NOT_SERVING}, nil
	}

	return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}, nil
}

func (s *HealthServer) Watch(req *grpc_health_v1.HealthCheckRequest, srv grpc_health_v1.Health_WatchServer) error {
	return status.Error(codes.Unimplemented, "Watch method not implemented")
}
