package health

import (
	"context"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Имена компонентов, видимые оркестратору
const (
	ComponentAPI      = "ecgworkload.v1.AnalysisAPI"
	ComponentRunStore = "ecgworkload.v1.RunStore"
	ComponentArchive  = "ecgworkload.v1.ResultArchive"
	ComponentDSP      = "ecgworkload.v1.DSPService"
)

// Server отвечает на gRPC health-пробы по состоянию компонентов сервиса
type Server struct {
	grpc_health_v1.UnimplementedHealthServer
	mu       sync.RWMutex
	services map[string]grpc_health_v1.HealthCheckResponse_ServingStatus
}

func NewServer() *Server {
	return &Server{
		services: make(map[string]grpc_health_v1.HealthCheckResponse_ServingStatus),
	}
}

func (s *Server) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	service := req.GetService()

	// Пустое имя - общая живость процесса
	if service == "" {
		return &grpc_health_v1.HealthCheckResponse{
			Status: grpc_health_v1.HealthCheckResponse_SERVING,
		}, nil
	}

	servingStatus, exists := s.services[service]
	if !exists {
		return nil, status.Error(codes.NotFound, "service not found")
	}

	return &grpc_health_v1.HealthCheckResponse{
		Status: servingStatus,
	}, nil
}

func (s *Server) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	response, err := s.Check(stream.Context(), req)
	if err != nil {
		return err
	}

	if err := stream.Send(response); err != nil {
		return err
	}

	<-stream.Context().Done()
	return stream.Context().Err()
}

func (s *Server) SetServingStatus(service string) {
	s.setStatus(service, grpc_health_v1.HealthCheckResponse_SERVING)
}

func (s *Server) SetNotServingStatus(service string) {
	s.setStatus(service, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}

func (s *Server) setStatus(service string, status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[service] = status
}
