package servicediscover

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"fogsly/pkg/config"

	"github.com/hashicorp/consul/api"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module registers the HTTP API with the consul agent at CONSUL.ADDR for the life of
// the process. It does nothing when CONSUL.ADDR is empty.
var Module = fx.Module("servicediscover",
	fx.Provide(NewRegistry),
	fx.Invoke(register),
)

type Registry interface {
	Register(ctx context.Context) error
	Deregister(ctx context.Context) error
}

type nopRegistry struct{}

func (nopRegistry) Register(context.Context) error   { return nil }
func (nopRegistry) Deregister(context.Context) error { return nil }

type consulRegistry struct {
	client  *api.Client
	service *api.AgentServiceRegistration
}

func NewRegistry(cfg *config.Config) (Registry, error) {
	if cfg.Consul.Addr == "" {
		return nopRegistry{}, nil
	}

	conf := api.DefaultConfig()
	conf.Address = cfg.Consul.Addr
	client, err := api.NewClient(conf)
	if err != nil {
		return nil, err
	}

	port, err := strconv.Atoi(cfg.Server.Addr)
	if err != nil {
		return nil, fmt.Errorf("HTTP_SERVER.ADDR must be a port for consul registration: %w", err)
	}

	return &consulRegistry{
		client:  client,
		service: Registration(cfg.AppName, serviceHost(cfg), port),
	}, nil
}

// Registration describes one API replica, health checked through /readyz.
func Registration(name, host string, port int) *api.AgentServiceRegistration {
	return &api.AgentServiceRegistration{
		ID:      fmt.Sprintf("%s-%s-%d", name, host, port),
		Name:    name,
		Address: host,
		Port:    port,
		Check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/readyz", host, port),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
}

func serviceHost(cfg *config.Config) string {
	if cfg.Consul.ServiceHost != "" {
		return cfg.Consul.ServiceHost
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "localhost"
}

func (r *consulRegistry) Register(ctx context.Context) error {
	return r.client.Agent().ServiceRegisterOpts(r.service, api.ServiceRegisterOpts{}.WithContext(ctx))
}

func (r *consulRegistry) Deregister(ctx context.Context) error {
	opts := &api.QueryOptions{}
	return r.client.Agent().ServiceDeregisterOpts(r.service.ID, opts.WithContext(ctx))
}

func register(lc fx.Lifecycle, r Registry) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := r.Register(ctx); err != nil {
				zap.L().Error("[Consul] failed to register service", zap.Error(err))
				return err
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := r.Deregister(ctx); err != nil {
				zap.L().Warn("[Consul] failed to deregister service", zap.Error(err))
			}
			return nil
		},
	})
}
