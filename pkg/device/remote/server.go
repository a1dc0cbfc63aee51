package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/rpc"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"epaperd/pkg/proto"
)

// Proxy serves dev over net/rpc on srv and registers the listener with the
// fx lifecycle.
func Proxy(name string, dev proto.Renderer, srv *http.Server, lifecycle fx.Lifecycle, logger *zap.Logger) error {
	h, err := Handler(name, dev)
	if err != nil {
		return err
	}
	srv.Handler = h

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != http.ErrServerClosed {
					logger.With(zap.Error(err)).Fatal("proxy stopped")
				}
			}()
			logger.With(zap.String("listen", srv.Addr), zap.String("name", name)).Info("proxy started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})

	return nil
}

// Handler routes the rpc endpoint and a JSON status page.
func Handler(name string, dev proto.Renderer) (http.Handler, error) {
	svc := &Service{dev: dev, name: name}

	server := rpc.NewServer()
	if err := server.Register(svc); err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Handle(rpc.DefaultRPCPath, server)
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(svc.Status())
	})
	return r, nil
}

type Service struct {
	dev  proto.Renderer
	name string

	mu      sync.Mutex
	display string
	frames  int
	bytes   int64
}

func (s *Service) Init(req ModelRequest, _ *EmptyResponse) error {
	s.mu.Lock()
	s.display = req.Model.Title
	s.mu.Unlock()
	return s.dev.Init(req.Model)
}

func (s *Service) Command(code uint8, _ *EmptyResponse) error {
	return s.dev.Command(code)
}

func (s *Service) Load(req *LoadRequest, _ *EmptyResponse) error {
	s.mu.Lock()
	s.bytes += int64(len(req.Data))
	s.mu.Unlock()
	return s.dev.Load(req.Loader, req.Data)
}

func (s *Service) Show(req ModelRequest, _ *EmptyResponse) error {
	if err := s.dev.Show(req.Model); err != nil {
		return err
	}
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
	return nil
}

func (s *Service) Sleep(_ EmptyRequest, _ *EmptyResponse) error {
	return s.dev.Sleep()
}

func (s *Service) Parity(_ EmptyRequest, parity *bool) error {
	*parity = s.dev.Parity()
	return nil
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Name:    s.name,
		Parity:  s.dev.Parity(),
		Display: s.display,
		Frames:  s.frames,
		Bytes:   s.bytes,
	}
}

var _ proto.Renderer = (*Client)(nil)
