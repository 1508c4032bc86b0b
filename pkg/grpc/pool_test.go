package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

func startHealthServer(t *testing.T, seen chan<- metadata.MD) *bufconn.Listener {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		select {
		case seen <- md:
		default:
		}
		return handler(ctx, req)
	}))
	healthpb.RegisterHealthServer(srv, health.NewServer())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return lis
}

func TestPool_ReusesConnection(t *testing.T) {
	seen := make(chan metadata.MD, 1)
	lis := startHealthServer(t, seen)
	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})

	pool := NewPool(WithInterceptor(MetadataInterceptor("x-actor", "tester")))
	t.Cleanup(func() { _ = pool.Close() })

	first, err := pool.GetConnection("passthrough:///bufnet", dialer)
	require.NoError(t, err)
	second, err := pool.GetConnection("passthrough:///bufnet", dialer)
	require.NoError(t, err)
	assert.Same(t, first, second)

	resp, err := healthpb.NewHealthClient(first).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	md := <-seen
	assert.Equal(t, []string{"tester"}, md.Get("x-actor"))
}

func TestPool_ReconnectsAfterClose(t *testing.T) {
	lis := startHealthServer(t, make(chan metadata.MD, 1))
	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})

	pool := NewPool()
	first, err := pool.GetConnection("passthrough:///bufnet", dialer)
	require.NoError(t, err)
	require.NoError(t, pool.Close())

	second, err := pool.GetConnection("passthrough:///bufnet", dialer)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	require.NoError(t, pool.Close())
}

func TestMetadataInterceptor_KeepsExplicitValue(t *testing.T) {
	seen := make(chan metadata.MD, 1)
	lis := startHealthServer(t, seen)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(MetadataInterceptor("x-actor", "default")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-actor", "manager")
	_, err = healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)

	md := <-seen
	assert.Equal(t, []string{"manager"}, md.Get("x-actor"))
}
