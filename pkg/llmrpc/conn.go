package llmrpc

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// StartServer binds a grpc.Server exposing srv on addr and serves it on a
// background goroutine. The LLM transport runs as a plain TCP listener
// rather than a Unix socket since the core and the executor share a
// process and host in this deployment (no sidecar boundary to cross).
func StartServer(addr string, srv LLMServiceServer) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("llmrpc: listen on %s: %w", addr, err)
	}
	s := grpc.NewServer()
	RegisterLLMServiceServer(s, srv)
	go func() {
		_ = s.Serve(lis)
	}()
	return s, nil
}

// Dial connects to addr using plaintext transport credentials — the LLM
// transport is expected to run on localhost or as a sidecar, matching the
// teacher's own insecure.NewCredentials() usage for its LLM service.
func Dial(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("llmrpc: dial %s: %w", addr, err)
	}
	return conn, nil
}
