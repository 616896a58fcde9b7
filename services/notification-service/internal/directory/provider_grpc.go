//go:build protogen

package directory

import (
	"context"
	"time"

	"github.com/yared-getachew/bookdesk/libs/grpcx"
	directoryv1 "github.com/yared-getachew/bookdesk/protos/gen/directory/v1"
)

// Provider resolves a subject ID to its chat address.
type Provider interface {
	ResolveChat(ctx context.Context, subjectID string) (string, error)
}

type grpcProvider struct {
	client directoryv1.DirectoryServiceClient
}

// NewProvider dials the directory service; with no address configured it
// falls back to using subject IDs as chat IDs.
func NewProvider(addr string) (Provider, error) {
	if addr == "" {
		return identityProvider{}, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcProvider{client: directoryv1.NewDirectoryServiceClient(conn)}, nil
}

func (p *grpcProvider) ResolveChat(ctx context.Context, subjectID string) (string, error) {
	resp, err := p.client.ResolveChat(ctx, &directoryv1.ResolveChatRequest{SubjectId: subjectID})
	if err != nil {
		return "", err
	}
	return resp.GetChatId(), nil
}

type identityProvider struct{}

func (identityProvider) ResolveChat(_ context.Context, subjectID string) (string, error) {
	return subjectID, nil
}
