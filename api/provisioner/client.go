package provisioner

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ruteri/overlay-provisioning-backend/api"
	"github.com/ruteri/overlay-provisioning-backend/interfaces"
	"github.com/stretchr/testify/mock"
)

// ProvisioningClient implements api.BundleProvider against a remote
// provisioning server.
type ProvisioningClient struct {
	// ServerAddr is the base URL of the provisioning server
	ServerAddr string

	// HTTPClient defaults to http.DefaultClient
	HTTPClient *http.Client
}

// RequestBundle asks the server to provision name. A 400 response is
// reported as interfaces.ErrInvalidNodeName.
func (p *ProvisioningClient) RequestBundle(ctx context.Context, name string) (*api.BundleResponse, error) {
	endpoint := fmt.Sprintf("%s/new/node/%s", strings.TrimSuffix(p.ServerAddr, "/"), url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}

	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not request provisioning endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read provisioning response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest:
		return nil, fmt.Errorf("%w: server rejected %q: %s", interfaces.ErrInvalidNodeName, name, strings.TrimSpace(string(body)))
	default:
		return nil, fmt.Errorf("provisioning endpoint returned error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return &api.BundleResponse{
		Name:     name,
		Address:  resp.Header.Get(api.NodeAddressHeader),
		BundleID: resp.Header.Get(api.BundleIDHeader),
		Encoded:  string(body),
	}, nil
}

// MockBundleProvider implements api.BundleProvider for testing.
type MockBundleProvider struct {
	mock.Mock
}

func (m *MockBundleProvider) RequestBundle(ctx context.Context, name string) (*api.BundleResponse, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.BundleResponse), args.Error(1)
}
