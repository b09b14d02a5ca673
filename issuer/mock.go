package issuer

import (
	"context"
	"os"

	"github.com/ruteri/overlay-provisioning-backend/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockIssuer mocks the IdentityIssuer interface
type MockIssuer struct {
	mock.Mock
}

// Issue mocks the Issue method
func (m *MockIssuer) Issue(ctx context.Context, req interfaces.IdentityRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// FileWritingIssuer is an IdentityIssuer for tests that writes placeholder
// credentials instead of signing anything.
type FileWritingIssuer struct {
	Requests []interfaces.IdentityRequest
}

func (f *FileWritingIssuer) Issue(ctx context.Context, req interfaces.IdentityRequest) error {
	f.Requests = append(f.Requests, req)
	if err := os.WriteFile(req.OutCert, []byte("cert:"+req.Name.String()+":"+req.Address.String()), 0600); err != nil {
		return err
	}
	return os.WriteFile(req.OutKey, []byte("key:"+req.Name.String()), 0600)
}
