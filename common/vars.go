package common

var Version = "dev"

const (
	PackageName = "github.com/ruteri/overlay-provisioning-backend"
)

// ServiceName tags logs and prefixes metric names.
const ServiceName = "overlay-provisioning"
