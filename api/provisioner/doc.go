// Package provisioner implements the HTTP side of node provisioning.
//
// # Key Components
//
//   - Handler: serves POST /new/node/{name} on top of an
//     interfaces.NodeProvisioner and maps provisioning errors to status codes
//   - ProvisioningClient: requests bundles from a remote server
//
// # Usage Example
//
//	client := &provisioner.ProvisioningClient{
//		ServerAddr: "http://10.0.0.1:8080",
//	}
//
//	resp, err := client.RequestBundle(ctx, "node-1")
//	if err != nil {
//		log.Fatalf("Provisioning failed: %v", err)
//	}
//
//	raw, _ := packaging.DecodeArchive(resp.Encoded)
//	err = packaging.Unpack(raw, "/etc/nebula")
package provisioner
