/*
Package api holds the types shared by the provisioning HTTP server and its
clients.

A node joins the overlay by asking the provisioning server for a bundle:

	POST /new/node/{name}

The response body is the base64 encoded tar.gz of the node directory, which
contains the signed host certificate, its private key and the shared node
configuration. The assigned address and the bundle's content ID are returned
in the X-Node-Address and X-Bundle-Id headers.

Status codes:

  - 200: bundle issued
  - 400: the name is not a valid node name
  - 503: the address pool is exhausted or the provisioning worker has stopped
  - 500: issuance or packaging failed

The server is unauthenticated and is meant to run on a trusted network.

See the provisioner subpackage for the handler and client.
*/
package api
