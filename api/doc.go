/*
Package api contains the shared HTTP surface of the secret provisioning service: the
server configuration, header names and the client-side ProvisioningProvider interface.

The handler and client live in the provisioner subpackage. The server lifecycle,
health endpoints and listeners live in the httpserver package.
*/
package api
