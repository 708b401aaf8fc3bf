/*
Package httpserver runs the provisioning HTTP API.

The server mounts the provisioner handler together with the usual health and
diagnostic endpoints:

  - GET /livez - liveness check
  - GET /readyz - readiness check, 503 while draining
  - GET /drain, GET /undrain - toggle readiness ahead of a restart
  - /debug/pprof - when EnablePprof is set

Every request is logged through the flashbots httplogger middleware.

The server listens on TCP by default. Setting VsockPort in the configuration makes it
listen on AF_VSOCK instead, which is how a provider running in a VM is reached from
the host that runs the enclave.
*/
package httpserver
