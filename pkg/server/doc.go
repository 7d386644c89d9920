// Package server assembles the HTTP surface: the SSO entry point, webhook
// ingress, staff admin endpoints, health and metrics, all mounted under the
// configured base path.
package server
