// Package gateway provides the public API for embedding the decoder gateway.
// This is the stable API for external consumers.
package gateway

import (
	"github.com/decoderlabs/decoder-gateway/internal/onboarding"
	"github.com/decoderlabs/decoder-gateway/internal/runtime"
)

// Gateway is the main entry point for running the decoder gateway.
// See internal/runtime.Gateway for full documentation.
type Gateway = runtime.Gateway

// Option is a functional option for configuring a Gateway.
type Option = runtime.Option

// ConfigProvider loads configuration and reports changes.
type ConfigProvider = runtime.ConfigProvider

// New creates a new Gateway with the given options.
// Example:
//
//	gw, err := gateway.New(
//	    gateway.WithLogger(logger),
//	    gateway.WithFileConfig("config.yaml"),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithFileConfig     = runtime.WithFileConfig
	WithConfigProvider = runtime.WithConfigProvider

	// Backend
	WithHTTPClient      = runtime.WithHTTPClient
	WithBackendResolver = runtime.WithBackendResolver

	// Observability
	WithLogger          = runtime.WithLogger
	WithMetricsRegistry = runtime.WithMetricsRegistry
)

// Onboarding routing, for callers that decide screens without the HTTP
// surface.
type (
	OnboardingStatus = onboarding.Status
	OnboardingRoute  = onboarding.Route
)

// DecideRoute maps an onboarding status to the next screen.
var DecideRoute = onboarding.Decide
