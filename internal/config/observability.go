package config

// OTLPConfig holds optional OTLP trace export configuration.
//
// Tracing is disabled unless Endpoint is set. See internal/app for the
// exporter setup.
type OTLPConfig struct {
	// Endpoint is the OTLP/HTTP collector endpoint (e.g. "localhost:4318").
	// Empty disables trace export entirely.
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	// Environment is the deployment environment tag (default: dev)
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName is the service name attached to exported spans (default: compass)
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// Enabled reports whether trace export is configured.
func (o OTLPConfig) Enabled() bool {
	return o.Endpoint != ""
}
