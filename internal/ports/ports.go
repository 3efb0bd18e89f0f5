package ports

// Default ports of the management server.
const (
	APIDefaultPort        = 8082
	ManagementDefaultPort = 8902
)
