package voice

import (
	"fmt"

	dservice "FinSight/internal/domain/service"
	"FinSight/pkg/config"
)

// BuildBackends constructs cascade backends from configuration, in order.
// Order is priority order: the first backend that starts wins.
func BuildBackends(cfgs []config.VoiceBackendConfig) ([]dservice.WakeWordBackend, error) {
	backends := make([]dservice.WakeWordBackend, 0, len(cfgs))
	for _, c := range cfgs {
		switch c.Name {
		case "socket":
			backends = append(backends, NewSocket(c.URL, c.Keyword))
		case "exec":
			backends = append(backends, NewExec(c.Command, c.Args, c.Keyword))
		default:
			return nil, fmt.Errorf("unknown voice backend %q", c.Name)
		}
	}
	return backends, nil
}
