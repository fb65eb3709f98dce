package sysinfo

import (
	"github.com/ARTM2000/winvault"
	"github.com/ARTM2000/winvault/logging"
)

// Module registers a [Collector] and a [Sampler] feeding the container's
// [Sink]. The sampler starts with the application when autoStart is set;
// otherwise it only samples on demand.
func Module(schedule string, autoStart bool, opts ...CollectorOption) winvault.Module {
	return winvault.NewModule("sysinfo", func(c winvault.Container) error {
		if err := c.Register(func() *Collector { return NewCollector(opts...) }); err != nil {
			return err
		}
		var samplerOpts []winvault.Option
		if autoStart {
			samplerOpts = append(samplerOpts, winvault.WithAutoInitialize())
		}
		return c.Register(func(col *Collector, l *logging.Logger, sink Sink) *Sampler {
			return NewSampler(col, schedule, l.Named("sysinfo"), sink)
		}, samplerOpts...)
	})
}
