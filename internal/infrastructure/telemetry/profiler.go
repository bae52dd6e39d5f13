package telemetry

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// ProfilerConfig configures Pyroscope continuous profiling.
type ProfilerConfig struct {
	Enabled           bool
	ServerAddress     string
	ApplicationName   string
	BasicAuthUser     string
	BasicAuthPassword string

	ProfileCPU           bool
	ProfileAllocObjects  bool
	ProfileAllocSpace    bool
	ProfileInuseObjects  bool
	ProfileInuseSpace    bool
	ProfileGoroutines    bool
	ProfileMutexCount    bool
	ProfileMutexDuration bool
	ProfileBlockCount    bool
	ProfileBlockDuration bool

	// Sampling rates for mutex and block profiles. Zero means 5.
	MutexProfileFraction int
	BlockProfileRate     int
	DisableGCRuns        bool
}

func (c ProfilerConfig) profileTypes() []pyroscope.ProfileType {
	toggles := []struct {
		on bool
		pt pyroscope.ProfileType
	}{
		{c.ProfileCPU, pyroscope.ProfileCPU},
		{c.ProfileAllocObjects, pyroscope.ProfileAllocObjects},
		{c.ProfileAllocSpace, pyroscope.ProfileAllocSpace},
		{c.ProfileInuseObjects, pyroscope.ProfileInuseObjects},
		{c.ProfileInuseSpace, pyroscope.ProfileInuseSpace},
		{c.ProfileGoroutines, pyroscope.ProfileGoroutines},
		{c.ProfileMutexCount, pyroscope.ProfileMutexCount},
		{c.ProfileMutexDuration, pyroscope.ProfileMutexDuration},
		{c.ProfileBlockCount, pyroscope.ProfileBlockCount},
		{c.ProfileBlockDuration, pyroscope.ProfileBlockDuration},
	}
	var out []pyroscope.ProfileType
	for _, t := range toggles {
		if t.on {
			out = append(out, t.pt)
		}
	}
	return out
}

// Profiler is a stoppable Pyroscope session. The zero session (profiling
// disabled) is valid.
type Profiler struct {
	session *pyroscope.Profiler
	log     *zap.Logger
	stop    sync.Once
	err     error
}

func NewProfiler(cfg ProfilerConfig, log *zap.Logger) (*Profiler, error) {
	p := &Profiler{log: log}
	if !cfg.Enabled {
		return p, nil
	}
	if cfg.ServerAddress == "" || cfg.ApplicationName == "" {
		return nil, errors.New("profiling needs both a server address and an application name")
	}

	if cfg.ProfileMutexCount || cfg.ProfileMutexDuration {
		runtime.SetMutexProfileFraction(orDefault(cfg.MutexProfileFraction, 5))
	}
	if cfg.ProfileBlockCount || cfg.ProfileBlockDuration {
		runtime.SetBlockProfileRate(orDefault(cfg.BlockProfileRate, 5))
	}

	tags := map[string]string{}
	for tag, env := range map[string]string{"hostname": "HOSTNAME", "pod": "POD_NAME"} {
		if v := os.Getenv(env); v != "" {
			tags[tag] = v
		}
	}

	types := cfg.profileTypes()
	session, err := pyroscope.Start(pyroscope.Config{
		ApplicationName:   cfg.ApplicationName,
		ServerAddress:     cfg.ServerAddress,
		BasicAuthUser:     cfg.BasicAuthUser,
		BasicAuthPassword: cfg.BasicAuthPassword,
		Logger:            pyroscopeLogger{log.Named("pyroscope").Sugar()},
		Tags:              tags,
		ProfileTypes:      types,
		DisableGCRuns:     cfg.DisableGCRuns,
	})
	if err != nil {
		return nil, fmt.Errorf("start pyroscope: %w", err)
	}
	p.session = session

	log.Info("Continuous profiling started",
		zap.String("server", cfg.ServerAddress),
		zap.Int("profile_types", len(types)),
	)
	return p, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (p *Profiler) IsEnabled() bool { return p != nil && p.session != nil }

// Stop uploads pending profiles. It is idempotent; the pyroscope client has
// no context-aware stop so it may block on an unreachable server.
func (p *Profiler) Stop() error {
	if p.session == nil {
		return nil
	}
	p.stop.Do(func() {
		if err := p.session.Stop(); err != nil {
			p.err = fmt.Errorf("stop pyroscope: %w", err)
			return
		}
		p.log.Info("Continuous profiling stopped")
	})
	return p.err
}

type pyroscopeLogger struct{ s *zap.SugaredLogger }

func (l pyroscopeLogger) Infof(format string, args ...any)  { l.s.Infof(format, args...) }
func (l pyroscopeLogger) Debugf(format string, args ...any) { l.s.Debugf(format, args...) }
func (l pyroscopeLogger) Errorf(format string, args ...any) { l.s.Errorf(format, args...) }
