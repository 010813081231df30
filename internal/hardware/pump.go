package hardware

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/warthog618/go-gpiocdev"
)

// Pump is the actuator sink. Set is fire-and-forget: the engine assumes
// at-least-once delivery and never reads physical state back.
type Pump interface {
	Set(on bool) error
	Close() error
}

// GPIOPump drives the pump relay through the Linux GPIO character device.
type GPIOPump struct {
	chip       *gpiocdev.Chip
	line       *gpiocdev.Line
	activeHigh bool
	safeMode   bool
}

func NewGPIOPump(chipName string, pin int, activeHigh bool, safeMode bool) (*GPIOPump, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	// Request the line already driven to the inactive level so the pump
	// cannot glitch on during startup.
	initial := 0
	if !activeHigh {
		initial = 1
	}
	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(initial))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request pump pin %d: %w", pin, err)
	}

	return &GPIOPump{
		chip:       chip,
		line:       line,
		activeHigh: activeHigh,
		safeMode:   safeMode,
	}, nil
}

func (p *GPIOPump) Set(on bool) error {
	if p.safeMode {
		return nil
	}

	level := 0
	if on == p.activeHigh {
		level = 1
	}
	if err := p.line.SetValue(level); err != nil {
		return fmt.Errorf("set pump pin: %w", err)
	}
	return nil
}

// Close forces the pump off and releases the GPIO resources.
func (p *GPIOPump) Close() error {
	var errs []error

	if p.line != nil {
		if err := p.Set(false); err != nil {
			errs = append(errs, err)
		}
		if err := p.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pump pin: %w", err))
		}
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// SimulatedPump stands in for the relay when running without hardware. It
// tracks cumulative runtime for log output.
type SimulatedPump struct {
	mu           sync.Mutex
	on           bool
	onSince      time.Time
	totalRuntime time.Duration
}

func NewSimulatedPump() *SimulatedPump {
	return &SimulatedPump{}
}

func (p *SimulatedPump) Set(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if on == p.on {
		return nil
	}
	now := time.Now()
	if on {
		p.onSince = now
		log.Debug().Msg("Simulated pump ON")
	} else {
		p.totalRuntime += now.Sub(p.onSince)
		log.Debug().Dur("total_runtime", p.totalRuntime).Msg("Simulated pump OFF")
	}
	p.on = on
	return nil
}

func (p *SimulatedPump) On() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.on
}

func (p *SimulatedPump) Runtime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.on {
		return p.totalRuntime + time.Since(p.onSince)
	}
	return p.totalRuntime
}

func (p *SimulatedPump) Close() error {
	return p.Set(false)
}
