package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is a lifecycle-managed piece of infrastructure.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start initializes and starts the component.
	Start(ctx context.Context) error

	// Stop shuts the component down and releases resources.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) Health
}

// Description holds summary information for the startup display.
type Description struct {
	// Name is the display name. If empty, the component's Name() is used.
	Name string
	// Type categorizes the component: "telemetry", "cache", "backend".
	Type string
	// Details is a one-liner, e.g. "localhost:6379 db=0 pool=4".
	Details string
}

// Describable is optionally implemented by components that report
// themselves in the startup summary.
type Describable interface {
	Describe() Description
}

// Func adapts plain functions to Component. Nil hooks are no-ops and a
// nil HealthFn reports healthy.
type Func struct {
	ComponentName string
	Desc          Description
	StartFn       func(ctx context.Context) error
	StopFn        func(ctx context.Context) error
	HealthFn      func(ctx context.Context) error
}

// Name returns ComponentName.
func (f *Func) Name() string { return f.ComponentName }

// Start runs StartFn.
func (f *Func) Start(ctx context.Context) error {
	if f.StartFn == nil {
		return nil
	}
	return f.StartFn(ctx)
}

// Stop runs StopFn.
func (f *Func) Stop(ctx context.Context) error {
	if f.StopFn == nil {
		return nil
	}
	return f.StopFn(ctx)
}

// Health runs HealthFn and maps an error to StatusUnhealthy.
func (f *Func) Health(ctx context.Context) Health {
	h := Health{Name: f.ComponentName, Status: StatusHealthy}
	if f.HealthFn == nil {
		return h
	}
	if err := f.HealthFn(ctx); err != nil {
		h.Status = StatusUnhealthy
		h.Message = err.Error()
	}
	return h
}

// Describe returns Desc, naming it after the component when unset.
func (f *Func) Describe() Description {
	d := f.Desc
	if d.Name == "" {
		d.Name = f.ComponentName
	}
	return d
}
