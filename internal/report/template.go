package report

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownTemplate marks a lookup for an unregistered template ID.
	ErrUnknownTemplate = errors.New("unknown report template")

	// ErrMissingVariable marks a render context lacking required variables.
	ErrMissingVariable = errors.New("missing template variable")
)

// Variable declares one input a template consumes.
type Variable struct {
	Name        string
	Description string
	Required    bool
	Default     any
}

// Context carries the inputs for a template render. Well-known keys:
// "review" (*models.Response), "reviews" (map[string]*models.Response, set
// for batch renders), "file_path" (string), "review_type"
// (models.ReviewType), "include_code" (bool).
type Context map[string]any

// Template produces a full report from a context.
type Template interface {
	ID() string
	Name() string
	Description() string
	Variables() []Variable
	Render(tc Context) (*Report, error)
}

// Info summarizes a registered template.
type Info struct {
	ID          string
	Name        string
	Description string
}

// TemplateRegistry holds report templates. Construct one during process init
// and pass it to the generator; there is no package-level instance.
type TemplateRegistry struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewTemplateRegistry returns an empty registry.
func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{templates: make(map[string]Template)}
}

// BuiltinTemplates returns a registry with the shipped templates registered.
func BuiltinTemplates() *TemplateRegistry {
	r := NewTemplateRegistry()
	r.Register(&executiveSummaryTemplate{})
	r.Register(&securityAuditTemplate{})
	r.Register(&performanceReportTemplate{})
	return r
}

// Register adds or replaces a template under its ID.
func (r *TemplateRegistry) Register(t Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.ID()] = t
}

// Get returns the template registered under id.
func (r *TemplateRegistry) Get(id string) (Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	return t, nil
}

// List returns the registered templates, sorted by ID.
func (r *TemplateRegistry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]Info, 0, len(r.templates))
	for _, t := range r.templates {
		infos = append(infos, Info{ID: t.ID(), Name: t.Name(), Description: t.Description()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Render resolves id, fills defaults, validates the context, and renders.
func (r *TemplateRegistry) Render(id string, tc Context) (*Report, error) {
	t, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if tc == nil {
		tc = Context{}
	}
	for _, v := range t.Variables() {
		if _, ok := tc[v.Name]; !ok && v.Default != nil {
			tc[v.Name] = v.Default
		}
	}
	if err := ValidateContext(t, tc); err != nil {
		return nil, err
	}
	return t.Render(tc)
}

// ValidateContext checks that every required variable of t is present in tc,
// reporting all missing names at once.
func ValidateContext(t Template, tc Context) error {
	var missing []string
	for _, v := range t.Variables() {
		if !v.Required {
			continue
		}
		if _, ok := tc[v.Name]; !ok {
			missing = append(missing, v.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: template %q requires %s",
			ErrMissingVariable, t.ID(), strings.Join(missing, ", "))
	}
	return nil
}
