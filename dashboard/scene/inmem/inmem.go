// Package inmem provides an in-memory scene.Dashboard for tests and local
// development.
package inmem

import (
	"errors"
	"fmt"
	"sync"

	"goa.design/dashpanels/dashboard/scene"
)

// Dashboard is an in-memory dashboard. It rejects panels whose identifier is
// already attached.
type Dashboard struct {
	mu      sync.Mutex
	title   string
	editing bool
	panels  []*scene.Panel
	renders int
	edits   int
}

// New returns an empty dashboard that is not in edit mode. existing panels are
// attached as is.
func New(title string, existing ...*scene.Panel) *Dashboard {
	return &Dashboard{title: title, panels: append([]*scene.Panel(nil), existing...)}
}

// Title returns the dashboard title.
func (d *Dashboard) Title() string {
	return d.title
}

// IsEditing implements scene.Dashboard.
func (d *Dashboard) IsEditing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.editing
}

// EnterEditMode implements scene.Dashboard.
func (d *Dashboard) EnterEditMode() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.editing = true
	d.edits++
}

// AddPanel implements scene.Dashboard.
func (d *Dashboard) AddPanel(p *scene.Panel) error {
	if p == nil {
		return errors.New("add panel: nil panel")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.panels {
		if existing.ID == p.ID {
			return fmt.Errorf("add panel: id %d already attached", p.ID)
		}
	}
	d.panels = append(d.panels, p)
	return nil
}

// ForceRender implements scene.Dashboard.
func (d *Dashboard) ForceRender() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.renders++
	return nil
}

// PanelIDs implements scene.Dashboard.
func (d *Dashboard) PanelIDs() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]int, len(d.panels))
	for i, p := range d.panels {
		ids[i] = p.ID
	}
	return ids
}

// Panels returns the attached panels in attachment order.
func (d *Dashboard) Panels() []*scene.Panel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*scene.Panel(nil), d.panels...)
}

// Renders returns the number of ForceRender calls.
func (d *Dashboard) Renders() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.renders
}

// EditTransitions returns the number of EnterEditMode calls.
func (d *Dashboard) EditTransitions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.edits
}
