package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rl1809/whiskey-cellar/internal/core/domain"
	"github.com/rl1809/whiskey-cellar/internal/port"
)

// ViewController drives a port.View from user actions: it validates the
// form, runs the matching repository call and redraws the list once the
// transaction committed. It holds the state of a single form, so its
// operations are serialized.
type ViewController struct {
	repo   Repository
	view   port.View
	logger *zap.Logger

	mu       sync.Mutex
	selected string
}

func NewViewController(repo Repository, view port.View, logger *zap.Logger) *ViewController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewController{repo: repo, view: view, logger: logger}
}

// Selected returns the id loaded into the form, or "" when nothing is.
func (c *ViewController) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Load renders the stored whiskeys.
func (c *ViewController) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.render(ctx)
}

// Submit creates a whiskey from form, then redraws the list and clears the form.
func (c *ViewController) Submit(ctx context.Context, form domain.Form) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fields, err := c.validate(form)
	if err != nil {
		return err
	}

	w, err := c.repo.Create(ctx, fields).Wait(ctx)
	if err != nil {
		return fmt.Errorf("add whiskey: %w", err)
	}
	c.logger.Debug("Whiskey added", zap.String("id", w.ID))

	if err := c.render(ctx); err != nil {
		return err
	}
	c.reset()
	return nil
}

// Select loads the whiskey stored under id into the form.
func (c *ViewController) Select(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, err := c.repo.GetOne(ctx, id).Wait(ctx)
	if err != nil {
		return fmt.Errorf("select whiskey: %w", err)
	}
	if w == nil {
		return fmt.Errorf("select %s: %w", id, domain.ErrNotFound)
	}

	c.selected = id
	c.view.Fill(domain.FormFromWhiskey(*w))
	return nil
}

// Update replaces the selected whiskey with form, shows the stored values
// and redraws the list.
func (c *ViewController) Update(ctx context.Context, form domain.Form) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selected == "" {
		return domain.ErrNoSelection
	}
	fields, err := c.validate(form)
	if err != nil {
		return err
	}

	updated, err := c.repo.Update(ctx, c.selected, fields).Wait(ctx)
	if err != nil {
		return fmt.Errorf("update whiskey: %w", err)
	}
	c.logger.Debug("Whiskey updated", zap.String("id", c.selected))
	c.view.Fill(domain.FormFromWhiskey(updated))
	return c.render(ctx)
}

// Delete removes the selected whiskey, clears the form and redraws the list.
func (c *ViewController) Delete(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selected == "" {
		return domain.ErrNoSelection
	}
	id := c.selected

	if _, err := c.repo.Delete(ctx, id).Wait(ctx); err != nil {
		return fmt.Errorf("delete whiskey: %w", err)
	}
	c.logger.Debug("Whiskey deleted", zap.String("id", id))

	c.reset()
	return c.render(ctx)
}

// Reset clears the form and forgets the selection.
func (c *ViewController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *ViewController) reset() {
	c.selected = ""
	c.view.Fill(domain.Form{})
}

func (c *ViewController) validate(form domain.Form) (domain.WhiskeyFields, error) {
	fields, err := form.Validate()
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			c.view.Alert(verr.Message)
		}
		return domain.WhiskeyFields{}, err
	}
	return fields, nil
}

func (c *ViewController) render(ctx context.Context) error {
	all, err := c.repo.GetAll(ctx).Wait(ctx)
	if err != nil {
		return fmt.Errorf("list whiskeys: %w", err)
	}

	rows := make([]domain.Row, 0, len(all))
	for _, w := range all {
		rows = append(rows, domain.NewRow(w))
	}
	c.view.Render(rows)
	return nil
}
